package game

import (
	"errors"

	"github.com/nearword/nearword/internal/ranking"
)

// Outbound event names, matching the wire protocol.
const (
	EventRoomLoading  = "room_loading"
	EventRoomState    = "room_state"
	EventNewGuess     = "new_guess"
	EventPlayerJoined = "player_joined"
	EventPlayerLeft   = "player_left"
	EventGuessError   = "guess_error"
)

// HintAuthor is the reserved player name hint guesses are attributed to.
const HintAuthor = "hint"

var (
	// ErrBadGuess means the guess is not non-empty lowercase letters.
	ErrBadGuess = errors.New("not a legal guess")
	// ErrNotReady means the room's ranking is still being built.
	ErrNotReady = errors.New("game not ready")
	// ErrGameOver means rank 1 was already achieved.
	ErrGameOver = errors.New("game already won")
	// ErrRoomClosed means the room was destroyed.
	ErrRoomClosed = errors.New("room closed")
	// ErrRoomNotFound means no room exists under the id.
	ErrRoomNotFound = errors.New("room not found")
)

// Guess is one row of a room's guess log. Repeat submissions of the same
// surface word bump TimesGuessed instead of adding rows.
type Guess struct {
	Word         string          `json:"word"`
	PlayerName   string          `json:"player_name"`
	Similarity   float64         `json:"similarity"`
	Rank         int             `json:"rank"`
	IsCorrect    bool            `json:"is_correct"`
	TimesGuessed int             `json:"times_guessed"`
	Top10        []ranking.Entry `json:"top_10,omitempty"`
}

// RoomState is the snapshot sent on join and on the ready transition.
type RoomState struct {
	Ready      bool     `json:"ready"`
	TotalWords int      `json:"total_words"`
	Guesses    []Guess  `json:"guesses"`
	Players    []string `json:"players"`
}

// PlayerEvent announces a membership change.
type PlayerEvent struct {
	PlayerName string   `json:"player_name"`
	Players    []string `json:"players"`
}

// LoadingEvent carries opaque progress text; an empty Msg clears it.
type LoadingEvent struct {
	Msg string `json:"msg"`
}

// ErrorEvent carries a user-facing error message.
type ErrorEvent struct {
	Msg string `json:"msg"`
}

// IsLegalGuess reports whether raw is non-empty ASCII a-z only. The server
// does not normalize; anything else is rejected.
func IsLegalGuess(raw string) bool {
	if raw == "" {
		return false
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] < 'a' || raw[i] > 'z' {
			return false
		}
	}
	return true
}
