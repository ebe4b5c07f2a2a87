// Package httpapi is the session router: it upgrades sockets, dispatches
// the inbound game events, and maps room errors to session-local
// guess_error frames.
package httpapi

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nearword/nearword/internal/config"
	"github.com/nearword/nearword/internal/game"
	"github.com/nearword/nearword/internal/oracle"
	"github.com/nearword/nearword/internal/session"
	"github.com/nearword/nearword/internal/streaming"
)

// Inbound event names.
const (
	eventJoinRoom    = "join_room"
	eventMakeGuess   = "make_guess"
	eventRequestHint = "request_hint"
)

// frame is the bidirectional wire envelope.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinPayload struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
	TargetWord string `json:"target_word,omitempty"`
	LastSeq    uint64 `json:"last_seq,omitempty"`
}

type guessPayload struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
	Guess      string `json:"guess"`
}

type hintPayload struct {
	RoomID     string `json:"room_id"`
	PlayerName string `json:"player_name"`
}

// Handler owns the /ws endpoint and the session lifecycle around it.
type Handler struct {
	registry *game.Registry
	sessions *session.Manager
	hub      *streaming.Hub
	logger   *zap.Logger

	mu      sync.RWMutex
	origins []string
}

// NewHandler creates the router. The CORS origin list is the dynamic part
// of cfg; UpdateConfig swaps it on reload.
func NewHandler(cfg *config.Config, registry *game.Registry, sessions *session.Manager,
	hub *streaming.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		sessions: sessions,
		hub:      hub,
		logger:   logger,
		origins:  cfg.Server.CORSAllowOrigins,
	}
}

// UpdateConfig applies the hot-reloadable subset of the configuration.
func (h *Handler) UpdateConfig(cfg *config.Config) {
	h.mu.Lock()
	h.origins = cfg.Server.CORSAllowOrigins
	h.mu.Unlock()
	h.sessions.UpdateLimits(cfg.Limits)
}

func (h *Handler) allowedOrigin(origin string) bool {
	if origin == "" {
		return true
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

// dispatch routes one inbound frame for sess.
func (h *Handler) dispatch(sess *session.Session, f frame) {
	switch f.Event {
	case eventJoinRoom:
		var p joinPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			h.sendError(sess, "Malformed event payload.")
			return
		}
		h.handleJoin(sess, p)
	case eventMakeGuess:
		var p guessPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			h.sendError(sess, "Malformed event payload.")
			return
		}
		h.handleGuess(sess, p)
	case eventRequestHint:
		var p hintPayload
		if err := json.Unmarshal(f.Data, &p); err != nil {
			h.sendError(sess, "Malformed event payload.")
			return
		}
		h.handleHint(sess, p)
	default:
		h.logger.Debug("Unknown inbound event",
			zap.String("session_id", sess.ID()),
			zap.String("event", f.Event),
		)
		h.sendError(sess, "Unknown event.")
	}
}

func (h *Handler) handleJoin(sess *session.Session, p joinPayload) {
	roomID := strings.ToLower(strings.TrimSpace(p.RoomID))
	player := strings.TrimSpace(p.PlayerName)
	if roomID == "" {
		h.sendError(sess, "Room not found.")
		return
	}
	if player == "" {
		player = "anonymous"
	}

	// A session plays in one room at a time; switching rooms leaves the
	// old one first.
	if prev, _ := sess.Room(); prev != "" && prev != roomID {
		h.leaveRoom(sess, prev)
	}

	room := h.registry.GetOrCreate(roomID, p.TargetWord)
	h.hub.Attach(room.ID, sess)
	if err := room.Join(sess.ID(), player, sess.Send); err != nil {
		h.hub.Detach(room.ID, sess.ID())
		h.sendError(sess, errorMessage(err))
		return
	}
	sess.Bind(room.ID, player)

	// Reconnects can ask for the events they missed.
	if p.LastSeq > 0 {
		for _, ev := range h.hub.ReplaySince(room.ID, p.LastSeq) {
			sess.Send(ev)
		}
	}
}

func (h *Handler) handleGuess(sess *session.Session, p guessPayload) {
	room, player, ok := h.boundRoom(sess, p.RoomID)
	if !ok {
		return
	}
	if p.PlayerName != "" {
		player = p.PlayerName
	}
	if !sess.AllowGuess() {
		h.sendError(sess, "Too many guesses, slow down.")
		return
	}
	if _, err := room.SubmitGuess(player, p.Guess); err != nil {
		h.sendError(sess, errorMessage(err))
	}
}

func (h *Handler) handleHint(sess *session.Session, p hintPayload) {
	room, _, ok := h.boundRoom(sess, p.RoomID)
	if !ok {
		return
	}
	if _, err := room.RequestHint(); err != nil {
		h.sendError(sess, errorMessage(err))
	}
}

// boundRoom resolves the room a request addresses, requiring the session
// to have joined it.
func (h *Handler) boundRoom(sess *session.Session, roomID string) (*game.Room, string, bool) {
	bound, player := sess.Room()
	if bound == "" || !strings.EqualFold(roomID, bound) {
		h.sendError(sess, "Room not found.")
		return nil, "", false
	}
	room, err := h.registry.Get(bound)
	if err != nil {
		h.sendError(sess, errorMessage(err))
		return nil, "", false
	}
	return room, player, true
}

// disconnect tears the session out of its room and the registry.
func (h *Handler) disconnect(sess *session.Session) {
	if roomID, _ := sess.Room(); roomID != "" {
		h.leaveRoom(sess, roomID)
	}
	h.sessions.Remove(sess.ID())
}

func (h *Handler) leaveRoom(sess *session.Session, roomID string) {
	h.hub.Detach(roomID, sess.ID())
	if room, err := h.registry.Get(roomID); err == nil {
		if room.Leave(sess.ID()) {
			h.registry.DropIfEmpty(roomID)
		}
	}
}

func (h *Handler) sendError(sess *session.Session, msg string) {
	sess.Send(streaming.Event{Name: game.EventGuessError, Data: game.ErrorEvent{Msg: msg}})
}

// errorMessage maps sentinel errors to the user-facing strings.
func errorMessage(err error) string {
	switch {
	case errors.Is(err, game.ErrBadGuess):
		return "Not a legal guess."
	case errors.Is(err, oracle.ErrNoVector):
		return "Word not known."
	case errors.Is(err, game.ErrNotReady):
		return "Game not ready yet."
	case errors.Is(err, game.ErrGameOver):
		return "Game already won."
	case errors.Is(err, game.ErrRoomNotFound):
		return "Room not found."
	case errors.Is(err, game.ErrRoomClosed):
		return "Room closed."
	default:
		return "Something went wrong."
	}
}
