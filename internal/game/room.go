// Package game holds the per-room state machine: membership, the guess
// log, hint bookkeeping, and the asynchronous ranking build around one
// secret target word.
package game

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nearword/nearword/internal/config"
	"github.com/nearword/nearword/internal/metrics"
	"github.com/nearword/nearword/internal/oracle"
	"github.com/nearword/nearword/internal/ranking"
	"github.com/nearword/nearword/internal/streaming"
	"github.com/nearword/nearword/internal/workers"
)

// State is the room lifecycle: created → initializing → ready → won.
type State int

const (
	StateCreated State = iota
	StateInitializing
	StateReady
	StateWon
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateWon:
		return "won"
	default:
		return "unknown"
	}
}

// Vocabulary is the slice of the vocabulary cache a room needs.
type Vocabulary interface {
	ranking.Vocab
	Meaningful() []string
	Ensure(progress oracle.ProgressFunc) error
}

// member is one joined session. send must never block.
type member struct {
	id   string
	name string
	send func(streaming.Event) bool
}

// Room is one game around one target. A single mutex serializes all
// mutations; broadcasts are published while holding it, which fixes the
// per-room event order every member observes.
type Room struct {
	ID string

	vocab  Vocabulary
	hub    *streaming.Hub
	pool   *workers.Pool
	cfg    config.GameConfig
	logger *zap.Logger
	onDead func(id, reason string)

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	state    State
	closed   bool
	members  []*member
	guesses  []*Guess
	byWord   map[string]*Guess
	hinted   map[string]bool
	engine   *ranking.Output
	winner   *Guess
	target   string
	creator  string
	progress string
}

func newRoom(id, target string, vocab Vocabulary, hub *streaming.Hub, pool *workers.Pool,
	cfg config.GameConfig, logger *zap.Logger, onDead func(id, reason string)) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	return &Room{
		ID:       id,
		vocab:    vocab,
		hub:      hub,
		pool:     pool,
		cfg:      cfg,
		logger:   logger,
		onDead:   onDead,
		ctx:      ctx,
		cancel:   cancel,
		byWord:   make(map[string]*Guess),
		hinted:   make(map[string]bool),
		target:   target,
		progress: "Setting up the game room...",
	}
}

// Join adds a session to the room. The joiner gets a room_state snapshot
// (and a room_loading line while the build is pending) on its own socket,
// then the whole room gets player_joined. The first join schedules the
// background ranking build; it never waits for it.
func (r *Room) Join(sessionID, playerName string, send func(streaming.Event) bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRoomClosed
	}

	r.members = append(r.members, &member{id: sessionID, name: playerName, send: send})
	if r.state == StateCreated {
		r.state = StateInitializing
		r.creator = sessionID
		r.pool.Submit(r.ctx, "build "+r.ID, r.runBuild)
	}

	send(streaming.Event{Name: EventRoomState, Data: r.snapshotLocked()})
	if r.state == StateInitializing {
		send(streaming.Event{Name: EventRoomLoading, Data: LoadingEvent{Msg: r.progress}})
	}
	r.publishLocked(EventPlayerJoined, PlayerEvent{PlayerName: playerName, Players: r.playersLocked()})

	r.logger.Info("Player joined",
		zap.String("room_id", r.ID),
		zap.String("player", playerName),
		zap.String("session_id", sessionID),
		zap.Int("players", len(r.members)),
	)
	return nil
}

// Leave removes a session. It reports whether the room is now empty; the
// registry decides destruction.
func (r *Room) Leave(sessionID string) (empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, m := range r.members {
		if m.id != sessionID {
			continue
		}
		r.members = append(r.members[:i], r.members[i+1:]...)
		r.publishLocked(EventPlayerLeft, PlayerEvent{PlayerName: m.name, Players: r.playersLocked()})
		r.logger.Info("Player left",
			zap.String("room_id", r.ID),
			zap.String("player", m.name),
			zap.Int("players", len(r.members)),
		)
		break
	}
	return len(r.members) == 0
}

// SubmitGuess validates and resolves one guess, appends it to the log (or
// bumps the repeat counter) and broadcasts new_guess. The returned error is
// for the submitting session only; room state is untouched by rejects.
func (r *Room) SubmitGuess(playerName, raw string) (Guess, error) {
	if !IsLegalGuess(raw) {
		metrics.RecordGuess("illegal", 0)
		return Guess{}, ErrBadGuess
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Guess{}, ErrRoomClosed
	}
	switch r.state {
	case StateCreated, StateInitializing:
		return Guess{}, ErrNotReady
	case StateWon:
		return Guess{}, ErrGameOver
	}

	res, err := r.engine.Resolve(raw, r.vocab)
	if err != nil {
		metrics.RecordGuess("unknown_word", 0)
		return Guess{}, err
	}
	return r.appendLocked(raw, playerName, res.Rank, res.Similarity, res.Exact), nil
}

// RequestHint reveals the representative at half the best rank achieved so
// far, skipping words already hinted, and enters it into the guess log
// under the reserved hint author.
func (r *Room) RequestHint() (Guess, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Guess{}, ErrRoomClosed
	}
	switch r.state {
	case StateCreated, StateInitializing:
		return Guess{}, ErrNotReady
	case StateWon:
		return Guess{}, ErrGameOver
	}

	best := r.engine.TotalWords
	for _, g := range r.guesses {
		if g.Rank < best {
			best = g.Rank
		}
	}
	rank := best / 2
	if rank < 1 {
		rank = 1
	}
	wordAt := func(rk int) string {
		e, _ := r.engine.At(rk)
		return e.Word
	}
	for rank > 1 && r.hinted[wordAt(rank)] {
		rank--
	}
	entry, ok := r.engine.At(rank)
	if !ok {
		return Guess{}, fmt.Errorf("hint rank %d out of range", rank)
	}
	r.hinted[entry.Word] = true
	metrics.HintsServed.Inc()

	r.logger.Info("Hint served",
		zap.String("room_id", r.ID),
		zap.Int("rank", entry.Rank),
		zap.Int("best", best),
	)
	return r.appendLocked(entry.Word, HintAuthor, entry.Rank, entry.Similarity, true), nil
}

// appendLocked enters a resolved guess into the log and broadcasts it.
// Repeat surfaces bump the counter on the existing row; rank 1 ends the
// game and attaches the top-10 reveal.
func (r *Room) appendLocked(word, player string, rank int, sim float64, exact bool) Guess {
	if g, ok := r.byWord[word]; ok {
		g.TimesGuessed++
		metrics.RecordGuess("duplicate", 0)
		r.publishLocked(EventNewGuess, *g)
		return *g
	}

	g := &Guess{
		Word:         word,
		PlayerName:   player,
		Similarity:   sim,
		Rank:         rank,
		IsCorrect:    rank == 1,
		TimesGuessed: 1,
	}
	if g.IsCorrect {
		g.Top10 = r.engine.Top(10)
		r.state = StateWon
		r.winner = g
		metrics.GamesWon.Inc()
		r.logger.Info("Game won",
			zap.String("room_id", r.ID),
			zap.String("player", player),
			zap.Int("guesses", len(r.guesses)+1),
		)
	}
	r.guesses = append(r.guesses, g)
	r.byWord[word] = g

	result := "estimated"
	if exact {
		result = "exact"
	}
	metrics.RecordGuess(result, rank)
	r.publishLocked(EventNewGuess, *g)
	return *g
}

// runBuild executes on the worker pool: make sure the vocabulary cache is
// up, pick a target, precompute the ranking, then flip the room to ready.
// A cancelled room discards the result.
func (r *Room) runBuild(ctx context.Context) {
	if err := r.vocab.Ensure(r.loadingProgress); err != nil {
		// The whole process is useless without the vocabulary.
		r.logger.Fatal("Vocabulary cache initialization failed", zap.Error(err))
	}

	start := time.Now()
	out, err := r.buildTarget()
	if ctx.Err() != nil || func() bool { r.mu.Lock(); defer r.mu.Unlock(); return r.closed }() {
		metrics.RecordBuild("cancelled", 0)
		r.logger.Debug("Discarding build for destroyed room", zap.String("room_id", r.ID))
		return
	}
	if err != nil {
		metrics.RecordBuild("failed", 0)
		r.logger.Error("Room build failed",
			zap.String("room_id", r.ID),
			zap.Error(err),
		)
		r.mu.Lock()
		r.publishLocked(EventGuessError, ErrorEvent{Msg: "Could not start the game."})
		r.mu.Unlock()
		r.onDead(r.ID, "build_failed")
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		metrics.RecordBuild("cancelled", 0)
		return
	}
	r.engine = out
	r.state = StateReady
	r.progress = ""
	if creator := r.memberLocked(r.creator); creator != nil {
		creator.send(streaming.Event{Name: EventRoomLoading, Data: LoadingEvent{Msg: ""}})
	}
	snapshot := r.snapshotLocked()
	r.publishLocked(EventRoomState, snapshot)
	r.mu.Unlock()

	metrics.RecordBuild("ok", time.Since(start).Seconds())
	r.logger.Info("Room ready",
		zap.String("room_id", r.ID),
		zap.Int("total_words", out.TotalWords),
		zap.Duration("took", time.Since(start)),
	)
	r.logger.Debug("Room target selected",
		zap.String("room_id", r.ID),
		zap.String("target", out.TargetWord),
	)
}

// buildTarget builds the ranking for the requested target, or for random
// picks from the meaningful pool with a bounded number of retries. A custom
// target gets no retry: the caller asked for that word or nothing.
func (r *Room) buildTarget() (*ranking.Output, error) {
	if r.target != "" {
		return ranking.Build(r.target, r.vocab)
	}
	pool := r.vocab.Meaningful()
	if len(pool) == 0 {
		return nil, fmt.Errorf("meaningful target pool is empty")
	}
	var (
		out *ranking.Output
		err error
	)
	for attempt := 0; attempt <= r.cfg.BuildRetries; attempt++ {
		word := pool[rand.Intn(len(pool))]
		out, err = ranking.Build(word, r.vocab)
		if err == nil {
			return out, nil
		}
		r.logger.Warn("Target unusable, retrying with a new pick",
			zap.String("room_id", r.ID),
			zap.String("target", word),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return nil, err
}

// loadingProgress forwards vocabulary-load progress to the session that
// created the room, as opaque room_loading text.
func (r *Room) loadingProgress(stage string, loaded, total int) {
	msg := stage
	if total > 0 {
		msg = fmt.Sprintf("%s (%d/%d)", stage, loaded, total)
	}
	r.mu.Lock()
	r.progress = msg
	creator := r.memberLocked(r.creator)
	r.mu.Unlock()
	if creator != nil {
		creator.send(streaming.Event{Name: EventRoomLoading, Data: LoadingEvent{Msg: msg}})
	}
}

// close marks the room dead and cancels the in-flight build, if any.
func (r *Room) close() {
	r.cancel()
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

// Empty reports whether no session is joined.
func (r *Room) Empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members) == 0
}

// State returns the current lifecycle state.
func (r *Room) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Players returns the joined player names in join order.
func (r *Room) Players() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playersLocked()
}

func (r *Room) publishLocked(name string, data interface{}) {
	r.hub.Publish(r.ID, streaming.Event{Name: name, Data: data})
}

func (r *Room) playersLocked() []string {
	players := make([]string, len(r.members))
	for i, m := range r.members {
		players[i] = m.name
	}
	return players
}

func (r *Room) memberLocked(sessionID string) *member {
	for _, m := range r.members {
		if m.id == sessionID {
			return m
		}
	}
	return nil
}

func (r *Room) snapshotLocked() RoomState {
	guesses := make([]Guess, len(r.guesses))
	for i, g := range r.guesses {
		guesses[i] = *g
	}
	total := 0
	if r.engine != nil {
		total = r.engine.TotalWords
	}
	return RoomState{
		Ready:      r.state == StateReady || r.state == StateWon,
		TotalWords: total,
		Guesses:    guesses,
		Players:    r.playersLocked(),
	}
}
