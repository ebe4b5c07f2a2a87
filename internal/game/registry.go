package game

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/nearword/nearword/internal/config"
	"github.com/nearword/nearword/internal/metrics"
	"github.com/nearword/nearword/internal/streaming"
	"github.com/nearword/nearword/internal/workers"
)

// Registry maps room ids to live rooms. Rooms are created lazily on first
// join and destroyed when the last member leaves or the build fails.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*Room

	vocab  Vocabulary
	hub    *streaming.Hub
	pool   *workers.Pool
	cfg    config.GameConfig
	logger *zap.Logger
}

// NewRegistry creates an empty room registry sharing one vocabulary cache,
// one fan-out hub, and one build pool across all rooms.
func NewRegistry(vocab Vocabulary, hub *streaming.Hub, pool *workers.Pool,
	cfg config.GameConfig, logger *zap.Logger) *Registry {
	return &Registry{
		rooms:  make(map[string]*Room),
		vocab:  vocab,
		hub:    hub,
		pool:   pool,
		cfg:    cfg,
		logger: logger,
	}
}

// GetOrCreate returns the room for id, creating it when unknown. Ids are
// lowercased before lookup. targetWord only applies when this call creates
// the room; "" means a random target.
func (reg *Registry) GetOrCreate(id, targetWord string) *Room {
	id = strings.ToLower(id)
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if room, ok := reg.rooms[id]; ok {
		return room
	}

	room := newRoom(id, strings.ToLower(strings.TrimSpace(targetWord)),
		reg.vocab, reg.hub, reg.pool, reg.cfg, reg.logger, reg.removeDead)
	reg.rooms[id] = room

	metrics.RoomsCreated.Inc()
	metrics.RoomsActive.Set(float64(len(reg.rooms)))
	reg.logger.Info("Room created", zap.String("room_id", id))
	return room
}

// Get returns the room for id without creating it.
func (reg *Registry) Get(id string) (*Room, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	room, ok := reg.rooms[strings.ToLower(id)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// DropIfEmpty destroys the room when no members remain, cancelling any
// in-flight build.
func (reg *Registry) DropIfEmpty(id string) {
	id = strings.ToLower(id)
	reg.mu.Lock()
	room, ok := reg.rooms[id]
	if !ok || !room.Empty() {
		reg.mu.Unlock()
		return
	}
	delete(reg.rooms, id)
	metrics.RoomsActive.Set(float64(len(reg.rooms)))
	reg.mu.Unlock()

	room.close()
	reg.hub.DropRoom(id)
	metrics.RoomsDestroyed.WithLabelValues("empty").Inc()
	reg.logger.Info("Room destroyed",
		zap.String("room_id", id),
		zap.String("reason", "empty"),
	)
}

// Count returns the number of live rooms.
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.rooms)
}

// removeDead is the build-failure callback: the room is gone whether or
// not members remain.
func (reg *Registry) removeDead(id, reason string) {
	reg.mu.Lock()
	room, ok := reg.rooms[id]
	if !ok {
		reg.mu.Unlock()
		return
	}
	delete(reg.rooms, id)
	metrics.RoomsActive.Set(float64(len(reg.rooms)))
	reg.mu.Unlock()

	room.close()
	reg.hub.DropRoom(id)
	metrics.RoomsDestroyed.WithLabelValues(reason).Inc()
	reg.logger.Warn("Room destroyed",
		zap.String("room_id", id),
		zap.String("reason", reason),
	)
}
