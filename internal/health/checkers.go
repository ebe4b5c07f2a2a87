package health

import (
	"context"
)

// VocabCache is the readiness surface of the vocabulary cache.
type VocabCache interface {
	Ready() bool
}

// VocabChecker reports whether the vocabulary cache has been built. The
// cache loads lazily with the first room, so an unbuilt cache is degraded
// rather than unhealthy.
type VocabChecker struct {
	cache VocabCache
}

// NewVocabChecker wraps the vocabulary cache.
func NewVocabChecker(cache VocabCache) *VocabChecker {
	return &VocabChecker{cache: cache}
}

func (c *VocabChecker) Name() string   { return "vocab_cache" }
func (c *VocabChecker) Critical() bool { return false }

func (c *VocabChecker) Check(context.Context) CheckResult {
	if c.cache.Ready() {
		return CheckResult{Status: StatusHealthy, Message: "vocabulary cache built"}
	}
	return CheckResult{Status: StatusDegraded, Message: "vocabulary cache not built yet"}
}

// Counter reports a live-object count.
type Counter interface {
	Count() int
}

// GameChecker reports room and session counts. Always healthy; the counts
// are operational detail.
type GameChecker struct {
	rooms    Counter
	sessions Counter
}

// NewGameChecker wraps the room registry and session manager.
func NewGameChecker(rooms, sessions Counter) *GameChecker {
	return &GameChecker{rooms: rooms, sessions: sessions}
}

func (c *GameChecker) Name() string   { return "game" }
func (c *GameChecker) Critical() bool { return false }

func (c *GameChecker) Check(context.Context) CheckResult {
	return CheckResult{
		Status: StatusHealthy,
		Details: map[string]interface{}{
			"rooms":    c.rooms.Count(),
			"sessions": c.sessions.Count(),
		},
	}
}
