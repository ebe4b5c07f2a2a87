package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Room metrics
	RoomsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nearword_rooms_created_total",
			Help: "Total number of rooms created",
		},
	)

	RoomsDestroyed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearword_rooms_destroyed_total",
			Help: "Total number of rooms destroyed",
		},
		[]string{"reason"},
	)

	RoomsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nearword_rooms_active",
			Help: "Number of rooms currently alive",
		},
	)

	// Build metrics
	BuildsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearword_builds_completed_total",
			Help: "Total number of room builds finished",
		},
		[]string{"status"},
	)

	BuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nearword_build_duration_seconds",
			Help:    "Room ranking build duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Guess metrics
	GuessesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearword_guesses_total",
			Help: "Total number of guesses processed",
		},
		[]string{"result"},
	)

	GuessRank = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nearword_guess_rank",
			Help:    "Rank distribution of accepted guesses",
			Buckets: []float64{1, 10, 50, 100, 300, 1000, 5000, 20000},
		},
	)

	HintsServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nearword_hints_served_total",
			Help: "Total number of hints served",
		},
	)

	GamesWon = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nearword_games_won_total",
			Help: "Total number of games ended by a rank-1 guess",
		},
	)

	// Session metrics
	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nearword_sessions_active",
			Help: "Number of connected WebSocket sessions",
		},
	)

	SessionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nearword_sessions_opened_total",
			Help: "Total number of WebSocket sessions opened",
		},
	)

	GuessesThrottled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nearword_guesses_throttled_total",
			Help: "Total number of guesses rejected by the per-session rate limit",
		},
	)

	// Event fan-out metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nearword_events_published_total",
			Help: "Total number of events published to room subscribers",
		},
		[]string{"type"},
	)

	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nearword_events_dropped_total",
			Help: "Total number of events dropped on slow subscriber outboxes",
		},
	)

	// Vocabulary metrics
	VocabLoadDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "nearword_vocab_load_duration_seconds",
			Help:    "Vocabulary cache initialization duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	VocabWords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nearword_vocab_words",
			Help: "Vocabulary sizes after initialization",
		},
		[]string{"subset"},
	)
)

// RecordBuild records the outcome of one room build attempt.
func RecordBuild(status string, durationSeconds float64) {
	BuildsCompleted.WithLabelValues(status).Inc()
	if durationSeconds > 0 {
		BuildDuration.Observe(durationSeconds)
	}
}

// RecordGuess records a processed guess by result label.
func RecordGuess(result string, rank int) {
	GuessesTotal.WithLabelValues(result).Inc()
	if rank > 0 {
		GuessRank.Observe(float64(rank))
	}
}

// RecordVocab records vocabulary subset sizes once the cache is ready.
func RecordVocab(words, meaningful, vectors int) {
	VocabWords.WithLabelValues("words").Set(float64(words))
	VocabWords.WithLabelValues("meaningful").Set(float64(meaningful))
	VocabWords.WithLabelValues("vectors").Set(float64(vectors))
}
