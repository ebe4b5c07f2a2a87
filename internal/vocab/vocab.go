// Package vocab holds the process-wide vocabulary cache: the curated word
// list, the target pool, and the unit-normalized vector matrix the ranking
// engine multiplies against.
package vocab

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/nearword/nearword/internal/config"
	"github.com/nearword/nearword/internal/metrics"
	"github.com/nearword/nearword/internal/oracle"
)

// Cache is immutable once Ensure has returned nil. Accessors must not be
// called before that.
type Cache struct {
	cfg    config.VocabConfig
	logger *zap.Logger

	once  sync.Once
	err   error
	ready atomic.Bool

	ora        oracle.Oracle
	words      []string
	meaningful []string
	vecs       *mat.Dense
	vecWords   []string
	familyKey  map[string]string
	rowOf      map[string]int
}

// New returns an unpopulated cache. The first Ensure call does the work.
func New(cfg config.VocabConfig, logger *zap.Logger) *Cache {
	return &Cache{cfg: cfg, logger: logger}
}

// Ensure initializes the cache exactly once; concurrent first calls block
// until the single build finishes and share its result. progress may be nil.
func (c *Cache) Ensure(progress oracle.ProgressFunc) error {
	c.once.Do(func() {
		start := time.Now()
		c.err = c.build(progress)
		if c.err == nil {
			c.ready.Store(true)
			metrics.VocabLoadDuration.Observe(time.Since(start).Seconds())
			metrics.RecordVocab(len(c.words), len(c.meaningful), len(c.vecWords))
			c.logger.Info("Vocabulary cache ready",
				zap.Int("words", len(c.words)),
				zap.Int("meaningful", len(c.meaningful)),
				zap.Int("vectors", len(c.vecWords)),
				zap.Duration("took", time.Since(start)),
			)
		}
	})
	return c.err
}

func (c *Cache) build(progress oracle.ProgressFunc) error {
	ora, err := oracle.Open(c.cfg.ModelsDir, c.cfg.ModelName, c.logger, progress)
	if err != nil {
		return fmt.Errorf("load embedding model: %w", err)
	}

	words, err := loadWords(c.cfg.Path)
	if err != nil {
		return fmt.Errorf("load word list: %w", err)
	}
	if len(words) == 0 {
		return fmt.Errorf("word list %s has no usable words", c.cfg.Path)
	}

	rankWords := words
	if c.cfg.RankSize > 0 && len(rankWords) > c.cfg.RankSize {
		rankWords = rankWords[:c.cfg.RankSize]
	}

	var (
		vecWords []string
		flat     []float64
		dim      int
	)
	rowOf := make(map[string]int)
	for i, w := range rankWords {
		vec, err := ora.Vector(w)
		if err != nil {
			continue
		}
		unit, ok := normalize(vec)
		if !ok {
			continue
		}
		if dim == 0 {
			dim = len(unit)
		}
		rowOf[w] = len(vecWords)
		vecWords = append(vecWords, w)
		flat = append(flat, unit...)

		if progress != nil && (i+1)%1000 == 0 {
			progress("building vocabulary", i+1, len(rankWords))
		}
	}
	if len(vecWords) == 0 {
		return fmt.Errorf("no word in %s has a vector in model %s", c.cfg.Path, c.cfg.ModelName)
	}

	posSet := make(map[oracle.Tag]bool, len(c.cfg.MeaningfulPOS))
	for _, p := range c.cfg.MeaningfulPOS {
		posSet[oracle.ParseTag(p)] = true
	}

	pool := words
	if len(pool) > c.cfg.TargetPoolSize {
		pool = pool[:c.cfg.TargetPoolSize]
	}
	var meaningful []string
	for _, w := range pool {
		if !ora.HasVector(w) || !posSet[ora.POS(w)] {
			continue
		}
		if c.cfg.TargetMinLen > 0 && len(w) < c.cfg.TargetMinLen {
			continue
		}
		meaningful = append(meaningful, w)
	}
	if len(meaningful) == 0 {
		return fmt.Errorf("meaningful target pool is empty for model %s", c.cfg.ModelName)
	}

	familyKey := make(map[string]string, len(words))
	for _, w := range words {
		familyKey[w] = ora.Lemma(w)
	}

	if progress != nil {
		progress("building vocabulary", len(rankWords), len(rankWords))
	}

	c.ora = ora
	c.words = words
	c.meaningful = meaningful
	c.vecs = mat.NewDense(len(vecWords), dim, flat)
	c.vecWords = vecWords
	c.familyKey = familyKey
	c.rowOf = rowOf
	return nil
}

// normalize returns v scaled to unit L2 norm as float64s. Zero and
// non-finite vectors are unusable.
func normalize(v []float32) ([]float64, bool) {
	out := make([]float64, len(v))
	var sum float64
	for i, x := range v {
		f := float64(x)
		out[i] = f
		sum += f * f
	}
	norm := math.Sqrt(sum)
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return nil, false
	}
	for i := range out {
		out[i] /= norm
	}
	return out, true
}

// Ready reports whether Ensure has completed successfully.
func (c *Cache) Ready() bool { return c.ready.Load() }

// Oracle returns the embedding oracle backing the cache.
func (c *Cache) Oracle() oracle.Oracle { return c.ora }

// Words returns the full curated list in file order. Read-only.
func (c *Cache) Words() []string { return c.words }

// Meaningful returns the target pool in file order. Read-only.
func (c *Cache) Meaningful() []string { return c.meaningful }

// Vecs returns the unit-normalized vector matrix, one row per VecWords entry.
func (c *Cache) Vecs() *mat.Dense { return c.vecs }

// VecWords returns the surface word for each matrix row. Read-only.
func (c *Cache) VecWords() []string { return c.vecWords }

// Row returns the matrix row index for a word, if the word is ranked.
func (c *Cache) Row(word string) (int, bool) {
	i, ok := c.rowOf[word]
	return i, ok
}

// FamilyOf returns the lemma family key for any word, precomputed for list
// words and oracle-derived otherwise.
func (c *Cache) FamilyOf(word string) string {
	if fk, ok := c.familyKey[word]; ok {
		return fk
	}
	return c.ora.Lemma(word)
}
