// Package ranking precomputes, per room, the family-level similarity
// ranking of the whole vocabulary against one target word, and resolves
// guesses against it.
package ranking

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/nearword/nearword/internal/oracle"
)

// Vocab is the slice of the vocabulary cache the engine reads.
type Vocab interface {
	Vecs() *mat.Dense
	VecWords() []string
	FamilyOf(word string) string
	Row(word string) (int, bool)
	Oracle() oracle.Oracle
}

// Entry is one family representative in the ranked list.
type Entry struct {
	Word       string  `json:"word"`
	Family     string  `json:"-"`
	Rank       int     `json:"rank"`
	Similarity float64 `json:"similarity"`
}

// Output is the immutable precomputation for one target.
type Output struct {
	TargetWord string
	Ranked     []Entry
	TotalWords int

	targetVec *mat.VecDense
	rankOf    map[string]int
}

// Result is the answer to one guess.
type Result struct {
	Word       string
	Family     string
	Rank       int
	Similarity float64
	IsCorrect  bool
	Exact      bool
}

// Build ranks every vocabulary family against target. The target is
// lowercased and must have a vector; its own family is pinned to rank 1
// with similarity 1 so the game is always winnable.
func Build(target string, v Vocab) (*Output, error) {
	target = strings.ToLower(strings.TrimSpace(target))
	targetVec, err := targetVector(target, v)
	if err != nil {
		return nil, err
	}

	vecs := v.Vecs()
	words := v.VecWords()
	m, _ := vecs.Dims()

	var sims mat.VecDense
	sims.MulVec(vecs, targetVec)

	targetFamily := v.FamilyOf(target)
	best := make(map[string]Entry, m)
	for i := 0; i < m; i++ {
		fk := v.FamilyOf(words[i])
		if fk == targetFamily {
			continue
		}
		sim := sims.AtVec(i)
		if cur, ok := best[fk]; !ok || sim > cur.Similarity {
			best[fk] = Entry{Word: words[i], Family: fk, Similarity: sim}
		}
	}
	best[targetFamily] = Entry{Word: target, Family: targetFamily, Similarity: 1.0}

	ranked := make([]Entry, 0, len(best))
	for _, e := range best {
		ranked = append(ranked, e)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Similarity != ranked[j].Similarity {
			return ranked[i].Similarity > ranked[j].Similarity
		}
		// The target family outranks same-similarity families.
		if ranked[i].Family == targetFamily {
			return true
		}
		if ranked[j].Family == targetFamily {
			return false
		}
		return ranked[i].Word < ranked[j].Word
	})

	rankOf := make(map[string]int, len(ranked))
	for i := range ranked {
		ranked[i].Rank = i + 1
		rankOf[ranked[i].Family] = i + 1
	}

	return &Output{
		TargetWord: target,
		Ranked:     ranked,
		TotalWords: len(ranked),
		targetVec:  targetVec,
		rankOf:     rankOf,
	}, nil
}

// targetVector prefers the precomputed matrix row; off-list targets fall
// back to the oracle with normalization here.
func targetVector(target string, v Vocab) (*mat.VecDense, error) {
	if row, ok := v.Row(target); ok {
		data := mat.Row(nil, row, v.Vecs())
		return mat.NewVecDense(len(data), data), nil
	}
	raw, err := v.Oracle().Vector(target)
	if err != nil {
		return nil, fmt.Errorf("target %q: %w", target, err)
	}
	out := mat.NewVecDense(len(raw), nil)
	var norm float64
	for i, x := range raw {
		f := float64(x)
		out.SetVec(i, f)
		norm += f * f
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return nil, fmt.Errorf("target %q: %w", target, oracle.ErrNoVector)
	}
	out.ScaleVec(1/norm, out)
	return out, nil
}

// Resolve answers one guess. The guess must already be validated as
// lowercase letters; words without a vector are rejected with ErrNoVector.
func (o *Output) Resolve(guess string, v Vocab) (Result, error) {
	ora := v.Oracle()
	if !ora.HasVector(guess) {
		return Result{}, fmt.Errorf("guess %q: %w", guess, oracle.ErrNoVector)
	}
	fk := v.FamilyOf(guess)

	if rank, ok := o.rankOf[fk]; ok {
		return Result{
			Word:       guess,
			Family:     fk,
			Rank:       rank,
			Similarity: o.Ranked[rank-1].Similarity,
			IsCorrect:  rank == 1,
			Exact:      true,
		}, nil
	}

	raw, err := ora.Vector(guess)
	if err != nil {
		return Result{}, fmt.Errorf("guess %q: %w", guess, err)
	}
	sim := o.cosine(raw)
	rank := 1 + o.countAbove(sim)
	return Result{
		Word:       guess,
		Family:     fk,
		Rank:       rank,
		Similarity: sim,
		IsCorrect:  rank == 1,
	}, nil
}

// RankOfFamily returns the exact rank for a family, if ranked.
func (o *Output) RankOfFamily(fk string) (int, bool) {
	r, ok := o.rankOf[fk]
	return r, ok
}

// RepOfFamily returns the representative word for a family, if ranked.
func (o *Output) RepOfFamily(fk string) (string, bool) {
	r, ok := o.rankOf[fk]
	if !ok {
		return "", false
	}
	return o.Ranked[r-1].Word, true
}

// At returns the entry at a 1-based rank.
func (o *Output) At(rank int) (Entry, bool) {
	if rank < 1 || rank > len(o.Ranked) {
		return Entry{}, false
	}
	return o.Ranked[rank-1], true
}

// Top returns the first n ranked entries (fewer when the table is short).
func (o *Output) Top(n int) []Entry {
	if n > len(o.Ranked) {
		n = len(o.Ranked)
	}
	out := make([]Entry, n)
	copy(out, o.Ranked[:n])
	return out
}

// countAbove counts ranked entries with similarity strictly above sim.
// Ranked is sorted descending, so this is a binary search.
func (o *Output) countAbove(sim float64) int {
	return sort.Search(len(o.Ranked), func(i int) bool {
		return o.Ranked[i].Similarity <= sim
	})
}

// cosine computes the similarity of a raw vector against the unit target.
func (o *Output) cosine(raw []float32) float64 {
	g := mat.NewVecDense(len(raw), nil)
	var norm float64
	for i, x := range raw {
		f := float64(x)
		g.SetVec(i, f)
		norm += f * f
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return 0
	}
	return mat.Dot(g, o.targetVec) / norm
}
