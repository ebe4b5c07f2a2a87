package ranking

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/nearword/nearword/internal/oracle"
)

type stubOracle struct {
	vectors map[string][]float32
	lemmas  map[string]string
}

func (s *stubOracle) HasVector(w string) bool {
	_, ok := s.vectors[w]
	return ok
}

func (s *stubOracle) Vector(w string) ([]float32, error) {
	v, ok := s.vectors[w]
	if !ok {
		return nil, fmt.Errorf("%w: %q", oracle.ErrNoVector, w)
	}
	return v, nil
}

func (s *stubOracle) POS(string) oracle.Tag { return oracle.TagNoun }

func (s *stubOracle) Lemma(w string) string {
	if l, ok := s.lemmas[w]; ok {
		return l
	}
	return w
}

type stubVocab struct {
	ora      *stubOracle
	vecWords []string
	vecs     *mat.Dense
	rows     map[string]int
}

// newStubVocab ranks the listed words using the oracle's vectors,
// unit-normalized the way the vocabulary cache does.
func newStubVocab(ora *stubOracle, ranked ...string) *stubVocab {
	var flat []float64
	rows := make(map[string]int, len(ranked))
	dim := 0
	for i, w := range ranked {
		raw := ora.vectors[w]
		dim = len(raw)
		var norm float64
		unit := make([]float64, dim)
		for j, x := range raw {
			unit[j] = float64(x)
			norm += unit[j] * unit[j]
		}
		norm = math.Sqrt(norm)
		for j := range unit {
			unit[j] /= norm
		}
		flat = append(flat, unit...)
		rows[w] = i
	}
	return &stubVocab{
		ora:      ora,
		vecWords: ranked,
		vecs:     mat.NewDense(len(ranked), dim, flat),
		rows:     rows,
	}
}

func (v *stubVocab) Vecs() *mat.Dense { return v.vecs }

func (v *stubVocab) VecWords() []string { return v.vecWords }

func (v *stubVocab) FamilyOf(w string) string { return v.ora.Lemma(w) }

func (v *stubVocab) Oracle() oracle.Oracle { return v.ora }
func (v *stubVocab) Row(w string) (int, bool) {
	i, ok := v.rows[w]
	return i, ok
}

func catVocab() *stubVocab {
	ora := &stubOracle{
		vectors: map[string][]float32{
			"cat":    {1, 0, 0},
			"cats":   {0.9806, 0.196, 0},
			"kitten": {0.96, 0.28, 0},
			"dog":    {0.8, 0.6, 0},
			"apple":  {0.6, 0.8, 0},
			"berry":  {0.6, 0.8, 0},
			"rock":   {0, 0, 1},
			// Off-ranking words the oracle still knows.
			"puppy":  {0.7, 0.7141428, 0},
			"feline": {1, 0, 0},
			"doggo":  {0.8, 0.6, 0},
		},
		lemmas: map[string]string{"cats": "cat"},
	}
	return newStubVocab(ora, "cat", "cats", "kitten", "dog", "apple", "berry", "rock")
}

func TestBuildRanksFamilies(t *testing.T) {
	v := catVocab()
	out, err := Build("cat", v)
	require.NoError(t, err)

	// cats merges into the cat family, so 7 rows rank as 6 families.
	assert.Equal(t, 6, out.TotalWords)
	assert.Equal(t, "cat", out.TargetWord)

	wantOrder := []string{"cat", "kitten", "dog", "apple", "berry", "rock"}
	var gotOrder []string
	for _, e := range out.Ranked {
		gotOrder = append(gotOrder, e.Word)
	}
	assert.Equal(t, wantOrder, gotOrder)

	// Target family is pinned to rank 1 at similarity 1.
	assert.Equal(t, 1, out.Ranked[0].Rank)
	assert.Equal(t, 1.0, out.Ranked[0].Similarity)

	// Ranks are dense 1..TotalWords.
	seen := make(map[int]bool)
	for _, e := range out.Ranked {
		seen[e.Rank] = true
	}
	for r := 1; r <= out.TotalWords; r++ {
		assert.True(t, seen[r], "missing rank %d", r)
	}

	// Equal similarities break ties lexicographically.
	appleRank, ok := out.RankOfFamily("apple")
	require.True(t, ok)
	berryRank, ok := out.RankOfFamily("berry")
	require.True(t, ok)
	assert.Equal(t, appleRank+1, berryRank)
}

func TestBuildIsDeterministic(t *testing.T) {
	v := catVocab()
	a, err := Build("cat", v)
	require.NoError(t, err)
	b, err := Build("cat", v)
	require.NoError(t, err)
	if !reflect.DeepEqual(a.Ranked, b.Ranked) {
		t.Fatalf("two builds for the same target differ")
	}
}

func TestBuildRejectsVectorlessTarget(t *testing.T) {
	_, err := Build("xyzzy", catVocab())
	assert.True(t, errors.Is(err, oracle.ErrNoVector))
}

func TestBuildLowercasesTarget(t *testing.T) {
	out, err := Build("  CAT ", catVocab())
	require.NoError(t, err)
	assert.Equal(t, "cat", out.TargetWord)
}

func TestBuildOffListTarget(t *testing.T) {
	v := catVocab()
	out, err := Build("puppy", v)
	require.NoError(t, err)

	// The off-list target family joins the table at rank 1.
	assert.Equal(t, 7, out.TotalWords)
	assert.Equal(t, "puppy", out.Ranked[0].Word)

	res, err := out.Resolve("puppy", v)
	require.NoError(t, err)
	assert.True(t, res.IsCorrect)
	assert.True(t, res.Exact)

	res, err = out.Resolve("cat", v)
	require.NoError(t, err)
	assert.True(t, res.Exact)
	assert.Greater(t, res.Rank, 1)
}

func TestResolveExactPath(t *testing.T) {
	v := catVocab()
	out, err := Build("cat", v)
	require.NoError(t, err)

	// Same family as the target wins, whatever the surface.
	res, err := out.Resolve("cats", v)
	require.NoError(t, err)
	assert.True(t, res.Exact)
	assert.Equal(t, 1, res.Rank)
	assert.Equal(t, 1.0, res.Similarity)
	assert.True(t, res.IsCorrect)

	res, err = out.Resolve("kitten", v)
	require.NoError(t, err)
	assert.True(t, res.Exact)
	assert.Equal(t, 2, res.Rank)
	assert.False(t, res.IsCorrect)
	assert.InDelta(t, 0.96, res.Similarity, 1e-6)
}

func TestResolveEstimatedPath(t *testing.T) {
	v := catVocab()
	out, err := Build("cat", v)
	require.NoError(t, err)

	// puppy is not ranked; cat, kitten, dog all sit above 0.7.
	res, err := out.Resolve("puppy", v)
	require.NoError(t, err)
	assert.False(t, res.Exact)
	assert.Equal(t, 4, res.Rank)
	assert.InDelta(t, 0.7, res.Similarity, 1e-6)
	assert.False(t, res.IsCorrect)

	// An estimated guess can still win at rank 1.
	res, err = out.Resolve("feline", v)
	require.NoError(t, err)
	assert.False(t, res.Exact)
	assert.Equal(t, 1, res.Rank)
	assert.True(t, res.IsCorrect)
}

func TestResolvePathsAgree(t *testing.T) {
	v := catVocab()
	out, err := Build("cat", v)
	require.NoError(t, err)

	// doggo shares dog's vector but not its family: the estimated rank
	// must equal dog's exact rank.
	exact, err := out.Resolve("dog", v)
	require.NoError(t, err)
	estimated, err := out.Resolve("doggo", v)
	require.NoError(t, err)
	assert.True(t, exact.Exact)
	assert.False(t, estimated.Exact)
	assert.Equal(t, exact.Rank, estimated.Rank)
}

func TestResolveOrderingConsistency(t *testing.T) {
	v := catVocab()
	out, err := Build("cat", v)
	require.NoError(t, err)

	feline, err := out.Resolve("feline", v)
	require.NoError(t, err)
	puppy, err := out.Resolve("puppy", v)
	require.NoError(t, err)
	require.Greater(t, feline.Similarity, puppy.Similarity)
	assert.Less(t, feline.Rank, puppy.Rank)
}

func TestResolveRejectsUnknownWord(t *testing.T) {
	v := catVocab()
	out, err := Build("cat", v)
	require.NoError(t, err)

	_, err = out.Resolve("abracadabra", v)
	assert.True(t, errors.Is(err, oracle.ErrNoVector))
}

func TestOutputAccessors(t *testing.T) {
	v := catVocab()
	out, err := Build("cat", v)
	require.NoError(t, err)

	top := out.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, []string{"cat", "kitten", "dog"}, []string{top[0].Word, top[1].Word, top[2].Word})
	assert.Len(t, out.Top(100), out.TotalWords)

	e, ok := out.At(2)
	require.True(t, ok)
	assert.Equal(t, "kitten", e.Word)
	_, ok = out.At(0)
	assert.False(t, ok)
	_, ok = out.At(out.TotalWords + 1)
	assert.False(t, ok)

	rep, ok := out.RepOfFamily("cat")
	require.True(t, ok)
	assert.Equal(t, "cat", rep)
	_, ok = out.RepOfFamily("puppy")
	assert.False(t, ok)
}
