package vocab

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/nearword/nearword/internal/config"
)

const fixtureVectors = `8 3
cat 1.0 0.0 0.0
dog 0.9 0.1 0.0
run 0.0 1.0 0.0
quick 0.5 0.5 0.0
slowly 0.1 0.8 0.1
banana 0.2 0.2 0.9
make 0.0 0.9 0.1
city 0.0 0.0 1.0
`

const fixtureLexicon = "cat\tnoun\tcat\ndog\tnoun\tdog\nrun\tverb\trun\nquick\tadj\tquick\nslowly\tadv\tslow\nmake\tverb\tmake\ncity\tnoun\tcity\n"

const fixtureWords = "cat\ndog\nrun\nquick\nslowly\nbanana\nzebra\nmake\ncity\n"

func fixtureConfig(t *testing.T) config.VocabConfig {
	t.Helper()
	root := t.TempDir()
	modelDir := filepath.Join(root, "models", "tiny")
	require.NoError(t, os.MkdirAll(modelDir, 0o755))

	manifest := "name: tiny\ndimension: 3\nvectors: vectors.vec\nlexicon: lexicon.tsv\n"
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "manifest.yaml"), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "vectors.vec"), []byte(fixtureVectors), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(modelDir, "lexicon.tsv"), []byte(fixtureLexicon), 0o644))

	wordsPath := filepath.Join(root, "words.txt")
	require.NoError(t, os.WriteFile(wordsPath, []byte(fixtureWords), 0o644))

	return config.VocabConfig{
		Path:           wordsPath,
		ModelsDir:      filepath.Join(root, "models"),
		ModelName:      "tiny",
		TargetPoolSize: 6,
		MeaningfulPOS:  []string{"noun", "verb", "adj", "adv"},
	}
}

func TestEnsureBuildsCache(t *testing.T) {
	c := New(fixtureConfig(t), zap.NewNop())
	require.False(t, c.Ready())
	require.NoError(t, c.Ensure(nil))
	require.True(t, c.Ready())

	// File order preserved; zebra kept in words even without a vector.
	assert.Equal(t, []string{"cat", "dog", "run", "quick", "slowly", "banana", "zebra", "make", "city"}, c.Words())

	// Only vectored words are ranked, in list order.
	assert.Equal(t, []string{"cat", "dog", "run", "quick", "slowly", "banana", "make", "city"}, c.VecWords())

	// Rows are unit-normalized.
	rows, cols := c.Vecs().Dims()
	require.Equal(t, len(c.VecWords()), rows)
	require.Equal(t, 3, cols)
	for i := 0; i < rows; i++ {
		norm := mat.Norm(c.Vecs().RowView(i), 2)
		assert.InDelta(t, 1.0, norm, 1e-9)
	}

	// Pool = first 6 words; banana has TagOther, zebra lacks a vector.
	assert.Equal(t, []string{"cat", "dog", "run", "quick", "slowly"}, c.Meaningful())

	// Lexicon lemma, then rule fallback for off-list words.
	assert.Equal(t, "slow", c.FamilyOf("slowly"))
	assert.Equal(t, "cat", c.FamilyOf("cats"))

	row, ok := c.Row("dog")
	require.True(t, ok)
	assert.Equal(t, 1, row)
	_, ok = c.Row("zebra")
	assert.False(t, ok)
}

func TestEnsureCoalesces(t *testing.T) {
	c := New(fixtureConfig(t), zap.NewNop())

	var wg sync.WaitGroup
	errs := make([]error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = c.Ensure(nil)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "goroutine %d", i)
	}
	assert.True(t, c.Ready())
	assert.Len(t, c.VecWords(), 8)
}

func TestEnsureFailureSticks(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.ModelName = "absent"
	c := New(cfg, zap.NewNop())

	err1 := c.Ensure(nil)
	require.Error(t, err1)
	err2 := c.Ensure(nil)
	assert.Equal(t, err1, err2)
	assert.False(t, c.Ready())
}

func TestEnsureRankSizeCap(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.RankSize = 3
	c := New(cfg, zap.NewNop())
	require.NoError(t, c.Ensure(nil))

	assert.Equal(t, []string{"cat", "dog", "run"}, c.VecWords())
	// The pool filter is independent of the ranking cap.
	assert.Equal(t, []string{"cat", "dog", "run", "quick", "slowly"}, c.Meaningful())
}

func TestEnsureTargetMinLen(t *testing.T) {
	cfg := fixtureConfig(t)
	cfg.TargetMinLen = 4
	c := New(cfg, zap.NewNop())
	require.NoError(t, c.Ensure(nil))

	assert.Equal(t, []string{"quick", "slowly"}, c.Meaningful())
}

func TestEnsureReportsProgress(t *testing.T) {
	c := New(fixtureConfig(t), zap.NewNop())

	var stages []string
	require.NoError(t, c.Ensure(func(stage string, loaded, total int) {
		stages = append(stages, stage)
	}))
	require.NotEmpty(t, stages)
	assert.Equal(t, "building vocabulary", stages[len(stages)-1])
}

func TestReadWords(t *testing.T) {
	in := "cat\n\n# comment\nDog\nrock-n-roll\ncat\ndog\nhi2\nrun\n"
	words, err := readWords(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []string{"cat", "dog", "run"}, words)
}

func TestIsLowerWord(t *testing.T) {
	cases := map[string]bool{
		"cat":    true,
		"a":      true,
		"":       false,
		"Cat":    false,
		"cat1":   false,
		"ca t":   false,
		"naïve":  false,
		"cat's":  false,
		"zigzag": true,
	}
	for in, want := range cases {
		if got := isLowerWord(in); got != want {
			t.Errorf("isLowerWord(%q) = %v, want %v", in, got, want)
		}
	}
}
