package oracle

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manifest describes one on-disk embedding model. It lives at
// <models_dir>/<name>/manifest.yaml; file paths are relative to that dir.
type Manifest struct {
	Name      string `yaml:"name"`
	Dimension int    `yaml:"dimension"`
	Vectors   string `yaml:"vectors"`
	Lexicon   string `yaml:"lexicon"`
}

type lexEntry struct {
	pos   Tag
	lemma string
}

// Model is a file-backed Oracle: a word2vec text vector table plus a
// word → (pos, lemma) lexicon. Immutable after Open, safe for concurrent use.
type Model struct {
	name    string
	dim     int
	vectors map[string][]float32
	lexicon map[string]lexEntry
}

// Open loads the model named name from modelsDir. progress may be nil.
func Open(modelsDir, name string, logger *zap.Logger, progress ProgressFunc) (*Model, error) {
	dir := filepath.Join(modelsDir, name)
	data, err := os.ReadFile(filepath.Join(dir, "manifest.yaml"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, dir)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Dimension <= 0 || m.Vectors == "" {
		return nil, fmt.Errorf("%w: manifest needs dimension and vectors", ErrInvalidFormat)
	}
	if m.Name == "" {
		m.Name = name
	}

	logger.Info("Loading embedding model",
		zap.String("model", m.Name),
		zap.Int("dimension", m.Dimension),
	)

	vf, err := os.Open(filepath.Join(dir, m.Vectors))
	if err != nil {
		return nil, fmt.Errorf("open vectors file: %w", err)
	}
	defer vf.Close()

	vectors, err := loadVectors(vf, m.Dimension, logger, progress)
	if err != nil {
		return nil, err
	}

	lexicon := map[string]lexEntry{}
	if m.Lexicon != "" {
		lf, err := os.Open(filepath.Join(dir, m.Lexicon))
		if err != nil {
			return nil, fmt.Errorf("open lexicon file: %w", err)
		}
		defer lf.Close()
		if lexicon, err = loadLexicon(lf); err != nil {
			return nil, err
		}
	}

	logger.Info("Embedding model loaded",
		zap.String("model", m.Name),
		zap.Int("vectors", len(vectors)),
		zap.Int("lexicon_entries", len(lexicon)),
	)

	return &Model{name: m.Name, dim: m.Dimension, vectors: vectors, lexicon: lexicon}, nil
}

// loadVectors parses word2vec text format: a "count dimension" header line,
// then one "word v1 .. vD" line per word. Malformed lines are skipped.
func loadVectors(r io.Reader, dim int, logger *zap.Logger, progress ProgressFunc) (map[string][]float32, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("%w: empty vectors file", ErrInvalidFormat)
	}
	header := strings.Fields(strings.TrimSpace(scanner.Text()))
	if len(header) != 2 {
		return nil, fmt.Errorf("%w: header must be \"count dimension\"", ErrInvalidFormat)
	}
	count, err := cast.ToIntE(header[0])
	if err != nil || count <= 0 {
		return nil, fmt.Errorf("%w: invalid word count in header", ErrInvalidFormat)
	}
	fileDim, err := cast.ToIntE(header[1])
	if err != nil || fileDim <= 0 {
		return nil, fmt.Errorf("%w: invalid dimension in header", ErrInvalidFormat)
	}
	if fileDim != dim {
		return nil, fmt.Errorf("%w: manifest dimension %d, file dimension %d", ErrInvalidFormat, dim, fileDim)
	}

	interval := count / 20
	if interval < 1000 {
		interval = 1000
	}

	vectors := make(map[string][]float32, count)
	lineNumber := 1
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) != dim+1 {
			logger.Warn("Skipping malformed vector line",
				zap.Int("line", lineNumber),
				zap.Int("expected_fields", dim+1),
				zap.Int("actual_fields", len(parts)),
			)
			continue
		}

		word := parts[0]
		if _, dup := vectors[word]; dup {
			continue
		}

		vec := make([]float32, dim)
		bad := false
		for i := 1; i <= dim; i++ {
			val, err := cast.ToFloat64E(parts[i])
			if err != nil || math.IsNaN(val) || math.IsInf(val, 0) {
				logger.Warn("Skipping vector line with invalid float",
					zap.Int("line", lineNumber),
					zap.String("word", word),
				)
				bad = true
				break
			}
			vec[i-1] = float32(val)
		}
		if bad {
			continue
		}

		vectors[word] = vec
		if len(vectors)%interval == 0 {
			logger.Info("Vector loading progress",
				zap.Int("loaded", len(vectors)),
				zap.Int("total", count),
			)
			if progress != nil {
				progress("loading vectors", len(vectors), count)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read vectors file: %w", err)
	}

	if len(vectors) != count {
		logger.Warn("Vector count differs from header",
			zap.Int("expected", count),
			zap.Int("actual", len(vectors)),
		)
	}
	if progress != nil {
		progress("loading vectors", len(vectors), count)
	}
	return vectors, nil
}

// loadLexicon parses tab-separated "word<TAB>pos<TAB>lemma" lines. The lemma
// column is optional; blank lines and #-comments are skipped.
func loadLexicon(r io.Reader) (map[string]lexEntry, error) {
	lexicon := make(map[string]lexEntry)
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) < 2 {
			return nil, fmt.Errorf("%w: lexicon line %d needs word and pos", ErrInvalidFormat, lineNumber)
		}
		word := strings.ToLower(strings.TrimSpace(fields[0]))
		entry := lexEntry{pos: ParseTag(fields[1]), lemma: word}
		if len(fields) >= 3 {
			if lemma := strings.ToLower(strings.TrimSpace(fields[2])); lemma != "" {
				entry.lemma = lemma
			}
		}
		lexicon[word] = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read lexicon file: %w", err)
	}
	return lexicon, nil
}

// Name returns the model name from the manifest.
func (m *Model) Name() string { return m.name }

// Dimension returns the embedding width.
func (m *Model) Dimension() int { return m.dim }

// Size returns the number of words with vectors.
func (m *Model) Size() int { return len(m.vectors) }

func (m *Model) HasVector(word string) bool {
	_, ok := m.vectors[word]
	return ok
}

func (m *Model) Vector(word string) ([]float32, error) {
	vec, ok := m.vectors[word]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoVector, word)
	}
	return vec, nil
}

func (m *Model) POS(word string) Tag {
	if e, ok := m.lexicon[word]; ok {
		return e.pos
	}
	return TagOther
}

func (m *Model) Lemma(word string) string {
	if e, ok := m.lexicon[word]; ok {
		return e.lemma
	}
	return m.guessLemma(word)
}

// known reports whether the lexicon or the vector table knows the word;
// guessLemma only maps onto known words.
func (m *Model) known(word string) bool {
	if _, ok := m.lexicon[word]; ok {
		return true
	}
	_, ok := m.vectors[word]
	return ok
}
