package questions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const corpusSchemaURL = "schema://question-corpus.json"

var (
	compileOnce    sync.Once
	compiledCorpus *jsonschema.Schema
	compileErr     error
)

// Saver persists imported questions.
type Saver interface {
	UpsertQuestion(ctx context.Context, q Question) error
}

// Corpus is the on-disk import format.
type Corpus struct {
	Questions []Question `json:"questions"`
}

// ImportReport summarizes an import run.
type ImportReport struct {
	Imported int
	BySkill  map[string]int
}

// Importer validates corpus files and writes their questions.
type Importer struct {
	saver  Saver
	logger *slog.Logger
}

// NewImporter creates an Importer writing through saver.
func NewImporter(saver Saver, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Importer{saver: saver, logger: logger}
}

// Import reads a JSON corpus from r, validates it against the corpus schema
// and upserts every question. Nothing is written if validation fails.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*ImportReport, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}

	corpus, err := ParseCorpus(raw)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{BySkill: make(map[string]int)}
	for _, q := range corpus.Questions {
		if err := im.saver.UpsertQuestion(ctx, q); err != nil {
			return report, fmt.Errorf("save question %s: %w", q.ID, err)
		}
		report.Imported++
		report.BySkill[q.SkillID]++
	}

	im.logger.Info("imported question corpus", "questions", report.Imported, "skills", len(report.BySkill))
	return report, nil
}

// ParseCorpus validates raw against the corpus schema and decodes it.
// Duplicate question ids inside one corpus are rejected.
func ParseCorpus(raw []byte) (*Corpus, error) {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	schema, err := corpusValidator()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(parsed); err != nil {
		return nil, fmt.Errorf("corpus validation failed: %w", err)
	}

	var corpus Corpus
	if err := json.Unmarshal(raw, &corpus); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}

	seen := make(map[string]bool, len(corpus.Questions))
	for i := range corpus.Questions {
		q := &corpus.Questions[i]
		if seen[q.ID] {
			return nil, fmt.Errorf("duplicate question id %q", q.ID)
		}
		seen[q.ID] = true
		if _, err := LevelForDifficulty(q.Difficulty); err != nil {
			return nil, fmt.Errorf("question %s: %w", q.ID, err)
		}
	}
	return &corpus, nil
}

func corpusValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants a plain decoded JSON value.
		defBytes, err := json.Marshal(corpusSchema)
		if err != nil {
			compileErr = fmt.Errorf("marshal corpus schema: %w", err)
			return
		}
		var def any
		if err := json.Unmarshal(defBytes, &def); err != nil {
			compileErr = fmt.Errorf("parse corpus schema: %w", err)
			return
		}

		c := jsonschema.NewCompiler()
		if err := c.AddResource(corpusSchemaURL, def); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledCorpus, compileErr = c.Compile(corpusSchemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile corpus schema: %w", compileErr)
		}
	})
	return compiledCorpus, compileErr
}
