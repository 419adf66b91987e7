// Package questionbank loads the static, read-only question sets an exam is built from.
package questionbank

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultBank []byte

// ErrInvalidBank is wrapped by every validation failure reported by Parse.
var ErrInvalidBank = errors.New("invalid question bank")

// MCQ is a multiple-choice question.
type MCQ struct {
	ID      int      `json:"id" yaml:"id"`
	Prompt  string   `json:"prompt" yaml:"prompt"`
	Options []string `json:"options" yaml:"options"`
}

// SAQ is a short-answer question.
type SAQ struct {
	ID     int    `json:"id" yaml:"id"`
	Prompt string `json:"prompt" yaml:"prompt"`
}

// Bank holds both ordered question sets. It is immutable after loading.
type Bank struct {
	mcqs    []MCQ
	saqs    []SAQ
	mcqByID map[int]int
	saqByID map[int]int
}

type bankFile struct {
	MCQ []MCQ `yaml:"mcq"`
	SAQ []SAQ `yaml:"saq"`
}

// Default returns the embedded bank.
func Default() (*Bank, error) {
	return Parse(defaultBank)
}

// Load reads a bank from a YAML file. An empty path selects the embedded default.
func Load(path string) (*Bank, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML bank content.
func Parse(data []byte) (*Bank, error) {
	var f bankFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode question bank: %w", err)
	}
	return New(f.MCQ, f.SAQ)
}

// New validates the given questions and builds a Bank from them.
func New(mcqs []MCQ, saqs []SAQ) (*Bank, error) {
	b := &Bank{
		mcqByID: make(map[int]int, len(mcqs)),
		saqByID: make(map[int]int, len(saqs)),
	}

	for i, q := range mcqs {
		if q.ID <= 0 {
			return nil, fmt.Errorf("%w: mcq #%d has non-positive id %d", ErrInvalidBank, i+1, q.ID)
		}
		if _, dup := b.mcqByID[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate mcq id %d", ErrInvalidBank, q.ID)
		}
		if strings.TrimSpace(q.Prompt) == "" {
			return nil, fmt.Errorf("%w: mcq %d has an empty prompt", ErrInvalidBank, q.ID)
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("%w: mcq %d needs at least 2 options, has %d", ErrInvalidBank, q.ID, len(q.Options))
		}
		b.mcqByID[q.ID] = i
		b.mcqs = append(b.mcqs, MCQ{ID: q.ID, Prompt: q.Prompt, Options: append([]string(nil), q.Options...)})
	}

	for i, q := range saqs {
		if q.ID <= 0 {
			return nil, fmt.Errorf("%w: saq #%d has non-positive id %d", ErrInvalidBank, i+1, q.ID)
		}
		if _, dup := b.saqByID[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate saq id %d", ErrInvalidBank, q.ID)
		}
		if strings.TrimSpace(q.Prompt) == "" {
			return nil, fmt.Errorf("%w: saq %d has an empty prompt", ErrInvalidBank, q.ID)
		}
		b.saqByID[q.ID] = i
		b.saqs = append(b.saqs, q)
	}

	return b, nil
}

// MCQs returns a copy of the multiple-choice questions in bank order.
func (b *Bank) MCQs() []MCQ {
	out := make([]MCQ, len(b.mcqs))
	for i, q := range b.mcqs {
		out[i] = MCQ{ID: q.ID, Prompt: q.Prompt, Options: append([]string(nil), q.Options...)}
	}
	return out
}

// SAQs returns a copy of the short-answer questions in bank order.
func (b *Bank) SAQs() []SAQ {
	return append([]SAQ(nil), b.saqs...)
}

// MCQ looks up a multiple-choice question by id.
func (b *Bank) MCQ(id int) (MCQ, bool) {
	i, ok := b.mcqByID[id]
	if !ok {
		return MCQ{}, false
	}
	return b.mcqs[i], true
}

// SAQ looks up a short-answer question by id.
func (b *Bank) SAQ(id int) (SAQ, bool) {
	i, ok := b.saqByID[id]
	if !ok {
		return SAQ{}, false
	}
	return b.saqs[i], true
}
