package questionbank

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultBank(t *testing.T) {
	b, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}

	if got := len(b.MCQs()); got != 10 {
		t.Errorf("expected 10 MCQs, got %d", got)
	}
	if got := len(b.SAQs()); got != 10 {
		t.Errorf("expected 10 SAQs, got %d", got)
	}

	q, ok := b.MCQ(3)
	if !ok {
		t.Fatal("MCQ 3 missing")
	}
	if q.Prompt != "Which HTML tag is used to create a hyperlink?" {
		t.Errorf("MCQ 3 prompt = %q", q.Prompt)
	}
	if q.Options[1] != "<a>" {
		t.Errorf("MCQ 3 option 1 = %q", q.Options[1])
	}

	s, ok := b.SAQ(1)
	if !ok {
		t.Fatal("SAQ 1 missing")
	}
	if s.Prompt != "What is the difference between <div> and <span> in HTML?" {
		t.Errorf("SAQ 1 prompt = %q", s.Prompt)
	}

	if _, ok := b.MCQ(99); ok {
		t.Error("MCQ 99 should not exist")
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		mcqs []MCQ
		saqs []SAQ
	}{
		{"zero mcq id", []MCQ{{ID: 0, Prompt: "p", Options: []string{"a", "b"}}}, nil},
		{"negative saq id", nil, []SAQ{{ID: -1, Prompt: "p"}}},
		{"duplicate mcq", []MCQ{
			{ID: 1, Prompt: "p", Options: []string{"a", "b"}},
			{ID: 1, Prompt: "q", Options: []string{"a", "b"}},
		}, nil},
		{"duplicate saq", nil, []SAQ{{ID: 2, Prompt: "p"}, {ID: 2, Prompt: "q"}}},
		{"single option", []MCQ{{ID: 1, Prompt: "p", Options: []string{"a"}}}, nil},
		{"blank mcq prompt", []MCQ{{ID: 1, Prompt: "  ", Options: []string{"a", "b"}}}, nil},
		{"blank saq prompt", nil, []SAQ{{ID: 1, Prompt: ""}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.mcqs, tt.saqs)
			if !errors.Is(err, ErrInvalidBank) {
				t.Fatalf("expected ErrInvalidBank, got %v", err)
			}
		})
	}
}

func TestSameIDAcrossKindsIsAllowed(t *testing.T) {
	b, err := New(
		[]MCQ{{ID: 1, Prompt: "mcq", Options: []string{"a", "b"}}},
		[]SAQ{{ID: 1, Prompt: "saq"}},
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := b.MCQ(1); !ok {
		t.Error("MCQ 1 missing")
	}
	if _, ok := b.SAQ(1); !ok {
		t.Error("SAQ 1 missing")
	}
}

func TestMCQsReturnsCopy(t *testing.T) {
	b, err := New([]MCQ{{ID: 1, Prompt: "p", Options: []string{"a", "b"}}}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	list := b.MCQs()
	list[0].Options[0] = "mutated"

	q, _ := b.MCQ(1)
	if q.Options[0] != "a" {
		t.Errorf("bank was mutated through MCQs(): %q", q.Options[0])
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bank.yaml")
	content := `mcq:
  - id: 7
    prompt: "Pick one"
    options: ["x", "y", "z"]
saq:
  - id: 4
    prompt: "Explain"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	b, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	q, ok := b.MCQ(7)
	if !ok || len(q.Options) != 3 {
		t.Fatalf("MCQ 7 = %+v, ok=%v", q, ok)
	}
	if _, ok := b.SAQ(4); !ok {
		t.Error("SAQ 4 missing")
	}
}

func TestLoadEmptyPathUsesDefault(t *testing.T) {
	b, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(b.MCQs()) == 0 {
		t.Error("expected embedded default bank")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestParseMalformedYAML(t *testing.T) {
	if _, err := Parse([]byte("mcq: [")); err == nil {
		t.Fatal("expected decode error")
	}
}
