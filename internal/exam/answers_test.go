package exam

import (
	"errors"
	"testing"
)

func TestAnswerStoreLastWriteWins(t *testing.T) {
	s := NewAnswerStore(testBank(t))

	for _, idx := range []int{0, 2, 1, 3, 1} {
		if err := s.SelectOption(3, idx); err != nil {
			t.Fatalf("SelectOption(3, %d): %v", idx, err)
		}
	}
	if err := s.SelectOption(4, 2); err != nil {
		t.Fatalf("SelectOption(4, 2): %v", err)
	}
	if err := s.WriteResponse(1, "first"); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	if err := s.WriteResponse(1, "second"); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}

	got := s.Snapshot()
	if got.MCQ[3] != 1 {
		t.Errorf("MCQ[3] = %d, want 1", got.MCQ[3])
	}
	if got.MCQ[4] != 2 {
		t.Errorf("MCQ[4] = %d, want 2", got.MCQ[4])
	}
	if got.SAQ[1] != "second" {
		t.Errorf("SAQ[1] = %q", got.SAQ[1])
	}
	if len(got.MCQ) != 2 || len(got.SAQ) != 1 {
		t.Errorf("unexpected entries: %+v", got)
	}
}

func TestAnswerStoreRejectsInvalid(t *testing.T) {
	s := NewAnswerStore(testBank(t))

	tests := []struct {
		name string
		fn   func() error
		want error
	}{
		{"unknown mcq", func() error { return s.SelectOption(99, 0) }, ErrUnknownQuestion},
		{"negative option", func() error { return s.SelectOption(1, -1) }, ErrOptionOutOfRange},
		{"option past end", func() error { return s.SelectOption(1, 4) }, ErrOptionOutOfRange},
		{"unknown saq", func() error { return s.WriteResponse(42, "x") }, ErrUnknownQuestion},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}

	got := s.Snapshot()
	if len(got.MCQ) != 0 || len(got.SAQ) != 0 {
		t.Errorf("rejected edits must not be stored: %+v", got)
	}
}

func TestAnswerStoreSnapshotIsCopy(t *testing.T) {
	s := NewAnswerStore(testBank(t))
	_ = s.SelectOption(1, 0)

	snap := s.Snapshot()
	snap.MCQ[1] = 3
	snap.MCQ[2] = 1

	again := s.Snapshot()
	if again.MCQ[1] != 0 || len(again.MCQ) != 1 {
		t.Errorf("store mutated through snapshot: %+v", again.MCQ)
	}
}

func TestAnswerStoreKeepsBlankResponse(t *testing.T) {
	s := NewAnswerStore(testBank(t))
	if err := s.WriteResponse(2, "   "); err != nil {
		t.Fatalf("WriteResponse: %v", err)
	}
	if v, ok := s.Snapshot().SAQ[2]; !ok || v != "   " {
		t.Errorf("SAQ[2] = %q, ok=%v", v, ok)
	}
}

func TestAnswerStoreReset(t *testing.T) {
	s := NewAnswerStore(testBank(t))
	_ = s.SelectOption(1, 0)
	_ = s.WriteResponse(1, "x")

	s.Reset()

	got := s.Snapshot()
	if len(got.MCQ) != 0 || len(got.SAQ) != 0 {
		t.Errorf("expected empty state after Reset, got %+v", got)
	}
}
