package exam

import (
	"fmt"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/questionbank"
)

// AnswerStore records a candidate's answers against a question bank. Keys
// always name questions that exist in the bank.
//
// AnswerStore is not safe for concurrent use; Session serializes access.
type AnswerStore struct {
	bank  *questionbank.Bank
	state model.AnswerState
}

func NewAnswerStore(bank *questionbank.Bank) *AnswerStore {
	return &AnswerStore{bank: bank, state: model.NewAnswerState()}
}

// SelectOption records option idx for MCQ qid, replacing any earlier choice.
func (s *AnswerStore) SelectOption(qid, idx int) error {
	q, ok := s.bank.MCQ(qid)
	if !ok {
		return fmt.Errorf("mcq %d: %w", qid, ErrUnknownQuestion)
	}
	if idx < 0 || idx >= len(q.Options) {
		return fmt.Errorf("mcq %d option %d: %w", qid, idx, ErrOptionOutOfRange)
	}
	s.state.MCQ[qid] = idx
	return nil
}

// WriteResponse records text for SAQ qid. Blank text is kept.
func (s *AnswerStore) WriteResponse(qid int, text string) error {
	if _, ok := s.bank.SAQ(qid); !ok {
		return fmt.Errorf("saq %d: %w", qid, ErrUnknownQuestion)
	}
	s.state.SAQ[qid] = text
	return nil
}

func (s *AnswerStore) Snapshot() model.AnswerState {
	return s.state.Clone()
}

func (s *AnswerStore) Reset() {
	s.state = model.NewAnswerState()
}
