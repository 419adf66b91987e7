package exam

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/questionbank"
)

// TimestampLayout is the ISO-style local time used in subjects and reports.
const TimestampLayout = "2006-01-02T15:04:05"

// NoAnswersMarker is written when neither section has an entry.
const NoAnswersMarker = "No questions were answered before submission."

// Report is the rendered submission.
type Report struct {
	Subject string
	Message string
}

// BuildReport renders the plain-text report for the notification sink. at is
// formatted in its own location. Unknown question ids and blank short answers
// are left out.
func BuildReport(c *model.Candidate, answers model.AnswerState, tabSwitched bool, bank *questionbank.Bank, at time.Time) (Report, error) {
	if c == nil {
		return Report{}, ErrIdentityMissing
	}
	ts := at.Format(TimestampLayout)

	var b strings.Builder
	b.WriteString("Student Information:\n\n")
	fmt.Fprintf(&b, "Name: %s\n", c.Name)
	fmt.Fprintf(&b, "Email: %s\n", c.Email)
	fmt.Fprintf(&b, "GitHub Username: %s\n", c.GitHubHandle)
	fmt.Fprintf(&b, "Submission Time: %s\n", ts)
	fmt.Fprintf(&b, "Tab Switch: %s\n\n", yesNo(tabSwitched))

	var mcq strings.Builder
	for _, id := range sortedKeys(answers.MCQ) {
		q, ok := bank.MCQ(id)
		idx := answers.MCQ[id]
		if !ok || idx < 0 || idx >= len(q.Options) {
			continue
		}
		fmt.Fprintf(&mcq, "Question %d: %s\n", id, q.Prompt)
		fmt.Fprintf(&mcq, "Selected Answer: %s\n\n", q.Options[idx])
	}

	var saq strings.Builder
	for _, id := range sortedKeys(answers.SAQ) {
		text := answers.SAQ[id]
		q, ok := bank.SAQ(id)
		if !ok || strings.TrimSpace(text) == "" {
			continue
		}
		fmt.Fprintf(&saq, "Question %d: %s\n", id, q.Prompt)
		fmt.Fprintf(&saq, "Answer: %s\n\n", text)
	}

	if mcq.Len() > 0 {
		b.WriteString("Multiple Choice Questions:\n\n")
		b.WriteString(mcq.String())
	}
	if saq.Len() > 0 {
		b.WriteString("Short Answer Questions:\n\n")
		b.WriteString(saq.String())
	}
	if mcq.Len() == 0 && saq.Len() == 0 {
		b.WriteString(NoAnswersMarker + "\n")
	}

	return Report{
		Subject: fmt.Sprintf("Exam Submission - %s (%s)", c.Name, ts),
		Message: b.String(),
	}, nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
