package quiz

import (
	"errors"
	"sync"
	"testing"

	"github.com/medrevise/medrevise/internal/scoring"
)

func mcqQuestion(id string, correct ...string) Question {
	opts := []Option{
		{ID: "a", Text: "Option A"},
		{ID: "b", Text: "Option B"},
		{ID: "c", Text: "Option C"},
		{ID: "d", Text: "Option D"},
	}
	return Question{ID: id, Type: TypeMCQ, Text: "pick", Options: opts, CorrectIDs: correct}
}

func openQuestion(id string) Question {
	return Question{ID: id, Type: TypeQROC, Text: "explain"}
}

func TestSubmitChoiceFullCredit(t *testing.T) {
	m := NewMachine(mcqQuestion("q1", "a", "b"), scoring.New())
	up, err := m.Submit(SelectAnswer("a", "b"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if up.Result != ResultCorrect || up.Score != 1 {
		t.Fatalf("got result=%v score=%v", up.Result, up.Score)
	}
	if m.Phase() != PhaseLocked {
		t.Fatalf("phase = %v, want locked", m.Phase())
	}
}

func TestSubmitChoicePartialCredit(t *testing.T) {
	m := NewMachine(mcqQuestion("q1", "a", "b", "c"), scoring.New())
	up, err := m.Submit(SelectAnswer("a", "b"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if up.Result != ResultPartial {
		t.Fatalf("result = %v, want partial", up.Result)
	}
}

func TestSubmitChoiceResultMapping(t *testing.T) {
	cases := []struct {
		name     string
		correct  []string
		selected []string
		want     Result
	}{
		{"hit and miss cancel out", []string{"a", "b"}, []string{"a", "c"}, ResultIncorrect},
		{"half the key", []string{"b", "d"}, []string{"b"}, ResultPartial},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMachine(mcqQuestion("q1", tc.correct...), scoring.New())
			up, err := m.Submit(SelectAnswer(tc.selected...))
			if err != nil {
				t.Fatalf("submit: %v", err)
			}
			if up.Result != tc.want {
				t.Fatalf("result = %v, want %v", up.Result, tc.want)
			}
		})
	}
}

func TestSubmitChoiceRequiresSelection(t *testing.T) {
	m := NewMachine(mcqQuestion("q1", "a"), scoring.New())
	if _, err := m.Submit(Answer{}); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v, want ErrNoSelection", err)
	}
	if m.Phase() != PhaseUnanswered {
		t.Fatal("rejected submit must not change phase")
	}
}

func TestSubmitUsesWorkingSelection(t *testing.T) {
	m := NewMachine(mcqQuestion("q1", "a", "b"), scoring.New())
	for _, id := range []string{"a", "c", "c", "b"} {
		if err := m.ToggleOption(id); err != nil {
			t.Fatalf("toggle %s: %v", id, err)
		}
	}
	// c was toggled twice so the effective selection is a,b.
	up, err := m.Submit(Answer{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if up.Result != ResultCorrect {
		t.Fatalf("result = %v, want correct", up.Result)
	}
	if ids := up.Answer.Selected; len(ids) != 2 {
		t.Fatalf("answer = %v, want two ids", ids)
	}
}

func TestDoubleSubmitRejected(t *testing.T) {
	m := NewMachine(mcqQuestion("q1", "a"), scoring.New())
	if _, err := m.Submit(SelectAnswer("a")); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := m.Submit(SelectAnswer("a")); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestConcurrentSubmitGradesOnce(t *testing.T) {
	m := NewMachine(mcqQuestion("q1", "a"), scoring.New())
	const racers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Submit(SelectAnswer("a")); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if accepted != 1 {
		t.Fatalf("accepted %d submits, want exactly 1", accepted)
	}
}

func TestToggleAfterSubmitLocked(t *testing.T) {
	m := NewMachine(mcqQuestion("q1", "a"), scoring.New())
	if _, err := m.Submit(SelectAnswer("b")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := m.ToggleOption("a"); !errors.Is(err, ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
	if err := m.ClearSelection(); !errors.Is(err, ErrLocked) {
		t.Fatalf("clear err = %v, want ErrLocked", err)
	}
}

func TestClearSelection(t *testing.T) {
	m := NewMachine(mcqQuestion("q1", "a"), scoring.New())
	_ = m.ToggleOption("a")
	_ = m.ToggleOption("b")
	if err := m.ClearSelection(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := m.Selection(); len(got) != 0 {
		t.Fatalf("selection = %v, want empty", got)
	}
}

func TestOpenSubmitAwaitsRating(t *testing.T) {
	m := NewMachine(openQuestion("q2"), scoring.New())
	up, err := m.Submit(TextAnswer(""))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !up.AwaitingRating {
		t.Fatal("open submit should await rating")
	}
	if up.Result.Defined() {
		t.Fatalf("result = %v, want undefined", up.Result)
	}
	if m.Phase() != PhaseAwaitingRating {
		t.Fatalf("phase = %v", m.Phase())
	}
}

func TestSelfAssess(t *testing.T) {
	m := NewMachine(openQuestion("q2"), scoring.New())
	if _, err := m.SelfAssess(RatingCorrect); !errors.Is(err, ErrNotAwaitingRating) {
		t.Fatalf("pre-submit err = %v, want ErrNotAwaitingRating", err)
	}
	if _, err := m.Submit(TextAnswer("la réponse")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	up, err := m.SelfAssess(RatingPartial)
	if err != nil {
		t.Fatalf("assess: %v", err)
	}
	if up.Result != ResultPartial || up.Score != 0.5 {
		t.Fatalf("got result=%v score=%v", up.Result, up.Score)
	}
	if _, err := m.SelfAssess(RatingCorrect); !errors.Is(err, ErrNotAwaitingRating) {
		t.Fatalf("second assess err = %v, want ErrNotAwaitingRating", err)
	}
}

func TestSelfAssessBadRating(t *testing.T) {
	m := NewMachine(openQuestion("q2"), scoring.New())
	if _, err := m.Submit(TextAnswer("x")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := m.SelfAssess(Rating("great")); err == nil {
		t.Fatal("expected error for unknown rating")
	}
	if m.Phase() != PhaseAwaitingRating {
		t.Fatal("bad rating must not advance the phase")
	}
}

func TestResubmitReopens(t *testing.T) {
	m := NewMachine(mcqQuestion("q1", "a"), scoring.New())
	if _, err := m.Submit(SelectAnswer("a")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	gen := m.Resubmit()
	if gen != 1 {
		t.Fatalf("generation = %d, want 1", gen)
	}
	if m.Phase() != PhaseUnanswered {
		t.Fatalf("phase = %v, want unanswered", m.Phase())
	}
	up, err := m.Submit(SelectAnswer("b"))
	if err != nil {
		t.Fatalf("resubmit then submit: %v", err)
	}
	if up.Result != ResultIncorrect {
		t.Fatalf("result = %v, want incorrect", up.Result)
	}
	if up.Generation != 1 {
		t.Fatalf("update generation = %d, want 1", up.Generation)
	}
}

func TestAnswerKindMismatch(t *testing.T) {
	mc := NewMachine(mcqQuestion("q1", "a"), scoring.New())
	if _, err := mc.Submit(TextAnswer("oops")); !errors.Is(err, ErrWrongAnswerKind) {
		t.Fatalf("err = %v, want ErrWrongAnswerKind", err)
	}
	op := NewMachine(openQuestion("q2"), scoring.New())
	if _, err := op.Submit(SelectAnswer("a")); !errors.Is(err, ErrWrongAnswerKind) {
		t.Fatalf("err = %v, want ErrWrongAnswerKind", err)
	}
}
