package quiz

import (
	"errors"
	"testing"

	"github.com/medrevise/medrevise/internal/scoring"
)

func sampleCase() ClinicalCase {
	return ClinicalCase{
		Number: 3,
		Text:   "72 year old with chest pain",
		Questions: []Question{
			{ID: "c3q1", Type: TypeClinicMCQ, CaseNum: 3, Options: []Option{{ID: "a"}, {ID: "b"}, {ID: "c"}}, CorrectIDs: []string{"a"}},
			{ID: "c3q2", Type: TypeClinicCROQ, CaseNum: 3},
			{ID: "c3q3", Type: TypeClinicCROQ, CaseNum: 3},
		},
	}
}

func answeredCase(t *testing.T, cfg CaseConfig) *CaseMachine {
	t.Helper()
	m := NewCaseMachine(sampleCase(), cfg, scoring.New())
	for m.Phase() == CaseRevealing {
		if err := m.RevealNext(); err != nil {
			t.Fatalf("reveal: %v", err)
		}
	}
	if err := m.RecordAnswer("c3q1", SelectAnswer("a")); err != nil {
		t.Fatalf("record q1: %v", err)
	}
	if err := m.RecordAnswer("c3q2", TextAnswer("ECG puis troponine")); err != nil {
		t.Fatalf("record q2: %v", err)
	}
	if err := m.RecordAnswer("c3q3", TextAnswer("aspirine")); err != nil {
		t.Fatalf("record q3: %v", err)
	}
	return m
}

func TestCaseRevealOneByOne(t *testing.T) {
	m := NewCaseMachine(sampleCase(), DefaultCaseConfig(), scoring.New())
	if m.Phase() != CaseRevealing {
		t.Fatalf("phase = %v, want revealing", m.Phase())
	}
	st := m.Snapshot()
	if st.Revealed != 1 {
		t.Fatalf("revealed = %d, want 1", st.Revealed)
	}
	if err := m.RevealNext(); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if err := m.RevealNext(); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if m.Phase() != CaseAnswering {
		t.Fatalf("phase = %v, want answering", m.Phase())
	}
	if err := m.RevealNext(); !errors.Is(err, ErrAllRevealed) {
		t.Fatalf("err = %v, want ErrAllRevealed", err)
	}
}

func TestCaseRevealAll(t *testing.T) {
	cfg := DefaultCaseConfig()
	cfg.Reveal = RevealAll
	m := NewCaseMachine(sampleCase(), cfg, scoring.New())
	if m.Phase() != CaseAnswering {
		t.Fatalf("phase = %v, want answering", m.Phase())
	}
	if st := m.Snapshot(); st.Revealed != 3 {
		t.Fatalf("revealed = %d, want 3", st.Revealed)
	}
}

func TestCaseSubmitRequiresAllAnswers(t *testing.T) {
	m := NewCaseMachine(sampleCase(), DefaultCaseConfig(), scoring.New())
	_ = m.RecordAnswer("c3q1", SelectAnswer("a"))
	if _, err := m.SubmitGroup(); !errors.Is(err, ErrGroupIncomplete) {
		t.Fatalf("err = %v, want ErrGroupIncomplete", err)
	}
	if m.Phase() == CaseEvaluating || m.Phase() == CaseComplete {
		t.Fatal("rejected submit must not advance the case")
	}
}

func TestCaseEvaluationQueueOrder(t *testing.T) {
	m := answeredCase(t, DefaultCaseConfig())
	ups, err := m.SubmitGroup()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(ups) != 3 {
		t.Fatalf("updates = %d, want 3", len(ups))
	}
	if m.Phase() != CaseEvaluating {
		t.Fatalf("phase = %v, want evaluating", m.Phase())
	}
	cur, ok := m.CurrentEvaluation()
	if !ok || cur != "c3q2" {
		t.Fatalf("current = %q, want c3q2", cur)
	}
	// The MCQ verdict is in before any rating happens, so the badge
	// already reads correct over the lone defined verdict.
	if st := m.Snapshot(); st.Results["c3q1"] != ResultCorrect {
		t.Fatalf("q1 result = %v, want correct", st.Results["c3q1"])
	}
	if agg, ok := m.Aggregate(); !ok || agg != ResultCorrect {
		t.Fatalf("mid-evaluation aggregate = %v (ok=%v), want correct", agg, ok)
	}

	if _, err := m.Rate("c3q3", RatingCorrect); !errors.Is(err, ErrOutOfOrderEvaluation) {
		t.Fatalf("err = %v, want ErrOutOfOrderEvaluation", err)
	}
	if _, err := m.Rate("c3q2", RatingCorrect); err != nil {
		t.Fatalf("rate q2: %v", err)
	}
	cur, _ = m.CurrentEvaluation()
	if cur != "c3q3" {
		t.Fatalf("current = %q, want c3q3", cur)
	}
	up, err := m.Rate("c3q3", RatingWrong)
	if err != nil {
		t.Fatalf("rate q3: %v", err)
	}
	if up.Result != ResultIncorrect {
		t.Fatalf("q3 result = %v, want incorrect", up.Result)
	}
	if m.Phase() != CaseComplete {
		t.Fatalf("phase = %v, want complete", m.Phase())
	}

	// correct + correct + wrong folds to partial.
	agg, ok := m.Aggregate()
	if !ok || agg != ResultPartial {
		t.Fatalf("aggregate = %v (ok=%v), want partial", agg, ok)
	}
}

func TestCaseDoubleSubmitRejected(t *testing.T) {
	m := answeredCase(t, DefaultCaseConfig())
	if _, err := m.SubmitGroup(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := m.SubmitGroup(); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("err = %v, want ErrAlreadySubmitted", err)
	}
	if err := m.RecordAnswer("c3q2", TextAnswer("changed my mind")); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("record after submit err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestCaseEmptyAnswerClears(t *testing.T) {
	m := answeredCase(t, DefaultCaseConfig())
	if err := m.RecordAnswer("c3q1", Answer{}); err != nil {
		t.Fatalf("clear: %v", err)
	}
	answered, total := m.Progress()
	if answered != 2 || total != 3 {
		t.Fatalf("progress = %d/%d, want 2/3", answered, total)
	}
	if st := m.Snapshot(); st.Results["c3q1"].Defined() {
		t.Fatal("cleared answer must drop its verdict")
	}
	if _, err := m.SubmitGroup(); !errors.Is(err, ErrGroupIncomplete) {
		t.Fatalf("err = %v, want ErrGroupIncomplete", err)
	}
}

func TestCaseWithoutEvaluationPhase(t *testing.T) {
	cfg := DefaultCaseConfig()
	cfg.HasEvaluationPhase = false
	m := answeredCase(t, cfg)
	if _, err := m.SubmitGroup(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if m.Phase() != CaseComplete {
		t.Fatalf("phase = %v, want complete", m.Phase())
	}
	st := m.Snapshot()
	if st.Results["c3q2"].Defined() || st.Results["c3q3"].Defined() {
		t.Fatal("open verdicts should stay undefined without an evaluation phase")
	}
	// Aggregate still folds over the lone MCQ verdict.
	if st.Aggregate != ResultCorrect {
		t.Fatalf("aggregate = %v, want correct", st.Aggregate)
	}
}

func TestCaseAllChoiceCompletesAtSubmit(t *testing.T) {
	c := ClinicalCase{
		Number: 1,
		Questions: []Question{
			{ID: "q1", Type: TypeClinicMCQ, Options: []Option{{ID: "a"}, {ID: "b"}}, CorrectIDs: []string{"a"}},
			{ID: "q2", Type: TypeClinicMCQ, Options: []Option{{ID: "a"}, {ID: "b"}}, CorrectIDs: []string{"b"}},
		},
	}
	cfg := DefaultCaseConfig()
	cfg.Reveal = RevealAll
	m := NewCaseMachine(c, cfg, scoring.New())
	_ = m.RecordAnswer("q1", SelectAnswer("a"))
	_ = m.RecordAnswer("q2", SelectAnswer("a"))
	if _, err := m.SubmitGroup(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if m.Phase() != CaseComplete {
		t.Fatalf("phase = %v, want complete", m.Phase())
	}
	agg, _ := m.Aggregate()
	if agg != ResultPartial {
		t.Fatalf("aggregate = %v, want partial", agg)
	}
}

func TestCaseResubmit(t *testing.T) {
	m := answeredCase(t, DefaultCaseConfig())
	if _, err := m.SubmitGroup(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	gen, err := m.ResubmitGroup()
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if gen != 1 {
		t.Fatalf("generation = %d, want 1", gen)
	}
	if m.Phase() != CaseRevealing {
		t.Fatalf("phase = %v, want revealing", m.Phase())
	}
	if answered, _ := m.Progress(); answered != 0 {
		t.Fatalf("answered = %d after resubmit, want 0", answered)
	}
}

func TestCaseResubmitDisabled(t *testing.T) {
	cfg := DefaultCaseConfig()
	cfg.AllowResubmit = false
	m := answeredCase(t, cfg)
	if _, err := m.SubmitGroup(); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := m.ResubmitGroup(); !errors.Is(err, ErrResubmitDisabled) {
		t.Fatalf("err = %v, want ErrResubmitDisabled", err)
	}
}

func TestCaseRateBeforeSubmit(t *testing.T) {
	m := answeredCase(t, DefaultCaseConfig())
	if _, err := m.Rate("c3q2", RatingCorrect); !errors.Is(err, ErrNotAwaitingRating) {
		t.Fatalf("err = %v, want ErrNotAwaitingRating", err)
	}
}
