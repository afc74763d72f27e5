package quiz

import (
	"errors"
	"testing"

	"github.com/medrevise/medrevise/internal/scoring"
)

func lectureItems() []Item {
	return []Item{
		QuestionItem(mcqQuestion("q1", "a", "b")),
		QuestionItem(openQuestion("q2")),
		CaseItem(sampleCase()),
	}
}

func newTestSession(mode Mode) *Session {
	return NewSession("s1", "u1", "lec1", lectureItems(), mode, scoring.New(), DefaultCaseConfig())
}

func TestSessionWalkToCompletion(t *testing.T) {
	s := newTestSession(ModeAll)
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}

	up, err := s.SubmitAnswer("q1", SelectAnswer("a", "c"))
	if err != nil {
		t.Fatalf("submit q1: %v", err)
	}
	if up.Result != ResultIncorrect {
		t.Fatalf("q1 result = %v, want incorrect", up.Result)
	}
	s.Next()

	up, err = s.SubmitAnswer("q2", TextAnswer("douleur thoracique"))
	if err != nil {
		t.Fatalf("submit q2: %v", err)
	}
	if !up.AwaitingRating {
		t.Fatal("open submit should await rating")
	}
	if _, err := s.SelfAssess("q2", RatingCorrect); err != nil {
		t.Fatalf("assess q2: %v", err)
	}
	s.Next()

	for range []int{0, 1} {
		if err := s.RevealNext(3); err != nil {
			t.Fatalf("reveal: %v", err)
		}
	}
	for qid, a := range map[string]Answer{
		"c3q1": SelectAnswer("a"),
		"c3q2": TextAnswer("ECG"),
		"c3q3": TextAnswer("aspirine"),
	} {
		if err := s.RecordCaseAnswer(qid, a); err != nil {
			t.Fatalf("record %s: %v", qid, err)
		}
	}
	if _, err := s.SubmitCase(3); err != nil {
		t.Fatalf("submit case: %v", err)
	}
	if s.Complete() {
		t.Fatal("session must not complete while ratings are pending")
	}
	if _, err := s.SelfAssess("c3q2", RatingCorrect); err != nil {
		t.Fatalf("rate c3q2: %v", err)
	}
	if _, err := s.SelfAssess("c3q3", RatingPartial); err != nil {
		t.Fatalf("rate c3q3: %v", err)
	}
	if !s.Complete() {
		t.Fatal("session should complete once the last item resolves")
	}
}

func TestSessionNavigationBounds(t *testing.T) {
	s := newTestSession(ModeAll)
	s.Previous()
	if s.CurrentIndex() != 0 {
		t.Fatalf("index = %d, want 0", s.CurrentIndex())
	}
	s.Next()
	s.Next()
	s.Next() // past the end with nothing resolved
	if s.CurrentIndex() != 2 {
		t.Fatalf("index = %d, want 2", s.CurrentIndex())
	}
	if s.Complete() {
		t.Fatal("unresolved session must not complete by navigation")
	}
	if err := s.Select(5); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if err := s.Select(1); err != nil {
		t.Fatalf("select: %v", err)
	}
	if s.CurrentIndex() != 1 {
		t.Fatalf("index = %d, want 1", s.CurrentIndex())
	}
}

func TestSessionCaseSubManagedByCase(t *testing.T) {
	s := newTestSession(ModeAll)
	if _, err := s.SubmitAnswer("c3q1", SelectAnswer("a")); !errors.Is(err, ErrCaseManaged) {
		t.Fatalf("err = %v, want ErrCaseManaged", err)
	}
	if err := s.ToggleOption("c3q1", "a"); !errors.Is(err, ErrCaseManaged) {
		t.Fatalf("toggle err = %v, want ErrCaseManaged", err)
	}
	if err := s.RecordCaseAnswer("q1", SelectAnswer("a")); !errors.Is(err, ErrNotInCase) {
		t.Fatalf("record err = %v, want ErrNotInCase", err)
	}
}

func TestSessionRevisionModeReadOnly(t *testing.T) {
	s := newTestSession(ModeRevision)
	if _, err := s.SubmitAnswer("q1", SelectAnswer("a")); !errors.Is(err, ErrRevisionMode) {
		t.Fatalf("submit err = %v, want ErrRevisionMode", err)
	}
	if _, err := s.SelfAssess("q2", RatingCorrect); !errors.Is(err, ErrRevisionMode) {
		t.Fatalf("assess err = %v, want ErrRevisionMode", err)
	}
	if err := s.RevealNext(3); !errors.Is(err, ErrRevisionMode) {
		t.Fatalf("reveal err = %v, want ErrRevisionMode", err)
	}

	v := s.View()
	if v.Answered != v.Total {
		t.Fatalf("revision shows %d/%d answered, want all", v.Answered, v.Total)
	}
	qv := v.Items[0].Question
	if qv.Result != ResultCorrect {
		t.Fatalf("result = %v, want correct", qv.Result)
	}
	if qv.Answer == nil || len(qv.Answer.Selected) != 2 {
		t.Fatalf("revision answer = %+v, want the reference selection", qv.Answer)
	}
	if len(qv.Question.CorrectIDs) == 0 {
		t.Fatal("revision must reveal the answer key")
	}

	// Walking past the end finishes a revision session.
	s.Next()
	s.Next()
	s.Next()
	if !s.Complete() {
		t.Fatal("revision session should complete at the end of the walk")
	}
}

func TestSessionViewRedaction(t *testing.T) {
	s := newTestSession(ModeAll)
	v := s.View()
	qv := v.Items[0].Question
	if len(qv.Question.CorrectIDs) != 0 || qv.Question.Explanation != "" {
		t.Fatal("unanswered question must not leak its key")
	}
	if qv.Answer != nil {
		t.Fatal("unanswered question has no answer")
	}
	cv := v.Items[2].Case
	if len(cv.Questions) != 1 {
		t.Fatalf("revealed sub-questions = %d, want 1", len(cv.Questions))
	}

	if _, err := s.SubmitAnswer("q1", SelectAnswer("a", "b")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	v = s.View()
	qv = v.Items[0].Question
	if len(qv.Question.CorrectIDs) == 0 {
		t.Fatal("locked question should reveal its key")
	}
	if qv.Result != ResultCorrect || qv.Score == nil || *qv.Score != 1 {
		t.Fatalf("view result = %v score = %v", qv.Result, qv.Score)
	}
}

func TestSessionCaseViewHidesVerdictsUntilSubmit(t *testing.T) {
	s := newTestSession(ModeAll)
	_ = s.RevealNext(3)
	_ = s.RevealNext(3)
	if err := s.RecordCaseAnswer("c3q1", SelectAnswer("b")); err != nil {
		t.Fatalf("record: %v", err)
	}
	v := s.View()
	cv := v.Items[2].Case
	for _, qv := range cv.Questions {
		if qv.Result.Defined() {
			t.Fatal("case verdicts must stay hidden before the group submit")
		}
		if len(qv.Question.CorrectIDs) != 0 {
			t.Fatal("case keys must stay hidden before the group submit")
		}
	}
	if cv.Aggregate.Defined() {
		t.Fatal("aggregate must stay hidden before the group submit")
	}
}

func TestSessionPinnedItems(t *testing.T) {
	pinned := map[string]bool{"q2": true, "c3q3": true}
	items := PinnedItems(lectureItems(), pinned)
	if len(items) != 2 {
		t.Fatalf("pinned items = %d, want 2", len(items))
	}
	if items[0].Kind != KindQuestion || items[0].Question.ID != "q2" {
		t.Fatalf("first pinned item = %+v", items[0])
	}
	if items[1].Kind != KindCase || items[1].Case.TotalQuestions() != 3 {
		t.Fatal("a pinned sub-question must pull in the whole case")
	}
}

func TestVisibleItems(t *testing.T) {
	items := lectureItems()
	items[0].Question.Hidden = true
	c := *items[2].Case
	for i := range c.Questions {
		c.Questions[i].Hidden = true
	}
	items[2] = CaseItem(c)

	vis := VisibleItems(items, false)
	if len(vis) != 1 {
		t.Fatalf("visible = %d, want 1", len(vis))
	}
	if vis[0].Question.ID != "q2" {
		t.Fatalf("visible item = %+v", vis[0])
	}
	all := VisibleItems(items, true)
	if len(all) != 3 {
		t.Fatalf("maintainer view = %d items, want 3", len(all))
	}
}

func TestVisibleItemsPartialCase(t *testing.T) {
	items := lectureItems()
	c := *items[2].Case
	c.Questions[1].Hidden = true
	items[2] = CaseItem(c)
	vis := VisibleItems(items, false)
	if len(vis) != 3 {
		t.Fatalf("visible = %d, want 3", len(vis))
	}
	if got := vis[2].Case.TotalQuestions(); got != 2 {
		t.Fatalf("case kept %d sub-questions, want 2", got)
	}
}

func TestSessionRestart(t *testing.T) {
	s := newTestSession(ModeAll)
	if _, err := s.SubmitAnswer("q1", SelectAnswer("a", "b")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	s.Restart()
	if s.CurrentIndex() != 0 || s.Complete() {
		t.Fatal("restart should rewind the session")
	}
	gen, ok := s.GenerationOf("q1")
	if !ok || gen != 1 {
		t.Fatalf("generation = %d (ok=%v), want 1", gen, ok)
	}
	if _, err := s.SubmitAnswer("q1", SelectAnswer("a", "b")); err != nil {
		t.Fatalf("submit after restart: %v", err)
	}
}

func TestSessionResubmitClearsComplete(t *testing.T) {
	s := NewSession("s1", "u1", "lec1", []Item{QuestionItem(mcqQuestion("q1", "a"))}, ModeAll, scoring.New(), DefaultCaseConfig())
	if _, err := s.SubmitAnswer("q1", SelectAnswer("a")); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !s.Complete() {
		t.Fatal("single-item session should complete on submit")
	}
	if _, err := s.ResubmitQuestion("q1"); err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if s.Complete() {
		t.Fatal("resubmit should reopen the session")
	}
}

func TestSessionGenerationOfUnknown(t *testing.T) {
	s := newTestSession(ModeAll)
	if _, ok := s.GenerationOf("nope"); ok {
		t.Fatal("unknown question should not report a generation")
	}
}
