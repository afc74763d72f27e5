package quiz

import (
	"sync"

	"github.com/medrevise/medrevise/internal/scoring"
)

// Phase of a single question's answering lifecycle.
type Phase string

const (
	// PhaseUnanswered: selection and free text are still editable.
	PhaseUnanswered Phase = "unanswered"
	// PhaseAwaitingRating: submitted, waiting for the learner's own verdict.
	PhaseAwaitingRating Phase = "awaiting_rating"
	// PhaseLocked: a result is recorded; only Resubmit can reopen.
	PhaseLocked Phase = "locked"
)

// Update is what a machine reports upward after a state-changing operation.
// The owner records it into its answer/result maps and persists from there.
type Update struct {
	QuestionID     string
	Answer         Answer
	Result         Result
	Score          float64
	AwaitingRating bool
	Generation     uint64
}

// Machine drives one question from blank to graded.
//
// Every transition runs under mu, and the submitted flag is flipped inside
// the same critical section that validates the submit, so a burst of
// duplicate submits (double Enter, double click) collapses to a single
// grade.
type Machine struct {
	mu sync.Mutex

	q      Question
	grader scoring.Grader

	phase      Phase
	working    []string // MCQ selection being edited pre-submit
	answer     Answer
	result     Result
	score      float64
	submitted  bool
	generation uint64
}

func NewMachine(q Question, grader scoring.Grader) *Machine {
	return &Machine{q: q, grader: grader, phase: PhaseUnanswered}
}

func (m *Machine) QuestionID() string { return m.q.ID }

func (m *Machine) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Machine) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// ToggleOption flips one option in the working selection. Only meaningful
// before submission and only for choice questions.
func (m *Machine) ToggleOption(optionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseUnanswered {
		return ErrLocked
	}
	if m.q.Type.Open() {
		return ErrWrongAnswerKind
	}
	for i, id := range m.working {
		if id == optionID {
			m.working = append(m.working[:i], m.working[i+1:]...)
			return nil
		}
	}
	m.working = append(m.working, optionID)
	return nil
}

// ClearSelection empties the working selection. Submitted answers are not
// clearable; use Resubmit.
func (m *Machine) ClearSelection() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseUnanswered {
		return ErrLocked
	}
	m.working = nil
	return nil
}

func (m *Machine) Selection() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.working))
	copy(out, m.working)
	return out
}

// Submit grades the answer. For choice questions an empty explicit answer
// falls back to the working selection built with ToggleOption; an empty
// selection is rejected. Open questions accept empty text.
func (m *Machine) Submit(a Answer) (Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitted {
		return Update{}, ErrAlreadySubmitted
	}

	var response interface{}
	if m.q.Type.Open() {
		if !a.IsText && len(a.Selected) > 0 {
			return Update{}, ErrWrongAnswerKind
		}
		a = TextAnswer(a.Text)
		response = a.Text
	} else {
		if a.IsText {
			return Update{}, ErrWrongAnswerKind
		}
		sel := a.Selected
		if len(sel) == 0 {
			sel = m.working
		}
		if len(sel) == 0 {
			return Update{}, ErrNoSelection
		}
		a = SelectAnswer(sel...)
		response = a.Selected
	}

	res, err := m.grader.Score(scoring.Q{Type: string(m.q.Type), CorrectIDs: m.q.CorrectIDs}, response)
	if err != nil {
		return Update{}, err
	}

	m.submitted = true
	m.answer = a
	m.working = nil
	if res.NeedsReview {
		m.phase = PhaseAwaitingRating
		m.result = ResultNone
		m.score = 0
	} else {
		m.phase = PhaseLocked
		m.result = resultFromScore(res.Score)
		m.score = res.Score
	}
	return m.update(), nil
}

// SelfAssess records the learner's own verdict on an open answer.
func (m *Machine) SelfAssess(rt Rating) (Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != PhaseAwaitingRating {
		return Update{}, ErrNotAwaitingRating
	}
	res, err := rt.Result()
	if err != nil {
		return Update{}, err
	}
	m.phase = PhaseLocked
	m.result = res
	m.score = scoreFromResult(res)
	return m.update(), nil
}

// Resubmit wipes the recorded answer and reopens the question. The bumped
// generation lets callers drop in-flight persistence of the old attempt.
func (m *Machine) Resubmit() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phase = PhaseUnanswered
	m.working = nil
	m.answer = Answer{}
	m.result = ResultNone
	m.score = 0
	m.submitted = false
	m.generation++
	return m.generation
}

// State is a read-only view of the machine.
type State struct {
	QuestionID string
	Phase      Phase
	Answer     Answer
	Result     Result
	Score      float64
	Generation uint64
}

func (m *Machine) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		QuestionID: m.q.ID,
		Phase:      m.phase,
		Answer:     m.answer,
		Result:     m.result,
		Score:      m.score,
		Generation: m.generation,
	}
}

func (m *Machine) update() Update {
	return Update{
		QuestionID:     m.q.ID,
		Answer:         m.answer,
		Result:         m.result,
		Score:          m.score,
		AwaitingRating: m.phase == PhaseAwaitingRating,
		Generation:     m.generation,
	}
}

// resultFromScore maps a normalized score onto the three-valued verdict:
// full credit is correct, zero is incorrect, anything between is partial.
func resultFromScore(score float64) Result {
	switch {
	case score >= 1:
		return ResultCorrect
	case score <= 0:
		return ResultIncorrect
	default:
		return ResultPartial
	}
}

// scoreFromResult is the inverse used when the learner self-assesses: the
// stored score mirrors the verdict rather than any option arithmetic.
func scoreFromResult(r Result) float64 {
	switch r {
	case ResultCorrect:
		return 1
	case ResultPartial:
		return 0.5
	default:
		return 0
	}
}
