package quiz

import (
	"sync"

	"github.com/medrevise/medrevise/internal/scoring"
)

// RevealMode controls how a case's sub-questions become visible.
type RevealMode string

const (
	// RevealOneByOne shows sub-questions one at a time as the learner
	// advances through the vignette.
	RevealOneByOne RevealMode = "one_by_one"
	// RevealAll shows every sub-question immediately.
	RevealAll RevealMode = "all"
)

// CaseConfig tunes a case machine. The zero value is not useful; start from
// DefaultCaseConfig.
type CaseConfig struct {
	// HasEvaluationPhase queues open sub-questions for sequential
	// self-assessment after the group submit. When false, open answers are
	// left unrated and the case completes at submit.
	HasEvaluationPhase bool
	// AllowResubmit permits wiping the whole case and answering again.
	AllowResubmit bool
	Reveal        RevealMode
}

func DefaultCaseConfig() CaseConfig {
	return CaseConfig{HasEvaluationPhase: true, AllowResubmit: true, Reveal: RevealOneByOne}
}

// CasePhase of the group lifecycle.
type CasePhase string

const (
	CaseRevealing  CasePhase = "revealing"
	CaseAnswering  CasePhase = "answering"
	CaseEvaluating CasePhase = "evaluating"
	CaseComplete   CasePhase = "complete"
)

// CaseMachine orchestrates one clinical case: reveal, collect answers, grade
// the group in one shot, then walk the open sub-questions through a strictly
// ordered self-assessment queue.
type CaseMachine struct {
	mu sync.Mutex

	c      ClinicalCase
	cfg    CaseConfig
	grader scoring.Grader

	phase    CasePhase
	revealed int
	answers  map[string]Answer
	results  map[string]Result
	scores   map[string]float64

	queue []string // open sub-question ids awaiting rating, fixed at submit
	qpos  int

	submitted  bool
	generation uint64
}

func NewCaseMachine(c ClinicalCase, cfg CaseConfig, grader scoring.Grader) *CaseMachine {
	m := &CaseMachine{
		c:       c,
		cfg:     cfg,
		grader:  grader,
		answers: make(map[string]Answer),
		results: make(map[string]Result),
		scores:  make(map[string]float64),
	}
	if cfg.Reveal == RevealOneByOne && c.TotalQuestions() > 1 {
		m.phase = CaseRevealing
		m.revealed = 1
	} else {
		m.phase = CaseAnswering
		m.revealed = c.TotalQuestions()
	}
	return m
}

func (m *CaseMachine) CaseNumber() int { return m.c.Number }

func (m *CaseMachine) Phase() CasePhase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *CaseMachine) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// RevealNext makes one more sub-question visible.
func (m *CaseMachine) RevealNext() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != CaseRevealing {
		return ErrAllRevealed
	}
	m.revealed++
	if m.revealed >= m.c.TotalQuestions() {
		m.revealed = m.c.TotalQuestions()
		m.phase = CaseAnswering
	}
	return nil
}

// RecordAnswer stores (or clears, when empty) one sub-question's answer.
// Choice answers are graded on the spot; the verdicts stay hidden from views
// until the group submit. Answers freeze once the group is submitted.
func (m *CaseMachine) RecordAnswer(questionID string, a Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitted {
		return ErrAlreadySubmitted
	}
	q, ok := m.find(questionID)
	if !ok {
		return ErrNotFound
	}
	if a.Empty() {
		delete(m.answers, questionID)
		delete(m.results, questionID)
		delete(m.scores, questionID)
		return nil
	}
	if q.Type.Open() {
		if !a.IsText {
			return ErrWrongAnswerKind
		}
		m.answers[questionID] = TextAnswer(a.Text)
		return nil
	}
	if a.IsText {
		return ErrWrongAnswerKind
	}
	sel := SelectAnswer(a.Selected...)
	res, err := m.grader.Score(scoring.Q{Type: string(q.Type), CorrectIDs: q.CorrectIDs}, sel.Selected)
	if err != nil {
		return err
	}
	m.answers[questionID] = sel
	m.results[questionID] = resultFromScore(res.Score)
	m.scores[questionID] = res.Score
	return nil
}

// Progress reports answered/total for the case.
func (m *CaseMachine) Progress() (answered, total int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.answers), m.c.TotalQuestions()
}

// SubmitGroup locks in all answers at once. Every sub-question must carry a
// non-empty answer. Open sub-questions are then queued for rating in case
// order; if there are none (or the evaluation phase is disabled) the case
// completes immediately.
func (m *CaseMachine) SubmitGroup() ([]Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitted {
		return nil, ErrAlreadySubmitted
	}
	for _, q := range m.c.Questions {
		if _, ok := m.answers[q.ID]; !ok {
			return nil, ErrGroupIncomplete
		}
	}
	m.submitted = true
	m.revealed = m.c.TotalQuestions()

	m.queue = m.queue[:0]
	if m.cfg.HasEvaluationPhase {
		for _, q := range m.c.Questions {
			if q.Type.Open() {
				m.queue = append(m.queue, q.ID)
			}
		}
	}
	m.qpos = 0
	m.skipRatedLocked()
	if m.qpos < len(m.queue) {
		m.phase = CaseEvaluating
	} else {
		m.phase = CaseComplete
	}

	updates := make([]Update, 0, len(m.c.Questions))
	for _, q := range m.c.Questions {
		updates = append(updates, m.updateFor(q.ID))
	}
	return updates, nil
}

// CurrentEvaluation returns the sub-question whose rating is due next.
func (m *CaseMachine) CurrentEvaluation() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != CaseEvaluating || m.qpos >= len(m.queue) {
		return "", false
	}
	return m.queue[m.qpos], true
}

// Rate records the learner's verdict for the sub-question at the head of the
// evaluation queue. Rating any other sub-question is rejected; the queue is
// strictly ordered.
func (m *CaseMachine) Rate(questionID string, rt Rating) (Update, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.phase != CaseEvaluating {
		return Update{}, ErrNotAwaitingRating
	}
	if m.qpos >= len(m.queue) || m.queue[m.qpos] != questionID {
		return Update{}, ErrOutOfOrderEvaluation
	}
	res, err := rt.Result()
	if err != nil {
		return Update{}, err
	}
	m.results[questionID] = res
	m.scores[questionID] = scoreFromResult(res)
	m.qpos++
	m.skipRatedLocked()
	if m.qpos >= len(m.queue) {
		m.phase = CaseComplete
	}
	return m.updateFor(questionID), nil
}

// ResubmitGroup wipes every answer and verdict and restarts the case.
func (m *CaseMachine) ResubmitGroup() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.cfg.AllowResubmit {
		return 0, ErrResubmitDisabled
	}
	m.resetLocked()
	return m.generation, nil
}

// restart resets regardless of the resubmit policy; used when the owning
// session restarts as a whole.
func (m *CaseMachine) restart() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
	return m.generation
}

func (m *CaseMachine) resetLocked() {
	m.answers = make(map[string]Answer)
	m.results = make(map[string]Result)
	m.scores = make(map[string]float64)
	m.queue = nil
	m.qpos = 0
	m.submitted = false
	m.generation++
	if m.cfg.Reveal == RevealOneByOne && m.c.TotalQuestions() > 1 {
		m.phase = CaseRevealing
		m.revealed = 1
	} else {
		m.phase = CaseAnswering
		m.revealed = m.c.TotalQuestions()
	}
}

// Aggregate folds the sub-question verdicts into one badge for the case.
func (m *CaseMachine) Aggregate() (Result, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.aggregateLocked()
}

// CaseState is a read-only view of the orchestrator.
type CaseState struct {
	CaseNumber int
	Phase      CasePhase
	Revealed   int
	Total      int
	Submitted  bool
	Answers    map[string]Answer
	Results    map[string]Result
	Scores     map[string]float64
	Queue      []string
	QueuePos   int
	Aggregate  Result
	Generation uint64
}

func (m *CaseMachine) Snapshot() CaseState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := CaseState{
		CaseNumber: m.c.Number,
		Phase:      m.phase,
		Revealed:   m.revealed,
		Total:      m.c.TotalQuestions(),
		Submitted:  m.submitted,
		Answers:    make(map[string]Answer, len(m.answers)),
		Results:    make(map[string]Result, len(m.results)),
		Scores:     make(map[string]float64, len(m.scores)),
		Queue:      append([]string(nil), m.queue...),
		QueuePos:   m.qpos,
		Generation: m.generation,
	}
	for k, v := range m.answers {
		st.Answers[k] = v
	}
	for k, v := range m.results {
		st.Results[k] = v
	}
	for k, v := range m.scores {
		st.Scores[k] = v
	}
	st.Aggregate, _ = m.aggregateLocked()
	return st
}

func (m *CaseMachine) find(questionID string) (Question, bool) {
	for _, q := range m.c.Questions {
		if q.ID == questionID {
			return q, true
		}
	}
	return Question{}, false
}

// skipRatedLocked advances the queue pointer past entries that already carry
// a verdict. Callers hold mu.
func (m *CaseMachine) skipRatedLocked() {
	for m.qpos < len(m.queue) {
		if r, ok := m.results[m.queue[m.qpos]]; !ok || !r.Defined() {
			return
		}
		m.qpos++
	}
}

func (m *CaseMachine) aggregateLocked() (Result, bool) {
	ordered := make([]Result, 0, len(m.c.Questions))
	for _, q := range m.c.Questions {
		ordered = append(ordered, m.results[q.ID])
	}
	return AggregateResult(ordered)
}

func (m *CaseMachine) updateFor(questionID string) Update {
	return Update{
		QuestionID:     questionID,
		Answer:         m.answers[questionID],
		Result:         m.results[questionID],
		Score:          m.scores[questionID],
		AwaitingRating: m.phase == CaseEvaluating && m.qpos < len(m.queue) && m.queue[m.qpos] == questionID,
		Generation:     m.generation,
	}
}
