package quiz

// Views are the wire-facing projection of a session. They carry exactly what
// a client may see: answer keys and explanations stay redacted until the
// question's outcome is on record (or the session runs in revision mode).

type SessionView struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	LectureID string     `json:"lecture_id"`
	Mode      Mode       `json:"mode"`
	Index     int        `json:"index"`
	Complete  bool       `json:"complete"`
	Answered  int        `json:"answered"`
	Total     int        `json:"total"`
	Items     []ItemView `json:"items"`
}

type ItemView struct {
	Kind     ItemKind      `json:"kind"`
	Question *QuestionView `json:"question,omitempty"`
	Case     *CaseView     `json:"case,omitempty"`
}

type QuestionView struct {
	Question   Question `json:"question"`
	Phase      Phase    `json:"phase"`
	Answer     *Answer  `json:"answer,omitempty"`
	Result     Result   `json:"result"`
	Score      *float64 `json:"score,omitempty"`
	Generation uint64   `json:"generation"`
}

type CaseView struct {
	Number            int            `json:"number"`
	Text              string         `json:"text"`
	Phase             CasePhase      `json:"phase"`
	Revealed          int            `json:"revealed"`
	Total             int            `json:"total"`
	Questions         []QuestionView `json:"questions"`
	CurrentEvaluation string         `json:"current_evaluation,omitempty"`
	Aggregate         Result         `json:"aggregate"`
	Generation        uint64         `json:"generation"`
}

// View projects the session for the client.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := SessionView{
		ID:        s.id,
		UserID:    s.userID,
		LectureID: s.lectureID,
		Mode:      s.mode,
		Index:     s.index,
		Complete:  s.complete,
		Items:     make([]ItemView, 0, len(s.slots)),
	}
	for _, sl := range s.slots {
		switch {
		case sl.qm != nil:
			qv := s.questionView(sl.qm)
			v.Total++
			if qv.Phase != PhaseUnanswered {
				v.Answered++
			}
			v.Items = append(v.Items, ItemView{Kind: KindQuestion, Question: &qv})
		case sl.cm != nil:
			cv, answered, total := s.caseView(sl.cm)
			v.Total += total
			v.Answered += answered
			v.Items = append(v.Items, ItemView{Kind: KindCase, Case: &cv})
		}
	}
	return v
}

func (s *Session) questionView(m *Machine) QuestionView {
	st := m.Snapshot()
	if s.mode == ModeRevision {
		return referenceView(m.q)
	}
	reveal := st.Phase == PhaseLocked
	qv := QuestionView{
		Question:   SanitizeQuestion(m.q, reveal),
		Phase:      st.Phase,
		Result:     st.Result,
		Generation: st.Generation,
	}
	if st.Phase != PhaseUnanswered {
		a := st.Answer
		qv.Answer = &a
	}
	if st.Result.Defined() {
		sc := st.Score
		qv.Score = &sc
	}
	return qv
}

func (s *Session) caseView(m *CaseMachine) (CaseView, int, int) {
	c := m.c
	st := m.Snapshot()
	cv := CaseView{
		Number:     c.Number,
		Text:       c.Text,
		Phase:      st.Phase,
		Revealed:   st.Revealed,
		Total:      st.Total,
		Generation: st.Generation,
	}
	if s.mode == ModeRevision {
		cv.Phase = CaseComplete
		cv.Revealed = st.Total
		for _, q := range c.Questions {
			cv.Questions = append(cv.Questions, referenceView(q))
		}
		cv.Aggregate = ResultCorrect
		return cv, st.Total, st.Total
	}

	answered := 0
	for i, q := range c.Questions {
		if i >= st.Revealed {
			break
		}
		qv := QuestionView{
			Question:   SanitizeQuestion(q, st.Submitted),
			Phase:      PhaseUnanswered,
			Generation: st.Generation,
		}
		if a, ok := st.Answers[q.ID]; ok {
			answered++
			ac := a
			qv.Answer = &ac
		}
		// Sub-question verdicts surface only once the group is in.
		if st.Submitted {
			if r, ok := st.Results[q.ID]; ok && r.Defined() {
				qv.Result = r
				qv.Phase = PhaseLocked
				sc := st.Scores[q.ID]
				qv.Score = &sc
			} else if q.Type.Open() {
				qv.Phase = PhaseAwaitingRating
			} else {
				qv.Phase = PhaseLocked
			}
		}
		cv.Questions = append(cv.Questions, qv)
	}
	if cur, ok := st.currentEvaluation(); ok {
		cv.CurrentEvaluation = cur
	}
	cv.Aggregate = ResultNone
	if st.Submitted {
		cv.Aggregate = st.Aggregate
	}
	return cv, answered, st.Total
}

func (st CaseState) currentEvaluation() (string, bool) {
	if st.Phase != CaseEvaluating || st.QueuePos >= len(st.Queue) {
		return "", false
	}
	return st.Queue[st.QueuePos], true
}

// SanitizeQuestion strips answer keys and explanations until they may be
// shown.
func SanitizeQuestion(q Question, reveal bool) Question {
	if reveal {
		return q
	}
	q.CorrectIDs = nil
	q.Explanation = ""
	if len(q.Options) > 0 {
		opts := make([]Option, len(q.Options))
		for i, o := range q.Options {
			o.Explanation = ""
			opts[i] = o
		}
		q.Options = opts
	}
	return q
}

// referenceView renders a question as revision mode shows it: fully
// revealed, pre-answered with the reference answer, marked correct.
func referenceView(q Question) QuestionView {
	qv := QuestionView{
		Question: q,
		Phase:    PhaseLocked,
		Result:   ResultCorrect,
	}
	if !q.Type.Open() {
		a := SelectAnswer(q.CorrectIDs...)
		qv.Answer = &a
	}
	one := 1.0
	qv.Score = &one
	return qv
}
