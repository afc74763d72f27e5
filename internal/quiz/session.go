package quiz

import (
	"fmt"
	"sync"
	"time"

	"github.com/medrevise/medrevise/internal/scoring"
)

// Mode selects which questions a session serves and how.
type Mode string

const (
	// ModeAll walks every visible item of the lecture.
	ModeAll Mode = ""
	// ModePinned restricts the walk to pinned questions. A clinical case is
	// included whole as soon as one of its sub-questions is pinned.
	ModePinned Mode = "pinned"
	// ModeRevision shows every item pre-answered with the reference answer;
	// all answering operations are rejected.
	ModeRevision Mode = "revision"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeAll, ModePinned, ModeRevision:
		return Mode(s), nil
	}
	return ModeAll, fmt.Errorf("unknown session mode %q", s)
}

type slot struct {
	item Item
	qm   *Machine
	cm   *CaseMachine
}

// Session walks a learner through one lecture's items. It owns a machine per
// item and is the single writer of the aggregate answer/result bookkeeping;
// all methods serialize on mu.
type Session struct {
	mu sync.Mutex

	id        string
	userID    string
	lectureID string
	mode      Mode
	grader    scoring.Grader
	caseCfg   CaseConfig

	slots      []slot
	byQuestion map[string]int
	byCase     map[int]int

	index    int
	complete bool

	createdAt time.Time
	touchedAt time.Time
}

func NewSession(id, userID, lectureID string, items []Item, mode Mode, grader scoring.Grader, caseCfg CaseConfig) *Session {
	s := &Session{
		id:         id,
		userID:     userID,
		lectureID:  lectureID,
		mode:       mode,
		grader:     grader,
		caseCfg:    caseCfg,
		byQuestion: make(map[string]int),
		byCase:     make(map[int]int),
		createdAt:  time.Now(),
		touchedAt:  time.Now(),
	}
	for _, it := range items {
		idx := len(s.slots)
		sl := slot{item: it}
		switch {
		case it.Kind == KindQuestion && it.Question != nil:
			sl.qm = NewMachine(*it.Question, grader)
			s.byQuestion[it.Question.ID] = idx
		case it.Kind == KindCase && it.Case != nil:
			sl.cm = NewCaseMachine(*it.Case, caseCfg, grader)
			s.byCase[it.Case.Number] = idx
			for _, q := range it.Case.Questions {
				s.byQuestion[q.ID] = idx
			}
		default:
			// Malformed items are skipped rather than crashing the walk.
			continue
		}
		s.slots = append(s.slots, sl)
	}
	return s
}

func (s *Session) ID() string        { return s.id }
func (s *Session) UserID() string    { return s.userID }
func (s *Session) LectureID() string { return s.lectureID }
func (s *Session) Mode() Mode        { return s.mode }

func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

func (s *Session) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

func (s *Session) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// TouchedAt reports the last state-changing access, used to expire idle
// sessions.
func (s *Session) TouchedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchedAt
}

// Select jumps to an item by position.
func (s *Session) Select(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.slots) {
		return ErrNotFound
	}
	s.index = i
	s.touchedAt = time.Now()
	return nil
}

// Next advances one item. Advancing past a resolved final item finishes the
// session.
func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()
	if s.index < len(s.slots)-1 {
		s.index++
		return
	}
	if s.mode == ModeRevision || s.lastResolvedLocked() {
		s.complete = true
	}
}

func (s *Session) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchedAt = time.Now()
	if s.index > 0 {
		s.index--
	}
}

// ToggleOption edits the working selection of a standalone choice question.
func (s *Session) ToggleOption(questionID, optionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeRevision {
		return ErrRevisionMode
	}
	sl, err := s.slotFor(questionID)
	if err != nil {
		return err
	}
	if sl.qm == nil {
		return ErrCaseManaged
	}
	s.touchedAt = time.Now()
	return sl.qm.ToggleOption(optionID)
}

func (s *Session) ClearSelection(questionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeRevision {
		return ErrRevisionMode
	}
	sl, err := s.slotFor(questionID)
	if err != nil {
		return err
	}
	if sl.qm == nil {
		return ErrCaseManaged
	}
	s.touchedAt = time.Now()
	return sl.qm.ClearSelection()
}

// SubmitAnswer grades a standalone question. Case sub-questions go through
// RecordCaseAnswer and SubmitCase instead.
func (s *Session) SubmitAnswer(questionID string, a Answer) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeRevision {
		return Update{}, ErrRevisionMode
	}
	sl, err := s.slotFor(questionID)
	if err != nil {
		return Update{}, err
	}
	if sl.qm == nil {
		return Update{}, ErrCaseManaged
	}
	up, err := sl.qm.Submit(a)
	if err != nil {
		return Update{}, err
	}
	s.touchedAt = time.Now()
	s.completeIfExhaustedLocked()
	return up, nil
}

// SelfAssess records the learner's verdict: directly for a standalone open
// question, through the ordered queue for a case sub-question.
func (s *Session) SelfAssess(questionID string, rt Rating) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeRevision {
		return Update{}, ErrRevisionMode
	}
	sl, err := s.slotFor(questionID)
	if err != nil {
		return Update{}, err
	}
	var up Update
	if sl.qm != nil {
		up, err = sl.qm.SelfAssess(rt)
	} else {
		up, err = sl.cm.Rate(questionID, rt)
	}
	if err != nil {
		return Update{}, err
	}
	s.touchedAt = time.Now()
	s.completeIfExhaustedLocked()
	return up, nil
}

// ResubmitQuestion reopens a standalone question for another attempt.
func (s *Session) ResubmitQuestion(questionID string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeRevision {
		return 0, ErrRevisionMode
	}
	sl, err := s.slotFor(questionID)
	if err != nil {
		return 0, err
	}
	if sl.qm == nil {
		return 0, ErrCaseManaged
	}
	s.touchedAt = time.Now()
	s.complete = false
	return sl.qm.Resubmit(), nil
}

// RevealNext uncovers the next sub-question of a case.
func (s *Session) RevealNext(caseNum int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeRevision {
		return ErrRevisionMode
	}
	sl, err := s.caseSlot(caseNum)
	if err != nil {
		return err
	}
	s.touchedAt = time.Now()
	return sl.cm.RevealNext()
}

// RecordCaseAnswer stores one sub-question answer ahead of the group submit.
func (s *Session) RecordCaseAnswer(questionID string, a Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeRevision {
		return ErrRevisionMode
	}
	sl, err := s.slotFor(questionID)
	if err != nil {
		return err
	}
	if sl.cm == nil {
		return ErrNotInCase
	}
	s.touchedAt = time.Now()
	return sl.cm.RecordAnswer(questionID, a)
}

// SubmitCase locks in a case's answers as a group.
func (s *Session) SubmitCase(caseNum int) ([]Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeRevision {
		return nil, ErrRevisionMode
	}
	sl, err := s.caseSlot(caseNum)
	if err != nil {
		return nil, err
	}
	ups, err := sl.cm.SubmitGroup()
	if err != nil {
		return nil, err
	}
	s.touchedAt = time.Now()
	s.completeIfExhaustedLocked()
	return ups, nil
}

func (s *Session) ResubmitCase(caseNum int) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mode == ModeRevision {
		return 0, ErrRevisionMode
	}
	sl, err := s.caseSlot(caseNum)
	if err != nil {
		return 0, err
	}
	gen, err := sl.cm.ResubmitGroup()
	if err != nil {
		return 0, err
	}
	s.touchedAt = time.Now()
	s.complete = false
	return gen, nil
}

// Restart wipes every machine and rewinds to the first item. Generations
// keep counting up so writes captured before the restart stay droppable.
func (s *Session) Restart() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sl := range s.slots {
		if sl.qm != nil {
			sl.qm.Resubmit()
		} else if sl.cm != nil {
			sl.cm.restart()
		}
	}
	s.index = 0
	s.complete = false
	s.touchedAt = time.Now()
}

// GenerationOf reports the current attempt generation for a question, used
// to drop debounced writes that belong to a discarded attempt.
func (s *Session) GenerationOf(questionID string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, err := s.slotFor(questionID)
	if err != nil {
		return 0, false
	}
	if sl.qm != nil {
		return sl.qm.Generation(), true
	}
	return sl.cm.Generation(), true
}

func (s *Session) slotFor(questionID string) (slot, error) {
	i, ok := s.byQuestion[questionID]
	if !ok {
		return slot{}, ErrNotFound
	}
	return s.slots[i], nil
}

func (s *Session) caseSlot(caseNum int) (slot, error) {
	i, ok := s.byCase[caseNum]
	if !ok {
		return slot{}, ErrNotFound
	}
	return s.slots[i], nil
}

// completeIfExhaustedLocked flips the session to complete once the final
// item has a recorded outcome. Callers hold mu.
func (s *Session) completeIfExhaustedLocked() {
	if len(s.slots) == 0 {
		return
	}
	if s.index == len(s.slots)-1 && s.lastResolvedLocked() {
		s.complete = true
	}
}

func (s *Session) lastResolvedLocked() bool {
	if len(s.slots) == 0 {
		return true
	}
	sl := s.slots[len(s.slots)-1]
	if sl.qm != nil {
		return sl.qm.Phase() == PhaseLocked
	}
	return sl.cm.Phase() == CaseComplete
}

// --- item set builders ---

// VisibleItems drops hidden questions. A case survives as long as at least
// one sub-question remains.
func VisibleItems(items []Item, includeHidden bool) []Item {
	if includeHidden {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case KindQuestion:
			if !it.Question.Hidden {
				out = append(out, it)
			}
		case KindCase:
			c := *it.Case
			kept := make([]Question, 0, len(c.Questions))
			for _, q := range c.Questions {
				if !q.Hidden {
					kept = append(kept, q)
				}
			}
			if len(kept) == 0 {
				continue
			}
			c.Questions = kept
			out = append(out, CaseItem(c))
		}
	}
	return out
}

// PinnedItems keeps only pinned questions. A case is kept whole when any of
// its sub-questions is pinned.
func PinnedItems(items []Item, pinned map[string]bool) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		switch it.Kind {
		case KindQuestion:
			if pinned[it.Question.ID] {
				out = append(out, it)
			}
		case KindCase:
			for _, q := range it.Case.Questions {
				if pinned[q.ID] {
					out = append(out, it)
					break
				}
			}
		}
	}
	return out
}
