package quiz

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ContentStore is the durable home of the question bank. Both the in-memory
// store (tests, demos) and the SQL store implement it.
type ContentStore interface {
	PutLecture(ctx context.Context, lec Lecture) error
	GetLecture(ctx context.Context, id string) (Lecture, error)
	ListLectures(ctx context.Context) ([]Lecture, error)
	DeleteLecture(ctx context.Context, id string) error

	// LectureItems assembles the ordered item list: standalone questions
	// interleaved with clinical cases, hidden questions included.
	LectureItems(ctx context.Context, lectureID string) ([]Item, error)
	// ImportItems replaces a lecture's whole question bank in one shot.
	ImportItems(ctx context.Context, lectureID string, items []Item) error

	PutQuestion(ctx context.Context, q Question) error
	GetQuestion(ctx context.Context, id string) (Question, error)
	DeleteQuestion(ctx context.Context, id string) error
	SetQuestionHidden(ctx context.Context, id string, hidden bool) error
	PutCaseText(ctx context.Context, lectureID string, caseNum int, text string) error
}

// buildItems turns a lecture's flat question rows into the display list.
// Questions sharing a case number collapse into one case item placed where
// its first question sits.
func buildItems(questions []Question, caseText map[int]string) []Item {
	sorted := append([]Question(nil), questions...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Position != sorted[j].Position {
			return sorted[i].Position < sorted[j].Position
		}
		return sorted[i].ID < sorted[j].ID
	})

	var items []Item
	caseIdx := make(map[int]int)
	for _, q := range sorted {
		if q.CaseNum == 0 {
			items = append(items, QuestionItem(q))
			continue
		}
		if i, ok := caseIdx[q.CaseNum]; ok {
			items[i].Case.Questions = append(items[i].Case.Questions, q)
			continue
		}
		caseIdx[q.CaseNum] = len(items)
		items = append(items, CaseItem(ClinicalCase{
			Number:    q.CaseNum,
			Text:      caseText[q.CaseNum],
			Questions: []Question{q},
		}))
	}
	return items
}

// flattenItems is the inverse of buildItems: positions are assigned in
// display order and case numbers propagated onto sub-questions.
func flattenItems(lectureID string, items []Item) (questions []Question, caseText map[int]string, err error) {
	caseText = make(map[int]string)
	pos := 0
	for _, it := range items {
		switch {
		case it.Kind == KindQuestion && it.Question != nil:
			q := *it.Question
			q.LectureID = lectureID
			q.CaseNum = 0
			pos++
			q.Position = pos
			if q.ID == "" {
				return nil, nil, fmt.Errorf("question at position %d has no id", pos)
			}
			questions = append(questions, q)
		case it.Kind == KindCase && it.Case != nil:
			c := it.Case
			if c.Number <= 0 {
				return nil, nil, fmt.Errorf("case %q needs a positive number", c.Text)
			}
			caseText[c.Number] = c.Text
			for _, q := range c.Questions {
				q.LectureID = lectureID
				q.CaseNum = c.Number
				pos++
				q.Position = pos
				if q.ID == "" {
					return nil, nil, fmt.Errorf("question at position %d has no id", pos)
				}
				questions = append(questions, q)
			}
		default:
			return nil, nil, fmt.Errorf("malformed item at position %d", pos+1)
		}
	}
	return questions, caseText, nil
}

// MemoryContentStore keeps the bank in process. Good for tests and the demo
// seed; everything is copied on the way in and out.
type MemoryContentStore struct {
	mu        sync.RWMutex
	lectures  map[string]Lecture
	questions map[string]Question
	caseTexts map[string]map[int]string // lectureID -> caseNum -> text
}

func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{
		lectures:  make(map[string]Lecture),
		questions: make(map[string]Question),
		caseTexts: make(map[string]map[int]string),
	}
}

func (m *MemoryContentStore) PutLecture(_ context.Context, lec Lecture) error {
	if lec.ID == "" {
		return fmt.Errorf("lecture needs an id")
	}
	lec.Items = nil
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lectures[lec.ID] = lec
	if _, ok := m.caseTexts[lec.ID]; !ok {
		m.caseTexts[lec.ID] = make(map[int]string)
	}
	return nil
}

func (m *MemoryContentStore) GetLecture(_ context.Context, id string) (Lecture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lec, ok := m.lectures[id]
	if !ok {
		return Lecture{}, fmt.Errorf("lecture %s: %w", id, ErrNotFound)
	}
	return lec, nil
}

func (m *MemoryContentStore) ListLectures(_ context.Context) ([]Lecture, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Lecture, 0, len(m.lectures))
	for _, lec := range m.lectures {
		out = append(out, lec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Title < out[j].Title
	})
	return out, nil
}

func (m *MemoryContentStore) DeleteLecture(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lectures[id]; !ok {
		return fmt.Errorf("lecture %s: %w", id, ErrNotFound)
	}
	delete(m.lectures, id)
	delete(m.caseTexts, id)
	for qid, q := range m.questions {
		if q.LectureID == id {
			delete(m.questions, qid)
		}
	}
	return nil
}

func (m *MemoryContentStore) LectureItems(_ context.Context, lectureID string) ([]Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.lectures[lectureID]; !ok {
		return nil, fmt.Errorf("lecture %s: %w", lectureID, ErrNotFound)
	}
	var qs []Question
	for _, q := range m.questions {
		if q.LectureID == lectureID {
			qs = append(qs, q)
		}
	}
	return buildItems(qs, m.caseTexts[lectureID]), nil
}

func (m *MemoryContentStore) ImportItems(_ context.Context, lectureID string, items []Item) error {
	questions, caseText, err := flattenItems(lectureID, items)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lectures[lectureID]; !ok {
		return fmt.Errorf("lecture %s: %w", lectureID, ErrNotFound)
	}
	for qid, q := range m.questions {
		if q.LectureID == lectureID {
			delete(m.questions, qid)
		}
	}
	for _, q := range questions {
		m.questions[q.ID] = q
	}
	m.caseTexts[lectureID] = caseText
	return nil
}

func (m *MemoryContentStore) PutQuestion(_ context.Context, q Question) error {
	if q.ID == "" || q.LectureID == "" {
		return fmt.Errorf("question needs id and lecture_id")
	}
	if !q.Type.Valid() {
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lectures[q.LectureID]; !ok {
		return fmt.Errorf("lecture %s: %w", q.LectureID, ErrNotFound)
	}
	m.questions[q.ID] = q
	return nil
}

func (m *MemoryContentStore) GetQuestion(_ context.Context, id string) (Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.questions[id]
	if !ok {
		return Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return q, nil
}

func (m *MemoryContentStore) DeleteQuestion(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[id]; !ok {
		return fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	delete(m.questions, id)
	return nil
}

func (m *MemoryContentStore) SetQuestionHidden(_ context.Context, id string, hidden bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	q.Hidden = hidden
	m.questions[id] = q
	return nil
}

func (m *MemoryContentStore) PutCaseText(_ context.Context, lectureID string, caseNum int, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.lectures[lectureID]; !ok {
		return fmt.Errorf("lecture %s: %w", lectureID, ErrNotFound)
	}
	if m.caseTexts[lectureID] == nil {
		m.caseTexts[lectureID] = make(map[int]string)
	}
	m.caseTexts[lectureID][caseNum] = text
	return nil
}
