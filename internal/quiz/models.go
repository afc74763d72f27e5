package quiz

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type QuestionType string

const (
	TypeMCQ        QuestionType = "mcq"
	TypeQROC       QuestionType = "qroc"
	TypeClinicMCQ  QuestionType = "clinic_mcq"
	TypeClinicCROQ QuestionType = "clinic_croq"
)

// Open reports whether answers are free text and graded by self-assessment.
func (t QuestionType) Open() bool { return t == TypeQROC || t == TypeClinicCROQ }

// Clinic reports whether the type belongs inside a clinical case.
func (t QuestionType) Clinic() bool { return t == TypeClinicMCQ || t == TypeClinicCROQ }

func (t QuestionType) Valid() bool {
	switch t {
	case TypeMCQ, TypeQROC, TypeClinicMCQ, TypeClinicCROQ:
		return true
	}
	return false
}

type Option struct {
	ID          string `json:"id"`
	Text        string `json:"text"`
	Explanation string `json:"explanation,omitempty"`
}

type Question struct {
	ID         string       `json:"id"`
	LectureID  string       `json:"lecture_id,omitempty"`
	CaseNum    int          `json:"case_num,omitempty"` // 0 = standalone
	Position   int          `json:"position,omitempty"`
	Type       QuestionType `json:"type"`
	Text       string       `json:"text"`
	Options    []Option     `json:"options,omitempty"` // MCQ only, ordered
	CorrectIDs []string     `json:"correct_ids,omitempty"`
	// Explanation is the course reminder shown once the question is graded.
	Explanation string `json:"explanation,omitempty"`
	MediaURL    string `json:"media_url,omitempty"`
	Hidden      bool   `json:"hidden,omitempty"`
}

type ClinicalCase struct {
	Number    int        `json:"number"`
	Text      string     `json:"text"`
	Questions []Question `json:"questions"`
}

// TotalQuestions is derived, never stored.
func (c ClinicalCase) TotalQuestions() int { return len(c.Questions) }

type ItemKind string

const (
	KindQuestion ItemKind = "question"
	KindCase     ItemKind = "case"
)

// Item is the discriminated union the session list is made of. Exactly one
// of Question/Case is set, selected by Kind.
type Item struct {
	Kind     ItemKind      `json:"kind"`
	Question *Question     `json:"question,omitempty"`
	Case     *ClinicalCase `json:"case,omitempty"`
}

func QuestionItem(q Question) Item { return Item{Kind: KindQuestion, Question: &q} }
func CaseItem(c ClinicalCase) Item { return Item{Kind: KindCase, Case: &c} }

// QuestionIDs returns the leaf question IDs of the item in display order.
func (it Item) QuestionIDs() []string {
	switch it.Kind {
	case KindQuestion:
		if it.Question == nil {
			return nil
		}
		return []string{it.Question.ID}
	case KindCase:
		if it.Case == nil {
			return nil
		}
		ids := make([]string, 0, len(it.Case.Questions))
		for _, q := range it.Case.Questions {
			ids = append(ids, q.ID)
		}
		return ids
	}
	return nil
}

type Lecture struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subject  string `json:"subject,omitempty"`
	Position int    `json:"position,omitempty"`
	Items    []Item `json:"items,omitempty"`
}

// QuestionCount sums leaf questions over the item list, case sub-questions
// included.
func (l Lecture) QuestionCount() int {
	n := 0
	for _, it := range l.Items {
		n += len(it.QuestionIDs())
	}
	return n
}

// Result is the qualitative outcome of one question. The wire format keeps
// the original contract: true, false, or the string "partial".
type Result uint8

const (
	ResultNone Result = iota // nothing recorded yet
	ResultCorrect
	ResultPartial
	ResultIncorrect
)

func (r Result) Defined() bool { return r != ResultNone }

func (r Result) String() string {
	switch r {
	case ResultCorrect:
		return "correct"
	case ResultPartial:
		return "partial"
	case ResultIncorrect:
		return "incorrect"
	}
	return "none"
}

func (r Result) MarshalJSON() ([]byte, error) {
	switch r {
	case ResultCorrect:
		return []byte("true"), nil
	case ResultIncorrect:
		return []byte("false"), nil
	case ResultPartial:
		return []byte(`"partial"`), nil
	}
	return []byte("null"), nil
}

func (r *Result) UnmarshalJSON(b []byte) error {
	switch string(bytes.TrimSpace(b)) {
	case "true":
		*r = ResultCorrect
	case "false":
		*r = ResultIncorrect
	case `"partial"`:
		*r = ResultPartial
	case "null":
		*r = ResultNone
	default:
		return fmt.Errorf("invalid result %s", b)
	}
	return nil
}

// Rating is the learner's self-assessment of an open answer.
type Rating string

const (
	RatingCorrect Rating = "correct"
	RatingPartial Rating = "partial"
	RatingWrong   Rating = "wrong"
)

var errBadRating = errors.New("rating must be correct, partial or wrong")

func (rt Rating) Result() (Result, error) {
	switch rt {
	case RatingCorrect:
		return ResultCorrect, nil
	case RatingPartial:
		return ResultPartial, nil
	case RatingWrong:
		return ResultIncorrect, nil
	}
	return ResultNone, errBadRating
}

// Answer is a learner's input for one question: selected option IDs for MCQ,
// free text for open questions. MCQ answers travel as a JSON array, open
// answers as a JSON string; both shapes are accepted on decode.
type Answer struct {
	Selected []string
	Text     string
	IsText   bool
}

func SelectAnswer(ids ...string) Answer { return Answer{Selected: ids} }
func TextAnswer(s string) Answer        { return Answer{Text: s, IsText: true} }

// Empty means "unanswered" for progress purposes: no option picked, or no
// text entered.
func (a Answer) Empty() bool {
	if a.IsText {
		return a.Text == ""
	}
	return len(a.Selected) == 0
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if a.IsText {
		return json.Marshal(a.Text)
	}
	if a.Selected == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a.Selected)
}

func (a *Answer) UnmarshalJSON(b []byte) error {
	t := bytes.TrimSpace(b)
	if len(t) == 0 || string(t) == "null" {
		*a = Answer{}
		return nil
	}
	switch t[0] {
	case '[':
		a.IsText = false
		a.Text = ""
		return json.Unmarshal(t, &a.Selected)
	case '"':
		a.IsText = true
		a.Selected = nil
		return json.Unmarshal(t, &a.Text)
	}
	return fmt.Errorf("answer must be an array or a string, got %s", t)
}

// AggregateResult derives the case-level badge from sub-results, counting
// defined entries only: correct iff every defined sub-result is correct,
// partial if any defined sub-result is correct or partial, otherwise
// incorrect. ok is false when nothing is defined yet.
func AggregateResult(results []Result) (agg Result, ok bool) {
	defined := 0
	allCorrect := true
	anyCredit := false
	for _, r := range results {
		if !r.Defined() {
			continue
		}
		defined++
		if r != ResultCorrect {
			allCorrect = false
		}
		if r == ResultCorrect || r == ResultPartial {
			anyCredit = true
		}
	}
	if defined == 0 {
		return ResultNone, false
	}
	switch {
	case allCorrect:
		return ResultCorrect, true
	case anyCredit:
		return ResultPartial, true
	}
	return ResultIncorrect, true
}
