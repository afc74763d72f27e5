// Package study persists everything a learner accumulates around the
// question bank: per-question state, pins, option pick statistics,
// comment threads and the activity feed.
package study

import (
	"context"
	"fmt"

	"github.com/medrevise/medrevise/internal/highlight"
	"github.com/medrevise/medrevise/internal/quiz"
)

// QuestionState is the durable residue of working on one question. Absent
// rows read back as the zero state.
type QuestionState struct {
	UserID     string            `json:"user_id"`
	QuestionID string            `json:"question_id"`
	Attempts   int               `json:"attempts"`
	LastScore  *float64          `json:"last_score,omitempty"`
	LastResult quiz.Result       `json:"last_result"`
	Notes      string            `json:"notes,omitempty"`
	Highlights []highlight.Range `json:"highlights,omitempty"`
	UpdatedAt  int64             `json:"updated_at"`
}

// StateUpdate is a partial write; nil fields keep the stored value. A
// non-nil empty Highlights slice clears the set.
type StateUpdate struct {
	IncrementAttempts bool
	LastScore         *float64
	LastResult        *quiz.Result
	Notes             *string
	Highlights        []highlight.Range
}

type StateStore interface {
	Get(ctx context.Context, userID, questionID string) (QuestionState, error)
	Apply(ctx context.Context, userID, questionID string, up StateUpdate) (QuestionState, error)
	// ForLecture returns the user's states keyed by question id for every
	// question of the lecture that has one.
	ForLecture(ctx context.Context, userID, lectureID string) (map[string]QuestionState, error)
}

type PinStore interface {
	Pin(ctx context.Context, userID, questionID string) error
	Unpin(ctx context.Context, userID, questionID string) error
	IsPinned(ctx context.Context, userID, questionID string) (bool, error)
	ListForUser(ctx context.Context, userID string) ([]string, error)
	// ForLecture returns the pinned set restricted to one lecture.
	ForLecture(ctx context.Context, userID, lectureID string) (map[string]bool, error)
}

type OptionCount struct {
	OptionID string `json:"option_id"`
	Picks    int64  `json:"picks"`
}

// QuestionStats answers "how did everyone else vote": total submissions and
// per-option pick counts.
type QuestionStats struct {
	QuestionID  string        `json:"question_id"`
	Submissions int64         `json:"submissions"`
	Options     []OptionCount `json:"options"`
}

type StatsStore interface {
	RecordSubmission(ctx context.Context, questionID string, selected []string) error
	Get(ctx context.Context, questionID string) (QuestionStats, error)
}

const (
	ScopeQuestion = "question"
	ScopeCase     = "case"
)

// CaseKey is the comment subject id for a clinical case.
func CaseKey(lectureID string, caseNum int) string {
	return fmt.Sprintf("%s#%d", lectureID, caseNum)
}

type Comment struct {
	ID        string   `json:"id"`
	Scope     string   `json:"scope"`
	SubjectID string   `json:"subject_id"`
	ParentID  string   `json:"parent_id,omitempty"`
	UserID    string   `json:"user_id,omitempty"`
	Author    string   `json:"author,omitempty"`
	Anonymous bool     `json:"anonymous"`
	Body      string   `json:"body"`
	ImageURLs []string `json:"image_urls,omitempty"`
	CreatedAt int64    `json:"created_at"`
}

type CommentStore interface {
	Create(ctx context.Context, c Comment) (Comment, error)
	// List returns the thread flat, oldest first; replies reference their
	// parent by id.
	List(ctx context.Context, scope, subjectID string) ([]Comment, error)
	// Update rewrites body and images; author only.
	Update(ctx context.Context, id, requesterID, body string, imageURLs []string) (Comment, error)
	// Delete removes a comment when the requester owns it or moderates.
	Delete(ctx context.Context, id, requesterID string, moderator bool) error
}

type Activity struct {
	Seq       int64  `json:"seq"`
	UserID    string `json:"user_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

type ActivityLog interface {
	Append(ctx context.Context, userID, typ, key string, data interface{}) error
	Recent(ctx context.Context, userID string, limit int) ([]Activity, error)
}
