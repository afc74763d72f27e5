package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medrevise/medrevise/internal/auth"
	"github.com/medrevise/medrevise/internal/events"
	"github.com/medrevise/medrevise/internal/rbac"
	"github.com/medrevise/medrevise/internal/study"
)

// CommentsEnv backs the question and clinical-case comment routes; both
// thread families share one store and one handler set, parameterized by
// scope.
type CommentsEnv struct {
	Comments study.CommentStore
	Bus      *events.Bus
}

// commentSubject maps request fields onto the thread subject id for a
// scope. Cases are addressed by lecture and case number.
func commentSubject(scope, questionID, lectureID string, caseNum int) (string, error) {
	switch scope {
	case study.ScopeQuestion:
		if questionID == "" {
			return "", fmt.Errorf("questionId required")
		}
		return questionID, nil
	case study.ScopeCase:
		if lectureID == "" || caseNum <= 0 {
			return "", fmt.Errorf("lectureId and caseNum required")
		}
		return study.CaseKey(lectureID, caseNum), nil
	}
	return "", fmt.Errorf("unknown comment scope %q", scope)
}

func ListCommentsHandler(env CommentsEnv, scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		caseNum, _ := strconv.Atoi(q.Get("caseNum"))
		subject, err := commentSubject(scope, q.Get("questionId"), q.Get("lectureId"), caseNum)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		list, err := env.Comments.List(r.Context(), scope, subject)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if list == nil {
			list = []study.Comment{}
		}
		writeJSON(w, 200, list)
	}
}

func CreateCommentHandler(env CommentsEnv, scope string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, _ := auth.SubjectFromContext(r.Context())
		var req struct {
			QuestionID string   `json:"questionId"`
			LectureID  string   `json:"lectureId"`
			CaseNum    int      `json:"caseNum"`
			ParentID   string   `json:"parentId"`
			Anonymous  bool     `json:"anonymous"`
			Body       string   `json:"body"`
			ImageURLs  []string `json:"imageUrls"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		subject, err := commentSubject(scope, req.QuestionID, req.LectureID, req.CaseNum)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		c, err := env.Comments.Create(r.Context(), study.Comment{
			Scope:     scope,
			SubjectID: subject,
			ParentID:  req.ParentID,
			UserID:    sub,
			Anonymous: req.Anonymous,
			Body:      req.Body,
			ImageURLs: req.ImageURLs,
		})
		if err != nil {
			fail(w, err)
			return
		}
		env.Bus.Publish(events.Event{
			Type:   events.TypeCommentPosted,
			UserID: sub,
			Data:   events.CommentPosted{Scope: scope, SubjectID: subject, CommentID: c.ID},
		})
		writeJSON(w, 201, c)
	}
}

// UpdateCommentHandler lets the author rewrite body and images in place.
func UpdateCommentHandler(env CommentsEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, _ := auth.SubjectFromContext(r.Context())
		var req struct {
			Body      string   `json:"body"`
			ImageURLs []string `json:"imageUrls"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		c, err := env.Comments.Update(r.Context(), chi.URLParam(r, "commentID"), sub, req.Body, req.ImageURLs)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, 200, c)
	}
}

// DeleteCommentHandler removes a comment and its replies. Moderators may
// remove anyone's; authors only their own.
func DeleteCommentHandler(env CommentsEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, _ := auth.SubjectFromContext(r.Context())
		moderator := permChecker.Has(rbac.RoleFromContext(r.Context()), "comment:moderate")
		if err := env.Comments.Delete(r.Context(), chi.URLParam(r, "commentID"), sub, moderator); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(204)
	}
}
