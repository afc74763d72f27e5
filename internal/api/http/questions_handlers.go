package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medrevise/medrevise/internal/quiz"
	"github.com/medrevise/medrevise/internal/rbac"
)

func CreateQuestionHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var q quiz.Question
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if q.LectureID == "" {
			http.Error(w, "lecture_id required", 400)
			return
		}
		if err := store.PutQuestion(r.Context(), q); err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, 201, q)
	}
}

func GetQuestionHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := store.GetQuestion(r.Context(), chi.URLParam(r, "questionID"))
		if err != nil {
			fail(w, err)
			return
		}
		if !permChecker.Has(rbac.RoleFromContext(r.Context()), "question:manage") {
			q = quiz.SanitizeQuestion(q, false)
		}
		_ = json.NewEncoder(w).Encode(q)
	}
}

// UpdateQuestionHandler accepts either a bare {"hidden": bool} toggle or a
// full question payload, matching the original client's two uses of PUT.
func UpdateQuestionHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "questionID")
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if hiddenRaw, ok := raw["hidden"]; ok && len(raw) == 1 {
			var hidden bool
			if err := json.Unmarshal(hiddenRaw, &hidden); err != nil {
				http.Error(w, "hidden must be a boolean", 400)
				return
			}
			if err := store.SetQuestionHidden(r.Context(), id, hidden); err != nil {
				fail(w, err)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": id, "hidden": hidden})
			return
		}

		buf, err := json.Marshal(raw)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		var q quiz.Question
		if err := json.Unmarshal(buf, &q); err != nil {
			http.Error(w, "bad question payload", 400)
			return
		}
		q.ID = id
		if err := store.PutQuestion(r.Context(), q); err != nil {
			fail(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(q)
	}
}

func DeleteQuestionHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteQuestion(r.Context(), chi.URLParam(r, "questionID")); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(204)
	}
}

// ListQuestionsHandler returns a lecture's questions flat, in display order.
func ListQuestionsHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lectureID := r.URL.Query().Get("lectureId")
		if lectureID == "" {
			http.Error(w, "lectureId required", 400)
			return
		}
		items, err := store.LectureItems(r.Context(), lectureID)
		if err != nil {
			fail(w, err)
			return
		}
		manages := permChecker.Has(rbac.RoleFromContext(r.Context()), "question:manage")
		if !manages {
			items = quiz.VisibleItems(items, false)
		}
		out := []quiz.Question{}
		for _, it := range items {
			switch {
			case it.Kind == quiz.KindQuestion && it.Question != nil:
				out = append(out, quiz.SanitizeQuestion(*it.Question, manages))
			case it.Kind == quiz.KindCase && it.Case != nil:
				for _, q := range it.Case.Questions {
					out = append(out, quiz.SanitizeQuestion(q, manages))
				}
			}
		}
		_ = json.NewEncoder(w).Encode(out)
	}
}
