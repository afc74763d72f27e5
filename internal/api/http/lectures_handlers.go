package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medrevise/medrevise/internal/events"
	"github.com/medrevise/medrevise/internal/quiz"
	"github.com/medrevise/medrevise/internal/rbac"
)

func ListLecturesHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lecs, err := store.ListLectures(r.Context())
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if lecs == nil {
			lecs = []quiz.Lecture{}
		}
		_ = json.NewEncoder(w).Encode(lecs)
	}
}

func GetLectureHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lec, err := store.GetLecture(r.Context(), chi.URLParam(r, "lectureID"))
		if err != nil {
			fail(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(lec)
	}
}

func PutLectureHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var lec quiz.Lecture
		if err := json.NewDecoder(r.Body).Decode(&lec); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if id := chi.URLParam(r, "lectureID"); id != "" {
			lec.ID = id
		}
		if lec.ID == "" {
			lec.ID = uuid.NewString()
		}
		if lec.Title == "" {
			http.Error(w, "title required", 400)
			return
		}
		if err := store.PutLecture(r.Context(), lec); err != nil {
			fail(w, err)
			return
		}
		_ = json.NewEncoder(w).Encode(lec)
	}
}

func DeleteLectureHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.DeleteLecture(r.Context(), chi.URLParam(r, "lectureID")); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(204)
	}
}

// LectureItemsHandler returns the ordered item list. Answer keys and hidden
// questions are only visible to roles that manage the bank; includeHidden is
// ignored for everyone else.
func LectureItemsHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := store.LectureItems(r.Context(), chi.URLParam(r, "lectureID"))
		if err != nil {
			fail(w, err)
			return
		}
		manages := permChecker.Has(rbac.RoleFromContext(r.Context()), "question:manage")
		includeHidden := manages && r.URL.Query().Get("includeHidden") == "1"
		items = quiz.VisibleItems(items, includeHidden)
		if !manages {
			items = redactItems(items)
		}
		if items == nil {
			items = []quiz.Item{}
		}
		_ = json.NewEncoder(w).Encode(items)
	}
}

// redactItems strips answer keys for learner-facing reads.
func redactItems(items []quiz.Item) []quiz.Item {
	out := make([]quiz.Item, 0, len(items))
	for _, it := range items {
		switch {
		case it.Kind == quiz.KindQuestion && it.Question != nil:
			q := quiz.SanitizeQuestion(*it.Question, false)
			out = append(out, quiz.QuestionItem(q))
		case it.Kind == quiz.KindCase && it.Case != nil:
			c := *it.Case
			qs := make([]quiz.Question, len(c.Questions))
			for i, q := range c.Questions {
				qs[i] = quiz.SanitizeQuestion(q, false)
			}
			c.Questions = qs
			out = append(out, quiz.CaseItem(c))
		}
	}
	return out
}

// ImportLectureHandler replaces a lecture's question bank from a JSON bank
// payload: a Lecture with its items populated, answer keys included. A
// payload with title metadata creates or updates the lecture row; one
// without must name an existing lecture.
func ImportLectureHandler(store quiz.ContentStore, bus *events.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var bank quiz.Lecture
		if err := json.NewDecoder(r.Body).Decode(&bank); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if bank.ID == "" {
			bank.ID = uuid.NewString()
		}
		if bank.Title != "" {
			if err := store.PutLecture(r.Context(), bank); err != nil {
				fail(w, err)
				return
			}
		} else if _, err := store.GetLecture(r.Context(), bank.ID); err != nil {
			fail(w, err)
			return
		}
		if err := store.ImportItems(r.Context(), bank.ID, bank.Items); err != nil {
			fail(w, err)
			return
		}
		bus.Publish(events.Event{
			Type: events.TypeLectureImported,
			Data: events.LectureImported{LectureID: bank.ID, Questions: bank.QuestionCount()},
		})
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"lecture_id": bank.ID, "questions": bank.QuestionCount()})
	}
}

// ExportLectureHandler dumps the full bank, keys included. Managers only.
func ExportLectureHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lec, err := store.GetLecture(r.Context(), chi.URLParam(r, "lectureID"))
		if err != nil {
			fail(w, err)
			return
		}
		items, err := store.LectureItems(r.Context(), lec.ID)
		if err != nil {
			fail(w, err)
			return
		}
		if items == nil {
			items = []quiz.Item{}
		}
		lec.Items = items
		_ = json.NewEncoder(w).Encode(lec)
	}
}

func PutCaseTextHandler(store quiz.ContentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caseNum, err := intParam(r, "caseNum")
		if err != nil {
			http.Error(w, "bad case number", 400)
			return
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := store.PutCaseText(r.Context(), chi.URLParam(r, "lectureID"), caseNum, req.Text); err != nil {
			fail(w, err)
			return
		}
		w.WriteHeader(204)
	}
}
