package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/medrevise/medrevise/internal/auth"
	"github.com/medrevise/medrevise/internal/debounce"
	"github.com/medrevise/medrevise/internal/events"
	"github.com/medrevise/medrevise/internal/highlight"
	"github.com/medrevise/medrevise/internal/logger"
	"github.com/medrevise/medrevise/internal/quiz"
	"github.com/medrevise/medrevise/internal/rbac"
	"github.com/medrevise/medrevise/internal/study"
)

// StudyEnv bundles the per-user stores behind the annotation, pin, stats
// and activity routes.
type StudyEnv struct {
	States   study.StateStore
	Pins     study.PinStore
	Stats    study.StatsStore
	Activity study.ActivityLog
	Registry *quiz.Registry
	Saves    *debounce.Group
	Bus      *events.Bus
}

// actingUser resolves which user a route operates on. Callers name the
// target explicitly so admin tooling can repair other accounts; everyone
// else is confined to their own.
func actingUser(w http.ResponseWriter, r *http.Request, requested string) (string, bool) {
	sub, _ := auth.SubjectFromContext(r.Context())
	if requested == "" || requested == sub {
		return sub, true
	}
	if permChecker.Has(rbac.RoleFromContext(r.Context()), "state:manage") {
		return requested, true
	}
	http.Error(w, "forbidden", 403)
	return "", false
}

type stateSaveRequest struct {
	UserID            string            `json:"userId"`
	QuestionID        string            `json:"questionId"`
	IncrementAttempts bool              `json:"incrementAttempts"`
	LastScore         *float64          `json:"lastScore"`
	LastResult        *quiz.Result      `json:"lastResult"`
	Notes             *string           `json:"notes"`
	Highlights        []highlight.Range `json:"highlights"`
	SessionID         string            `json:"sessionId"`
	Generation        *uint64           `json:"generation"`
}

func stateKey(userID, questionID string) string { return userID + "|" + questionID }

// SaveStateHandler upserts one user/question state row. Pure annotation
// writes (notes, highlights) are debounced so a highlight drag does not
// hammer the store; anything touching attempts or results lands
// immediately. A debounced write carrying a session generation is dropped
// at flush time if the question has since been resubmitted.
func SaveStateHandler(env StudyEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req stateSaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "questionId required", 400)
			return
		}
		userID, ok := actingUser(w, r, req.UserID)
		if !ok {
			return
		}
		upd := study.StateUpdate{
			IncrementAttempts: req.IncrementAttempts,
			LastScore:         req.LastScore,
			LastResult:        req.LastResult,
			Notes:             req.Notes,
			Highlights:        req.Highlights,
		}
		annotationOnly := !req.IncrementAttempts && req.LastScore == nil && req.LastResult == nil
		if annotationOnly && env.Saves != nil {
			questionID := req.QuestionID
			sessionID, gen := req.SessionID, req.Generation
			env.Saves.Call(stateKey(userID, questionID), func() {
				if sessionID != "" && gen != nil {
					if s, live := env.Registry.Get(sessionID); live {
						if cur, known := s.GenerationOf(questionID); known && cur != *gen {
							return
						}
					}
				}
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if _, err := env.States.Apply(ctx, userID, questionID, upd); err != nil {
					logger.Warnf("state save %s: %v", stateKey(userID, questionID), err)
				}
			})
			writeJSON(w, 202, map[string]bool{"queued": true})
			return
		}
		st, err := env.States.Apply(r.Context(), userID, req.QuestionID, upd)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, 200, st)
	}
}

// GetStateHandler reads one state row (?questionId=) or every row the user
// has in a lecture (?lectureId=). Pending debounced writes are flushed
// first so a save followed by a reload reads its own write.
func GetStateHandler(env StudyEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID, ok := actingUser(w, r, q.Get("userId"))
		if !ok {
			return
		}
		if questionID := q.Get("questionId"); questionID != "" {
			if env.Saves != nil {
				env.Saves.FlushKey(stateKey(userID, questionID))
			}
			st, err := env.States.Get(r.Context(), userID, questionID)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			writeJSON(w, 200, st)
			return
		}
		if lectureID := q.Get("lectureId"); lectureID != "" {
			if env.Saves != nil {
				env.Saves.Flush()
			}
			states, err := env.States.ForLecture(r.Context(), userID, lectureID)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			if states == nil {
				states = map[string]study.QuestionState{}
			}
			writeJSON(w, 200, states)
			return
		}
		http.Error(w, "questionId or lectureId required", 400)
	}
}

// ListPinsHandler returns pinned question ids, optionally restricted to one
// lecture.
func ListPinsHandler(env StudyEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		userID, ok := actingUser(w, r, q.Get("userId"))
		if !ok {
			return
		}
		if lectureID := q.Get("lectureId"); lectureID != "" {
			pinned, err := env.Pins.ForLecture(r.Context(), userID, lectureID)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			ids := make([]string, 0, len(pinned))
			for id := range pinned {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			writeJSON(w, 200, ids)
			return
		}
		ids, err := env.Pins.ListForUser(r.Context(), userID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, 200, ids)
	}
}

func PinHandler(env StudyEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			UserID     string `json:"userId"`
			QuestionID string `json:"questionId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "questionId required", 400)
			return
		}
		userID, ok := actingUser(w, r, req.UserID)
		if !ok {
			return
		}
		if err := env.Pins.Pin(r.Context(), userID, req.QuestionID); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		env.publishPin(userID, req.QuestionID, true)
		writeJSON(w, 200, map[string]interface{}{"questionId": req.QuestionID, "pinned": true})
	}
}

func UnpinHandler(env StudyEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		questionID := q.Get("questionId")
		if questionID == "" {
			http.Error(w, "questionId required", 400)
			return
		}
		userID, ok := actingUser(w, r, q.Get("userId"))
		if !ok {
			return
		}
		if err := env.Pins.Unpin(r.Context(), userID, questionID); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		env.publishPin(userID, questionID, false)
		writeJSON(w, 200, map[string]interface{}{"questionId": questionID, "pinned": false})
	}
}

func (env StudyEnv) publishPin(userID, questionID string, pinned bool) {
	env.Bus.Publish(events.Event{
		Type:   events.TypePinToggled,
		UserID: userID,
		Data:   events.PinToggled{QuestionID: questionID, Pinned: pinned},
	})
}

// RecordOptionStatsHandler ingests one submission's picked options into the
// anonymous aggregate. Session submits already feed the aggregate on the
// server; this route exists for clients that grade locally.
func RecordOptionStatsHandler(env StudyEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuestionID string   `json:"questionId"`
			Selected   []string `json:"selectedOptionIds"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "questionId required", 400)
			return
		}
		if err := env.Stats.RecordSubmission(r.Context(), req.QuestionID, req.Selected); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.WriteHeader(204)
	}
}

func GetOptionStatsHandler(env StudyEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		questionID := r.URL.Query().Get("questionId")
		if questionID == "" {
			http.Error(w, "questionId required", 400)
			return
		}
		stats, err := env.Stats.Get(r.Context(), questionID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, 200, stats)
	}
}

// LogActivityHandler appends a client-side event to the user's feed.
// Server-side submits log themselves; this covers actions only the client
// sees, like opening a lecture.
func LogActivityHandler(env StudyEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, _ := auth.SubjectFromContext(r.Context())
		var req struct {
			Type string          `json:"type"`
			Key  string          `json:"key"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.Type == "" {
			http.Error(w, "type required", 400)
			return
		}
		var data interface{}
		if len(req.Data) > 0 {
			data = req.Data
		}
		if err := env.Activity.Append(r.Context(), sub, req.Type, req.Key, data); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.WriteHeader(202)
	}
}

func RecentActivityHandler(env StudyEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := actingUser(w, r, r.URL.Query().Get("userId"))
		if !ok {
			return
		}
		limit := 50
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				http.Error(w, "bad limit", 400)
				return
			}
			limit = n
		}
		if limit > 500 {
			limit = 500
		}
		entries, err := env.Activity.Recent(r.Context(), userID, limit)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if entries == nil {
			entries = []study.Activity{}
		}
		writeJSON(w, 200, entries)
	}
}
