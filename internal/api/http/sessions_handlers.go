package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/medrevise/medrevise/internal/auth"
	"github.com/medrevise/medrevise/internal/events"
	"github.com/medrevise/medrevise/internal/logger"
	"github.com/medrevise/medrevise/internal/quiz"
	"github.com/medrevise/medrevise/internal/rbac"
	"github.com/medrevise/medrevise/internal/scoring"
	"github.com/medrevise/medrevise/internal/study"
)

// Activity event types, mirroring the labels the original clients logged.
const (
	activityQuestion = "question_attempt"
	activityQROC     = "qroc_attempt"
	activityCase     = "clinical_case_attempt"
	activityOpen     = "open_question_attempt"
)

// SessionEnv bundles what the session routes need. Answer submission fans
// out into stats, per-question state, the activity feed and the event bus;
// those side writes are best-effort and never fail the request.
type SessionEnv struct {
	Registry *quiz.Registry
	Content  quiz.ContentStore
	Pins     study.PinStore
	States   study.StateStore
	Stats    study.StatsStore
	Activity study.ActivityLog
	Bus      *events.Bus
	Grader   scoring.Grader
	CaseCfg  quiz.CaseConfig
}

func CreateSessionHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, _ := auth.SubjectFromContext(r.Context())
		var req struct {
			LectureID string `json:"lectureId"`
			Mode      string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.LectureID == "" {
			http.Error(w, "lectureId required", 400)
			return
		}
		mode, err := quiz.ParseMode(req.Mode)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		items, err := env.Content.LectureItems(r.Context(), req.LectureID)
		if err != nil {
			fail(w, err)
			return
		}
		items = quiz.VisibleItems(items, false)
		if mode == quiz.ModePinned {
			pinned, err := env.Pins.ForLecture(r.Context(), sub, req.LectureID)
			if err != nil {
				http.Error(w, err.Error(), 500)
				return
			}
			items = quiz.PinnedItems(items, pinned)
		}
		s := quiz.NewSession(uuid.NewString(), sub, req.LectureID, items, mode, env.Grader, env.CaseCfg)
		env.Registry.Put(s)
		writeJSON(w, 201, s.View())
	}
}

func GetSessionHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := env.session(w, r)
		if !ok {
			return
		}
		writeJSON(w, 200, s.View())
	}
}

func DeleteSessionHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := env.session(w, r)
		if !ok {
			return
		}
		env.Registry.Delete(s.ID())
		w.WriteHeader(204)
	}
}

// NavigateSessionHandler moves the cursor: {"index": n} jumps, {"to":
// "next"|"previous"} steps.
func NavigateSessionHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := env.session(w, r)
		if !ok {
			return
		}
		var req struct {
			Index *int   `json:"index"`
			To    string `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		wasComplete := s.Complete()
		switch {
		case req.Index != nil:
			if err := s.Select(*req.Index); err != nil {
				fail(w, err)
				return
			}
		case req.To == "next":
			s.Next()
		case req.To == "previous":
			s.Previous()
		default:
			http.Error(w, `need "index" or "to"`, 400)
			return
		}
		env.maybeComplete(s, wasComplete)
		writeJSON(w, 200, s.View())
	}
}

func RestartSessionHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := env.session(w, r)
		if !ok {
			return
		}
		s.Restart()
		writeJSON(w, 200, s.View())
	}
}

func ToggleOptionHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := env.session(w, r)
		if !ok {
			return
		}
		var req struct {
			OptionID string `json:"optionId"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := s.ToggleOption(chi.URLParam(r, "questionID"), req.OptionID); err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, 200, s.View())
	}
}

func ClearSelectionHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := env.session(w, r)
		if !ok {
			return
		}
		if err := s.ClearSelection(chi.URLParam(r, "questionID")); err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, 200, s.View())
	}
}

// SubmitQuestionHandler grades a standalone question. An absent answer falls
// back to the working selection built up by toggle calls.
func SubmitQuestionHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := env.session(w, r)
		if !ok {
			return
		}
		questionID := chi.URLParam(r, "questionID")
		var req struct {
			Answer quiz.Answer `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		wasComplete := s.Complete()
		up, err := s.SubmitAnswer(questionID, req.Answer)
		if err != nil {
			fail(w, err)
			return
		}
		env.recordStats(r.Context(), up)
		env.persistOutcome(r.Context(), s, up, true)
		if up.Answer.IsText {
			env.logActivity(r.Context(), s.UserID(), activityQROC, questionID)
		} else {
			env.logActivity(r.Context(), s.UserID(), activityQuestion, questionID)
		}
		env.publishResult(s, up)
		env.maybeComplete(s, wasComplete)
		writeJSON(w, 200, s.View())
	}
}

// AssessQuestionHandler records the learner's verdict on an open answer,
// standalone or queued inside a case.
func AssessQuestionHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := env.session(w, r)
		if !ok {
			return
		}
		questionID := chi.URLParam(r, "questionID")
		rt, ok2 := decodeRating(w, r)
		if !ok2 {
			return
		}
		wasComplete := s.Complete()
		up, err := s.SelfAssess(questionID, rt)
		if err != nil {
			fail(w, err)
			return
		}
		env.persistOutcome(r.Context(), s, up, false)
		env.publishResult(s, up)
		env.maybeComplete(s, wasComplete)
		writeJSON(w, 200, s.View())
	}
}

func ResubmitQuestionHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := env.session(w, r)
		if !ok {
			return
		}
		if _, err := s.ResubmitQuestion(chi.URLParam(r, "questionID")); err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, 200, s.View())
	}
}

func RevealCaseHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, caseNum, ok := env.caseRequest(w, r)
		if !ok {
			return
		}
		if err := s.RevealNext(caseNum); err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, 200, s.View())
	}
}

// RecordCaseAnswerHandler stores one sub-answer ahead of the group submit.
// An empty answer withdraws the stored one.
func RecordCaseAnswerHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _, ok := env.caseRequest(w, r)
		if !ok {
			return
		}
		var req struct {
			QuestionID string      `json:"questionId"`
			Answer     quiz.Answer `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "questionId required", 400)
			return
		}
		if err := s.RecordCaseAnswer(req.QuestionID, req.Answer); err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, 200, s.View())
	}
}

// SubmitCaseHandler locks a case's answers in as a group. Each sub-question
// counts one attempt; choice sub-answers feed the option statistics.
func SubmitCaseHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, caseNum, ok := env.caseRequest(w, r)
		if !ok {
			return
		}
		wasComplete := s.Complete()
		ups, err := s.SubmitCase(caseNum)
		if err != nil {
			fail(w, err)
			return
		}
		for _, up := range ups {
			env.recordStats(r.Context(), up)
			env.persistOutcome(r.Context(), s, up, true)
			env.publishResult(s, up)
		}
		env.logActivity(r.Context(), s.UserID(), activityCase, study.CaseKey(s.LectureID(), caseNum))
		env.maybeComplete(s, wasComplete)
		writeJSON(w, 200, s.View())
	}
}

// EvaluateCaseHandler rates the sub-question at the head of the evaluation
// queue; the queue order is enforced by the case machine.
func EvaluateCaseHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, _, ok := env.caseRequest(w, r)
		if !ok {
			return
		}
		var req struct {
			QuestionID string      `json:"questionId"`
			Rating     quiz.Rating `json:"rating"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.QuestionID == "" {
			http.Error(w, "questionId required", 400)
			return
		}
		wasComplete := s.Complete()
		up, err := s.SelfAssess(req.QuestionID, req.Rating)
		if err != nil {
			fail(w, err)
			return
		}
		env.persistOutcome(r.Context(), s, up, false)
		env.logActivity(r.Context(), s.UserID(), activityOpen, req.QuestionID)
		env.publishResult(s, up)
		env.maybeComplete(s, wasComplete)
		writeJSON(w, 200, s.View())
	}
}

func ResubmitCaseHandler(env SessionEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, caseNum, ok := env.caseRequest(w, r)
		if !ok {
			return
		}
		if _, err := s.ResubmitCase(caseNum); err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, 200, s.View())
	}
}

// session loads the addressed session and enforces ownership. Admins may
// reach any session.
func (env SessionEnv) session(w http.ResponseWriter, r *http.Request) (*quiz.Session, bool) {
	s, ok := env.Registry.Get(chi.URLParam(r, "sessionID"))
	if !ok {
		http.Error(w, "session not found", 404)
		return nil, false
	}
	sub, _ := auth.SubjectFromContext(r.Context())
	if s.UserID() != sub && !permChecker.Has(rbac.RoleFromContext(r.Context()), "session:manage") {
		http.Error(w, "forbidden", 403)
		return nil, false
	}
	return s, true
}

func (env SessionEnv) caseRequest(w http.ResponseWriter, r *http.Request) (*quiz.Session, int, bool) {
	s, ok := env.session(w, r)
	if !ok {
		return nil, 0, false
	}
	caseNum, err := intParam(r, "caseNum")
	if err != nil {
		http.Error(w, "bad case number", 400)
		return nil, 0, false
	}
	return s, caseNum, true
}

func decodeRating(w http.ResponseWriter, r *http.Request) (quiz.Rating, bool) {
	var req struct {
		Rating quiz.Rating `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", 400)
		return "", false
	}
	return req.Rating, true
}

func (env SessionEnv) recordStats(ctx context.Context, up quiz.Update) {
	if up.Answer.IsText || len(up.Answer.Selected) == 0 {
		return
	}
	if err := env.Stats.RecordSubmission(ctx, up.QuestionID, up.Answer.Selected); err != nil {
		logger.Warnf("option stats %s: %v", up.QuestionID, err)
	}
}

// persistOutcome writes the attempt into the user's durable question state.
func (env SessionEnv) persistOutcome(ctx context.Context, s *quiz.Session, up quiz.Update, newAttempt bool) {
	upd := study.StateUpdate{IncrementAttempts: newAttempt}
	if up.Result.Defined() {
		sc := up.Score
		res := up.Result
		upd.LastScore = &sc
		upd.LastResult = &res
	}
	if _, err := env.States.Apply(ctx, s.UserID(), up.QuestionID, upd); err != nil {
		logger.Warnf("question state %s/%s: %v", s.UserID(), up.QuestionID, err)
	}
}

func (env SessionEnv) logActivity(ctx context.Context, userID, typ, key string) {
	if err := env.Activity.Append(ctx, userID, typ, key, nil); err != nil {
		logger.Debugf("activity %s: %v", typ, err)
	}
}

func (env SessionEnv) publishResult(s *quiz.Session, up quiz.Update) {
	if !up.Result.Defined() {
		return
	}
	env.Bus.Publish(events.Event{
		Type:   events.TypeResultRecorded,
		UserID: s.UserID(),
		Data: events.ResultRecorded{
			SessionID:  s.ID(),
			LectureID:  s.LectureID(),
			QuestionID: up.QuestionID,
			Result:     up.Result,
			Score:      up.Score,
		},
	})
}

// maybeComplete publishes the terminal event exactly once, on the operation
// that flipped the session to complete.
func (env SessionEnv) maybeComplete(s *quiz.Session, wasComplete bool) {
	if wasComplete || !s.Complete() {
		return
	}
	env.Bus.Publish(events.Event{
		Type:   events.TypeSessionComplete,
		UserID: s.UserID(),
		Data:   events.SessionComplete{SessionID: s.ID(), LectureID: s.LectureID()},
	})
}
