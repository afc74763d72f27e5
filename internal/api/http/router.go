package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/medrevise/medrevise/internal/auth"
	"github.com/medrevise/medrevise/internal/quiz"
	"github.com/medrevise/medrevise/internal/rbac"
	"github.com/medrevise/medrevise/internal/storage"
	"github.com/medrevise/medrevise/internal/study"
	"github.com/medrevise/medrevise/internal/ws"
)

// Deps is everything the router mounts. Tests build one around in-memory
// stores; main wires the real ones.
type Deps struct {
	Auth     *auth.Service
	Users    auth.UserStore
	Content  quiz.ContentStore
	Sessions SessionEnv
	Study    StudyEnv
	Comments CommentsEnv
	Assets   storage.Store
	Hub      *ws.Hub

	AllowedOrigins []string
	// StrictRoles rejects tokens whose user no longer exists in the store
	// instead of falling back to the role baked into the claim.
	StrictRoles bool
}

// NewRouter assembles the full HTTP surface: public auth and health
// endpoints, the JWT-guarded API, and static asset serving.
func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", LoginHandler(d.Users, d.Auth))
	r.Post("/auth/register", RegisterHandler(d.Users, d.Auth))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	// Asset keys are unguessable, so serving skips auth; img tags cannot
	// attach a bearer token.
	r.Get("/assets/*", ServeAssetHandler(d.Assets))

	r.Group(func(pr chi.Router) {
		pr.Use(auth.Middleware(d.Auth))
		if d.Users != nil {
			pr.Use(auth.AttachRoleFromStore(d.Users, !d.StrictRoles))
		}

		pr.Get("/auth/me", MeHandler(d.Users))
		pr.Post("/users/change-password", ChangePasswordHandler(d.Users))

		pr.With(rbac.Require("user:manage")).
			Get("/users", ListUsersHandler(d.Users))
		pr.With(rbac.Require("user:manage")).
			Post("/users/bulk", BulkUsersHandler(d.Users))
		pr.With(rbac.Require("user:manage")).
			Put("/users/{userID}/role", SetRoleHandler(d.Users))

		pr.With(rbac.Require("lecture:view")).
			Get("/api/lectures", ListLecturesHandler(d.Content))
		pr.With(rbac.Require("lecture:view")).
			Get("/api/lectures/{lectureID}", GetLectureHandler(d.Content))
		pr.With(rbac.Require("lecture:view")).
			Get("/api/lectures/{lectureID}/items", LectureItemsHandler(d.Content))
		pr.With(rbac.Require("lecture:manage")).
			Post("/api/lectures", PutLectureHandler(d.Content))
		pr.With(rbac.Require("lecture:manage")).
			Put("/api/lectures/{lectureID}", PutLectureHandler(d.Content))
		pr.With(rbac.Require("lecture:manage")).
			Delete("/api/lectures/{lectureID}", DeleteLectureHandler(d.Content))
		pr.With(rbac.Require("lecture:manage")).
			Post("/api/lectures/import", ImportLectureHandler(d.Content, d.Sessions.Bus))
		pr.With(rbac.RequireAny("lecture:manage", "question:manage")).
			Get("/api/lectures/{lectureID}/export", ExportLectureHandler(d.Content))
		pr.With(rbac.Require("question:manage")).
			Put("/api/lectures/{lectureID}/cases/{caseNum}/text", PutCaseTextHandler(d.Content))

		pr.With(rbac.Require("lecture:view")).
			Get("/api/questions", ListQuestionsHandler(d.Content))
		pr.With(rbac.Require("lecture:view")).
			Get("/api/questions/{questionID}", GetQuestionHandler(d.Content))
		pr.With(rbac.Require("question:manage")).
			Post("/api/questions", CreateQuestionHandler(d.Content))
		pr.With(rbac.Require("question:manage")).
			Put("/api/questions/{questionID}", UpdateQuestionHandler(d.Content))
		pr.With(rbac.Require("question:manage")).
			Delete("/api/questions/{questionID}", DeleteQuestionHandler(d.Content))

		pr.With(rbac.Require("session:run")).
			Post("/api/sessions", CreateSessionHandler(d.Sessions))
		pr.Route("/api/sessions/{sessionID}", func(sr chi.Router) {
			sr.Use(rbac.Require("session:run"))
			sr.Get("/", GetSessionHandler(d.Sessions))
			sr.Delete("/", DeleteSessionHandler(d.Sessions))
			sr.Post("/navigate", NavigateSessionHandler(d.Sessions))
			sr.Post("/restart", RestartSessionHandler(d.Sessions))
			sr.Post("/questions/{questionID}/toggle", ToggleOptionHandler(d.Sessions))
			sr.Post("/questions/{questionID}/clear", ClearSelectionHandler(d.Sessions))
			sr.Post("/questions/{questionID}/submit", SubmitQuestionHandler(d.Sessions))
			sr.Post("/questions/{questionID}/assess", AssessQuestionHandler(d.Sessions))
			sr.Post("/questions/{questionID}/resubmit", ResubmitQuestionHandler(d.Sessions))
			sr.Post("/cases/{caseNum}/reveal", RevealCaseHandler(d.Sessions))
			sr.Post("/cases/{caseNum}/answers", RecordCaseAnswerHandler(d.Sessions))
			sr.Post("/cases/{caseNum}/submit", SubmitCaseHandler(d.Sessions))
			sr.Post("/cases/{caseNum}/evaluate", EvaluateCaseHandler(d.Sessions))
			sr.Post("/cases/{caseNum}/resubmit", ResubmitCaseHandler(d.Sessions))
		})

		pr.With(rbac.Require("state:write")).
			Post("/api/user-question-state", SaveStateHandler(d.Study))
		pr.With(rbac.Require("state:write")).
			Get("/api/user-question-state", GetStateHandler(d.Study))

		pr.With(rbac.Require("pin:write")).
			Get("/api/pinned-questions", ListPinsHandler(d.Study))
		pr.With(rbac.Require("pin:write")).
			Post("/api/pinned-questions", PinHandler(d.Study))
		pr.With(rbac.Require("pin:write")).
			Delete("/api/pinned-questions", UnpinHandler(d.Study))

		pr.With(rbac.Require("state:write")).
			Post("/api/question-option-stats", RecordOptionStatsHandler(d.Study))
		pr.With(rbac.Require("stats:view")).
			Get("/api/question-option-stats", GetOptionStatsHandler(d.Study))

		pr.With(rbac.Require("state:write")).
			Post("/api/user-activity", LogActivityHandler(d.Study))
		pr.With(rbac.Require("stats:view")).
			Get("/api/user-activity", RecentActivityHandler(d.Study))

		mountComments(pr, d.Comments, "/api/question-comments", study.ScopeQuestion)
		mountComments(pr, d.Comments, "/api/clinical-case-comments", study.ScopeCase)

		pr.With(rbac.Require("asset:upload")).
			Post("/assets/comments", UploadAssetHandler(d.Assets))

		pr.Get("/api/events", EventsHandler(d.Hub))
	})

	return r
}

// mountComments wires one thread namespace. Edits and deletes address the
// comment by id; the scope only matters for listing and creating.
func mountComments(pr chi.Router, env CommentsEnv, path, scope string) {
	pr.With(rbac.Require("lecture:view")).
		Get(path, ListCommentsHandler(env, scope))
	pr.With(rbac.Require("comment:write")).
		Post(path, CreateCommentHandler(env, scope))
	pr.With(rbac.Require("comment:write")).
		Put(path+"/{commentID}", UpdateCommentHandler(env))
	pr.With(rbac.Require("comment:write")).
		Delete(path+"/{commentID}", DeleteCommentHandler(env))
}
