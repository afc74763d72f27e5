// Package http is the REST and websocket surface of the revision backend.
// Handlers are closures over their stores, mounted by NewRouter.
package http

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/medrevise/medrevise/internal/auth"
	"github.com/medrevise/medrevise/internal/quiz"
	"github.com/medrevise/medrevise/internal/rbac"
	"github.com/medrevise/medrevise/internal/storage"
	"github.com/medrevise/medrevise/internal/study"
)

// permChecker answers capability questions inside handlers whose response
// shape varies by role. Route-level gating still goes through rbac.Require.
var permChecker = rbac.NewChecker(nil)

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// fail maps the domain sentinels onto HTTP statuses and writes the error
// text as the body, the same contract the clients already parse.
func fail(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, quiz.ErrNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, sql.ErrNoRows),
		errors.Is(err, fs.ErrNotExist):
		return 404
	case errors.Is(err, study.ErrForbidden):
		return 403
	case errors.Is(err, auth.ErrBadCredentials):
		return 401
	case errors.Is(err, auth.ErrUserExists):
		return 409
	case errors.Is(err, quiz.ErrAlreadySubmitted),
		errors.Is(err, quiz.ErrLocked),
		errors.Is(err, quiz.ErrRevisionMode),
		errors.Is(err, quiz.ErrNotAwaitingRating),
		errors.Is(err, quiz.ErrOutOfOrderEvaluation),
		errors.Is(err, quiz.ErrAllRevealed),
		errors.Is(err, quiz.ErrResubmitDisabled),
		errors.Is(err, quiz.ErrGroupIncomplete):
		return 409
	case errors.Is(err, storage.ErrTooLarge):
		return 413
	case errors.Is(err, storage.ErrUnsupportedType):
		return 415
	}
	return 400
}

func intParam(r *http.Request, name string) (int, error) {
	return strconv.Atoi(chi.URLParam(r, name))
}
