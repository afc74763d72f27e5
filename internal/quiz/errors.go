package quiz

import "errors"

// Sentinel errors returned by the answering engine. Handlers map these onto
// HTTP status codes; anything unmatched is a 400.
var (
	ErrAlreadySubmitted     = errors.New("already submitted")
	ErrNoSelection          = errors.New("no option selected")
	ErrNotAwaitingRating    = errors.New("answer is not awaiting self-assessment")
	ErrLocked               = errors.New("question is locked")
	ErrRevisionMode         = errors.New("read-only in revision mode")
	ErrOutOfOrderEvaluation = errors.New("evaluation must follow queue order")
	ErrGroupIncomplete      = errors.New("all case questions must be answered first")
	ErrAllRevealed          = errors.New("all case questions already revealed")
	ErrResubmitDisabled     = errors.New("resubmission is disabled for this case")
	ErrNotFound             = errors.New("not found")
	ErrWrongAnswerKind      = errors.New("answer kind does not match question type")
	ErrCaseManaged          = errors.New("question belongs to a clinical case")
	ErrNotInCase            = errors.New("question is not part of a clinical case")
)
