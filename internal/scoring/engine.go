package scoring

import (
	"errors"
)

// Q is a minimal view of a question needed for scoring. Keep this in sync
// with whatever fields the content store uses.
type Q struct {
	Type       string
	CorrectIDs []string
}

// Result is the outcome of scoring a single response. Score is normalized to
// [0,1]; NeedsReview marks responses that cannot be auto-scored and wait for
// the learner's self-assessment.
type Result struct {
	Score       float64
	NeedsReview bool
}

// Strategy scores a single response.
type Strategy interface {
	Score(q Q, response interface{}) (Result, error)
}

// Grader routes by question type to the correct Strategy.
type Grader interface {
	Score(q Q, response interface{}) (Result, error)
}

type defaultGrader struct {
	strategies map[string]Strategy
}

func (g *defaultGrader) Score(q Q, response interface{}) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		// Unknown types degrade to the review path instead of failing the
		// whole submission.
		return Result{NeedsReview: true}, nil
	}
	return s.Score(q, response)
}

type Option func(*defaultGrader)

// WithStrategy overrides or adds the strategy for one question type.
func WithStrategy(qtype string, s Strategy) Option {
	return func(g *defaultGrader) { g.strategies[qtype] = s }
}

// New installs the built-in strategies: proportional credit for the two MCQ
// types, self-assessment for the two open types.
func New(opts ...Option) Grader {
	g := &defaultGrader{
		strategies: map[string]Strategy{
			"mcq":         choiceStrategy{},
			"clinic_mcq":  choiceStrategy{},
			"qroc":        openStrategy{},
			"clinic_croq": openStrategy{},
		},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// --- Strategies ---

// choiceStrategy awards proportional credit:
//
//	score = clamp((correctChosen - incorrectChosen) / totalCorrect, 0, 1)
//
// A question with an empty correct set scores 0 rather than erroring; that
// is a content bug, not a grading failure.
type choiceStrategy struct{}

func (choiceStrategy) Score(q Q, response interface{}) (Result, error) {
	selected, ok := toStringSlice(response)
	if !ok {
		return Result{}, errors.New("response must be []string")
	}
	correct := toSet(q.CorrectIDs)
	if len(correct) == 0 {
		return Result{}, nil
	}
	chosen := toSet(selected)
	hits, misses := 0, 0
	for id := range chosen {
		if _, ok := correct[id]; ok {
			hits++
		} else {
			misses++
		}
	}
	raw := float64(hits-misses) / float64(len(correct))
	if raw < 0 {
		raw = 0
	}
	if raw > 1 {
		raw = 1
	}
	return Result{Score: raw}, nil
}

// openStrategy never auto-scores; the learner grades themselves afterwards.
type openStrategy struct{}

func (openStrategy) Score(_ Q, response interface{}) (Result, error) {
	if _, ok := response.(string); !ok {
		return Result{}, errors.New("response must be string")
	}
	return Result{NeedsReview: true}, nil
}

// helpers

func toStringSlice(v interface{}) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}
