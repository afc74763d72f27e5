package study

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/medrevise/medrevise/internal/highlight"
	"github.com/medrevise/medrevise/internal/quiz"
)

type SQLStateStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStateStore(db *sql.DB, driver string) *SQLStateStore {
	return &SQLStateStore{db: db, driver: driver}
}

func (s *SQLStateStore) Get(ctx context.Context, userID, questionID string) (QuestionState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT attempts,last_score,last_result,notes,highlights_json,updated_at
		FROM user_question_state WHERE user_id=$1 AND question_id=$2`, userID, questionID)
	st, err := scanState(row, userID, questionID)
	if errors.Is(err, sql.ErrNoRows) {
		return QuestionState{UserID: userID, QuestionID: questionID}, nil
	}
	return st, err
}

// Apply merges a partial update into the stored row, creating it if needed.
// Reads and the write run in one transaction so concurrent submits cannot
// lose an attempt increment.
func (s *SQLStateStore) Apply(ctx context.Context, userID, questionID string, up StateUpdate) (QuestionState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return QuestionState{}, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `SELECT attempts,last_score,last_result,notes,highlights_json,updated_at
		FROM user_question_state WHERE user_id=$1 AND question_id=$2`, userID, questionID)
	st, err := scanState(row, userID, questionID)
	fresh := errors.Is(err, sql.ErrNoRows)
	if fresh {
		st = QuestionState{UserID: userID, QuestionID: questionID}
	} else if err != nil {
		return QuestionState{}, err
	}

	if up.IncrementAttempts {
		st.Attempts++
	}
	if up.LastScore != nil {
		sc := *up.LastScore
		st.LastScore = &sc
	}
	if up.LastResult != nil {
		st.LastResult = *up.LastResult
	}
	if up.Notes != nil {
		st.Notes = *up.Notes
	}
	if up.Highlights != nil {
		st.Highlights = highlight.Normalize(up.Highlights)
	}
	st.UpdatedAt = time.Now().Unix()

	hj, err := json.Marshal(st.Highlights)
	if err != nil {
		return QuestionState{}, err
	}
	var lastScore sql.NullFloat64
	if st.LastScore != nil {
		lastScore = sql.NullFloat64{Float64: *st.LastScore, Valid: true}
	}
	lastResult := ""
	if st.LastResult.Defined() {
		lastResult = st.LastResult.String()
	}

	if fresh {
		_, err = tx.ExecContext(ctx, `INSERT INTO user_question_state
			(user_id,question_id,attempts,last_score,last_result,notes,highlights_json,updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
			userID, questionID, st.Attempts, lastScore, lastResult, st.Notes, string(hj), st.UpdatedAt)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE user_question_state
			SET attempts=$1, last_score=$2, last_result=$3, notes=$4, highlights_json=$5, updated_at=$6
			WHERE user_id=$7 AND question_id=$8`,
			st.Attempts, lastScore, lastResult, st.Notes, string(hj), st.UpdatedAt, userID, questionID)
	}
	if err != nil {
		return QuestionState{}, err
	}
	return st, tx.Commit()
}

func (s *SQLStateStore) ForLecture(ctx context.Context, userID, lectureID string) (map[string]QuestionState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.question_id,s.attempts,s.last_score,s.last_result,s.notes,s.highlights_json,s.updated_at
		FROM user_question_state s
		JOIN questions q ON q.id = s.question_id
		WHERE s.user_id=$1 AND q.lecture_id=$2`, userID, lectureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]QuestionState)
	for rows.Next() {
		var (
			st         QuestionState
			lastScore  sql.NullFloat64
			lastResult string
			hj         string
		)
		if err := rows.Scan(&st.QuestionID, &st.Attempts, &lastScore, &lastResult, &st.Notes, &hj, &st.UpdatedAt); err != nil {
			return nil, err
		}
		st.UserID = userID
		if lastScore.Valid {
			sc := lastScore.Float64
			st.LastScore = &sc
		}
		st.LastResult = parseResult(lastResult)
		if err := json.Unmarshal([]byte(hj), &st.Highlights); err != nil {
			st.Highlights = nil
		}
		out[st.QuestionID] = st
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanState(row rowScanner, userID, questionID string) (QuestionState, error) {
	var (
		st         QuestionState
		lastScore  sql.NullFloat64
		lastResult string
		hj         string
	)
	if err := row.Scan(&st.Attempts, &lastScore, &lastResult, &st.Notes, &hj, &st.UpdatedAt); err != nil {
		return QuestionState{}, err
	}
	st.UserID = userID
	st.QuestionID = questionID
	if lastScore.Valid {
		sc := lastScore.Float64
		st.LastScore = &sc
	}
	st.LastResult = parseResult(lastResult)
	if err := json.Unmarshal([]byte(hj), &st.Highlights); err != nil {
		st.Highlights = nil
	}
	return st, nil
}

func parseResult(s string) quiz.Result {
	switch s {
	case "correct":
		return quiz.ResultCorrect
	case "partial":
		return quiz.ResultPartial
	case "incorrect":
		return quiz.ResultIncorrect
	}
	return quiz.ResultNone
}
