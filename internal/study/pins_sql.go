package study

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

type SQLPinStore struct {
	db     *sql.DB
	driver string
}

func NewSQLPinStore(db *sql.DB, driver string) *SQLPinStore {
	return &SQLPinStore{db: db, driver: driver}
}

// Pin is idempotent: pinning twice keeps the original timestamp.
func (s *SQLPinStore) Pin(ctx context.Context, userID, questionID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO pinned_questions (user_id,question_id,pinned_at)
		VALUES ($1,$2,$3) ON CONFLICT (user_id,question_id) DO NOTHING`,
		userID, questionID, time.Now().Unix())
	return err
}

func (s *SQLPinStore) Unpin(ctx context.Context, userID, questionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pinned_questions WHERE user_id=$1 AND question_id=$2`,
		userID, questionID)
	return err
}

func (s *SQLPinStore) IsPinned(ctx context.Context, userID, questionID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM pinned_questions WHERE user_id=$1 AND question_id=$2`,
		userID, questionID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLPinStore) ListForUser(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question_id FROM pinned_questions WHERE user_id=$1 ORDER BY pinned_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *SQLPinStore) ForLecture(ctx context.Context, userID, lectureID string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT p.question_id
		FROM pinned_questions p
		JOIN questions q ON q.id = p.question_id
		WHERE p.user_id=$1 AND q.lecture_id=$2`, userID, lectureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = true
	}
	return out, rows.Err()
}
