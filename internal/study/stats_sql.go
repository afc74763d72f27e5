package study

import (
	"context"
	"database/sql"
	"sort"
)

type SQLStatsStore struct {
	db     *sql.DB
	driver string
}

func NewSQLStatsStore(db *sql.DB, driver string) *SQLStatsStore {
	return &SQLStatsStore{db: db, driver: driver}
}

func (s *SQLStatsStore) RecordSubmission(ctx context.Context, questionID string, selected []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO question_stats (question_id,submissions) VALUES ($1,1)
		ON CONFLICT (question_id) DO UPDATE SET submissions = question_stats.submissions + 1`, questionID); err != nil {
		return err
	}
	for _, opt := range selected {
		if _, err := tx.ExecContext(ctx, `INSERT INTO option_stats (question_id,option_id,picks) VALUES ($1,$2,1)
			ON CONFLICT (question_id,option_id) DO UPDATE SET picks = option_stats.picks + 1`, questionID, opt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLStatsStore) Get(ctx context.Context, questionID string) (QuestionStats, error) {
	st := QuestionStats{QuestionID: questionID}
	err := s.db.QueryRowContext(ctx, `SELECT submissions FROM question_stats WHERE question_id=$1`, questionID).
		Scan(&st.Submissions)
	if err != nil && err != sql.ErrNoRows {
		return QuestionStats{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT option_id,picks FROM option_stats WHERE question_id=$1`, questionID)
	if err != nil {
		return QuestionStats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var oc OptionCount
		if err := rows.Scan(&oc.OptionID, &oc.Picks); err != nil {
			return QuestionStats{}, err
		}
		st.Options = append(st.Options, oc)
	}
	if err := rows.Err(); err != nil {
		return QuestionStats{}, err
	}
	sort.Slice(st.Options, func(i, j int) bool { return st.Options[i].OptionID < st.Options[j].OptionID })
	return st, nil
}
