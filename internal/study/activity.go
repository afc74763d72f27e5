package study

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// SQLActivityLog is an append-only feed of what a user did: submissions,
// ratings, pins, session completions. Rows are never updated.
type SQLActivityLog struct {
	db *sql.DB
}

func NewSQLActivityLog(db *sql.DB) *SQLActivityLog {
	return &SQLActivityLog{db: db}
}

func (l *SQLActivityLog) Append(ctx context.Context, userID, typ, key string, data interface{}) error {
	payload := "{}"
	if data != nil {
		buf, err := json.Marshal(data)
		if err != nil {
			return err
		}
		payload = string(buf)
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO user_activity (user_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		userID, typ, key, payload, time.Now().Unix())
	return err
}

func (l *SQLActivityLog) Recent(ctx context.Context, userID string, limit int) ([]Activity, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT seq, user_id, typ, key, data, created_at FROM user_activity
		 WHERE user_id=$1 ORDER BY seq DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Activity
	for rows.Next() {
		var a Activity
		if err := rows.Scan(&a.Seq, &a.UserID, &a.Type, &a.Key, &a.DataJSON, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PruneBefore deletes activity rows older than the cutoff and returns how
// many went away.
func (l *SQLActivityLog) PruneBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM user_activity WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
