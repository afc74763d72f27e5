package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SQLContentStore persists the question bank in sqlite or postgres. Option
// lists and answer keys live in JSON columns; the row layout is the same in
// both dialects.
type SQLContentStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLContentStore(db *sql.DB, driver string) *SQLContentStore {
	return &SQLContentStore{db: db, driver: driver}
}

func (s *SQLContentStore) PutLecture(ctx context.Context, lec Lecture) error {
	if lec.ID == "" {
		return fmt.Errorf("lecture needs an id")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO lectures (id,title,subject,position,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, subject=EXCLUDED.subject, position=EXCLUDED.position`,
		lec.ID, lec.Title, lec.Subject, lec.Position, time.Now().Unix())
	return err
}

func (s *SQLContentStore) GetLecture(ctx context.Context, id string) (Lecture, error) {
	var lec Lecture
	lec.ID = id
	err := s.db.QueryRowContext(ctx, `SELECT title,subject,position FROM lectures WHERE id=$1`, id).
		Scan(&lec.Title, &lec.Subject, &lec.Position)
	if errors.Is(err, sql.ErrNoRows) {
		return Lecture{}, fmt.Errorf("lecture %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Lecture{}, err
	}
	return lec, nil
}

func (s *SQLContentStore) ListLectures(ctx context.Context) ([]Lecture, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,title,subject,position FROM lectures ORDER BY position, title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lecture
	for rows.Next() {
		var lec Lecture
		if err := rows.Scan(&lec.ID, &lec.Title, &lec.Subject, &lec.Position); err != nil {
			return nil, err
		}
		out = append(out, lec)
	}
	return out, rows.Err()
}

// DeleteLecture removes the lecture and its questions. Children are deleted
// explicitly so the outcome does not depend on the connection's foreign-key
// pragma.
func (s *SQLContentStore) DeleteLecture(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE lecture_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM clinical_cases WHERE lecture_id=$1`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM lectures WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("lecture %s: %w", id, ErrNotFound)
	}
	return tx.Commit()
}

func (s *SQLContentStore) LectureItems(ctx context.Context, lectureID string) ([]Item, error) {
	var exist int
	if err := s.db.QueryRowContext(ctx, `SELECT 1 FROM lectures WHERE id=$1`, lectureID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("lecture %s: %w", lectureID, ErrNotFound)
		}
		return nil, err
	}

	caseText := make(map[int]string)
	crows, err := s.db.QueryContext(ctx, `SELECT case_num,case_text FROM clinical_cases WHERE lecture_id=$1`, lectureID)
	if err != nil {
		return nil, err
	}
	defer crows.Close()
	for crows.Next() {
		var num int
		var text string
		if err := crows.Scan(&num, &text); err != nil {
			return nil, err
		}
		caseText[num] = text
	}
	if err := crows.Err(); err != nil {
		return nil, err
	}

	qrows, err := s.db.QueryContext(ctx, `SELECT id,lecture_id,case_num,position,qtype,qtext,options_json,correct_json,explanation,media_url,hidden
		FROM questions WHERE lecture_id=$1 ORDER BY position`, lectureID)
	if err != nil {
		return nil, err
	}
	defer qrows.Close()
	var qs []Question
	for qrows.Next() {
		q, err := scanQuestion(qrows)
		if err != nil {
			return nil, err
		}
		qs = append(qs, q)
	}
	if err := qrows.Err(); err != nil {
		return nil, err
	}
	return buildItems(qs, caseText), nil
}

func (s *SQLContentStore) ImportItems(ctx context.Context, lectureID string, items []Item) error {
	questions, caseText, err := flattenItems(lectureID, items)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exist int
	if err := tx.QueryRowContext(ctx, `SELECT 1 FROM lectures WHERE id=$1`, lectureID).Scan(&exist); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lecture %s: %w", lectureID, ErrNotFound)
		}
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM questions WHERE lecture_id=$1`, lectureID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM clinical_cases WHERE lecture_id=$1`, lectureID); err != nil {
		return err
	}
	for num, text := range caseText {
		if _, err := tx.ExecContext(ctx, `INSERT INTO clinical_cases (lecture_id,case_num,case_text) VALUES ($1,$2,$3)`,
			lectureID, num, text); err != nil {
			return err
		}
	}
	for _, q := range questions {
		if err := insertQuestion(ctx, tx, q); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLContentStore) PutQuestion(ctx context.Context, q Question) error {
	if q.ID == "" || q.LectureID == "" {
		return fmt.Errorf("question needs id and lecture_id")
	}
	if !q.Type.Valid() {
		return fmt.Errorf("unknown question type %q", q.Type)
	}
	oj, cj, err := marshalQuestionJSON(q)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO questions (id,lecture_id,case_num,position,qtype,qtext,options_json,correct_json,explanation,media_url,hidden)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		ON CONFLICT (id) DO UPDATE SET lecture_id=EXCLUDED.lecture_id, case_num=EXCLUDED.case_num,
			position=EXCLUDED.position, qtype=EXCLUDED.qtype, qtext=EXCLUDED.qtext,
			options_json=EXCLUDED.options_json, correct_json=EXCLUDED.correct_json,
			explanation=EXCLUDED.explanation, media_url=EXCLUDED.media_url, hidden=EXCLUDED.hidden`,
		q.ID, q.LectureID, q.CaseNum, q.Position, string(q.Type), q.Text, oj, cj, q.Explanation, q.MediaURL, boolInt(q.Hidden))
	return err
}

func (s *SQLContentStore) GetQuestion(ctx context.Context, id string) (Question, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,lecture_id,case_num,position,qtype,qtext,options_json,correct_json,explanation,media_url,hidden
		FROM questions WHERE id=$1`, id)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return q, err
}

func (s *SQLContentStore) DeleteQuestion(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM questions WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLContentStore) SetQuestionHidden(ctx context.Context, id string, hidden bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE questions SET hidden=$1 WHERE id=$2`, boolInt(hidden), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %s: %w", id, ErrNotFound)
	}
	return nil
}

func (s *SQLContentStore) PutCaseText(ctx context.Context, lectureID string, caseNum int, text string) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO clinical_cases (lecture_id,case_num,case_text) VALUES ($1,$2,$3)
		ON CONFLICT (lecture_id,case_num) DO UPDATE SET case_text=EXCLUDED.case_text`,
		lectureID, caseNum, text)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanQuestion(row rowScanner) (Question, error) {
	var q Question
	var typ, oj, cj string
	var hidden int
	err := row.Scan(&q.ID, &q.LectureID, &q.CaseNum, &q.Position, &typ, &q.Text, &oj, &cj, &q.Explanation, &q.MediaURL, &hidden)
	if err != nil {
		return Question{}, err
	}
	q.Type = QuestionType(typ)
	q.Hidden = hidden != 0
	if err := json.Unmarshal([]byte(oj), &q.Options); err != nil {
		q.Options = nil
	}
	if err := json.Unmarshal([]byte(cj), &q.CorrectIDs); err != nil {
		q.CorrectIDs = nil
	}
	return q, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertQuestion(ctx context.Context, ex execer, q Question) error {
	if !q.Type.Valid() {
		return fmt.Errorf("question %s: unknown type %q", q.ID, q.Type)
	}
	oj, cj, err := marshalQuestionJSON(q)
	if err != nil {
		return err
	}
	_, err = ex.ExecContext(ctx, `INSERT INTO questions (id,lecture_id,case_num,position,qtype,qtext,options_json,correct_json,explanation,media_url,hidden)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		q.ID, q.LectureID, q.CaseNum, q.Position, string(q.Type), q.Text, oj, cj, q.Explanation, q.MediaURL, boolInt(q.Hidden))
	return err
}

func marshalQuestionJSON(q Question) (options, correct string, err error) {
	ob, err := json.Marshal(q.Options)
	if err != nil {
		return "", "", err
	}
	cb, err := json.Marshal(q.CorrectIDs)
	if err != nil {
		return "", "", err
	}
	return string(ob), string(cb), nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
