package study

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medrevise/medrevise/internal/quiz"
)

var ErrForbidden = errors.New("not allowed")

type SQLCommentStore struct {
	db     *sql.DB
	driver string
}

func NewSQLCommentStore(db *sql.DB, driver string) *SQLCommentStore {
	return &SQLCommentStore{db: db, driver: driver}
}

func (s *SQLCommentStore) Create(ctx context.Context, c Comment) (Comment, error) {
	if c.Scope != ScopeQuestion && c.Scope != ScopeCase {
		return Comment{}, fmt.Errorf("unknown comment scope %q", c.Scope)
	}
	if c.SubjectID == "" || c.UserID == "" || c.Body == "" {
		return Comment{}, fmt.Errorf("comment needs subject, user and body")
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().Unix()

	if c.ParentID != "" {
		// Replies stay in the subject's thread: the parent must exist there.
		var one int
		err := s.db.QueryRowContext(ctx, `SELECT 1 FROM comments WHERE id=$1 AND scope=$2 AND subject_id=$3`,
			c.ParentID, c.Scope, c.SubjectID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return Comment{}, fmt.Errorf("parent comment %s: %w", c.ParentID, quiz.ErrNotFound)
		}
		if err != nil {
			return Comment{}, err
		}
	}

	ij, err := json.Marshal(c.ImageURLs)
	if err != nil {
		return Comment{}, err
	}
	var parent sql.NullString
	if c.ParentID != "" {
		parent = sql.NullString{String: c.ParentID, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO comments (id,scope,subject_id,parent_id,user_id,anonymous,body,image_urls_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		c.ID, c.Scope, c.SubjectID, parent, c.UserID, boolInt(c.Anonymous), c.Body, string(ij), c.CreatedAt)
	if err != nil {
		return Comment{}, err
	}
	return c, nil
}

// List returns the thread oldest first. The author's username rides along
// except on anonymous comments, which also drop the user id.
func (s *SQLCommentStore) List(ctx context.Context, scope, subjectID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT c.id,c.scope,c.subject_id,c.parent_id,c.user_id,c.anonymous,c.body,c.image_urls_json,c.created_at,COALESCE(u.username,'')
		FROM comments c
		LEFT JOIN users u ON u.id = c.user_id
		WHERE c.scope=$1 AND c.subject_id=$2
		ORDER BY c.created_at, c.id`, scope, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var (
			c      Comment
			parent sql.NullString
			anon   int
			ij     string
			author string
		)
		if err := rows.Scan(&c.ID, &c.Scope, &c.SubjectID, &parent, &c.UserID, &anon, &c.Body, &ij, &c.CreatedAt, &author); err != nil {
			return nil, err
		}
		c.ParentID = parent.String
		c.Anonymous = anon != 0
		if err := json.Unmarshal([]byte(ij), &c.ImageURLs); err != nil {
			c.ImageURLs = nil
		}
		if c.Anonymous {
			c.UserID = ""
		} else {
			c.Author = author
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Update rewrites a comment's body and images. Only the author may edit;
// moderators delete, they do not rewrite.
func (s *SQLCommentStore) Update(ctx context.Context, id, requesterID, body string, imageURLs []string) (Comment, error) {
	if body == "" {
		return Comment{}, fmt.Errorf("comment body required")
	}
	var ownerID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM comments WHERE id=$1`, id).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, fmt.Errorf("comment %s: %w", id, quiz.ErrNotFound)
	}
	if err != nil {
		return Comment{}, err
	}
	if ownerID != requesterID {
		return Comment{}, ErrForbidden
	}
	ij, err := json.Marshal(imageURLs)
	if err != nil {
		return Comment{}, err
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE comments SET body=$1, image_urls_json=$2 WHERE id=$3`,
		body, string(ij), id); err != nil {
		return Comment{}, err
	}
	return s.get(ctx, id)
}

func (s *SQLCommentStore) get(ctx context.Context, id string) (Comment, error) {
	var (
		c      Comment
		parent sql.NullString
		anon   int
		ij     string
	)
	err := s.db.QueryRowContext(ctx, `SELECT id,scope,subject_id,parent_id,user_id,anonymous,body,image_urls_json,created_at
		FROM comments WHERE id=$1`, id).Scan(
		&c.ID, &c.Scope, &c.SubjectID, &parent, &c.UserID, &anon, &c.Body, &ij, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Comment{}, fmt.Errorf("comment %s: %w", id, quiz.ErrNotFound)
	}
	if err != nil {
		return Comment{}, err
	}
	c.ParentID = parent.String
	c.Anonymous = anon != 0
	if err := json.Unmarshal([]byte(ij), &c.ImageURLs); err != nil {
		c.ImageURLs = nil
	}
	return c, nil
}

func (s *SQLCommentStore) Delete(ctx context.Context, id, requesterID string, moderator bool) error {
	var ownerID string
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM comments WHERE id=$1`, id).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("comment %s: %w", id, quiz.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if !moderator && ownerID != requesterID {
		return ErrForbidden
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	// Replies go with their parent.
	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE parent_id=$1`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
