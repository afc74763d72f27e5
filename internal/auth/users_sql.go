package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/medrevise/medrevise/internal/rbac"
)

var (
	// ErrUserExists is returned when registering an already taken username.
	ErrUserExists = errors.New("username already taken")
	// ErrBadCredentials is returned for unknown users and wrong passwords alike.
	ErrBadCredentials = errors.New("invalid credentials")
	// ErrUserNotFound is returned by lookups for ids that do not exist.
	ErrUserNotFound = errors.New("user not found")
)

// User is an account row without its password hash.
type User struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	CreatedAt int64  `json:"createdAt"`
}

// BulkUser is one roster row for bulk upsert. The password is only consumed
// at insert time and when rotating an existing account.
type BulkUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
	Password string `json:"password,omitempty"`
}

// UserStore persists accounts and checks passwords.
type UserStore interface {
	Register(ctx context.Context, username, password, role string) (User, error)
	Authenticate(ctx context.Context, username, password string) (User, error)
	GetByID(ctx context.Context, id string) (User, error)
	SetRole(ctx context.Context, id, role string) error
	ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error
	List(ctx context.Context) ([]User, error)
	BulkUpsert(ctx context.Context, rows []BulkUser) (inserted, updated int, err error)
}

// SQLUserStore keeps accounts in the users table. Passwords are stored as
// bcrypt hashes and never leave this package.
type SQLUserStore struct {
	db *sql.DB
}

func NewSQLUserStore(db *sql.DB) *SQLUserStore {
	return &SQLUserStore{db: db}
}

func (s *SQLUserStore) Register(ctx context.Context, username, password, role string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, errors.New("username and password required")
	}
	if role == "" {
		role = "student"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	u := User{
		ID:        uuid.NewString(),
		Username:  username,
		Role:      role,
		CreatedAt: time.Now().Unix(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Username, string(hash), u.Role, u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrUserExists
		}
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (s *SQLUserStore) Authenticate(ctx context.Context, username, password string) (User, error) {
	var (
		u    User
		hash string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, role, created_at FROM users WHERE username = $1`,
		strings.TrimSpace(username)).Scan(&u.ID, &u.Username, &hash, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrBadCredentials
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return User{}, ErrBadCredentials
	}
	return u, nil
}

func (s *SQLUserStore) GetByID(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username, role, created_at FROM users WHERE id = $1`,
		id).Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s *SQLUserStore) SetRole(ctx context.Context, id, role string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET role = $1 WHERE id = $2`, role, id)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (s *SQLUserStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, username, role, created_at FROM users ORDER BY created_at, username`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ChangePassword rotates the hash after checking the old password.
func (s *SQLUserStore) ChangePassword(ctx context.Context, id, oldPassword, newPassword string) error {
	if newPassword == "" {
		return errors.New("new password required")
	}
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id = $1`, id).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load hash: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPassword)) != nil {
		return ErrBadCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash = $1 WHERE id = $2`, string(hash), id)
	return err
}

// BulkUpsert loads a roster in one transaction. Existing rows are matched by
// id; new rows must carry a password.
func (s *SQLUserStore) BulkUpsert(ctx context.Context, rows []BulkUser) (inserted, updated int, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	now := time.Now().Unix()
	for _, row := range rows {
		row.Username = strings.TrimSpace(row.Username)
		if row.ID == "" || row.Username == "" {
			return inserted, updated, fmt.Errorf("row needs id and username: %q/%q", row.ID, row.Username)
		}
		if row.Role == "" {
			row.Role = "student"
		}
		if !rbac.ValidRole(row.Role) {
			return inserted, updated, fmt.Errorf("invalid role %q", row.Role)
		}
		var hash string
		if row.Password != "" {
			b, herr := bcrypt.GenerateFromPassword([]byte(row.Password), bcrypt.DefaultCost)
			if herr != nil {
				return inserted, updated, herr
			}
			hash = string(b)
		}

		var exists int
		err = tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE id = $1`, row.ID).Scan(&exists)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if hash == "" {
				return inserted, updated, fmt.Errorf("password required for new user %q", row.Username)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO users (id, username, password_hash, role, created_at) VALUES ($1,$2,$3,$4,$5)`,
				row.ID, row.Username, hash, row.Role, now)
			if err != nil {
				return inserted, updated, err
			}
			inserted++
		case err != nil:
			return inserted, updated, err
		default:
			if hash != "" {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username = $1, role = $2, password_hash = $3 WHERE id = $4`,
					row.Username, row.Role, hash, row.ID)
			} else {
				_, err = tx.ExecContext(ctx,
					`UPDATE users SET username = $1, role = $2 WHERE id = $3`,
					row.Username, row.Role, row.ID)
			}
			if err != nil {
				return inserted, updated, err
			}
			updated++
		}
	}
	return inserted, updated, nil
}

// isUniqueViolation matches the constraint errors of both supported drivers.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
