package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var (
	// ErrUserNotFound はユーザーが存在しないことを表す。
	ErrUserNotFound = errors.New("ユーザーが見つかりません")
	// ErrDuplicateEmail は同じメールアドレスのユーザーが既に存在することを表す。
	ErrDuplicateEmail = errors.New("メールアドレスは既に登録されています")
)

// User はストアに保存されたユーザー。
type User struct {
	// ID はユーザーの一意識別子（UUID v4）。
	ID uuid.UUID
	// Email はユーザーのメールアドレス。大文字小文字を区別せず一意。
	Email string
	// DisplayName は表示名。
	DisplayName string
	// CreatedAt は作成日時（秒精度）。
	CreatedAt time.Time
}

const userColumns = "id, email, display_name, created_at"

// CreateUser はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
func (s *Store) CreateUser(ctx context.Context, email, displayName string) (User, error) {
	u := User{
		ID:          uuid.New(),
		Email:       strings.TrimSpace(email),
		DisplayName: strings.TrimSpace(displayName),
		CreatedAt:   s.now().UTC().Truncate(time.Second),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?)",
		u.ID.String(), u.Email, u.DisplayName, u.CreatedAt.Unix(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return User{}, ErrDuplicateEmail
		}
		return User{}, fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return u, nil
}

// GetUserByID はIDでユーザーを取得する。
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id.String())
	return scanUser(row)
}

// GetUserByEmail はメールアドレスでユーザーを取得する。大文字小文字は区別しない。
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", strings.TrimSpace(email))
	return scanUser(row)
}

// FindOrCreateUserByEmail はメールアドレスでユーザーを取得し、存在しなければ作成する。
// 作成した場合はcreatedがtrueになる。表示名にはメールアドレスのローカル部を使う。
func (s *Store) FindOrCreateUserByEmail(ctx context.Context, email string) (u User, created bool, err error) {
	u, err = s.GetUserByEmail(ctx, email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return User{}, false, err
	}

	u, err = s.CreateUser(ctx, email, displayNameFromEmail(email))
	if errors.Is(err, ErrDuplicateEmail) {
		// 同時に作成された場合は既存のユーザーを返す。
		u, err = s.GetUserByEmail(ctx, email)
		return u, false, err
	}
	if err != nil {
		return User{}, false, err
	}
	return u, true, nil
}

func scanUser(row *sql.Row) (User, error) {
	var (
		u         User
		id        string
		createdAt int64
	)
	if err := row.Scan(&id, &u.Email, &u.DisplayName, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return User{}, fmt.Errorf("保存されたユーザーIDが不正です: %q: %w", id, err)
	}
	u.ID = parsed
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	return u, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

func displayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(email), "@")
	if local == "" {
		return strings.TrimSpace(email)
	}
	return local
}
