package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nao1215/trustgate/pkg/migration"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// MemoryPath はインメモリデータベースを表すパス。
const MemoryPath = ":memory:"

// sqlitePragmas はファイルデータベースに設定するプラグマ。
const sqlitePragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// Store はSQLiteに保存するユーザーストア。
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open はSQLiteデータベースを開き、マイグレーションを適用したStoreを返す。
// pathにMemoryPathを指定するとインメモリデータベースになる。
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := path
	if path != MemoryPath {
		dsn += sqlitePragmas
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}
	// インメモリDBは接続ごとに別物になるため接続は1本に固定する。
	db.SetMaxOpenConns(1)

	s := New(db)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New は既存の接続からStoreを生成する。マイグレーションは行わない。
func New(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Migrate はスキーマのマイグレーションを適用する。
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := migration.Run(ctx, s.db, migrationsFS, "migrations"); err != nil {
		return fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}
	return nil
}

// Ping はデータベースへの接続を確認する。
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close はデータベース接続を閉じる。
func (s *Store) Close() error {
	return s.db.Close()
}
