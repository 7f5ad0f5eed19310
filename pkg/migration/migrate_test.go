package migration

import (
	"context"
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("DB接続に失敗: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"migrations/000002_add_note.up.sql":       {Data: []byte("ALTER TABLE items ADD COLUMN note TEXT;")},
		"migrations/000001_create_items.up.sql":   {Data: []byte("CREATE TABLE items (id INTEGER PRIMARY KEY);")},
		"migrations/000001_create_items.down.sql": {Data: []byte("DROP TABLE items;")},
		"migrations/README.md":                    {Data: []byte("ignored")},
		"migrations/draft.up.sql":                 {Data: []byte("ignored")},
	}
}

// TestCollect はマイグレーションファイルの収集を検証する。
func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("up.sqlだけをバージョン順に収集すること", func(t *testing.T) {
		t.Parallel()

		files, err := Collect(testFS(), "migrations")
		if err != nil {
			t.Fatalf("Collect()でエラーが発生: %v", err)
		}
		if len(files) != 2 {
			t.Fatalf("件数 = %d, want 2", len(files))
		}
		if files[0].Version != 1 || files[0].Name != "create_items" {
			t.Errorf("files[0] = %+v, want 1/create_items", files[0])
		}
		if files[1].Version != 2 || files[1].Name != "add_note" {
			t.Errorf("files[1] = %+v, want 2/add_note", files[1])
		}
	})

	t.Run("同じバージョンが重複するとエラーになること", func(t *testing.T) {
		t.Parallel()

		fsys := fstest.MapFS{
			"m/000001_a.up.sql": {Data: []byte("SELECT 1;")},
			"m/000001_b.up.sql": {Data: []byte("SELECT 1;")},
		}
		if _, err := Collect(fsys, "m"); err == nil {
			t.Fatal("Collect()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("存在しないディレクトリはエラーになること", func(t *testing.T) {
		t.Parallel()

		if _, err := Collect(testFS(), "missing"); err == nil {
			t.Fatal("Collect()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestRun はマイグレーションの適用を検証する。
func TestRun(t *testing.T) {
	t.Parallel()

	t.Run("未適用のマイグレーションを適用し二度目は何もしないこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openTestDB(t)

		n, err := Run(ctx, db, testFS(), "migrations")
		if err != nil {
			t.Fatalf("Run()でエラーが発生: %v", err)
		}
		if n != 2 {
			t.Errorf("適用件数 = %d, want 2", n)
		}

		if _, err := db.ExecContext(ctx, "INSERT INTO items (id, note) VALUES (1, 'x')"); err != nil {
			t.Fatalf("マイグレーション後のテーブルに書き込めない: %v", err)
		}

		n, err = Run(ctx, db, testFS(), "migrations")
		if err != nil {
			t.Fatalf("2回目のRun()でエラーが発生: %v", err)
		}
		if n != 0 {
			t.Errorf("2回目の適用件数 = %d, want 0", n)
		}
	})

	t.Run("SQLが失敗した場合はバージョンを記録しないこと", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		db := openTestDB(t)
		fsys := fstest.MapFS{
			"m/000001_ok.up.sql":     {Data: []byte("CREATE TABLE ok_table (id INTEGER);")},
			"m/000002_broken.up.sql": {Data: []byte("CREATE TABLEE broken;")},
		}

		n, err := Run(ctx, db, fsys, "m")
		if err == nil {
			t.Fatal("Run()がエラーを返すべきだが、nilが返った")
		}
		if n != 1 {
			t.Errorf("適用件数 = %d, want 1", n)
		}

		var count int
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
			t.Fatalf("schema_migrationsの取得に失敗: %v", err)
		}
		if count != 1 {
			t.Errorf("記録済みバージョン数 = %d, want 1", count)
		}
	})
}
