package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// testPayload はテスト用のリクエスト/レスポンスペイロード。
type testPayload struct {
	// Name はテスト用の名前フィールド。
	Name string `json:"name"`
	// Value はテスト用の値フィールド。
	Value int `json:"value"`
}

// TestNew はNew関数を検証する。
func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("末尾のスラッシュが取り除かれること", func(t *testing.T) {
		t.Parallel()

		client := New("http://localhost:3000/")
		if client.baseURL != "http://localhost:3000" {
			t.Errorf("baseURL = %q, want %q", client.baseURL, "http://localhost:3000")
		}
	})

	t.Run("既定のタイムアウトとオプションが反映されること", func(t *testing.T) {
		t.Parallel()

		if got := New("http://x").httpClient.Timeout; got != DefaultTimeout {
			t.Errorf("Timeout = %v, want %v", got, DefaultTimeout)
		}
		if got := New("http://x", WithTimeout(time.Second)).httpClient.Timeout; got != time.Second {
			t.Errorf("Timeout = %v, want %v", got, time.Second)
		}
	})
}

// TestGetText はGetText関数を検証する。
func TestGetText(t *testing.T) {
	t.Parallel()

	t.Run("ボディを文字列で取得し追加ヘッダーを送信すること", func(t *testing.T) {
		t.Parallel()

		var gotUser, gotPath string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUser = r.Header.Get("X-Forwarded-User")
			gotPath = r.URL.Path
			_, _ = io.WriteString(w, "identity:\nuser=alice\n")
		}))
		defer ts.Close()

		client := New(ts.URL, WithHeader("X-Forwarded-User", "alice@example.com"))
		body, err := client.GetText(context.Background(), "/whoami")
		if err != nil {
			t.Fatalf("GetText()でエラーが発生: %v", err)
		}
		if body != "identity:\nuser=alice\n" {
			t.Errorf("ボディ = %q", body)
		}
		if gotUser != "alice@example.com" {
			t.Errorf("X-Forwarded-User = %q, want %q", gotUser, "alice@example.com")
		}
		if gotPath != "/whoami" {
			t.Errorf("Path = %q, want %q", gotPath, "/whoami")
		}
	})

	t.Run("2xx以外はStatusErrorになること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "Forbidden", http.StatusForbidden)
		}))
		defer ts.Close()

		_, err := New(ts.URL).GetText(context.Background(), "/whoami")
		var statusErr *StatusError
		if !errors.As(err, &statusErr) {
			t.Fatalf("エラー = %v, want *StatusError", err)
		}
		if statusErr.StatusCode != http.StatusForbidden {
			t.Errorf("StatusCode = %d, want %d", statusErr.StatusCode, http.StatusForbidden)
		}
		if statusErr.Body != "Forbidden\n" {
			t.Errorf("Body = %q, want %q", statusErr.Body, "Forbidden\n")
		}
	})

	t.Run("接続できないサーバーに対してエラーが返ること", func(t *testing.T) {
		t.Parallel()

		if _, err := New("http://127.0.0.1:1").GetText(context.Background(), "/"); err == nil {
			t.Fatal("GetText()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestPostJSON はPostJSON関数を検証する。
func TestPostJSON(t *testing.T) {
	t.Parallel()

	t.Run("JSONを送信してレスポンスを取得できること", func(t *testing.T) {
		t.Parallel()

		var sent testPayload
		var contentType, method string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method = r.Method
			contentType = r.Header.Get("Content-Type")
			_ = json.NewDecoder(r.Body).Decode(&sent)
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(testPayload{Name: "response", Value: 200})
		}))
		defer ts.Close()

		var result testPayload
		err := New(ts.URL).PostJSON(context.Background(), "/auth/token", testPayload{Name: "request", Value: 100}, &result)
		if err != nil {
			t.Fatalf("PostJSON()でエラーが発生: %v", err)
		}
		if method != http.MethodPost {
			t.Errorf("Method = %q, want %q", method, http.MethodPost)
		}
		if contentType != "application/json" {
			t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
		}
		if sent.Name != "request" || sent.Value != 100 {
			t.Errorf("送信ボディ = %+v", sent)
		}
		if result.Name != "response" || result.Value != 200 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("シリアライズできないボディはエラーになること", func(t *testing.T) {
		t.Parallel()

		err := New("http://127.0.0.1:1").PostJSON(context.Background(), "/", make(chan int), nil)
		if err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("キャンセルされたコンテキストでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "{}")
		}))
		defer ts.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := New(ts.URL).PostJSON(ctx, "/", testPayload{}, nil); err == nil {
			t.Fatal("PostJSON()がエラーを返すべきだが、nilが返った")
		}
	})
}

// TestGetJSON はGetJSON関数を検証する。
func TestGetJSON(t *testing.T) {
	t.Parallel()

	t.Run("不正なJSONレスポンスでエラーが返ること", func(t *testing.T) {
		t.Parallel()

		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "{invalid json}")
		}))
		defer ts.Close()

		var result testPayload
		if err := New(ts.URL).GetJSON(context.Background(), "/", &result); err == nil {
			t.Fatal("GetJSON()がエラーを返すべきだが、nilが返った")
		}
	})

	t.Run("GETリクエストにContent-Typeが付かないこと", func(t *testing.T) {
		t.Parallel()

		var contentType string
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType = r.Header.Get("Content-Type")
			_ = json.NewEncoder(w).Encode(testPayload{Name: "ok"})
		}))
		defer ts.Close()

		var result testPayload
		if err := New(ts.URL).GetJSON(context.Background(), "/", &result); err != nil {
			t.Fatalf("GetJSON()でエラーが発生: %v", err)
		}
		if contentType != "" {
			t.Errorf("Content-Type = %q, want empty string", contentType)
		}
	})
}
