package server

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nao1215/trustgate/internal/store"
	"github.com/nao1215/trustgate/pkg/middleware"
)

// PublicUser はAPIで返すユーザー表現。
type PublicUser struct {
	// ID はユーザーの一意識別子。
	ID string `json:"id"`
	// Email はメールアドレス。
	Email string `json:"email"`
	// DisplayName は表示名。
	DisplayName string `json:"display_name"`
	// CreatedAt はRFC3339形式の作成日時。
	CreatedAt string `json:"created_at"`
}

func newPublicUser(u store.User) PublicUser {
	return PublicUser{
		ID:          u.ID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// createUserRequest はPOST /userのリクエストボディ。
type createUserRequest struct {
	Email       string `json:"email" binding:"required,email,max=254"`
	DisplayName string `json:"display_name" binding:"required,max=100"`
}

// tokenResponse はPOST /auth/tokenのレスポンス。
type tokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// handleCreateUser はユーザーを作成するハンドラを返す。
func (s *Server) handleCreateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストボディが不正です"})
			return
		}

		u, err := s.store.CreateUser(c.Request.Context(), req.Email, req.DisplayName)
		if errors.Is(err, store.ErrDuplicateEmail) {
			c.JSON(http.StatusConflict, gin.H{"error": "メールアドレスは既に登録されています"})
			return
		}
		if err != nil {
			slog.Error("ユーザー作成エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー作成に失敗しました"})
			return
		}
		c.JSON(http.StatusCreated, newPublicUser(u))
	}
}

// handleGetUser はIDでユーザーを取得するハンドラを返す。
func (s *Server) handleGetUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := uuid.Parse(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ユーザーIDが不正です"})
			return
		}
		s.respondUser(c, id)
	}
}

// handleIssueToken は信頼済みヘッダーで認証されたユーザーにトークンを発行するハンドラを返す。
// ユーザーが未登録なら作成する。
func (s *Server) handleIssueToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := middleware.GetIdentity(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証済みユーザーがいません"})
			return
		}
		if s.issuer == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "トークン発行は無効です"})
			return
		}

		u, created, err := s.store.FindOrCreateUserByEmail(c.Request.Context(), identity.Email)
		if err != nil {
			slog.Error("ユーザー取得エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
			return
		}
		if created {
			slog.Info("ユーザーを作成しました", "user_id", u.ID, "email", u.Email)
		}

		token, err := s.issuer.Issue(u.ID.String(), u.Email)
		if err != nil {
			slog.Error("JWT生成エラー", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, tokenResponse{Token: token, UserID: u.ID.String()})
	}
}

// handleGetCurrentUser はトークンの持ち主のユーザー情報を返すハンドラを返す。
func (s *Server) handleGetCurrentUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := middleware.GetTokenClaims(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "認証が必要です"})
			return
		}
		id, err := uuid.Parse(claims.UserID())
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "トークンが無効です"})
			return
		}
		s.respondUser(c, id)
	}
}

// requireIssuer はトークン発行が無効な場合に503を返すミドルウェア。
func (s *Server) requireIssuer() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.issuer == nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "トークン認証は無効です"})
			return
		}
		c.Next()
	}
}

func (s *Server) respondUser(c *gin.Context, id uuid.UUID) {
	u, err := s.store.GetUserByID(c.Request.Context(), id)
	if errors.Is(err, store.ErrUserNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
		return
	}
	if err != nil {
		slog.Error("ユーザー取得エラー", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザー取得に失敗しました"})
		return
	}
	c.JSON(http.StatusOK, newPublicUser(u))
}
