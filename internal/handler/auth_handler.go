package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/teamcal/internal/middleware"
	"github.com/hitoshi/teamcal/internal/user"
)

// AuthServiceInterface は認証ハンドラーが必要とするセッション操作。
type AuthServiceInterface interface {
	Login(ctx context.Context, username, password string) (string, error)
	EndSession(ctx context.Context, token string) (bool, error)
}

// UserServiceInterface は認証ハンドラーが必要とするユーザー操作。
type UserServiceInterface interface {
	Register(ctx context.Context, username, password string) (string, error)
	Profile(ctx context.Context, userID string) (*user.Profile, error)
}

// AuthHandler はユーザー登録とログイン関連のHTTPハンドラー。
type AuthHandler struct {
	auth  AuthServiceInterface
	users UserServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(auth AuthServiceInterface, users UserServiceInterface) *AuthHandler {
	return &AuthHandler{
		auth:  auth,
		users: users,
	}
}

// credentialsRequest はサインアップとログインのリクエストボディ。
type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// tokenResponse はセッショントークンを返すレスポンス。
type tokenResponse struct {
	UserID string `json:"user_id,omitempty"`
	Token  string `json:"token"`
}

// Signup はユーザーを登録し、そのままログインしたトークンを返す。
// POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	userID, err := h.users.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, tokenResponse{UserID: userID, Token: token})
}

// Login はユーザー名とパスワードでログインし、セッショントークンを返す。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{Token: token})
}

// Logout はBearerトークンのセッションを終了する。
// トークンがない場合や既に無効な場合も204を返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token, ok := middleware.TokenFromRequest(r); ok {
		if _, err := h.auth.EndSession(r.Context(), token); err != nil {
			handleServiceError(w, r, err)
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザー情報を返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	profile, err := h.users.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
