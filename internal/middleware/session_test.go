package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/teamcal/internal/model"
)

// --- モック定義 ---

type mockSessionVerifier struct {
	verifyFn func(ctx context.Context, token string) (string, error)
	calls    []string
}

func (m *mockSessionVerifier) Verify(ctx context.Context, token string) (string, error) {
	m.calls = append(m.calls, token)
	if m.verifyFn != nil {
		return m.verifyFn(ctx, token)
	}
	return "", model.NewSessionExpiredError()
}

func validTokenVerifier(token, userID string) *mockSessionVerifier {
	return &mockSessionVerifier{
		verifyFn: func(ctx context.Context, got string) (string, error) {
			if got == token {
				return userID, nil
			}
			return "", model.NewSessionExpiredError()
		},
	}
}

func decodeErrorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Result().Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Code
}

// --- テスト ---

func TestSessionMiddleware_ValidToken_InjectsUserID(t *testing.T) {
	verifier := validTokenVerifier("valid-token", "user-123")
	mw := NewSessionMiddleware(verifier)

	var capturedUserID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
	if len(verifier.calls) != 1 || verifier.calls[0] != "valid-token" {
		t.Errorf("verify calls = %v, want [valid-token]", verifier.calls)
	}
}

func TestSessionMiddleware_NoHeader_Returns401(t *testing.T) {
	verifier := &mockSessionVerifier{}
	handler := NewSessionMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
	if code := decodeErrorCode(t, w); code != "MISSING_TOKEN" {
		t.Errorf("code = %q, want MISSING_TOKEN", code)
	}
	if len(verifier.calls) != 0 {
		t.Error("verifier should not be called without a token")
	}
}

func TestSessionMiddleware_MalformedHeader_Returns401(t *testing.T) {
	for _, header := range []string{"valid-token", "Basic dXNlcjpwYXNz", "Bearer ", "Bearer    "} {
		t.Run(header, func(t *testing.T) {
			handler := NewSessionMiddleware(&mockSessionVerifier{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
		})
	}
}

func TestSessionMiddleware_ExpiredToken_Returns403(t *testing.T) {
	handler := NewSessionMiddleware(validTokenVerifier("valid-token", "user-123"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if code := decodeErrorCode(t, w); code != model.ErrCodeSessionExpired {
		t.Errorf("code = %q, want %q", code, model.ErrCodeSessionExpired)
	}
}

func TestSessionMiddleware_VerifierError_Returns500(t *testing.T) {
	verifier := &mockSessionVerifier{
		verifyFn: func(ctx context.Context, token string) (string, error) {
			return "", errors.New("db down")
		},
	}
	handler := NewSessionMiddleware(verifier)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer any")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer  abc ", "abc", true},
		{"", "", false},
		{"Bearer", "", false},
		{"Token abc", "", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := TokenFromRequest(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("TokenFromRequest(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := UserIDFromContext(context.Background()); err == nil {
		t.Error("expected error for missing user ID")
	}
}

func TestUserIDFromContext_ValidValue_ReturnsUserID(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-456")
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if userID != "user-456" {
		t.Errorf("userID = %q, want %q", userID, "user-456")
	}
}
