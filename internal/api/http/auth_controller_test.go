package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/quickmeet/signaling/internal/security"
	"github.com/quickmeet/signaling/internal/session"
)

func newAuthRouter(t *testing.T) (*gin.Engine, session.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	tokens := security.NewTokenManager("test-secret", time.Hour)
	store := session.NewMemoryStore(time.Minute)
	controller := NewAuthController(tokens, store)

	router := gin.New()
	router.POST("/api/auth/login", controller.Login)
	router.POST("/api/auth/logout", AuthMiddleware(tokens, store), controller.Logout)
	return router, store
}

func postJSON(t *testing.T, router *gin.Engine, target, token string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestLoginThenLogoutRevokesSession(t *testing.T) {
	router, store := newAuthRouter(t)

	w := postJSON(t, router, "/api/auth/login", "", []byte(`{"userId":"alice","nickName":"Alice"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("login: want 200, got %d (%s)", w.Code, w.Body.String())
	}
	var loginResp struct {
		Token  string `json:"token"`
		UserID string `json:"userId"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &loginResp); err != nil || loginResp.Token == "" {
		t.Fatalf("login: bad response %q err=%v", w.Body.String(), err)
	}

	sess, err := store.GetSessionByToken(context.Background(), loginResp.Token)
	if err != nil || sess.UserID != "alice" {
		t.Fatalf("login: session not established: %+v err=%v", sess, err)
	}

	w = postJSON(t, router, "/api/auth/logout", loginResp.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("logout: want 200, got %d (%s)", w.Code, w.Body.String())
	}

	if _, err := store.GetSessionByToken(context.Background(), loginResp.Token); !errors.Is(err, session.ErrNotFound) {
		t.Fatalf("logout: session must be revoked, got err=%v", err)
	}

	// The revoked token no longer authenticates.
	w = postJSON(t, router, "/api/auth/logout", loginResp.Token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("logout twice: want 401, got %d", w.Code)
	}
}

func TestLoginRejectsMissingNickname(t *testing.T) {
	router, _ := newAuthRouter(t)

	w := postJSON(t, router, "/api/auth/login", "", []byte(`{"userId":"alice"}`))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("login: want 400 without nickname, got %d", w.Code)
	}
}
