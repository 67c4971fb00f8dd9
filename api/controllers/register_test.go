package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/dcastano/framevault-backend/internal/auth"
	"github.com/dcastano/framevault-backend/internal/users"
	pkgerrors "github.com/dcastano/framevault-backend/pkg/errors"
)

func registerBody() []byte {
	return []byte(`{
		"first_name": "Ana",
		"last_name": "Castro",
		"email": "ana@example.com",
		"username": "ana",
		"password": "Secret123!",
		"accept_tos": true
	}`)
}

func TestAuthRegisterSuccess(t *testing.T) {
	user := &users.UserDTO{ID: uuid.New(), Email: "ana@example.com", Username: "ana"}
	handler := AuthRegister(
		stubRegisterService{user: user},
		stubAuthService{resp: &auth.LoginResponse{
			AccessToken:  "access-token",
			RefreshToken: "refresh-token",
			User:         user,
		}},
		nil,
	)

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(registerBody()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if got := rec.Header().Get(accessTokenHeader); got != "access-token" {
		t.Fatalf("expected token header, got %q", got)
	}

	var envelope struct {
		Data auth.LoginResponse `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.User == nil || envelope.Data.User.Email != "ana@example.com" {
		t.Fatalf("expected registered user, got %+v", envelope.Data.User)
	}
}

func TestAuthRegisterPropagatesConflict(t *testing.T) {
	handler := AuthRegister(
		stubRegisterService{err: pkgerrors.New(pkgerrors.CodeConflict, "duplicate")},
		stubAuthService{},
		nil,
	)

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader(registerBody()))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
}

func TestAuthRegisterRejectsMissingFields(t *testing.T) {
	handler := AuthRegister(stubRegisterService{}, stubAuthService{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/register", bytes.NewReader([]byte(`{"password":"Secret123!"}`)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
