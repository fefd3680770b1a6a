package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	authsvc "github.com/angelmondragon/mealbox-backend/internal/auth"
	"github.com/angelmondragon/mealbox-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
)

type stubAuth struct {
	req       authsvc.LoginRequest
	adminCall bool
	calls     int
	err       error
}

func (s *stubAuth) respond(req authsvc.LoginRequest, role enums.Role) (*authsvc.LoginResponse, error) {
	s.calls++
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &authsvc.LoginResponse{AccessToken: "token", ExpiresAt: time.Now().Add(time.Hour), UserID: uuid.New(), Role: role}, nil
}

func (s *stubAuth) Login(_ context.Context, req authsvc.LoginRequest) (*authsvc.LoginResponse, error) {
	return s.respond(req, enums.RoleSubscriber)
}

func (s *stubAuth) AdminLogin(_ context.Context, req authsvc.LoginRequest) (*authsvc.LoginResponse, error) {
	s.adminCall = true
	return s.respond(req, enums.RoleAdmin)
}

func TestLogin(t *testing.T) {
	svc := &stubAuth{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(`{"email":"sam@mealbox.test","password":"secret"}`))
	resp := httptest.NewRecorder()
	Login(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.adminCall || svc.req.Email != "sam@mealbox.test" || svc.req.Password != "secret" {
		t.Fatalf("unexpected call %+v admin=%v", svc.req, svc.adminCall)
	}
	if resp.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("token response must not be cached")
	}
	var envelope struct {
		Data struct {
			AccessToken string `json:"access_token"`
			Role        string `json:"role"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Data.AccessToken != "token" || envelope.Data.Role != "subscriber" {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestAdminLoginUsesAdminPath(t *testing.T) {
	svc := &stubAuth{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/auth/login", strings.NewReader(`{"email":"ops@mealbox.test","password":"secret"}`))
	resp := httptest.NewRecorder()
	AdminLogin(svc, nil).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK || !svc.adminCall {
		t.Fatalf("expected admin login, got %d admin=%v", resp.Code, svc.adminCall)
	}
}

func TestLoginErrors(t *testing.T) {
	svc := &stubAuth{}
	resp := httptest.NewRecorder()
	Login(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"not-an-email","password":"x"}`)))
	if resp.Code != http.StatusBadRequest || svc.calls != 0 {
		t.Fatalf("expected 400 without a service call, got %d calls=%d", resp.Code, svc.calls)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	resp = httptest.NewRecorder()
	Login(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"sam@mealbox.test","password":"wrong"}`)))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	Login(nil, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
