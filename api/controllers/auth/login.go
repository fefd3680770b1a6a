// Package auth exposes the subscriber and admin login endpoints.
package auth

import (
	"context"
	"net/http"

	"github.com/angelmondragon/mealbox-backend/api/responses"
	"github.com/angelmondragon/mealbox-backend/api/validators"
	authsvc "github.com/angelmondragon/mealbox-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
)

type loginFunc func(ctx context.Context, req authsvc.LoginRequest) (*authsvc.LoginResponse, error)

// Login issues a subscriber access token.
func Login(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return handleLogin(svc.Login, logg)
}

// AdminLogin issues an admin access token.
func AdminLogin(svc authsvc.Service, logg *logger.Logger) http.HandlerFunc {
	if svc == nil {
		return unavailable(logg)
	}
	return handleLogin(svc.AdminLogin, logg)
}

func handleLogin(login loginFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body authsvc.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.Header().Set("Cache-Control", "no-store")
		responses.WriteSuccess(w, result)
	}
}

func unavailable(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
	}
}
