// Package admin holds operator-only endpoints.
package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/angelmondragon/mealbox-backend/api/responses"
	"github.com/angelmondragon/mealbox-backend/internal/cron"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
)

type runTrigger interface {
	Trigger(ctx context.Context) error
}

// RunAutoConfirm starts a manual auto confirm run in the background. The run
// reports through the usual support notifications.
func RunAutoConfirm(trigger runTrigger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if trigger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auto confirm unavailable"))
			return
		}
		if err := trigger.Trigger(r.Context()); err != nil {
			if errors.Is(err, cron.ErrLocked) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeConflict, "auto confirm run already in progress"))
				return
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "start auto confirm run"))
			return
		}
		if logg != nil {
			logg.Info(r.Context(), "manual auto confirm run started")
		}
		responses.WriteSuccessStatus(w, http.StatusAccepted, map[string]string{"status": "started"})
	}
}
