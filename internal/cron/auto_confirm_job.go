package cron

import (
	"context"
	"errors"

	"github.com/angelmondragon/mealbox-backend/internal/autoconfirm"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
)

const autoConfirmJobName = "auto-confirm"

type autoConfirmRunner interface {
	Run(ctx context.Context, trigger autoconfirm.Trigger) (autoconfirm.Report, error)
}

// AutoConfirmJob places the weekly orders for subscribers whose lockdown day
// passed yesterday.
type AutoConfirmJob struct {
	runner  autoConfirmRunner
	trigger autoconfirm.Trigger
	logg    *logger.Logger
}

func NewAutoConfirmJob(runner autoConfirmRunner, trigger autoconfirm.Trigger, logg *logger.Logger) (*AutoConfirmJob, error) {
	if runner == nil {
		return nil, errors.New("auto confirm runner required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if trigger == "" {
		trigger = autoconfirm.TriggerScheduled
	}
	return &AutoConfirmJob{runner: runner, trigger: trigger, logg: logg}, nil
}

func (j *AutoConfirmJob) Name() string { return autoConfirmJobName }

// Run succeeds when the batch completed, even if some subscribers failed;
// those are reported by the runner itself.
func (j *AutoConfirmJob) Run(ctx context.Context) error {
	report, err := j.runner.Run(ctx, j.trigger)
	if err != nil {
		return err
	}
	if failed := len(report.Failures); failed > 0 {
		j.logg.Warn(j.logg.WithFields(ctx, map[string]any{
			"failed": failed,
			"placed": report.Placed,
			"week":   report.Week,
			"errors": report.Err().Error(),
		}), "auto confirm finished with failures")
	}
	return nil
}
