// Package autoconfirm places the weekly plan order for every subscriber
// whose lockdown day passed without a confirmation.
package autoconfirm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/mealbox-backend/internal/notify"
	"github.com/angelmondragon/mealbox-backend/internal/planorders"
	"github.com/angelmondragon/mealbox-backend/internal/weekcal"
	"github.com/angelmondragon/mealbox-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/mealbox-backend/pkg/errors"
	"github.com/angelmondragon/mealbox-backend/pkg/logger"
	"github.com/angelmondragon/mealbox-backend/pkg/metrics"
)

const (
	defaultThrottle      = 200 * time.Millisecond
	defaultNotifyTimeout = 10 * time.Second
)

// Trigger tells scheduled runs apart from operator runs in reports.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

type eligibleLister interface {
	ListEligibleForAutoConfirm(ctx context.Context, lockdownDay, week int) ([]models.Subscriber, error)
}

type poolLoader interface {
	WeeklyPool(ctx context.Context, week int) ([]models.Meal, error)
}

type confirmer interface {
	AutoConfirm(ctx context.Context, input planorders.AutoConfirmInput) (*planorders.ConfirmResult, error)
}

type RunnerParams struct {
	Subscribers   eligibleLister
	Meals         poolLoader
	Orders        confirmer
	Calendar      *weekcal.Calendar
	Notifier      notify.Notifier
	Reports       *notify.Reports
	Metrics       *metrics.AutoConfirmMetrics
	Logger        *logger.Logger
	Throttle      time.Duration
	NotifyTimeout time.Duration
}

// Failure is one subscriber the run could not serve.
type Failure struct {
	SubscriberID uuid.UUID
	Email        string
	Err          error
}

// Report summarises a run.
type Report struct {
	Trigger         Trigger
	Date            time.Time
	Weekday         int
	Week            int
	Eligible        int
	Placed          int
	BillingFailures int
	Failures        []Failure
}

// Err joins the per-subscriber failures.
func (r Report) Err() error {
	var errs error
	for _, f := range r.Failures {
		errs = multierr.Append(errs, fmt.Errorf("subscriber %s: %w", f.SubscriberID, f.Err))
	}
	return errs
}

// Runner walks the eligible subscribers one at a time.
type Runner struct {
	subscribers   eligibleLister
	meals         poolLoader
	orders        confirmer
	calendar      *weekcal.Calendar
	notifier      notify.Notifier
	reports       *notify.Reports
	metrics       *metrics.AutoConfirmMetrics
	logg          *logger.Logger
	throttle      time.Duration
	notifyTimeout time.Duration
}

func NewRunner(params RunnerParams) (*Runner, error) {
	if params.Subscribers == nil {
		return nil, errors.New("subscriber lister required")
	}
	if params.Meals == nil {
		return nil, errors.New("meal pool loader required")
	}
	if params.Orders == nil {
		return nil, errors.New("plan order service required")
	}
	if params.Calendar == nil {
		return nil, errors.New("calendar required")
	}
	if params.Reports == nil {
		return nil, errors.New("reports required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	notifier := params.Notifier
	if notifier == nil {
		notifier = notify.Noop{}
	}
	throttle := params.Throttle
	if throttle < 0 {
		throttle = 0
	} else if throttle == 0 {
		throttle = defaultThrottle
	}
	notifyTimeout := params.NotifyTimeout
	if notifyTimeout <= 0 {
		notifyTimeout = defaultNotifyTimeout
	}
	return &Runner{
		subscribers:   params.Subscribers,
		meals:         params.Meals,
		orders:        params.Orders,
		calendar:      params.Calendar,
		notifier:      notifier,
		reports:       params.Reports,
		metrics:       params.Metrics,
		logg:          params.Logger,
		throttle:      throttle,
		notifyTimeout: notifyTimeout,
	}, nil
}

// Run evaluates yesterday's lockdown day: subscribers whose cutoff was
// yesterday and who still point at yesterday's week get an order drawn from
// that week's menu. Per-subscriber failures, panics included, are reported
// and skipped; only failures before the loop or a cancelled context end the
// run with an error.
func (r *Runner) Run(ctx context.Context, trigger Trigger) (report Report, err error) {
	at := r.calendar.YesterdayOf(r.calendar.Now())
	report = Report{
		Trigger: trigger,
		Date:    at,
		Weekday: r.calendar.ISOWeekday(at),
		Week:    r.calendar.ISOWeek(at),
	}
	info := notify.RunInfo{Manual: trigger == TriggerManual, Weekday: report.Weekday, Week: report.Week, Date: at}
	ctx = r.logg.WithFields(ctx, map[string]any{
		"trigger":      string(trigger),
		"lockdown_day": report.Weekday,
		"week":         report.Week,
	})

	defer func() {
		if rec := recover(); rec != nil {
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("auto confirm panicked: %v", rec))
		}
		if err != nil {
			r.logg.Error(ctx, "auto confirm run aborted", err)
			r.send(ctx, func() (notify.Message, error) { return r.reports.Crash(err.Error()) })
		}
	}()

	r.send(ctx, func() (notify.Message, error) { return r.reports.RunStarted(info) })

	subs, err := r.subscribers.ListEligibleForAutoConfirm(ctx, report.Weekday, report.Week)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list eligible subscribers")
	}
	report.Eligible = len(subs)
	r.metrics.SetEligible(len(subs))

	pool, err := r.meals.WeeklyPool(ctx, report.Week)
	if err != nil {
		return report, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load weekly menu")
	}
	if pool == nil {
		pool = []models.Meal{}
	}

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !r.process(ctx, &report, sub, pool) {
			continue
		}
		if err := r.sleep(ctx); err != nil {
			return report, err
		}
	}

	r.logg.Info(r.logg.WithFields(ctx, map[string]any{
		"eligible":         report.Eligible,
		"placed":           report.Placed,
		"failed":           len(report.Failures),
		"billing_failures": report.BillingFailures,
	}), "auto confirm run finished")
	r.send(ctx, func() (notify.Message, error) {
		return r.reports.RunFinished(info, report.Placed, len(report.Failures))
	})
	return report, nil
}

func (r *Runner) process(ctx context.Context, report *Report, sub models.Subscriber, pool []models.Meal) bool {
	subCtx := r.logg.WithSubscriberID(ctx, sub.ID.String())
	who := notify.SubscriberInfo{ID: sub.ID, Email: sub.Email, Name: strings.TrimSpace(sub.FirstName + " " + sub.LastName)}

	res, err := r.autoConfirm(subCtx, planorders.AutoConfirmInput{
		SubscriberID: sub.ID,
		Week:         report.Week,
		Weekday:      report.Weekday,
		Pool:         pool,
	})
	if err == nil && res == nil {
		err = pkgerrors.New(pkgerrors.CodeInternal, "auto confirm returned no result")
	}
	if err != nil {
		report.Failures = append(report.Failures, Failure{SubscriberID: sub.ID, Email: sub.Email, Err: err})
		r.metrics.IncFailure(string(pkgerrors.CodeOf(err)))
		r.logg.Warn(r.logg.WithField(subCtx, "reason", err.Error()), "auto confirm failed for subscriber")
		r.send(subCtx, func() (notify.Message, error) {
			return r.reports.SubscriberFailed(who, report.Week, err.Error())
		})
		return false
	}

	report.Placed++
	r.metrics.IncOrder(string(report.Trigger))
	if res.BillingErr != nil {
		report.BillingFailures++
		r.metrics.IncBillingFailure()
		r.send(subCtx, func() (notify.Message, error) {
			return r.reports.SubscriberFailed(who, report.Week, "order placed, subscription sync failed: "+res.BillingErr.Error())
		})
	}
	return true
}

// autoConfirm turns a panic for one subscriber into that subscriber's
// failure so the rest of the batch still runs.
func (r *Runner) autoConfirm(ctx context.Context, input planorders.AutoConfirmInput) (res *planorders.ConfirmResult, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = nil
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("auto confirm panicked: %v", rec))
		}
	}()
	return r.orders.AutoConfirm(ctx, input)
}

// send delivers a report without letting its outcome touch the run. It
// survives cancellation of ctx so crash reports still go out.
func (r *Runner) send(ctx context.Context, build func() (notify.Message, error)) {
	msg, err := build()
	if err != nil {
		r.logg.Error(ctx, "render auto confirm report", err)
		return
	}
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.notifyTimeout)
	defer cancel()
	if err := r.notifier.Send(sendCtx, msg); err != nil {
		r.logg.Error(r.logg.WithField(ctx, "subject", msg.Subject), "auto confirm report not delivered", err)
	}
}

func (r *Runner) sleep(ctx context.Context) error {
	if r.throttle <= 0 {
		return nil
	}
	timer := time.NewTimer(r.throttle)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
