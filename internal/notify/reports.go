package notify

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/google/uuid"
)

//go:embed templates/*.html
var templateFS embed.FS

const dateLayout = "January 2 2006, 3:04:05 pm"

// RunInfo identifies one auto confirm run.
type RunInfo struct {
	Manual  bool
	Weekday int
	Week    int
	Date    time.Time
}

// SubscriberInfo is what support needs to follow up on a failed order.
type SubscriberInfo struct {
	ID    uuid.UUID
	Email string
	Name  string
}

// Reports renders the auto confirm report emails.
type Reports struct {
	pages      map[string]*template.Template
	recipients []string
	now        func() time.Time
}

func NewReports(recipients []string) (*Reports, error) {
	if len(recipients) == 0 {
		return nil, errors.New("report recipients required")
	}
	pages := make(map[string]*template.Template, 3)
	for _, page := range []string{"run", "subscriber_failed", "crash"} {
		tmpl, err := template.ParseFS(templateFS, "templates/layout.html", "templates/"+page+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", page, err)
		}
		pages[page] = tmpl
	}
	return &Reports{pages: pages, recipients: recipients, now: time.Now}, nil
}

func (r *Reports) RunStarted(info RunInfo) (Message, error) {
	title := "Auto confirm order has started"
	if info.Manual {
		title += " manually (By Admin)"
	}
	return r.render("run", title, runData(info, false, 0, 0))
}

func (r *Reports) RunFinished(info RunInfo, placed, failed int) (Message, error) {
	title := "Auto confirm order has finished"
	if info.Manual {
		title += " (By Admin)"
	}
	return r.render("run", title, runData(info, true, placed, failed))
}

func (r *Reports) SubscriberFailed(sub SubscriberInfo, week int, reason string) (Message, error) {
	return r.render("subscriber_failed", "Auto confirm order failed for a user", map[string]any{
		"ID":     sub.ID.String(),
		"Email":  sub.Email,
		"Name":   strings.TrimSpace(sub.Name),
		"Week":   week,
		"Reason": reason,
	})
}

func (r *Reports) Crash(reason string) (Message, error) {
	return r.render("crash", "Crash Report", map[string]any{"Reason": reason})
}

func runData(info RunInfo, finished bool, placed, failed int) map[string]any {
	return map[string]any{
		"Weekday":  info.Weekday,
		"Week":     info.Week,
		"Date":     info.Date.Format(dateLayout),
		"Finished": finished,
		"Placed":   placed,
		"Failed":   failed,
	}
}

func (r *Reports) render(page, title string, data map[string]any) (Message, error) {
	var buf bytes.Buffer
	err := r.pages[page].ExecuteTemplate(&buf, "layout", map[string]any{
		"Heading": "Auto confirm order",
		"Title":   title,
		"Year":    r.now().Year(),
		"Data":    data,
	})
	if err != nil {
		return Message{}, fmt.Errorf("render %s report: %w", page, err)
	}
	return Message{Subject: title, Recipients: r.recipients, Body: buf.String()}, nil
}
