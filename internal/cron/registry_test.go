package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrder(t *testing.T) {
	confirm := &stubJob{name: "auto-confirm"}
	cleanup := &stubJob{name: "cleanup"}
	registry := NewRegistry(confirm, nil, cleanup)

	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != confirm || jobs[1] != cleanup {
		t.Fatalf("jobs returned out of order")
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	var registry Registry
	if !registry.Register(&stubJob{name: "auto-confirm"}) {
		t.Fatalf("first registration should be accepted")
	}
	if registry.Register(&stubJob{name: "auto-confirm"}) {
		t.Fatalf("duplicate name should be rejected")
	}
	if registry.Register(nil) {
		t.Fatalf("nil job should be rejected")
	}
	if got := len(registry.Jobs()); got != 1 {
		t.Fatalf("expected 1 job, got %d", got)
	}
}
