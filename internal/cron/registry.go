package cron

import "context"

// Job is one unit of scheduled work. Name labels its logs and metrics and
// must be unique within a Registry.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs of one scheduled run in registration order.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register adds job and reports whether it was accepted. Nil jobs and a
// second job under an existing name are ignored.
func (r *Registry) Register(job Job) bool {
	if job == nil {
		return false
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	if _, dup := r.names[job.Name()]; dup {
		return false
	}
	r.names[job.Name()] = struct{}{}
	r.jobs = append(r.jobs, job)
	return true
}

// Jobs returns a copy.
func (r *Registry) Jobs() []Job {
	return append([]Job(nil), r.jobs...)
}
