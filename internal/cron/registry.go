package cron

import "context"

// Job is one unit of scheduled settlement work: the auto-complete sweep, a
// payout run, reconcile, or a retention prune. Run returns an error for the
// cycle aggregator; it must not panic the worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a worker cycle executes, in registration order.
// Order matters: the sweep runs before payout jobs so freshly settled
// revenue is visible to the same cycle's payout run.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs, skipping
// nils so optional jobs can be wired conditionally.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		registry.jobs = append(registry.jobs, job)
	}
	return registry
}

// Register appends a job to the cycle.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the registered jobs in execution order.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
