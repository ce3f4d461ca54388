package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Job is one labelled variant table.
type Job struct {
	Label string
	Path  string
}

// Factory builds the processor and sink opener for a job. It is called once
// per job so each run owns its providers and output.
type Factory func(job Job) (*Processor, SinkOpener, error)

// RunAll runs jobs concurrently, at most parallel at a time (no limit when
// parallel < 1). Summaries are returned in job order. Labels are independent:
// a fatal error ends only its own label, and the errors of all failed labels
// are joined. Cancelling ctx stops every label.
func RunAll(ctx context.Context, jobs []Job, parallel int, factory Factory) ([]Summary, error) {
	seen := make(map[string]bool, len(jobs))
	for _, job := range jobs {
		if seen[job.Label] {
			return nil, fmt.Errorf("duplicate label %q", job.Label)
		}
		seen[job.Label] = true
	}

	summaries := make([]Summary, len(jobs))
	errs := make([]error, len(jobs))
	var g errgroup.Group
	if parallel > 0 {
		g.SetLimit(parallel)
	}
	for i, job := range jobs {
		g.Go(func() error {
			proc, open, err := factory(job)
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", job.Label, err)
				return nil
			}
			s, err := proc.RunFile(ctx, job.Label, job.Path, open)
			summaries[i] = s
			if err != nil {
				errs[i] = fmt.Errorf("%s: %w", job.Label, err)
			}
			return nil
		})
	}
	g.Wait()
	return summaries, errors.Join(errs...)
}
