package job_test

import (
	"context"
	"sync"

	"bothelp.app/voiceover/internal/job"
)

// fakeAPI scripts a remote job service and records the call order.
type fakeAPI struct {
	mu sync.Mutex

	createFn func(ctx context.Context) (job.JobHandle, error)
	submitFn func(ctx context.Context, jobID job.JobHandle, content string) error
	startFn  func(ctx context.Context, jobID job.JobHandle) (job.RunHandle, error)
	statusFn func(ctx context.Context, jobID job.JobHandle, runID job.RunHandle) (job.StatusReport, error)
	resultFn func(ctx context.Context, jobID job.JobHandle, runID job.RunHandle) (string, error)

	statuses  []job.StatusReport
	result    string
	calls     []string
	submitted []string
	polls     int
}

func (f *fakeAPI) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeAPI) CreateJob(ctx context.Context) (job.JobHandle, error) {
	f.record("create")
	if f.createFn != nil {
		return f.createFn(ctx)
	}
	return "thread_1", nil
}

func (f *fakeAPI) Submit(ctx context.Context, jobID job.JobHandle, content string) error {
	f.record("submit")
	f.mu.Lock()
	f.submitted = append(f.submitted, content)
	f.mu.Unlock()
	if f.submitFn != nil {
		return f.submitFn(ctx, jobID, content)
	}
	return nil
}

func (f *fakeAPI) Start(ctx context.Context, jobID job.JobHandle) (job.RunHandle, error) {
	f.record("start")
	if f.startFn != nil {
		return f.startFn(ctx, jobID)
	}
	return "run_1", nil
}

func (f *fakeAPI) Status(ctx context.Context, jobID job.JobHandle, runID job.RunHandle) (job.StatusReport, error) {
	f.record("status")
	if f.statusFn != nil {
		return f.statusFn(ctx, jobID, runID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.polls
	f.polls++
	if idx >= len(f.statuses) {
		return f.statuses[len(f.statuses)-1], nil
	}
	return f.statuses[idx], nil
}

func (f *fakeAPI) Result(ctx context.Context, jobID job.JobHandle, runID job.RunHandle) (string, error) {
	f.record("result")
	if f.resultFn != nil {
		return f.resultFn(ctx, jobID, runID)
	}
	return f.result, nil
}

func (f *fakeAPI) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}
