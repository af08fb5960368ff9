package service_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"bothelp.app/voiceover/internal/delivery"
	"bothelp.app/voiceover/internal/job"
)

type mockRunner struct {
	runFn func(ctx context.Context, input string, timeout time.Duration) (*job.Result, error)

	mu     sync.Mutex
	inputs []string
}

func (m *mockRunner) Run(ctx context.Context, input string, timeout time.Duration) (*job.Result, error) {
	m.mu.Lock()
	m.inputs = append(m.inputs, input)
	m.mu.Unlock()
	if m.runFn != nil {
		return m.runFn(ctx, input, timeout)
	}
	return &job.Result{JobID: "thread_1", RunID: "run_1", Text: "generated", Polls: 2}, nil
}

func (m *mockRunner) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.inputs...)
}

type mockDeliverer struct {
	mu         sync.Mutex
	deliveries []delivery.Delivery
}

func (m *mockDeliverer) Deliver(ctx context.Context, d delivery.Delivery) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveries = append(m.deliveries, d)
}

func (m *mockDeliverer) delivered() []delivery.Delivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]delivery.Delivery(nil), m.deliveries...)
}

type failingMessenger struct {
	mu    sync.Mutex
	calls int
}

func (m *failingMessenger) SendMessage(ctx context.Context, destination, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return errors.New("connection reset by peer")
}

func (m *failingMessenger) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
