package engine

import (
	"context"
	"io"
	"testing"
)

type mockEngine struct {
	isRunning bool
	models    map[string]bool
	pulled    []string
}

func (m *mockEngine) Name() string { return "mock" }
func (m *mockEngine) Generate(_ context.Context, _, _ string, _ GenerateOptions) (string, error) {
	return "", nil
}
func (m *mockEngine) IsRunning(_ context.Context) bool { return m.isRunning }
func (m *mockEngine) ListModels(_ context.Context) ([]string, error) {
	var names []string
	for n := range m.models {
		names = append(names, n)
	}
	return names, nil
}
func (m *mockEngine) HasModel(_ context.Context, name string) bool { return m.models[name] }
func (m *mockEngine) PullModel(_ context.Context, name string, cb func(PullProgress)) error {
	m.pulled = append(m.pulled, name)
	if cb != nil {
		cb(PullProgress{Status: "success"})
	}
	return nil
}

func TestEnsureReady_AllModelsPresent(t *testing.T) {
	m := &mockEngine{
		isRunning: true,
		models:    map[string]bool{"llama3.2": true, "qwen2.5": true},
	}
	if err := EnsureReady(context.Background(), m, []string{"llama3.2", "qwen2.5"}, io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 0 {
		t.Errorf("expected no pulls, got %v", m.pulled)
	}
}

func TestEnsureReady_PullsMissingOnce(t *testing.T) {
	m := &mockEngine{
		isRunning: true,
		models:    map[string]bool{"llama3.2": true},
	}
	err := EnsureReady(context.Background(), m, []string{"llama3.2", "qwen2.5", "qwen2.5", ""}, io.Discard)
	if err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 || m.pulled[0] != "qwen2.5" {
		t.Errorf("expected one pull of qwen2.5, got %v", m.pulled)
	}
}

func TestEnsureReady_ThroughBreaker(t *testing.T) {
	m := &mockEngine{isRunning: true, models: map[string]bool{}}
	b := NewBreakerEngine(m, DefaultBreakerSettings)
	if err := EnsureReady(context.Background(), b, []string{"llama3.2"}, io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
	if len(m.pulled) != 1 {
		t.Errorf("expected pull through breaker, got %v", m.pulled)
	}
}

func TestEnsureReady_EngineDown(t *testing.T) {
	m := &mockEngine{isRunning: false, models: map[string]bool{}}
	if err := EnsureReady(context.Background(), m, []string{"llama3.2"}, io.Discard); err == nil {
		t.Fatal("expected error when engine is down")
	}
}

func TestEnsureReady_RemoteBackendSkipsPull(t *testing.T) {
	f := &flakyEngine{}
	if err := EnsureReady(context.Background(), f, []string{"gpt-4o-mini"}, io.Discard); err != nil {
		t.Fatalf("EnsureReady: %v", err)
	}
}
