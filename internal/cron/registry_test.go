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

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	for _, job := range []Job{jobA, nil, jobB} {
		if err := registry.Register(job); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("jobs returned out of order")
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatalf("internal slice leaked")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	registry := NewRegistry()
	if err := registry.Register(&stubJob{name: "order-expiry"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := registry.Register(&stubJob{name: "order-expiry"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}
