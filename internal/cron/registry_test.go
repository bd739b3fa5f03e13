package cron

import (
	"context"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string { return s.name }

func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryStoresJobsInOrder(t *testing.T) {
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	registry, err := NewRegistry(jobA, nil)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	if err := registry.Register(jobB); err != nil {
		t.Fatalf("register: %v", err)
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
	if _, err := NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"}); err == nil {
		t.Fatal("expected duplicate name error")
	}
}

func TestRegistryLookup(t *testing.T) {
	registry, _ := NewRegistry(&stubJob{name: "reaper"})
	if _, ok := registry.Lookup("reaper"); !ok {
		t.Fatal("expected reaper job")
	}
	if _, ok := registry.Lookup("missing"); ok {
		t.Fatal("unexpected job")
	}
}
