package inmemory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/sie-import/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	job := &jobs.ImportFileJob{JobID: "j1", TenantID: "acme", ImportErrors: []string{"a"}}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob: %v", err)
	}

	// Mutating the caller's copy must not change the stored job.
	job.TenantID = "other"
	job.ImportErrors[0] = "changed"

	got, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.TenantID != "acme" || got.ImportErrors[0] != "a" {
		t.Errorf("stored job was modified: %+v", got)
	}
}

func TestStore_SaveRequiresID(t *testing.T) {
	if err := NewStore().SaveJob(context.Background(), &jobs.ImportFileJob{}); err == nil {
		t.Error("expected error for empty job id")
	}
}

func TestStore_GetUnknown(t *testing.T) {
	_, err := NewStore().GetJob(context.Background(), "missing")
	if !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestStore_ListJobs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	seed := []*jobs.ImportFileJob{
		{JobID: "a", TenantID: "acme", Status: jobs.JobStatusCompleted, CreatedAt: base},
		{JobID: "b", TenantID: "acme", Status: jobs.JobStatusFailed, CreatedAt: base.Add(time.Hour)},
		{JobID: "c", TenantID: "beta", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(2 * time.Hour)},
		{JobID: "d", TenantID: "acme", Status: jobs.JobStatusCompleted, CreatedAt: base.Add(3 * time.Hour)},
	}
	for _, j := range seed {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatalf("SaveJob: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all newest first", jobs.JobFilter{}, []string{"d", "c", "b", "a"}},
		{"by tenant", jobs.JobFilter{TenantID: "acme"}, []string{"d", "b", "a"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"d", "c", "a"}},
		{"limit", jobs.JobFilter{Limit: 2}, []string{"d", "c"}},
		{"offset", jobs.JobFilter{Offset: 3}, []string{"a"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListJobs: %v", err)
			}
			ids := []string{}
			for _, j := range got {
				ids = append(ids, j.JobID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("got %v, want %v", ids, tt.want)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("got %v, want %v", ids, tt.want)
				}
			}
		})
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	_ = s.SaveJob(ctx, &jobs.ImportFileJob{JobID: "j1", Status: jobs.JobStatusPending})

	if err := s.UpdateJobStatus(ctx, "j1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}
	got, _ := s.GetJob(ctx, "j1")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("got %+v", got)
	}
	if got.CompletedAt == nil {
		t.Error("terminal status should stamp CompletedAt")
	}

	_ = s.SaveJob(ctx, &jobs.ImportFileJob{JobID: "j2", Status: jobs.JobStatusPending})
	_ = s.UpdateJobStatus(ctx, "j2", jobs.JobStatusRunning, "")
	if got, _ := s.GetJob(ctx, "j2"); got.CompletedAt != nil {
		t.Error("running job should have no CompletedAt")
	}

	if err := s.UpdateJobStatus(ctx, "nope", jobs.JobStatusFailed, ""); !errors.Is(err, jobs.ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound, got %v", err)
	}
}

func TestJobStatus_Terminal(t *testing.T) {
	terminal := map[jobs.JobStatus]bool{
		jobs.JobStatusPending:   false,
		jobs.JobStatusRunning:   false,
		jobs.JobStatusRetrying:  false,
		jobs.JobStatusCompleted: true,
		jobs.JobStatusFailed:    true,
	}
	for status, want := range terminal {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}
