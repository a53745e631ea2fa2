package stores

import (
	"context"
	"testing"

	"github.com/dvloznov/sie-import/internal/config"
	"github.com/dvloznov/sie-import/internal/notionsync"
	"github.com/dvloznov/sie-import/internal/pipeline"
)

func TestOpen_Notion(t *testing.T) {
	cfg := config.Config{
		Store:  config.StoreConfig{Backend: config.StoreNotion},
		Notion: config.NotionConfig{Token: "secret", DatabaseID: "db-1"},
	}

	b, err := Open(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Open returned error: %v", err)
	}
	defer b.Close()

	if b.Name != config.StoreNotion {
		t.Errorf("Name = %q, want notion", b.Name)
	}
	if _, ok := b.Periods.(*notionsync.PeriodStore); !ok {
		t.Errorf("Periods = %T, want *notionsync.PeriodStore", b.Periods)
	}
	if _, ok := b.Runs.(pipeline.LogRunTracker); !ok {
		t.Errorf("Runs = %T, want pipeline.LogRunTracker", b.Runs)
	}

	deps := b.Deps(nil)
	if deps.Store != b.Periods || deps.Runs != b.Runs {
		t.Errorf("Deps = %+v", deps)
	}
}

func TestOpen_MissingSettings(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"notion without token", config.Config{
			Store:  config.StoreConfig{Backend: config.StoreNotion},
			Notion: config.NotionConfig{DatabaseID: "db-1"},
		}},
		{"bigquery without project", config.Config{
			Store: config.StoreConfig{Backend: config.StoreBigQuery},
		}},
		{"unknown backend", config.Config{
			Store: config.StoreConfig{Backend: "sqlite"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Open(context.Background(), tt.cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
