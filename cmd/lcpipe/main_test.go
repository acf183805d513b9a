package main

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/eEcoLiDAR/lcMacroPipeline/internal/config"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/orchestrator"
	"github.com/eEcoLiDAR/lcMacroPipeline/internal/state"
	"github.com/eEcoLiDAR/lcMacroPipeline/pkg/models"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{250 * time.Millisecond, "250ms"},
		{1500 * time.Millisecond, "1.5s"},
		{2 * time.Minute, "2m"},
		{2*time.Minute + 5*time.Second, "2m5s"},
		{3 * time.Hour, "3h"},
		{3*time.Hour + 20*time.Minute, "3h20m"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.expected {
			t.Errorf("formatDuration(%s) = %q, want %q", tt.d, got, tt.expected)
		}
	}
}

func TestBackendOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.Workers = 3
	cfg.Backend.SSH.Hosts = []string{"node1", "node2"}
	cfg.Backend.SSH.User = "lidar"
	cfg.Backend.SSH.Port = 2222
	cfg.Backend.SSH.Options = []string{"ConnectTimeout=10"}

	want := orchestrator.BackendOptions{
		Workers: 3,
		SSH: orchestrator.SSHOptions{
			Hosts:          []string{"node1", "node2"},
			User:           "lidar",
			Port:           2222,
			Options:        []string{"ConnectTimeout=10"},
			RemoteBinary:   "lcpipe",
			WorkersPerHost: 1,
		},
	}
	if diff := cmp.Diff(want, backendOptions(cfg)); diff != "" {
		t.Errorf("backendOptions mismatch (-want +got):\n%s", diff)
	}
}

func TestGetConfigValue(t *testing.T) {
	cfg := config.Default()
	cfg.Backend.SSH.Hosts = []string{"a", "b"}

	for _, key := range configKeys {
		if _, err := getConfigValue(cfg, key); err != nil {
			t.Errorf("getConfigValue(%q) failed: %v", key, err)
		}
	}

	if v, _ := getConfigValue(cfg, "Backend.Mode"); v != "local" {
		t.Errorf("backend.mode = %q, want local", v)
	}
	if v, _ := getConfigValue(cfg, "backend.ssh.hosts"); v != "a,b" {
		t.Errorf("backend.ssh.hosts = %q, want a,b", v)
	}
	if _, err := getConfigValue(cfg, "anthropic.api_key"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestCountCells(t *testing.T) {
	rec := models.RetileRecord{RedistributedTo: []string{"tile_0_0", "tile_0_1", "tile_0_0"}}
	if got := countCells(rec); got != 2 {
		t.Errorf("countCells = %d, want 2", got)
	}
}

func TestRunsTable(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	runs := []state.Run{
		{ID: "ab12cd34", Mode: "local", Total: 3, Succeeded: 3, Status: state.RunCompleted, StartedAt: start, FinishedAt: &end},
		{ID: "ef56ab78", Mode: "ssh", Total: 2, Status: state.RunRunning, StartedAt: start},
	}

	out := runsTable(runs, start.Add(2*time.Hour))
	for _, want := range []string{"RUN", "ab12cd34", "ef56ab78", "completed", "running", "1m30s", "2h"} {
		if !strings.Contains(out, want) {
			t.Errorf("runs table missing %q:\n%s", want, out)
		}
	}
}

func TestTasksTable(t *testing.T) {
	results := []state.TaskResult{
		{ID: "t1", Index: 0, Name: "a.las", Duration: time.Second},
		{ID: "t2", Index: 1, Name: "b.las", Kind: "not_found", Error: "input file b.las: not found"},
		{ID: "t3", Index: 2, Name: "c.las"},
	}
	records := []state.StoredRecord{
		{TaskID: "t1", RetileRecord: models.RetileRecord{File: "a.las", RedistributedTo: []string{"tile_0_0"}, Validated: true}},
		{TaskID: "t3", RetileRecord: models.RetileRecord{File: "c.las", RedistributedTo: []string{}}},
	}

	out := tasksTable(results, records)
	for _, want := range []string{"a.las", "not_found", "not validated"} {
		if !strings.Contains(out, want) {
			t.Errorf("tasks table missing %q:\n%s", want, out)
		}
	}
}
