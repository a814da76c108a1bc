package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"source": "aws.emr", "detail": {"clusterId": "j-1", "state": "TERMINATED"}}

{"source": "aws.batch", "detail": {"jobId": "job-9", "status": "SUCCEEDED"}}
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write events file: %v", err)
	}

	batch, err := readEvents(path)
	if err != nil {
		t.Fatalf("readEvents failed: %v", err)
	}

	if len(batch) != 2 {
		t.Fatalf("expected 2 events (blank line skipped), got %d", len(batch))
	}

	source, ok := batch[0].Source()
	if !ok || source != "aws.emr" {
		t.Errorf("expected first event source %q, got %q", "aws.emr", source)
	}
	if id, ok := batch[1].Lookup("detail.jobId"); !ok || id != "job-9" {
		t.Errorf("expected second event jobId %q, got %v", "job-9", id)
	}
}

func TestReadEvents_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	content := `{"source": "aws.emr"}
not json at all
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write events file: %v", err)
	}

	_, err := readEvents(path)
	if err == nil {
		t.Fatal("expected error for invalid JSON line")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("expected error to name line 2, got: %v", err)
	}
}

func TestReadEvents_MissingFile(t *testing.T) {
	_, err := readEvents("/nonexistent/events.jsonl")
	if err == nil {
		t.Error("expected error for missing file")
	}
}
