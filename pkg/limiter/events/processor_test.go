package events

import "testing"

func TestProcessor_Match(t *testing.T) {
	processor := NewProcessor("aws.emr", "detail.clusterId",
		Contains("detail.state", "TERMINATED"))

	tests := []struct {
		name   string
		event  Event
		wantID string
		wantOK bool
	}{
		{
			name: "predicate passes",
			event: Event{
				"source": "aws.emr",
				"detail": map[string]any{"clusterId": "j-ABC", "state": "TERMINATED"},
			},
			wantID: "j-ABC",
			wantOK: true,
		},
		{
			name: "predicate rejects",
			event: Event{
				"source": "aws.emr",
				"detail": map[string]any{"clusterId": "j-ABC", "state": "RUNNING"},
			},
			wantOK: false,
		},
		{
			name: "id path missing",
			event: Event{
				"source": "aws.emr",
				"detail": map[string]any{"state": "TERMINATED"},
			},
			wantOK: false,
		},
		{
			name: "id not a scalar",
			event: Event{
				"source": "aws.emr",
				"detail": map[string]any{
					"clusterId": map[string]any{"oops": true},
					"state":     "TERMINATED",
				},
			},
			wantOK: false,
		},
		{
			name: "empty id",
			event: Event{
				"source": "aws.emr",
				"detail": map[string]any{"clusterId": "", "state": "TERMINATED"},
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := processor.Match(tt.event)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if id != tt.wantID {
				t.Errorf("Expected id %q, got %q", tt.wantID, id)
			}
		})
	}
}

func TestProcessor_NoPredicatesAlwaysProceeds(t *testing.T) {
	processor := NewProcessor("custom.source", "detail.id")

	id, ok := processor.Match(Event{
		"source": "custom.source",
		"detail": map[string]any{"id": "r-1"},
	})
	if !ok {
		t.Fatal("Expected a processor without predicates to proceed")
	}
	if id != "r-1" {
		t.Errorf("Expected r-1, got %s", id)
	}
}

func TestProcessor_NumericID(t *testing.T) {
	processor := NewProcessor("custom.source", "detail.id")

	// JSON unmarshaling delivers numbers as float64
	id, ok := processor.Match(Event{
		"source": "custom.source",
		"detail": map[string]any{"id": float64(42)},
	})
	if !ok {
		t.Fatal("Expected numeric id to match")
	}
	if id != "42" {
		t.Errorf("Expected 42, got %s", id)
	}
}

func TestDefaultProcessors(t *testing.T) {
	tests := []struct {
		name      string
		processor Processor
		event     Event
		wantID    string
		wantOK    bool
	}{
		{
			name:      "emr cluster terminated",
			processor: EMRClusterTerminated(),
			event: Event{
				"source": "aws.emr",
				"detail": map[string]any{"clusterId": "j-ABC", "state": "TERMINATED"},
			},
			wantID: "j-ABC",
			wantOK: true,
		},
		{
			name:      "emr cluster terminated with errors",
			processor: EMRClusterTerminated(),
			event: Event{
				"source": "aws.emr",
				"detail": map[string]any{"clusterId": "j-ABC", "state": "TERMINATED_WITH_ERRORS"},
			},
			wantID: "j-ABC",
			wantOK: true,
		},
		{
			name:      "emr cluster still running",
			processor: EMRClusterTerminated(),
			event: Event{
				"source": "aws.emr",
				"detail": map[string]any{"clusterId": "j-ABC", "state": "RUNNING"},
			},
			wantOK: false,
		},
		{
			name:      "emr step cancelled",
			processor: EMRStepCompleted(),
			event: Event{
				"source": "aws.emr",
				"detail": map[string]any{"stepId": "s-1", "state": "CANCELLED"},
			},
			wantID: "s-1",
			wantOK: true,
		},
		{
			name:      "emr step pending",
			processor: EMRStepCompleted(),
			event: Event{
				"source": "aws.emr",
				"detail": map[string]any{"stepId": "s-1", "state": "PENDING"},
			},
			wantOK: false,
		},
		{
			name:      "batch job succeeded",
			processor: BatchJobCompleted(),
			event: Event{
				"source": "aws.batch",
				"detail": map[string]any{"jobId": "job-1", "status": "SUCCEEDED"},
			},
			wantID: "job-1",
			wantOK: true,
		},
		{
			name:      "batch job runnable",
			processor: BatchJobCompleted(),
			event: Event{
				"source": "aws.batch",
				"detail": map[string]any{"jobId": "job-1", "status": "RUNNABLE"},
			},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := tt.processor.Match(tt.event)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if id != tt.wantID {
				t.Errorf("Expected id %q, got %q", tt.wantID, id)
			}
		})
	}
}
