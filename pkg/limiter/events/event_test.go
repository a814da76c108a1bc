package events

import "testing"

func TestEvent_Lookup(t *testing.T) {
	event := Event{
		"source": "aws.emr",
		"detail": map[string]any{
			"clusterId": "j-ABC123",
			"state":     "TERMINATED",
			"nested": map[string]any{
				"deep": "value",
			},
		},
		"count": float64(3),
	}

	tests := []struct {
		name   string
		path   string
		want   any
		wantOK bool
	}{
		{name: "top level", path: "source", want: "aws.emr", wantOK: true},
		{name: "nested", path: "detail.clusterId", want: "j-ABC123", wantOK: true},
		{name: "deeply nested", path: "detail.nested.deep", want: "value", wantOK: true},
		{name: "missing leaf", path: "detail.missing", wantOK: false},
		{name: "missing root", path: "nope.clusterId", wantOK: false},
		{name: "scalar intermediate", path: "count.inner", wantOK: false},
		{name: "path through leaf", path: "detail.clusterId.extra", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := event.Lookup(tt.path)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestEvent_LookupNestedEvent(t *testing.T) {
	// Hand-built events may nest Event values instead of plain maps.
	event := Event{
		"detail": Event{"jobId": "job-1"},
	}

	got, ok := event.Lookup("detail.jobId")
	if !ok {
		t.Fatal("Expected lookup to succeed through a nested Event")
	}
	if got != "job-1" {
		t.Errorf("Expected job-1, got %v", got)
	}
}

func TestEvent_Source(t *testing.T) {
	tests := []struct {
		name   string
		event  Event
		want   string
		wantOK bool
	}{
		{name: "present", event: Event{"source": "aws.batch"}, want: "aws.batch", wantOK: true},
		{name: "missing", event: Event{"detail": "x"}, wantOK: false},
		{name: "not a string", event: Event{"source": 42}, wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.event.Source()
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}
