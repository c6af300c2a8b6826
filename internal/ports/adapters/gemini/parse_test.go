package gemini

import (
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantSub string
		wantErr bool
	}{
		{"raw", `{"shorts":[]}`, `"shorts"`, false},
		{"fenced", "```json\n{\"shorts\":[]}\n```", `"shorts"`, false},
		{"preface", "sure! {\"shorts\":[]} thanks", `"shorts"`, false},
		{"empty", "   ", "", true},
		{"nojson", "hello", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractJSONObject(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.Contains(got, tt.wantSub) {
				t.Fatalf("expected %q to contain %q", got, tt.wantSub)
			}
		})
	}
}

func TestParseAnalysis_DropsMalformedCandidates(t *testing.T) {
	raw := `{
	  "video_summary": "a talk",
	  "shorts": [
	    {"title":"good one","hook":"h","start_time":"00:10","end_time":"00:40","virality_score":88},
	    {"title":"missing end","hook":"h","start_time":"01:00","virality_score":70},
	    {"title":"bad score","hook":"h","start_time":"02:00","end_time":"02:30","virality_score":150},
	    {"title":"bad stamp","hook":"h","start_time":"whenever","end_time":"03:00","virality_score":50},
	    {"title":"also good","hook":"h","start_time":"04:00","end_time":"04:30","virality_score":60}
	  ]
	}`

	summary, cands, dropped, err := parseAnalysis(raw, validator.New())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if summary != "a talk" {
		t.Fatalf("unexpected summary: %q", summary)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 valid candidates, got %d", len(cands))
	}
	if len(dropped) != 3 {
		t.Fatalf("expected 3 drop reasons, got %d: %v", len(dropped), dropped)
	}
	if cands[0].Start != 10*time.Second || cands[0].End != 40*time.Second {
		t.Fatalf("unexpected first candidate range: %v-%v", cands[0].Start, cands[0].End)
	}
}

func TestParseAnalysis_RejectsGarbage(t *testing.T) {
	if _, _, _, err := parseAnalysis("not json at all", validator.New()); err == nil {
		t.Fatalf("expected error")
	}
	if _, _, _, err := parseAnalysis(`{"shorts": "oops"}`, validator.New()); err == nil {
		t.Fatalf("expected decode error for wrong shape")
	}
}

func TestParseTranscript(t *testing.T) {
	raw := `{
	  "summary": "s",
	  "total_duration": "10:00",
	  "segments": [
	    {"speaker":"Speaker 1","start_time":"00:00","end_time":"00:08","content":"hello"},
	    {"speaker":"Speaker 2","start_time":"00:09","end_time":"00:20","content":"world"}
	  ]
	}`
	tr, err := parseTranscript(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(tr.Segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(tr.Segments))
	}
	if tr.TotalDuration != 10*time.Minute {
		t.Fatalf("unexpected total duration: %v", tr.TotalDuration)
	}
	if tr.Segments[1].Speaker != "Speaker 2" {
		t.Fatalf("speaker label lost: %+v", tr.Segments[1])
	}
}

func TestParseTranscript_RejectsOverlap(t *testing.T) {
	raw := `{
	  "summary": "s",
	  "total_duration": "10:00",
	  "segments": [
	    {"speaker":"A","start_time":"00:00","end_time":"00:10","content":"x"},
	    {"speaker":"B","start_time":"00:05","end_time":"00:15","content":"y"}
	  ]
	}`
	if _, err := parseTranscript(raw); err == nil {
		t.Fatalf("expected ordering invariant error")
	}
}
