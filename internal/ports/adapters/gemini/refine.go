package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"

	"shortify/internal/domain/timecode"
	"shortify/internal/types"
)

var refineSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"start_time": {
			Type:        genai.TypeString,
			Description: "Adjusted start timestamp in HH:MM:SS format, at or before the proposed start.",
		},
	},
	Required: []string{"start_time"},
}

// RefineStart asks the model for a sentence-aligned start at or before the
// candidate's proposed start. The caller validates the suggestion; any error
// here only triggers the deterministic fallback.
func (a *Adapter) RefineStart(ctx context.Context, c types.ShortCandidate, tr types.Transcript, lookback time.Duration) (time.Duration, error) {
	windowStart := c.Start - lookback
	if windowStart < 0 {
		windowStart = 0
	}

	var b strings.Builder
	fmt.Fprintf(&b, "A clip is proposed to start at %s. The transcript around that point:\n\n",
		timecode.Format(c.Start))
	for _, s := range tr.Segments {
		if s.End < windowStart || s.Start > c.End {
			continue
		}
		fmt.Fprintf(&b, "[%s - %s] %s\n", timecode.Format(s.Start), timecode.Format(s.End), s.Text)
	}
	fmt.Fprintf(&b, `
Pick the timestamp of the nearest sentence beginning at or before %s, no more
than %.0f seconds earlier, so the clip does not open mid-sentence. If the
proposed start already begins a sentence, return it unchanged.`,
		timecode.Format(c.Start), lookback.Seconds())

	raw, err := a.generate(ctx, refineSchema, genai.Text(b.String()))
	if err != nil {
		return 0, err
	}
	clean, err := extractJSONObject(raw)
	if err != nil {
		return 0, err
	}
	var out struct {
		StartTime string `json:"start_time"`
	}
	if err := json.Unmarshal([]byte(clean), &out); err != nil {
		return 0, fmt.Errorf("decode refinement: %w", err)
	}
	return timecode.Parse(out.StartTime)
}
