package gemini

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/generative-ai-go/genai"

	"shortify/internal/domain/segments"
	"shortify/internal/domain/timecode"
	"shortify/internal/types"
)

var shortsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"video_summary": {
			Type:        genai.TypeString,
			Description: "Brief summary of the source content.",
		},
		"shorts": {
			Type:        genai.TypeArray,
			Description: "Potential short segments.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":            {Type: genai.TypeString, Description: "Catchy, engaging title."},
					"hook":             {Type: genai.TypeString, Description: "Description of the opening hook."},
					"start_time":       {Type: genai.TypeString, Description: "Segment start in HH:MM:SS, copied from the transcript."},
					"end_time":         {Type: genai.TypeString, Description: "Segment end in HH:MM:SS, copied from the transcript."},
					"content_summary":  {Type: genai.TypeString, Description: "Brief description of the content."},
					"virality_score":   {Type: genai.TypeNumber, Description: "Virality potential from 0 to 100."},
					"virality_reasons": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				},
				Required: []string{"title", "hook", "start_time", "end_time", "virality_score"},
			},
		},
	},
	Required: []string{"video_summary", "shorts"},
}

type rawShort struct {
	Title           string   `json:"title" validate:"required"`
	Hook            string   `json:"hook" validate:"required"`
	StartTime       string   `json:"start_time" validate:"required"`
	EndTime         string   `json:"end_time" validate:"required"`
	ContentSummary  string   `json:"content_summary"`
	ViralityScore   float64  `json:"virality_score" validate:"gte=0,lte=100"`
	ViralityReasons []string `json:"virality_reasons"`
}

type rawAnalysis struct {
	VideoSummary string     `json:"video_summary"`
	Shorts       []rawShort `json:"shorts"`
}

// Identify sends the transcript with task instructions and constraints and
// parses a strict structured response. Invalid candidates are dropped and
// logged as data-quality events, never fatal on their own; zero survivors
// surface types.ErrNoViableSegments.
func (a *Adapter) Identify(ctx context.Context, tr types.Transcript, cons types.Constraints) (types.VideoAnalysis, error) {
	prompt := buildIdentifyPrompt(tr, cons)

	raw, err := a.generateWithRetry(ctx, shortsSchema, genai.Text(prompt))
	if err != nil {
		if ctx.Err() != nil {
			return types.VideoAnalysis{}, ctx.Err()
		}
		return types.VideoAnalysis{}, fmt.Errorf("identify segments: %w", err)
	}

	summary, cands, dropped, err := parseAnalysis(raw, a.validate)
	if err != nil {
		return types.VideoAnalysis{}, fmt.Errorf("identify segments: %w", err)
	}
	for _, reason := range dropped {
		a.log.WithField("reason", reason).Warn("dropped malformed candidate")
	}

	kept, bounced, err := segments.Select(cands, cons)
	for _, reason := range bounced {
		a.log.WithField("reason", reason).Warn("dropped out-of-bounds candidate")
	}
	if err != nil {
		return types.VideoAnalysis{}, err
	}

	return types.VideoAnalysis{
		VideoSummary:     summary,
		TotalShortsFound: len(kept),
		Shorts:           kept,
	}, nil
}

func buildIdentifyPrompt(tr types.Transcript, cons types.Constraints) string {
	count := "ALL potential"
	if cons.MaxShorts > 0 {
		count = fmt.Sprintf("the %d best", cons.MaxShorts)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following transcript and identify %s segments for short-form video clips.\n\n", count)
	b.WriteString("## Transcript:\n")
	for _, s := range tr.Segments {
		fmt.Fprintf(&b, "[%s - %s]", timecode.Format(s.Start), timecode.Format(s.End))
		if s.Speaker != "" {
			fmt.Fprintf(&b, " %s:", s.Speaker)
		}
		fmt.Fprintf(&b, " %s\n", s.Text)
	}
	fmt.Fprintf(&b, `
## RULES FOR CLEAN CUTS:

1. Duration: each segment MUST be %.0f-%.0f seconds.
2. Start: MUST begin at the start of a complete sentence, never mid-thought.
   Copy the exact start_time of the transcript segment where it begins.
3. End: MUST end on a complete sentence or natural conclusion point.
   Copy the exact end_time of the transcript segment where it ends.
4. Hook: the segment should open with an attention-grabbing statement.
5. Complete context: a viewer should understand the point without prior context.
6. Segments must not overlap.
`, cons.MinDuration.Seconds(), cons.MaxDuration.Seconds())
	return b.String()
}

// parseAnalysis validates each candidate independently so one malformed item
// cannot poison the batch.
func parseAnalysis(raw string, v *validator.Validate) (summary string, cands []types.ShortCandidate, dropped []string, err error) {
	clean, err := extractJSONObject(raw)
	if err != nil {
		return "", nil, nil, err
	}
	var ra rawAnalysis
	if err := json.Unmarshal([]byte(clean), &ra); err != nil {
		return "", nil, nil, fmt.Errorf("decode analysis: %w", err)
	}

	for i, rs := range ra.Shorts {
		if err := v.Struct(rs); err != nil {
			dropped = append(dropped, fmt.Sprintf("candidate %d: %v", i, err))
			continue
		}
		start, err := timecode.Parse(rs.StartTime)
		if err != nil {
			dropped = append(dropped, fmt.Sprintf("candidate %d: %v", i, err))
			continue
		}
		end, err := timecode.Parse(rs.EndTime)
		if err != nil {
			dropped = append(dropped, fmt.Sprintf("candidate %d: %v", i, err))
			continue
		}
		cands = append(cands, types.ShortCandidate{
			Title:           strings.TrimSpace(rs.Title),
			Hook:            strings.TrimSpace(rs.Hook),
			Start:           start,
			End:             end,
			ContentSummary:  rs.ContentSummary,
			ViralityScore:   rs.ViralityScore,
			ViralityReasons: rs.ViralityReasons,
		})
	}
	return ra.VideoSummary, cands, dropped, nil
}
