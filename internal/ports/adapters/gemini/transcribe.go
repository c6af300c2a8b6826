package gemini

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/generative-ai-go/genai"

	"shortify/internal/domain/segments"
	"shortify/internal/domain/timecode"
	"shortify/internal/types"
)

var transcriptionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"summary": {
			Type:        genai.TypeString,
			Description: "A concise summary of the audio content.",
		},
		"total_duration": {
			Type:        genai.TypeString,
			Description: "Total duration in HH:MM:SS format.",
		},
		"segments": {
			Type:        genai.TypeArray,
			Description: "Transcribed segments with speaker and timestamps.",
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"speaker":    {Type: genai.TypeString, Description: "Speaker label, e.g. 'Speaker 1'."},
					"start_time": {Type: genai.TypeString, Description: "Start timestamp in HH:MM:SS format."},
					"end_time":   {Type: genai.TypeString, Description: "End timestamp in HH:MM:SS format."},
					"content":    {Type: genai.TypeString, Description: "The transcribed text."},
				},
				Required: []string{"speaker", "start_time", "end_time", "content"},
			},
		},
	},
	Required: []string{"summary", "total_duration", "segments"},
}

// transcriptionPrompt takes the timestamp precision derived from the
// configured sampling rate.
const transcriptionPrompt = `Transcribe this audio with speaker diarization.

1. Identify distinct speakers and label them consistently ("Speaker 1", "Host", "Guest").
2. Provide precise start and end timestamps in HH:MM:SS format for each speech segment,
   accurate to within %.1f seconds. Segments must be ordered, non-overlapping, and
   5-30 seconds long so they map to natural speech units (complete thoughts or sentences).
3. Transcribe the speech accurately.
4. Provide a brief 2-3 sentence summary and the total duration in HH:MM:SS format.`

type rawTranscriptSegment struct {
	Speaker   string `json:"speaker"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Content   string `json:"content"`
}

type rawTranscript struct {
	Summary       string                 `json:"summary"`
	TotalDuration string                 `json:"total_duration"`
	Segments      []rawTranscriptSegment `json:"segments"`
}

// Transcribe uploads the audio and requests a diarized transcript. A transcript
// failing the ordering invariant counts as transient and is re-requested once
// before surfacing TranscriptionError.
func (a *Adapter) Transcribe(ctx context.Context, audioPath string) (types.Transcript, error) {
	file, err := a.uploadFile(ctx, audioPath)
	if err != nil {
		return types.Transcript{}, &types.TranscriptionError{Reason: "audio upload failed", Err: err}
	}
	defer a.deleteFile(context.WithoutCancel(ctx), file)

	precision := 1.0
	if a.videoFPS > 0 {
		precision = 1.0 / float64(a.videoFPS)
	}
	parts := []genai.Part{
		genai.FileData{MIMEType: mimeByExt[".mp3"], URI: file.URI},
		genai.Text(fmt.Sprintf(transcriptionPrompt, precision)),
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		raw, err := a.generateWithRetry(ctx, transcriptionSchema, parts...)
		if err != nil {
			if ctx.Err() != nil {
				return types.Transcript{}, ctx.Err()
			}
			return types.Transcript{}, &types.TranscriptionError{Reason: "remote transcription unavailable", Err: err}
		}

		tr, err := parseTranscript(raw)
		if err == nil {
			return tr, nil
		}
		a.log.WithError(err).Warn("transcript failed validation, re-requesting")
		lastErr = err
	}
	return types.Transcript{}, &types.TranscriptionError{Reason: "invalid transcript after retry", Err: lastErr}
}

func parseTranscript(raw string) (types.Transcript, error) {
	clean, err := extractJSONObject(raw)
	if err != nil {
		return types.Transcript{}, err
	}
	var rt rawTranscript
	if err := json.Unmarshal([]byte(clean), &rt); err != nil {
		return types.Transcript{}, fmt.Errorf("decode transcript: %w", err)
	}

	tr := types.Transcript{Summary: rt.Summary}
	if rt.TotalDuration != "" {
		if d, err := timecode.Parse(rt.TotalDuration); err == nil {
			tr.TotalDuration = d
		}
	}
	for i, seg := range rt.Segments {
		start, err := timecode.Parse(seg.StartTime)
		if err != nil {
			return types.Transcript{}, fmt.Errorf("segment %d: %w", i, err)
		}
		end, err := timecode.Parse(seg.EndTime)
		if err != nil {
			return types.Transcript{}, fmt.Errorf("segment %d: %w", i, err)
		}
		tr.Segments = append(tr.Segments, types.TranscriptSegment{
			Start:   start,
			End:     end,
			Speaker: seg.Speaker,
			Text:    seg.Content,
		})
	}
	if err := segments.ValidateTranscript(tr); err != nil {
		return types.Transcript{}, fmt.Errorf("transcript invariant: %w", err)
	}
	return tr, nil
}
