package ports

import (
	"context"
	"time"

	"shortify/internal/types"
)

// MediaTool wraps the external cutting tool (ffmpeg/ffprobe).
type MediaTool interface {
	ExtractAudio(ctx context.Context, inVideo, outAudio string) error
	CutClip(ctx context.Context, inVideo string, start, end time.Duration, outPath string) error
	ProbeDuration(ctx context.Context, in string) (time.Duration, error)
}

// Transcriber produces a time-aligned, diarized transcript from an audio file.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (types.Transcript, error)
}

// SegmentFinder asks the reasoning model for ranked short candidates.
// Implementations must treat the model response as untrusted structured input.
type SegmentFinder interface {
	Identify(ctx context.Context, tr types.Transcript, cons types.Constraints) (types.VideoAnalysis, error)
}

// BoundaryModel is the optional model-assisted pass that suggests an earlier,
// sentence-aligned start for a candidate. Errors never fail the pipeline; the
// caller falls back to a deterministic snap.
type BoundaryModel interface {
	RefineStart(ctx context.Context, c types.ShortCandidate, tr types.Transcript, lookback time.Duration) (time.Duration, error)
}
