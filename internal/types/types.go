package types

import "time"

// Video is an uploaded source video. Immutable after creation except for the
// back-reference to its derived audio track.
type Video struct {
	ID          string    `json:"video_id"`
	Filename    string    `json:"filename"`
	Size        int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	Path        string    `json:"-"`
	UploadedAt  time.Time `json:"uploaded_at"`

	Audio *AudioTrack `json:"-"`
}

// AudioTrack is the compressed audio derived from a video, one-to-one.
type AudioTrack struct {
	VideoID  string
	Path     string
	Duration time.Duration
}

type Transcript struct {
	Summary       string              `json:"summary"`
	TotalDuration time.Duration       `json:"-"`
	Segments      []TranscriptSegment `json:"segments"`
}

// TranscriptSegment is one diarized span of speech. Segments are
// non-overlapping and ordered by start time.
type TranscriptSegment struct {
	Start   time.Duration `json:"-"`
	End     time.Duration `json:"-"`
	Speaker string        `json:"speaker,omitempty"`
	Text    string        `json:"text"`
}

// ShortCandidate is a proposed short segment before it has been cut.
// StartTime/EndTime mirror Start/End in HH:MM:SS.mmm form for responses.
type ShortCandidate struct {
	Title           string        `json:"title"`
	Hook            string        `json:"hook"`
	Start           time.Duration `json:"-"`
	End             time.Duration `json:"-"`
	StartTime       string        `json:"start_time"`
	EndTime         string        `json:"end_time"`
	DurationSeconds int           `json:"duration_seconds"`
	ContentSummary  string        `json:"content_summary,omitempty"`
	ViralityScore   float64       `json:"virality_score"`
	ViralityReasons []string      `json:"virality_reasons,omitempty"`
	Rank            int           `json:"rank"`
}

func (c ShortCandidate) Duration() time.Duration { return c.End - c.Start }

// Constraints bound what the Segment Identifier may return.
type Constraints struct {
	MaxShorts   int
	MinDuration time.Duration
	MaxDuration time.Duration
}

// VideoAnalysis is the identification result for one video.
type VideoAnalysis struct {
	VideoSummary     string           `json:"video_summary"`
	TotalShortsFound int              `json:"total_shorts_found"`
	Shorts           []ShortCandidate `json:"shorts"`
}

// GeneratedShort is one finalized candidate cut into a standalone file.
type GeneratedShort struct {
	ID          string        `json:"short_id"`
	VideoID     string        `json:"video_id"`
	Title       string        `json:"title"`
	Duration    time.Duration `json:"-"`
	Path        string        `json:"-"`
	DownloadURL string        `json:"download_url"`
}

// ClipFailure records one isolated cutting failure inside a generate batch.
type ClipFailure struct {
	Rank   int    `json:"rank"`
	Title  string `json:"title"`
	Reason string `json:"reason"`
}
