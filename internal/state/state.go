// Package state tracks each video's progress through the pipeline and
// enforces the stage ordering. Advance is the only mutator; re-running an
// earlier stage requires an explicit Rewind that discards downstream state.
package state

import (
	"errors"
	"fmt"
	"sync"

	"shortify/internal/types"
)

type Stage int

const (
	StageUploaded Stage = iota
	StageAudioExtracted
	StageTranscribed
	StageIdentified
	StageRefined
	StageGenerated
)

func (s Stage) String() string {
	switch s {
	case StageUploaded:
		return "uploaded"
	case StageAudioExtracted:
		return "audio_extracted"
	case StageTranscribed:
		return "transcribed"
	case StageIdentified:
		return "identified"
	case StageRefined:
		return "refined"
	case StageGenerated:
		return "generated"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// ErrUnknownVideo is returned for ids that were never registered.
var ErrUnknownVideo = errors.New("unknown video")

// InvalidTransitionError reports a stage-ordering violation or missing
// upstream payload.
type InvalidTransitionError struct {
	VideoID string
	From    Stage
	To      Stage
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("video %s: invalid transition %s -> %s: %s", e.VideoID, e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("video %s: invalid transition %s -> %s", e.VideoID, e.From, e.To)
}

// Record is the authoritative per-video pipeline state plus the last
// successful output of each completed stage.
type Record struct {
	VideoID    string
	Stage      Stage
	Audio      *types.AudioTrack
	Transcript *types.Transcript
	Analysis   *types.VideoAnalysis
	Generated  []types.GeneratedShort
	Failures   []types.ClipFailure
}

type Registry struct {
	mu      sync.RWMutex
	records map[string]*Record
	locks   map[string]*sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		records: make(map[string]*Record),
		locks:   make(map[string]*sync.Mutex),
	}
}

// LockVideo serializes whole stage-transition sequences for one video.
// Different videos lock independently. The returned func releases the lock.
func (r *Registry) LockVideo(videoID string) func() {
	r.mu.Lock()
	l, ok := r.locks[videoID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[videoID] = l
	}
	r.mu.Unlock()

	l.Lock()
	return l.Unlock
}

// Register creates the record at StageUploaded. Registering an existing id is
// a no-op so a restarted process can re-attach to uploads found on disk.
func (r *Registry) Register(videoID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[videoID]; !ok {
		r.records[videoID] = &Record{VideoID: videoID, Stage: StageUploaded}
	}
}

// Get returns a shallow snapshot of the record.
func (r *Registry) Get(videoID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[videoID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// Advance moves the video to the immediately following stage, applying the
// stage's output to the record. Any other requested jump, or a missing
// upstream payload, fails with InvalidTransitionError.
func (r *Registry) Advance(videoID string, to Stage, apply func(*Record)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[videoID]
	if !ok {
		return fmt.Errorf("advance %s: %w", videoID, ErrUnknownVideo)
	}
	if to != rec.Stage+1 {
		return &InvalidTransitionError{VideoID: videoID, From: rec.Stage, To: to}
	}
	if reason := missingPayload(rec, to); reason != "" {
		return &InvalidTransitionError{VideoID: videoID, From: rec.Stage, To: to, Reason: reason}
	}
	if apply != nil {
		apply(rec)
	}
	rec.Stage = to
	return nil
}

func missingPayload(rec *Record, to Stage) string {
	switch to {
	case StageTranscribed:
		if rec.Audio == nil {
			return "no audio track recorded"
		}
	case StageIdentified:
		if rec.Transcript == nil {
			return "no transcript recorded"
		}
	case StageRefined, StageGenerated:
		if rec.Analysis == nil {
			return "no analysis recorded"
		}
	}
	return ""
}

// Rewind moves the record back to an earlier (or equal) stage and discards
// every downstream payload, returning the shorts that were invalidated so the
// caller can delete their artifacts. Forward rewinds are rejected.
func (r *Registry) Rewind(videoID string, to Stage) ([]types.GeneratedShort, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[videoID]
	if !ok {
		return nil, fmt.Errorf("rewind %s: %w", videoID, ErrUnknownVideo)
	}
	if to > rec.Stage {
		return nil, &InvalidTransitionError{VideoID: videoID, From: rec.Stage, To: to, Reason: "rewind must not move forward"}
	}

	invalidated := rec.Generated
	if to < StageGenerated {
		rec.Generated = nil
		rec.Failures = nil
	}
	if to < StageIdentified {
		rec.Analysis = nil
	}
	if to < StageTranscribed {
		rec.Transcript = nil
	}
	if to < StageAudioExtracted {
		rec.Audio = nil
	}
	rec.Stage = to
	return invalidated, nil
}
