package types

import (
	"errors"
	"fmt"
)

// ErrNoViableSegments is returned when identification produced zero candidates
// that survive validation. Distinct from transport failures: the call itself
// succeeded but the model found nothing usable.
var ErrNoViableSegments = errors.New("no viable segments found")

// MediaError reports an unreadable/corrupt source or a cutting-tool failure.
type MediaError struct {
	Op   string // "extract-audio", "cut", "probe"
	Path string
	Err  error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *MediaError) Unwrap() error { return e.Err }

// TranscriptionError reports a remote transcription failure that survived the
// local retry budget, or transcript output that failed validation.
type TranscriptionError struct {
	Reason string
	Err    error
}

func (e *TranscriptionError) Error() string {
	if e.Err == nil {
		return "transcription: " + e.Reason
	}
	return fmt.Sprintf("transcription: %s: %v", e.Reason, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }
