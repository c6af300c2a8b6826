package state

import (
	"errors"
	"sync"
	"testing"
	"time"

	"shortify/internal/types"
)

func registryAt(t *testing.T, stage Stage) *Registry {
	t.Helper()
	r := NewRegistry()
	r.Register("v1")
	steps := []struct {
		to    Stage
		apply func(*Record)
	}{
		{StageAudioExtracted, func(rec *Record) { rec.Audio = &types.AudioTrack{Path: "a.mp3"} }},
		{StageTranscribed, func(rec *Record) { rec.Transcript = &types.Transcript{} }},
		{StageIdentified, func(rec *Record) { rec.Analysis = &types.VideoAnalysis{} }},
		{StageRefined, nil},
		{StageGenerated, func(rec *Record) {
			rec.Generated = []types.GeneratedShort{{ID: "s1", VideoID: "v1"}}
		}},
	}
	for _, st := range steps {
		if st.to > stage {
			break
		}
		if err := r.Advance("v1", st.to, st.apply); err != nil {
			t.Fatalf("setup advance to %s: %v", st.to, err)
		}
	}
	return r
}

func TestAdvanceHappyPath(t *testing.T) {
	r := registryAt(t, StageGenerated)
	rec, ok := r.Get("v1")
	if !ok {
		t.Fatalf("record missing")
	}
	if rec.Stage != StageGenerated {
		t.Fatalf("expected generated, got %s", rec.Stage)
	}
	if rec.Audio == nil || rec.Transcript == nil || rec.Analysis == nil || len(rec.Generated) != 1 {
		t.Fatalf("payloads lost: %+v", rec)
	}
}

func TestAdvanceRejectsSkips(t *testing.T) {
	r := registryAt(t, StageUploaded)

	err := r.Advance("v1", StageTranscribed, nil)
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if ite.From != StageUploaded || ite.To != StageTranscribed {
		t.Fatalf("unexpected transition report: %+v", ite)
	}
}

func TestAdvanceRejectsMissingPayload(t *testing.T) {
	r := NewRegistry()
	r.Register("v1")

	// Forget to record the audio track, then try to move past it.
	if err := r.Advance("v1", StageAudioExtracted, nil); err != nil {
		t.Fatalf("advance: %v", err)
	}
	err := r.Advance("v1", StageTranscribed, func(rec *Record) { rec.Transcript = &types.Transcript{} })
	var ite *InvalidTransitionError
	if !errors.As(err, &ite) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestAdvanceUnknownVideo(t *testing.T) {
	r := NewRegistry()
	if err := r.Advance("ghost", StageAudioExtracted, nil); !errors.Is(err, ErrUnknownVideo) {
		t.Fatalf("expected ErrUnknownVideo, got %v", err)
	}
}

func TestRewindDiscardsDownstream(t *testing.T) {
	r := registryAt(t, StageGenerated)

	invalidated, err := r.Rewind("v1", StageTranscribed)
	if err != nil {
		t.Fatalf("rewind: %v", err)
	}
	if len(invalidated) != 1 || invalidated[0].ID != "s1" {
		t.Fatalf("expected generated shorts returned, got %+v", invalidated)
	}

	rec, _ := r.Get("v1")
	if rec.Stage != StageTranscribed {
		t.Fatalf("expected transcribed, got %s", rec.Stage)
	}
	if rec.Analysis != nil || rec.Generated != nil || rec.Failures != nil {
		t.Fatalf("downstream payloads survived rewind: %+v", rec)
	}
	if rec.Transcript == nil || rec.Audio == nil {
		t.Fatalf("upstream payloads discarded: %+v", rec)
	}

	// The transcript survives, so identification can run again directly.
	if err := r.Advance("v1", StageIdentified, func(rec *Record) { rec.Analysis = &types.VideoAnalysis{} }); err != nil {
		t.Fatalf("re-identify after rewind: %v", err)
	}
}

func TestRewindRejectsForward(t *testing.T) {
	r := registryAt(t, StageTranscribed)
	if _, err := r.Rewind("v1", StageGenerated); err == nil {
		t.Fatalf("expected forward rewind to fail")
	}
}

func TestRegisterIsIdempotent(t *testing.T) {
	r := registryAt(t, StageIdentified)
	r.Register("v1")
	rec, _ := r.Get("v1")
	if rec.Stage != StageIdentified {
		t.Fatalf("re-register reset the record: %s", rec.Stage)
	}
}

func TestLockVideoSerializesPerVideo(t *testing.T) {
	r := NewRegistry()

	unlock := r.LockVideo("v1")
	acquired := make(chan struct{})
	go func() {
		u := r.LockVideo("v1")
		close(acquired)
		u()
	}()

	select {
	case <-acquired:
		t.Fatalf("second acquisition succeeded while lock held")
	case <-time.After(20 * time.Millisecond):
	}

	// A different video must not be blocked.
	done := make(chan struct{})
	go func() {
		u := r.LockVideo("v2")
		u()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("independent video blocked")
	}

	unlock()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatalf("lock never released")
	}
}

func TestConcurrentAdvanceDifferentVideos(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for _, id := range []string{"a", "b", "c", "d"} {
		r.Register(id)
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := r.Advance(id, StageAudioExtracted, func(rec *Record) {
				rec.Audio = &types.AudioTrack{Path: id + ".mp3"}
			}); err != nil {
				t.Errorf("advance %s: %v", id, err)
			}
		}(id)
	}
	wg.Wait()
}
