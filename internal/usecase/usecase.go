// Package usecase orchestrates the pipeline: upload, audio extraction,
// transcription, segment identification, boundary refinement and clip
// generation. All stage transitions for a video happen under its state lock.
package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"shortify/internal/config"
	"shortify/internal/domain/segments"
	"shortify/internal/ports"
	"shortify/internal/state"
	"shortify/internal/store"
	"shortify/internal/types"
)

type Deps struct {
	Media       ports.MediaTool
	Transcriber ports.Transcriber
	Finder      ports.SegmentFinder
	Boundary    ports.BoundaryModel // optional; nil disables the model pass
	Store       *store.Store
	State       *state.Registry
	Log         *logrus.Logger
	Cfg         *config.Config
}

type Service struct{ d Deps }

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = logrus.New()
	}
	return &Service{d: d}
}

// GenerateResult is the outcome of one generate batch. Shorts keep rank
// order; Failures record candidates whose cut failed without aborting the
// batch.
type GenerateResult struct {
	VideoID  string                 `json:"video_id"`
	Shorts   []types.GeneratedShort `json:"generated_shorts"`
	Failures []types.ClipFailure    `json:"failed_shorts,omitempty"`
}

// Upload persists the incoming video and registers it with the pipeline.
func (s *Service) Upload(r io.Reader, filename, contentType string) (*types.Video, error) {
	v, err := s.d.Store.SaveUpload(r, filename, contentType)
	if err != nil {
		return nil, err
	}
	s.d.State.Register(v.ID)
	s.d.Log.WithFields(logrus.Fields{
		"video_id": v.ID,
		"filename": v.Filename,
		"size":     v.Size,
	}).Info("video uploaded")
	return v, nil
}

// Video resolves an uploaded video, re-registering ids found on disk after a
// restart.
func (s *Service) Video(id string) (*types.Video, error) {
	v, err := s.d.Store.Video(id)
	if err != nil {
		return nil, err
	}
	s.d.State.Register(v.ID)
	return v, nil
}

// Status reports the video's current pipeline record.
func (s *Service) Status(videoID string) (state.Record, error) {
	if _, err := s.Video(videoID); err != nil {
		return state.Record{}, err
	}
	rec, _ := s.d.State.Get(videoID)
	return rec, nil
}

// Transcribe runs the pipeline up to the transcription stage and returns the
// transcript. Already-transcribed videos return the stored transcript.
func (s *Service) Transcribe(ctx context.Context, videoID string) (*types.Transcript, error) {
	unlock := s.d.State.LockVideo(videoID)
	defer unlock()

	v, err := s.Video(videoID)
	if err != nil {
		return nil, err
	}
	tr, err := s.ensureTranscribed(ctx, v)
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

// Identify runs the pipeline through identification and boundary refinement.
// Re-running it on an already-identified video discards the previous analysis
// and any generated clips; the transcript is reused.
func (s *Service) Identify(ctx context.Context, videoID string, cons types.Constraints) (*types.VideoAnalysis, error) {
	unlock := s.d.State.LockVideo(videoID)
	defer unlock()

	v, err := s.Video(videoID)
	if err != nil {
		return nil, err
	}
	cons = s.constraintsOrDefault(cons)

	rec, _ := s.d.State.Get(videoID)
	if rec.Stage >= state.StageIdentified {
		invalidated, err := s.d.State.Rewind(videoID, state.StageTranscribed)
		if err != nil {
			return nil, err
		}
		if len(invalidated) > 0 {
			if err := s.d.Store.RemoveShortsForVideo(videoID); err != nil {
				s.d.Log.WithError(err).WithField("video_id", videoID).Warn("failed to delete invalidated shorts")
			}
			s.d.Log.WithFields(logrus.Fields{
				"video_id": videoID,
				"shorts":   len(invalidated),
			}).Info("re-identification invalidated previous shorts")
		}
	}

	tr, err := s.ensureTranscribed(ctx, v)
	if err != nil {
		return nil, err
	}

	analysis, err := s.d.Finder.Identify(ctx, tr, cons)
	if err != nil {
		return nil, err
	}
	if err := s.d.State.Advance(videoID, state.StageIdentified, func(rec *state.Record) {
		rec.Analysis = &analysis
	}); err != nil {
		return nil, err
	}

	refined := s.refine(ctx, analysis, tr, cons)
	if err := s.d.State.Advance(videoID, state.StageRefined, func(rec *state.Record) {
		rec.Analysis = &refined
	}); err != nil {
		return nil, err
	}

	s.d.Log.WithFields(logrus.Fields{
		"video_id": videoID,
		"shorts":   len(refined.Shorts),
	}).Info("segments identified")
	return &refined, nil
}

// Analysis returns the stored identification result.
func (s *Service) Analysis(videoID string) (*types.VideoAnalysis, error) {
	rec, err := s.Status(videoID)
	if err != nil {
		return nil, err
	}
	if rec.Analysis == nil {
		return nil, &state.InvalidTransitionError{
			VideoID: videoID, From: rec.Stage, To: state.StageIdentified,
			Reason: "identification has not run",
		}
	}
	return rec.Analysis, nil
}

// Generate cuts every refined candidate into a standalone clip. Individual
// cut failures are reported, not fatal. A second call on an already-generated
// video returns the recorded result without touching disk.
func (s *Service) Generate(ctx context.Context, videoID string) (*GenerateResult, error) {
	unlock := s.d.State.LockVideo(videoID)
	defer unlock()

	v, err := s.Video(videoID)
	if err != nil {
		return nil, err
	}
	rec, _ := s.d.State.Get(videoID)
	if rec.Stage == state.StageGenerated {
		return &GenerateResult{VideoID: videoID, Shorts: rec.Generated, Failures: rec.Failures}, nil
	}
	if rec.Stage != state.StageRefined {
		return nil, &state.InvalidTransitionError{
			VideoID: videoID, From: rec.Stage, To: state.StageGenerated,
			Reason: "identification has not completed",
		}
	}

	shorts, failures := s.cutAll(ctx, v, rec.Analysis.Shorts)
	if err := ctx.Err(); err != nil {
		// The record stays at refined; release everything the aborted batch
		// produced so a retry starts from a clean slate.
		for _, sh := range shorts {
			if rerr := s.d.Store.RemoveShort(sh.ID); rerr != nil {
				s.d.Log.WithError(rerr).WithField("short_id", sh.ID).
					Warn("failed to release clip from cancelled batch")
			}
		}
		return nil, err
	}

	if err := s.d.State.Advance(videoID, state.StageGenerated, func(rec *state.Record) {
		rec.Generated = shorts
		rec.Failures = failures
	}); err != nil {
		return nil, err
	}

	s.d.Log.WithFields(logrus.Fields{
		"video_id": videoID,
		"shorts":   len(shorts),
		"failed":   len(failures),
	}).Info("shorts generated")
	return &GenerateResult{VideoID: videoID, Shorts: shorts, Failures: failures}, nil
}

// Short resolves a generated short for download.
func (s *Service) Short(id string) (*types.GeneratedShort, error) {
	return s.d.Store.Short(id)
}

func (s *Service) constraintsOrDefault(cons types.Constraints) types.Constraints {
	if cons.MaxShorts <= 0 {
		cons.MaxShorts = s.d.Cfg.MaxShortsToGenerate
	}
	if cons.MinDuration <= 0 {
		cons.MinDuration = s.d.Cfg.MinShortDuration
	}
	if cons.MaxDuration <= 0 {
		cons.MaxDuration = s.d.Cfg.MaxShortDuration
	}
	return cons
}

// ensureTranscribed advances the video through audio extraction and
// transcription as needed. Caller holds the video lock.
func (s *Service) ensureTranscribed(ctx context.Context, v *types.Video) (types.Transcript, error) {
	rec, _ := s.d.State.Get(v.ID)

	if rec.Stage == state.StageUploaded {
		track, err := s.extractAudio(ctx, v)
		if err != nil {
			return types.Transcript{}, err
		}
		if err := s.d.State.Advance(v.ID, state.StageAudioExtracted, func(rec *state.Record) {
			rec.Audio = track
		}); err != nil {
			return types.Transcript{}, err
		}
		rec, _ = s.d.State.Get(v.ID)
	}

	if rec.Stage == state.StageAudioExtracted {
		tr, err := s.d.Transcriber.Transcribe(ctx, rec.Audio.Path)
		if err != nil {
			return types.Transcript{}, err
		}
		if err := s.d.State.Advance(v.ID, state.StageTranscribed, func(rec *state.Record) {
			rec.Transcript = &tr
		}); err != nil {
			return types.Transcript{}, err
		}
		s.d.Log.WithFields(logrus.Fields{
			"video_id": v.ID,
			"segments": len(tr.Segments),
		}).Info("audio transcribed")
		rec, _ = s.d.State.Get(v.ID)
	}

	if rec.Transcript == nil {
		return types.Transcript{}, fmt.Errorf("video %s: no transcript at stage %s", v.ID, rec.Stage)
	}
	return *rec.Transcript, nil
}

func (s *Service) extractAudio(ctx context.Context, v *types.Video) (*types.AudioTrack, error) {
	out := s.d.Store.AudioPath(v.ID)
	if err := s.d.Media.ExtractAudio(ctx, v.Path, out); err != nil {
		return nil, err
	}
	dur, err := s.d.Media.ProbeDuration(ctx, out)
	if err != nil {
		s.d.Log.WithError(err).WithField("video_id", v.ID).Warn("could not probe audio duration")
	}
	track := &types.AudioTrack{VideoID: v.ID, Path: out, Duration: dur}
	s.d.Store.SetAudio(v.ID, track)
	s.d.Log.WithFields(logrus.Fields{
		"video_id": v.ID,
		"duration": dur,
	}).Info("audio extracted")
	return track, nil
}

// refine adjusts each candidate's start. The model pass is tried first when a
// boundary model is wired; a deterministic snap to the nearest preceding
// transcript segment covers the rest. Refinement never drops a candidate.
func (s *Service) refine(ctx context.Context, analysis types.VideoAnalysis, tr types.Transcript, cons types.Constraints) types.VideoAnalysis {
	lookback := s.d.Cfg.RefineLookback
	out := analysis
	out.Shorts = make([]types.ShortCandidate, len(analysis.Shorts))
	for i, c := range analysis.Shorts {
		refined, done := c, false
		if s.d.Boundary != nil {
			start, err := s.d.Boundary.RefineStart(ctx, c, tr, lookback)
			if err != nil {
				s.d.Log.WithError(err).WithField("rank", c.Rank).Debug("boundary model pass failed; snapping")
			} else if rc, ok := segments.ApplyRefinedStart(c, start, lookback, cons); ok {
				refined, done = rc, true
			}
		}
		if !done {
			if rc, ok := segments.SnapStart(c, tr, lookback, cons); ok {
				refined = rc
			}
		}
		out.Shorts[i] = refined
	}
	return out
}

func (s *Service) cutAll(ctx context.Context, v *types.Video, cands []types.ShortCandidate) ([]types.GeneratedShort, []types.ClipFailure) {
	type outcome struct {
		idx     int
		short   *types.GeneratedShort
		failure *types.ClipFailure
	}

	workers := s.d.Cfg.ClipWorkers
	if workers <= 0 {
		workers = 1
	}
	jobs := make(chan int)
	results := make(chan outcome, len(cands))

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				c := cands[i]
				sh, err := s.cutOne(ctx, v, c)
				if err != nil {
					results <- outcome{idx: i, failure: &types.ClipFailure{
						Rank: c.Rank, Title: c.Title, Reason: err.Error(),
					}}
					continue
				}
				results <- outcome{idx: i, short: sh}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range cands {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()
	wg.Wait()
	close(results)

	byIdx := make([]outcome, 0, len(cands))
	for o := range results {
		byIdx = append(byIdx, o)
	}
	// Restore rank order regardless of worker completion order.
	shorts := make([]types.GeneratedShort, 0, len(cands))
	failures := make([]types.ClipFailure, 0)
	for i := range cands {
		for _, o := range byIdx {
			if o.idx != i {
				continue
			}
			if o.short != nil {
				shorts = append(shorts, *o.short)
			} else if o.failure != nil {
				failures = append(failures, *o.failure)
			}
		}
	}
	return shorts, failures
}

func (s *Service) cutOne(ctx context.Context, v *types.Video, c types.ShortCandidate) (*types.GeneratedShort, error) {
	id, path, err := s.d.Store.AllocateShortPath(v.ID, c.Rank)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= s.d.Cfg.ClipRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			s.d.Store.DiscardPartial(path)
			return nil, err
		}
		if err := s.d.Media.CutClip(ctx, v.Path, c.Start, c.End, path); err != nil {
			lastErr = err
			s.d.Store.DiscardPartial(path)
			s.d.Log.WithError(err).WithFields(logrus.Fields{
				"video_id": v.ID,
				"rank":     c.Rank,
				"attempt":  attempt + 1,
			}).Warn("clip cut failed")
			continue
		}

		dur, err := s.d.Media.ProbeDuration(ctx, path)
		if err != nil {
			dur = c.Duration()
		}
		sh := &types.GeneratedShort{
			ID:          id,
			VideoID:     v.ID,
			Title:       c.Title,
			Duration:    dur,
			Path:        path,
			DownloadURL: "/api/v1/shorts/" + id,
		}
		s.d.Store.RegisterShort(sh)
		return sh, nil
	}
	return nil, lastErr
}
