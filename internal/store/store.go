// Package store owns the on-disk layout for uploaded videos and generated
// shorts, and the allocation of their opaque identifiers.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"shortify/internal/types"
)

var ErrNotFound = errors.New("not found")

var videoExtensions = []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".mpeg"}

type Store struct {
	uploadDir string
	outputDir string

	mu     sync.RWMutex
	videos map[string]*types.Video
	shorts map[string]*types.GeneratedShort
}

func New(uploadDir, outputDir string) (*Store, error) {
	for _, dir := range []string{uploadDir, outputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return &Store{
		uploadDir: uploadDir,
		outputDir: outputDir,
		videos:    make(map[string]*types.Video),
		shorts:    make(map[string]*types.GeneratedShort),
	}, nil
}

// SaveUpload streams an uploaded video to disk under a fresh opaque id.
// Identifier allocation is uuid-based, so concurrent uploads cannot collide.
func (s *Store) SaveUpload(r io.Reader, filename, contentType string) (*types.Video, error) {
	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		ext = ".mp4"
	}
	path := filepath.Join(s.uploadDir, id+ext)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create upload file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("write upload: %w", err)
	}

	v := &types.Video{
		ID:          id,
		Filename:    filename,
		Size:        size,
		ContentType: contentType,
		Path:        path,
		UploadedAt:  time.Now().UTC(),
	}
	s.mu.Lock()
	s.videos[id] = v
	s.mu.Unlock()
	return v, nil
}

// Video resolves an id to its record, falling back to a disk scan so the
// store survives a process restart with uploads still on disk.
func (s *Store) Video(id string) (*types.Video, error) {
	s.mu.RLock()
	v, ok := s.videos[id]
	s.mu.RUnlock()
	if ok {
		return v, nil
	}

	for _, ext := range videoExtensions {
		path := filepath.Join(s.uploadDir, id+ext)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		v := &types.Video{
			ID:         id,
			Filename:   filepath.Base(path),
			Size:       info.Size(),
			Path:       path,
			UploadedAt: info.ModTime().UTC(),
		}
		s.mu.Lock()
		s.videos[id] = v
		s.mu.Unlock()
		return v, nil
	}
	return nil, fmt.Errorf("video %s: %w", id, ErrNotFound)
}

// AudioPath is the canonical location of a video's derived audio track.
func (s *Store) AudioPath(videoID string) string {
	return filepath.Join(s.uploadDir, videoID+".mp3")
}

// SetAudio links the derived audio track to its video record.
func (s *Store) SetAudio(videoID string, track *types.AudioTrack) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.videos[videoID]; ok {
		v.Audio = track
	}
}

// AllocateShortPath reserves a collision-checked output id and path for one
// candidate. Ids are independent of upload order and never reused across
// videos: <video8>_short_<rank>_<uuid8>.
func (s *Store) AllocateShortPath(videoID string, rank int) (string, string, error) {
	prefix := videoID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	for attempt := 0; attempt < 3; attempt++ {
		id := fmt.Sprintf("%s_short_%d_%s", prefix, rank, uuid.NewString()[:8])
		path := filepath.Join(s.outputDir, id+".mp4")
		if _, err := os.Stat(path); err == nil {
			continue // extraordinarily unlucky; pick a new suffix
		}
		return id, path, nil
	}
	return "", "", fmt.Errorf("allocate short id for %s: exhausted attempts", videoID)
}

// RegisterShort publishes a generated short for retrieval.
func (s *Store) RegisterShort(short *types.GeneratedShort) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shorts[short.ID] = short
}

// Short resolves a generated short by id, scanning the output directory for
// artifacts produced before a restart. Recovered shorts carry the video-id
// prefix parsed back out of the short id so invalidation still finds them.
func (s *Store) Short(id string) (*types.GeneratedShort, error) {
	s.mu.RLock()
	sh, ok := s.shorts[id]
	s.mu.RUnlock()
	if ok {
		return sh, nil
	}

	path := filepath.Join(s.outputDir, id+".mp4")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("short %s: %w", id, ErrNotFound)
	}
	sh = &types.GeneratedShort{ID: id, VideoID: videoPrefixOf(id), Path: path}
	s.mu.Lock()
	s.shorts[id] = sh
	s.mu.Unlock()
	return sh, nil
}

// videoPrefixOf recovers the 8-char video prefix from a short id of the form
// <video8>_short_<rank>_<uuid8>.
func videoPrefixOf(shortID string) string {
	if i := strings.Index(shortID, "_short_"); i > 0 {
		return shortID[:i]
	}
	return ""
}

// ShortsForVideo lists registered shorts derived from one video.
func (s *Store) ShortsForVideo(videoID string) []*types.GeneratedShort {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*types.GeneratedShort
	for _, sh := range s.shorts {
		if sh.VideoID == videoID {
			out = append(out, sh)
		}
	}
	return out
}

// RemoveShort unregisters one short and deletes its file.
func (s *Store) RemoveShort(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shorts[id]
	if !ok {
		return nil
	}
	delete(s.shorts, id)
	if err := os.Remove(sh.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RemoveShortsForVideo unregisters and deletes all shorts derived from a
// video. Used when re-identification invalidates previously generated clips.
// The output directory is swept by prefix as well, so clips generated before
// a process restart are invalidated even when they were never re-registered.
func (s *Store) RemoveShortsForVideo(videoID string) error {
	prefix := videoID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, sh := range s.shorts {
		if sh.VideoID != videoID && sh.VideoID != prefix {
			continue
		}
		if err := os.Remove(sh.Path); err != nil && !os.IsNotExist(err) && firstErr == nil {
			firstErr = err
		}
		delete(s.shorts, id)
	}

	stale, err := filepath.Glob(filepath.Join(s.outputDir, prefix+"_short_*.mp4"))
	if err == nil {
		for _, path := range stale {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// DiscardPartial removes a half-written clip after a failed or cancelled cut.
func (s *Store) DiscardPartial(path string) {
	if path == "" {
		return
	}
	os.Remove(path)
}
