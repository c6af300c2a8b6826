package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"shortify/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	tmp := t.TempDir()
	s, err := New(filepath.Join(tmp, "uploads"), filepath.Join(tmp, "outputs"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return s
}

func TestSaveUploadAndLookup(t *testing.T) {
	s := newTestStore(t)

	v, err := s.SaveUpload(strings.NewReader("fake video bytes"), "My Talk.MP4", "video/mp4")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if v.ID == "" {
		t.Fatalf("expected generated id")
	}
	if v.Size != int64(len("fake video bytes")) {
		t.Fatalf("unexpected size: %d", v.Size)
	}
	if !strings.HasSuffix(v.Path, ".mp4") {
		t.Fatalf("extension not normalized: %s", v.Path)
	}

	got, err := s.Video(v.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Path != v.Path {
		t.Fatalf("lookup mismatch: %s vs %s", got.Path, v.Path)
	}

	if _, err := s.Video("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestVideoRecoversFromDisk(t *testing.T) {
	s := newTestStore(t)
	v, err := s.SaveUpload(strings.NewReader("x"), "a.mp4", "video/mp4")
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	// A fresh store over the same directories must still resolve the id.
	s2, err := New(s.uploadDir, s.outputDir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := s2.Video(v.ID)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got.Path != v.Path {
		t.Fatalf("recovered wrong path: %s", got.Path)
	}
}

func TestConcurrentUploadsAllocateDistinctIDs(t *testing.T) {
	s := newTestStore(t)

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := s.SaveUpload(strings.NewReader("v"), "v.mp4", "video/mp4")
			if err != nil {
				t.Errorf("save: %v", err)
				return
			}
			ids <- v.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id allocated: %s", id)
		}
		seen[id] = true
	}
}

func TestShortLifecycle(t *testing.T) {
	s := newTestStore(t)

	id, path, err := s.AllocateShortPath("0123456789abcdef", 1)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if !strings.HasPrefix(id, "01234567_short_1_") {
		t.Fatalf("unexpected short id format: %s", id)
	}
	if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}

	s.RegisterShort(&types.GeneratedShort{ID: id, VideoID: "0123456789abcdef", Title: "t", Path: path})

	sh, err := s.Short(id)
	if err != nil {
		t.Fatalf("short lookup: %v", err)
	}
	if sh.Title != "t" {
		t.Fatalf("unexpected short: %+v", sh)
	}

	if got := s.ShortsForVideo("0123456789abcdef"); len(got) != 1 {
		t.Fatalf("expected 1 short for video, got %d", len(got))
	}

	if err := s.RemoveShortsForVideo("0123456789abcdef"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := s.Short(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected short gone, got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected file deleted, stat err=%v", err)
	}
}

func TestRemoveShortsForVideoAfterRestart(t *testing.T) {
	s := newTestStore(t)
	videoID := "0123456789abcdef"

	id, path, err := s.AllocateShortPath(videoID, 1)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	s.RegisterShort(&types.GeneratedShort{ID: id, VideoID: videoID, Title: "t", Path: path})

	// A fresh store has no in-memory index; the clip only exists on disk.
	s2, err := New(s.uploadDir, s.outputDir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	sh, err := s2.Short(id)
	if err != nil {
		t.Fatalf("recover short: %v", err)
	}
	if sh.VideoID != "01234567" {
		t.Fatalf("recovered short lost its video prefix: %q", sh.VideoID)
	}

	if err := s2.RemoveShortsForVideo(videoID); err != nil {
		t.Fatalf("remove after restart: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("pre-restart clip survived invalidation, stat err=%v", err)
	}
	if _, err := s2.Short(id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected short gone, got %v", err)
	}
}

func TestRemoveShort(t *testing.T) {
	s := newTestStore(t)
	id, path, err := s.AllocateShortPath("0123456789abcdef", 1)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := os.WriteFile(path, []byte("clip"), 0o644); err != nil {
		t.Fatalf("write clip: %v", err)
	}
	s.RegisterShort(&types.GeneratedShort{ID: id, VideoID: "0123456789abcdef", Path: path})

	if err := s.RemoveShort(id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("file survived removal, stat err=%v", err)
	}
	if err := s.RemoveShort(id); err != nil {
		t.Fatalf("removing an unknown id must be a no-op, got %v", err)
	}
}
