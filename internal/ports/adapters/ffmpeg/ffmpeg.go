package ffmpeg

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"os/exec"

	"shortify/internal/domain/timecode"
	"shortify/internal/types"
)

type Adapter struct {
	ffmpeg     string
	ffprobe    string
	streamCopy bool
}

func New(ffmpegPath, ffprobePath string, streamCopy bool) *Adapter {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Adapter{ffmpeg: ffmpegPath, ffprobe: ffprobePath, streamCopy: streamCopy}
}

// ExtractAudio writes a compressed mono-friendly mp3 (128k/44.1kHz), shrinking
// the payload before remote inference.
func (a *Adapter) ExtractAudio(ctx context.Context, inVideo, outAudio string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-i", inVideo,
		"-vn",
		"-acodec", "libmp3lame",
		"-ab", "128k",
		"-ar", "44100",
		outAudio,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return &types.MediaError{Op: "extract-audio", Path: inVideo,
			Err: fmt.Errorf("%w\n%s", err, string(b))}
	}
	return nil
}

// CutClip trims [start,end) from the source into outPath. Stream copy is a
// fast path only; a copy failure falls through to the frame-accurate re-encode.
func (a *Adapter) CutClip(ctx context.Context, inVideo string, start, end time.Duration, outPath string) error {
	if a.streamCopy {
		if err := a.cutCopy(ctx, inVideo, start, end, outPath); err == nil {
			return nil
		}
	}
	return a.cutEncode(ctx, inVideo, start, end, outPath)
}

func (a *Adapter) cutEncode(ctx context.Context, inVideo string, start, end time.Duration, outPath string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-ss", timecode.FormatFFmpeg(start),
		"-to", timecode.FormatFFmpeg(end),
		"-i", inVideo,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "23",
		"-c:a", "aac",
		outPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return &types.MediaError{Op: "cut", Path: inVideo,
			Err: fmt.Errorf("%w\n%s", err, string(b))}
	}
	return nil
}

func (a *Adapter) cutCopy(ctx context.Context, inVideo string, start, end time.Duration, outPath string) error {
	cmd := exec.CommandContext(ctx, a.ffmpeg,
		"-y",
		"-ss", timecode.FormatFFmpeg(start),
		"-i", inVideo,
		"-t", strconv.FormatFloat((end-start).Seconds(), 'f', 3, 64),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		outPath,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return &types.MediaError{Op: "cut-copy", Path: inVideo,
			Err: fmt.Errorf("%w\n%s", err, string(b))}
	}
	return nil
}

func (a *Adapter) ProbeDuration(ctx context.Context, in string) (time.Duration, error) {
	cmd := exec.CommandContext(ctx, a.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		in,
	)
	b, err := cmd.CombinedOutput()
	if err != nil {
		return 0, &types.MediaError{Op: "probe", Path: in,
			Err: fmt.Errorf("%w\n%s", err, string(b))}
	}
	s := strings.TrimSpace(string(b))
	sec, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, &types.MediaError{Op: "probe", Path: in,
			Err: fmt.Errorf("parse duration %q: %w", s, err)}
	}
	return time.Duration(sec * float64(time.Second)), nil
}
