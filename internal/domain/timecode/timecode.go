// Package timecode converts between time.Duration and the MM:SS / HH:MM:SS(.mmm)
// timestamp strings used by the transcription model and ffmpeg.
package timecode

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Parse accepts MM:SS, HH:MM:SS, or HH:MM:SS.mmm.
func Parse(ts string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(ts), ":")
	switch len(parts) {
	case 2:
		m, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		s, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		return dur(float64(m)*60 + s), nil
	case 3:
		h, err := strconv.Atoi(parts[0])
		if err != nil {
			return 0, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		m, err := strconv.Atoi(parts[1])
		if err != nil {
			return 0, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		s, err := strconv.ParseFloat(parts[2], 64)
		if err != nil {
			return 0, fmt.Errorf("parse timestamp %q: %w", ts, err)
		}
		return dur(float64(h)*3600 + float64(m)*60 + s), nil
	default:
		return 0, fmt.Errorf("parse timestamp %q: want MM:SS or HH:MM:SS", ts)
	}
}

// FormatFFmpeg renders HH:MM:SS.mmm, the form ffmpeg accepts for -ss/-to.
func FormatFFmpeg(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := d.Seconds()
	h := int(total) / 3600
	m := (int(total) % 3600) / 60
	s := total - float64(h*3600+m*60)
	return fmt.Sprintf("%02d:%02d:%06.3f", h, m, s)
}

// Format renders MM:SS, rounded to whole seconds.
func Format(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Round(time.Second).Seconds())
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func dur(sec float64) time.Duration {
	return time.Duration(sec * float64(time.Second))
}
