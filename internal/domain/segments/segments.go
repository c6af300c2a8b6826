// Package segments holds the pure domain rules of the shorts pipeline:
// transcript invariants, candidate selection/ranking, and boundary refinement.
package segments

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"shortify/internal/domain/timecode"
	"shortify/internal/types"
)

// ValidateTranscript enforces the ordering invariant: segments monotonically
// increasing in start time, non-overlapping, each with end > start.
func ValidateTranscript(tr types.Transcript) error {
	if len(tr.Segments) == 0 {
		return fmt.Errorf("transcript has no segments")
	}
	var prevEnd time.Duration
	for i, s := range tr.Segments {
		if s.Start < 0 {
			return fmt.Errorf("segment %d: negative start %v", i, s.Start)
		}
		if s.End <= s.Start {
			return fmt.Errorf("segment %d: end %v not after start %v", i, s.End, s.Start)
		}
		if s.Start < prevEnd {
			return fmt.Errorf("segment %d: start %v overlaps previous end %v", i, s.Start, prevEnd)
		}
		prevEnd = s.End
	}
	return nil
}

// Select filters candidates against the constraints, orders the survivors by
// descending virality score (ties by earlier start), truncates to MaxShorts,
// and assigns contiguous 1-based ranks. Dropped candidates come back as
// human-readable reasons so the caller can log them as data-quality events.
// Returns types.ErrNoViableSegments when nothing survives.
func Select(cands []types.ShortCandidate, cons types.Constraints) ([]types.ShortCandidate, []string, error) {
	kept := make([]types.ShortCandidate, 0, len(cands))
	var dropped []string
	for i, c := range cands {
		if reason := vet(c, cons); reason != "" {
			dropped = append(dropped, fmt.Sprintf("candidate %d (%q): %s", i, truncTitle(c.Title), reason))
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil, dropped, types.ErrNoViableSegments
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].ViralityScore == kept[j].ViralityScore {
			return kept[i].Start < kept[j].Start
		}
		return kept[i].ViralityScore > kept[j].ViralityScore
	})
	if cons.MaxShorts > 0 && len(kept) > cons.MaxShorts {
		kept = kept[:cons.MaxShorts]
	}
	for i := range kept {
		kept[i].Rank = i + 1
		stamp(&kept[i])
	}
	return kept, dropped, nil
}

func vet(c types.ShortCandidate, cons types.Constraints) string {
	if strings.TrimSpace(c.Title) == "" {
		return "missing title"
	}
	if c.Start < 0 || c.End < 0 {
		return "negative timestamp"
	}
	if c.End <= c.Start {
		return fmt.Sprintf("end %v not after start %v", c.End, c.Start)
	}
	if c.ViralityScore < 0 || c.ViralityScore > 100 {
		return fmt.Sprintf("virality score %.1f outside 0-100", c.ViralityScore)
	}
	d := c.Duration()
	if d < cons.MinDuration || d > cons.MaxDuration {
		return fmt.Sprintf("duration %.1fs outside %v-%v",
			d.Seconds(), cons.MinDuration, cons.MaxDuration)
	}
	return ""
}

// stamp keeps the derived string/second fields consistent with Start/End.
func stamp(c *types.ShortCandidate) {
	c.StartTime = timecode.FormatFFmpeg(c.Start)
	c.EndTime = timecode.FormatFFmpeg(c.End)
	c.DurationSeconds = int(c.Duration().Round(time.Second).Seconds())
}

// SnapStart moves the candidate start back to the nearest transcript segment
// start at or before it, within the look-back window. The start never moves
// forward; end is untouched. The refinement is discarded when the stretched
// duration would leave the configured bounds.
func SnapStart(c types.ShortCandidate, tr types.Transcript, lookback time.Duration, cons types.Constraints) (types.ShortCandidate, bool) {
	best := time.Duration(-1)
	for _, s := range tr.Segments {
		if s.Start > c.Start {
			break
		}
		if c.Start-s.Start <= lookback && s.Start > best {
			best = s.Start
		}
	}
	if best < 0 || best == c.Start {
		return c, false
	}
	return applyStart(c, best, cons)
}

// ApplyRefinedStart validates a model-suggested start against the same rules
// SnapStart follows: never forward, within the window, duration bounds kept.
func ApplyRefinedStart(c types.ShortCandidate, start time.Duration, lookback time.Duration, cons types.Constraints) (types.ShortCandidate, bool) {
	if start < 0 || start > c.Start || c.Start-start > lookback {
		return c, false
	}
	if start == c.Start {
		return c, false
	}
	return applyStart(c, start, cons)
}

func applyStart(c types.ShortCandidate, start time.Duration, cons types.Constraints) (types.ShortCandidate, bool) {
	refined := c
	refined.Start = start
	d := refined.Duration()
	if d < cons.MinDuration || d > cons.MaxDuration {
		return c, false
	}
	stamp(&refined)
	return refined, true
}

func truncTitle(s string) string {
	r := []rune(s)
	if len(r) <= 30 {
		return s
	}
	return string(r[:30]) + "..."
}
