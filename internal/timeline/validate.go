package timeline

import (
	"fmt"
	"time"

	"zenfocus/internal/types"
)

// Validate checks that segments are well formed, ordered and non-overlapping.
// Gaps are allowed; they are left by pauses.
func Validate(segments []types.EventSegment) error {
	for i, seg := range segments {
		if !seg.State.Valid() {
			return fmt.Errorf("segment %d: unknown state %q", i, seg.State)
		}
		if seg.End.Before(seg.Start) {
			return fmt.Errorf("segment %d: end %s before start %s", i, seg.End.Format(time.RFC3339Nano), seg.Start.Format(time.RFC3339Nano))
		}
		if seg.Confidence < 0 || seg.Confidence > 1 {
			return fmt.Errorf("segment %d: confidence %v out of range", i, seg.Confidence)
		}
		if i > 0 && seg.Start.Before(segments[i-1].End) {
			return fmt.Errorf("segment %d overlaps segment %d", i, i-1)
		}
	}
	return nil
}

// Gaps returns the total time between consecutive segments that do not touch
func Gaps(segments []types.EventSegment) time.Duration {
	var total time.Duration
	for i := 1; i < len(segments); i++ {
		if gap := segments[i].Start.Sub(segments[i-1].End); gap > 0 {
			total += gap
		}
	}
	return total
}

// Span returns the total covered time of the segments
func Span(segments []types.EventSegment) time.Duration {
	var total time.Duration
	for _, seg := range segments {
		total += seg.Duration()
	}
	return total
}
