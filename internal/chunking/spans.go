package chunking

import "math"

// Span is a half-open time range in seconds.
type Span struct {
	Start float64
	End   float64
}

// Duration returns the span length in seconds.
func (s Span) Duration() float64 { return s.End - s.Start }

// Spans divides [0, total) into equal contiguous spans no longer than target.
// The final span ends at exactly total. A non-positive target or a total that
// fits within target yields a single span.
func Spans(total, target float64) []Span {
	if total <= 0 {
		return nil
	}
	if target <= 0 || total <= target {
		return []Span{{Start: 0, End: total}}
	}
	count := int(math.Ceil(total/target - 1e-9))
	if count < 1 {
		count = 1
	}
	step := total / float64(count)
	spans := make([]Span, count)
	for i := range spans {
		spans[i].Start = float64(i) * step
		spans[i].End = float64(i+1) * step
		if i > 0 {
			spans[i].Start = spans[i-1].End
		}
	}
	spans[count-1].End = total
	return spans
}

// TargetSeconds picks the chunk length: the configured target, shortened so
// that a file of sizeMB splits into enough pieces to respect maxSizeMB.
func TargetSeconds(total, sizeMB, maxSizeMB, configured float64) float64 {
	target := configured
	if maxSizeMB > 0 && sizeMB > maxSizeMB {
		pieces := math.Ceil(sizeMB / maxSizeMB)
		if bySize := total / pieces; target <= 0 || bySize < target {
			target = bySize
		}
	}
	return target
}
