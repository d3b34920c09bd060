package processor

import "time"

// Stats accumulates per-session counters. It is a plain value: Observe
// returns the updated copy and the caller owns it.
type Stats struct {
	Started    time.Time
	Lines      int
	Receptions int
	Matched    int
	ByKind     [numKinds]int
}

func NewStats(started time.Time) Stats {
	return Stats{Started: started}
}

// Observe counts one processed line.
func (s Stats) Observe(r Result) Stats {
	s.Lines++
	if r.Kind != NotAReception {
		s.Receptions++
	}
	if r.Kind.Accepted() {
		s.Matched++
	}
	if r.Kind >= 0 && r.Kind < numKinds {
		s.ByKind[r.Kind]++
	}
	return s
}

func (s Stats) Count(k Kind) int {
	if k < 0 || k >= numKinds {
		return 0
	}
	return s.ByKind[k]
}

// MatchedPercent is the share of receptions that passed the filter, 0 when
// nothing was received.
func (s Stats) MatchedPercent() float64 {
	if s.Receptions == 0 {
		return 0
	}
	return float64(s.Matched) / float64(s.Receptions) * 100
}

func (s Stats) Duration(now time.Time) time.Duration {
	if s.Started.IsZero() {
		return 0
	}
	return now.Sub(s.Started)
}
