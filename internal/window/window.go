// Package window computes rolling time windows and selects the run mode
// (full rebuild vs incremental delta) from the persisted watermark.
package window

import (
	"time"

	"github.com/gitpulse/gitpulse-go/internal/models"
)

// Window is the rolling time range aggregates are computed over.
type Window struct {
	Since time.Time
	Until time.Time
}

// Compute derives the window ending at reference and spanning windowDays.
func Compute(reference time.Time, windowDays int) Window {
	return Window{
		Since: reference.AddDate(0, 0, -windowDays),
		Until: reference,
	}
}

// Contains reports whether ts falls inside the window (inclusive bounds).
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Since) && !ts.After(w.Until)
}

// Mode is the run strategy chosen for one dataset.
type Mode string

const (
	ModeFull  Mode = "full"
	ModeDelta Mode = "delta"
)

// Reasons a full rebuild is forced.
const (
	ReasonNoWatermark     = "no_watermark"
	ReasonWindowChanged   = "window_changed"
	ReasonWatermarkTooOld = "watermark_too_old"
)

// Decision is the tagged outcome of mode selection. PreviousReference is set
// only for delta runs and carries the prior run's reference date.
type Decision struct {
	Mode              Mode
	Reason            string
	PreviousReference time.Time
}

// Decide picks full vs delta for one run.
//
// Full is forced when no watermark exists, when the window size changed (old
// counts were computed for a different horizon), or when the gap since the
// last run exceeds one window width (the old and new windows no longer
// overlap enough to delta safely). The staleness comparison is seconds-based
// and strictly greater-than, so a gap of exactly windowDays still deltas.
func Decide(wm *models.Watermark, windowDays int, reference time.Time) Decision {
	if wm == nil {
		return Decision{Mode: ModeFull, Reason: ReasonNoWatermark}
	}
	if wm.WindowDays != windowDays {
		return Decision{Mode: ModeFull, Reason: ReasonWindowChanged}
	}
	elapsedDays := reference.Sub(wm.LastRunAt).Seconds() / 86400
	if elapsedDays > float64(windowDays) {
		return Decision{Mode: ModeFull, Reason: ReasonWatermarkTooOld}
	}
	return Decision{Mode: ModeDelta, PreviousReference: wm.LastRunAt}
}
