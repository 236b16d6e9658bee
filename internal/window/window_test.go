package window

import (
	"testing"
	"time"

	"github.com/gitpulse/gitpulse-go/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCompute(t *testing.T) {
	ref := time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)
	w := Compute(ref, 30)

	assert.Equal(t, ref, w.Until)
	assert.Equal(t, time.Date(2025, 5, 31, 12, 0, 0, 0, time.UTC), w.Since)
}

func TestWindowContains(t *testing.T) {
	ref := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	w := Compute(ref, 30)

	assert.True(t, w.Contains(w.Since))
	assert.True(t, w.Contains(w.Until))
	assert.True(t, w.Contains(ref.AddDate(0, 0, -15)))
	assert.False(t, w.Contains(w.Since.Add(-time.Second)))
	assert.False(t, w.Contains(w.Until.Add(time.Second)))
}

func TestDecide_NoWatermark(t *testing.T) {
	d := Decide(nil, 30, time.Now())

	assert.Equal(t, ModeFull, d.Mode)
	assert.Equal(t, ReasonNoWatermark, d.Reason)
}

func TestDecide_WindowChanged(t *testing.T) {
	ref := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	wm := &models.Watermark{
		ProjectID:   "proj-1",
		DatasetKind: models.DatasetCoChange,
		LastRunAt:   ref.AddDate(0, 0, -1),
		WindowDays:  90,
	}

	d := Decide(wm, 30, ref)

	assert.Equal(t, ModeFull, d.Mode)
	assert.Equal(t, ReasonWindowChanged, d.Reason)
}

func TestDecide_WatermarkTooOld(t *testing.T) {
	ref := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	wm := &models.Watermark{
		LastRunAt:  ref.AddDate(0, 0, -31),
		WindowDays: 30,
	}

	d := Decide(wm, 30, ref)

	assert.Equal(t, ModeFull, d.Mode)
	assert.Equal(t, ReasonWatermarkTooOld, d.Reason)
}

func TestDecide_Delta(t *testing.T) {
	ref := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	last := ref.AddDate(0, 0, -2)
	wm := &models.Watermark{
		LastRunAt:  last,
		WindowDays: 30,
	}

	d := Decide(wm, 30, ref)

	assert.Equal(t, ModeDelta, d.Mode)
	assert.Empty(t, d.Reason)
	assert.Equal(t, last, d.PreviousReference)
}

func TestDecide_GapExactlyWindowIsDelta(t *testing.T) {
	// The staleness threshold is strictly greater-than: a gap of exactly
	// one window width still deltas.
	ref := time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)
	wm := &models.Watermark{
		LastRunAt:  ref.Add(-30 * 24 * time.Hour),
		WindowDays: 30,
	}

	d := Decide(wm, 30, ref)
	assert.Equal(t, ModeDelta, d.Mode)

	// One second past the window width forces a rebuild.
	wm.LastRunAt = wm.LastRunAt.Add(-time.Second)
	d = Decide(wm, 30, ref)
	assert.Equal(t, ModeFull, d.Mode)
	assert.Equal(t, ReasonWatermarkTooOld, d.Reason)
}
