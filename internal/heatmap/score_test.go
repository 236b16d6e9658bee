package heatmap

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScore_MaxAtTwentyFreshChanges(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 100.0, Score(20, ref, ref))
}

func TestScore_FrequencyCapped(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	last := ref.AddDate(0, 0, -7)

	// At equal recency, 20 and 100 changes score the same (cap at 20+).
	diff := math.Abs(Score(100, last, ref) - Score(20, last, ref))
	assert.Less(t, diff, 0.01)
}

func TestScore_ZeroCount(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0.0, Score(0, ref.AddDate(0, 0, -100), ref))
	assert.Equal(t, 0.0, Score(-1, ref, ref))
}

func TestScore_RecencyDecay(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fresh := Score(5, ref, ref)
	stale := Score(5, ref.AddDate(0, 0, -60), ref)
	assert.Greater(t, fresh, stale)

	// At 60 days the recency term is nearly gone; only frequency remains.
	freqOnly := 0.65 * math.Log(6) / math.Log(21) * 100
	assert.InDelta(t, freqOnly, stale, 1.5)
}

func TestScore_FutureLastChangeClamped(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	// Clock skew can put the last change slightly past the reference.
	assert.Equal(t, Score(5, ref, ref), Score(5, ref.Add(time.Hour), ref))
}

func TestScore_RoundedToTwoDecimals(t *testing.T) {
	ref := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := Score(3, ref.AddDate(0, 0, -3), ref)

	assert.Equal(t, math.Round(s*100)/100, s)
	assert.GreaterOrEqual(t, s, 0.0)
	assert.LessOrEqual(t, s, 100.0)
}
