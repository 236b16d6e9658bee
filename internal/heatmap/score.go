// Package heatmap maintains per-path change counts and recency-weighted heat
// scores over the rolling window.
package heatmap

import (
	"math"
	"time"
)

// Fixed scoring policy: frequency's contribution saturates at 20 changes and
// recency decays with a 14-day constant. Neither is configurable.
const (
	frequencyCap    = 20
	recencyHalfLife = 14.0
	frequencyWeight = 0.65
	recencyWeight   = 0.35
)

// Score computes the 0-100 heat score for a path with the given in-window
// change count and most recent change time, evaluated at reference.
func Score(count int, lastChanged, reference time.Time) float64 {
	if count <= 0 {
		return 0
	}

	frequencyNorm := math.Log(1+float64(count)) / math.Log(1+frequencyCap)
	if frequencyNorm > 1 {
		frequencyNorm = 1
	}

	days := reference.Sub(lastChanged).Hours() / 24
	if days < 0 {
		days = 0
	}
	recencyNorm := math.Exp(-days / recencyHalfLife)

	score := (frequencyWeight*frequencyNorm + recencyWeight*recencyNorm) * 100
	return math.Round(score*100) / 100
}
