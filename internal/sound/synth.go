// Package sound renders the short alert tones.
package sound

import (
	"math"
	"time"

	"github.com/mr1hm/go-quake-alerts/internal/models"
)

const (
	DefaultSampleRate = 44100

	toneLength  = 500 * time.Millisecond
	attack      = 10 * time.Millisecond
	peakGain    = 0.3
	floorGain   = 0.00001
	sweepLength = 100 * time.Millisecond
)

type Waveform int

const (
	Sine Waveform = iota
	Triangle
	Sawtooth
)

// Profile describes one alert tone. EndFreq is reached linearly over
// sweepLength and held afterwards.
type Profile struct {
	Waveform  Waveform
	StartFreq float64
	EndFreq   float64
}

var profiles = map[models.AlertSound]Profile{
	models.AlertSoundBeep:   {Waveform: Sine, StartFreq: 880, EndFreq: 880},
	models.AlertSoundChime:  {Waveform: Triangle, StartFreq: 1046.5, EndFreq: 1046.5},
	models.AlertSoundUrgent: {Waveform: Sawtooth, StartFreq: 1200, EndFreq: 1000},
}

func ProfileFor(sound models.AlertSound) (Profile, bool) {
	p, ok := profiles[sound]
	return p, ok
}

// Render synthesizes the tone for sound as mono samples in [-1, 1]. It
// returns nil for "none" and unknown sounds.
func Render(sound models.AlertSound, sampleRate int) []float64 {
	p, ok := ProfileFor(sound)
	if !ok || sampleRate <= 0 {
		return nil
	}

	n := int(toneLength.Seconds() * float64(sampleRate))
	out := make([]float64, n)
	phase := 0.0 // in cycles
	for i := range out {
		t := float64(i) / float64(sampleRate)
		out[i] = p.Waveform.sample(phase) * Envelope(t)
		phase += p.frequencyAt(t) / float64(sampleRate)
		phase -= math.Floor(phase)
	}
	return out
}

// Envelope is the shared gain curve: linear fade-in to peakGain over the
// attack, then exponential decay to floorGain at the end of the tone.
func Envelope(t float64) float64 {
	a := attack.Seconds()
	end := toneLength.Seconds()
	switch {
	case t <= 0:
		return 0
	case t < a:
		return peakGain * t / a
	case t >= end:
		return 0
	default:
		return peakGain * math.Pow(floorGain/peakGain, (t-a)/(end-a))
	}
}

func (p Profile) frequencyAt(t float64) float64 {
	s := sweepLength.Seconds()
	if t >= s || p.StartFreq == p.EndFreq {
		return p.EndFreq
	}
	return p.StartFreq + (p.EndFreq-p.StartFreq)*t/s
}

// sample evaluates the waveform at phase (cycles, [0,1)).
func (w Waveform) sample(phase float64) float64 {
	switch w {
	case Triangle:
		return 1 - 4*math.Abs(phase-0.5)
	case Sawtooth:
		return 2*phase - 1
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}
