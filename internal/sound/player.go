package sound

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/mr1hm/go-quake-alerts/internal/models"
	"github.com/mr1hm/go-quake-alerts/internal/observability"
)

var errNoDevice = errors.New("no audio device configured")

// Synthesizer owns the output device for the process lifetime. It is created
// on first use and reused; every failure is logged and swallowed.
type Synthesizer struct {
	mu         sync.Mutex
	factory    DeviceFactory
	device     Device
	sampleRate int
	metrics    *observability.Metrics
}

func NewSynthesizer(factory DeviceFactory, metrics *observability.Metrics) *Synthesizer {
	return &Synthesizer{
		factory:    factory,
		sampleRate: DefaultSampleRate,
		metrics:    metrics,
	}
}

// Play renders and plays the given alert sound. "none" is a no-op.
func (s *Synthesizer) Play(sound models.AlertSound) {
	if sound == "" || sound == models.AlertSoundNone {
		return
	}
	samples := Render(sound, s.sampleRate)
	if samples == nil {
		slog.Warn("unknown alert sound", "sound", sound)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dev, err := s.deviceLocked()
	if err != nil {
		s.failed("open audio device", err)
		return
	}
	if err := dev.Play(samples, s.sampleRate); err != nil {
		s.failed("play alert sound", err)
	}
}

func (s *Synthesizer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.device == nil {
		return nil
	}
	err := s.device.Close()
	s.device = nil
	return err
}

func (s *Synthesizer) deviceLocked() (Device, error) {
	if s.device != nil {
		return s.device, nil
	}
	if s.factory == nil {
		return nil, errNoDevice
	}
	dev, err := s.factory()
	if err != nil {
		return nil, err
	}
	s.device = dev
	return dev, nil
}

func (s *Synthesizer) failed(msg string, err error) {
	slog.Warn(msg, "error", err)
	if s.metrics != nil {
		s.metrics.SoundFailures.Inc()
	}
}
