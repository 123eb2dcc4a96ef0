package sound

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Device plays rendered samples.
type Device interface {
	Play(samples []float64, sampleRate int) error
	Close() error
}

// DeviceFactory opens the output device; called lazily on first play.
type DeviceFactory func() (Device, error)

// WAVDevice replaces latest.wav in its directory with each tone so an
// external player (or the dashboard) can pick it up. Earlier tones are not kept.
type WAVDevice struct {
	dir string
}

func NewWAVDevice(dir string) (*WAVDevice, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create sound dir: %w", err)
	}
	return &WAVDevice{dir: dir}, nil
}

func WAVDeviceFactory(dir string) DeviceFactory {
	return func() (Device, error) {
		return NewWAVDevice(dir)
	}
}

func (d *WAVDevice) Path() string {
	return filepath.Join(d.dir, "latest.wav")
}

func (d *WAVDevice) Play(samples []float64, sampleRate int) error {
	tmp, err := os.CreateTemp(d.dir, "tone-*.wav.tmp")
	if err != nil {
		return fmt.Errorf("create temp wav: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if tmp != nil {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	enc := wav.NewEncoder(tmp, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           toPCM16(samples),
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalize wav: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	tmp = nil

	if err := os.Rename(tmpName, d.Path()); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace wav: %w", err)
	}
	return nil
}

func (d *WAVDevice) Close() error { return nil }

func toPCM16(samples []float64) []int {
	out := make([]int, len(samples))
	for i, s := range samples {
		s = math.Max(-1, math.Min(1, s))
		out[i] = int(math.Round(s * math.MaxInt16))
	}
	return out
}
