package core

import (
	"fmt"
	"time"

	"github.com/gordonklaus/portaudio"
)

/*
 * Live audio output sink, backed by PortAudio for cross-platform
 * device access instead of a platform-specific API.
 */

// PortAudioSink streams decoded call audio to the default (or named)
// output device via PortAudio, one mono stream per slot.
type PortAudioSink struct {
	stream *portaudio.Stream
	outCh  chan []int16
	done   chan struct{}
}

// NewPortAudioSink opens a mono output stream at sampleRateHz.
func NewPortAudioSink(sampleRateHz float64) (*PortAudioSink, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initializing: %w", err)
	}

	s := &PortAudioSink{
		outCh: make(chan []int16, 64),
		done:  make(chan struct{}),
	}

	buf := make([]int16, 0, 960)
	stream, err := portaudio.OpenDefaultStream(0, 1, sampleRateHz, len(buf), func(out []int16) {
		select {
		case pcm := <-s.outCh:
			n := copy(out, pcm)
			for i := n; i < len(out); i++ {
				out[i] = 0
			}
		default:
			for i := range out {
				out[i] = 0
			}
		}
	})
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: opening stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: starting stream: %w", err)
	}

	s.stream = stream
	return s, nil
}

// WriteSamples implements AudioSink: it enqueues pcm for the callback
// to drain, dropping frames rather than blocking if the output device
// falls behind (a live sink, not a recording one).
func (s *PortAudioSink) WriteSamples(slot int, pcm []int16) error {
	_ = slot
	cp := make([]int16, len(pcm))
	copy(cp, pcm)
	select {
	case s.outCh <- cp:
	default:
	}
	return nil
}

// Drain blocks until the queued audio has been consumed by the output
// callback, bounded so a stalled device cannot wedge the caller. Used
// by the trunking follower before it retunes away from a voice
// channel.
func (s *PortAudioSink) Drain() {
	deadline := time.Now().Add(500 * time.Millisecond)
	for len(s.outCh) > 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
}

// Close stops the stream and releases PortAudio.
func (s *PortAudioSink) Close() error {
	if s.stream == nil {
		return nil
	}
	if err := s.stream.Stop(); err != nil {
		return err
	}
	if err := s.stream.Close(); err != nil {
		return err
	}
	return portaudio.Terminate()
}

var _ AudioSink = (*PortAudioSink)(nil)
