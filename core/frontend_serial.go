package core

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/pkg/term"
	"golang.org/x/sys/unix"
)

/*
 * Serial-line front-end: a TNC-style radio modem that streams signed
 * 16-bit baseband samples over a plain serial port rather than a USB
 * SDR. Useful for bench testing against a hardware C4FM/CQPSK
 * discriminator tap.
 */

// SerialSamples reads signed 16-bit little-endian baseband samples
// from a serial TNC/discriminator-tap device.
type SerialSamples struct {
	path string
	baud int
	rate uint32

	fd *term.Term
}

// NewSerialSamples prepares (but does not yet open) a serial front-end
// at devicename/baud, reporting outputRateHz to callers of
// OutputRateHz.
func NewSerialSamples(devicename string, baud int, outputRateHz uint32) *SerialSamples {
	return &SerialSamples{path: devicename, baud: baud, rate: outputRateHz}
}

// Start opens the port in raw mode and claims it exclusively.
func (s *SerialSamples) Start(ctx context.Context) error {
	fd, err := term.Open(s.path, term.RawMode)
	if err != nil {
		return fmt.Errorf("serial: opening %s: %w", s.path, err)
	}

	switch s.baud {
	case 0:
	case 1200, 2400, 4800, 9600, 19200, 38400, 57600, 115200:
		if err := fd.SetSpeed(s.baud); err != nil {
			fd.Close()
			return fmt.Errorf("serial: setting speed %d: %w", s.baud, err)
		}
	default:
		if err := fd.SetSpeed(4800); err != nil {
			fd.Close()
			return fmt.Errorf("serial: setting fallback speed: %w", err)
		}
	}

	if err := unix.IoctlSetInt(int(fd.Fd()), unix.TIOCEXCL, 0); err != nil {
		// Not fatal: exclusive access is best-effort on platforms/drivers
		// that don't support TIOCEXCL.
	}

	s.fd = fd
	return nil
}

// Stop closes the serial handle.
func (s *SerialSamples) Stop() error {
	if s.fd == nil {
		return nil
	}
	return s.fd.Close()
}

// Tune is a no-op: a fixed-tuned hardware discriminator tap has no
// software-controllable frequency.
func (s *SerialSamples) Tune(hz int64) error {
	return fmt.Errorf("serial: front-end has no software tuning control")
}

// OutputRateHz reports the configured sample rate.
func (s *SerialSamples) OutputRateHz() uint32 { return s.rate }

// Next reads one little-endian int16 sample, scaled to a float64.
func (s *SerialSamples) Next(ctx context.Context) (float64, error) {
	if s.fd == nil {
		return 0, fmt.Errorf("serial: front-end not started")
	}
	var buf [2]byte
	if _, err := s.fd.Read(buf[:]); err != nil {
		return 0, fmt.Errorf("serial: reading sample: %w", err)
	}
	v := int16(binary.LittleEndian.Uint16(buf[:]))
	return float64(v), nil
}

var _ SamplesSource = (*SerialSamples)(nil)
