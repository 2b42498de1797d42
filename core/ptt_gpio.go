package core

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

/*
 * GPIO PTT/status line: drives a hardware status output — e.g. an LED
 * or a repeater COR line — from the follower's TUNED/ON_CC state, via
 * the go-gpiocdev character-device API.
 */

// GPIOStatusLine drives a single GPIO output line to reflect whether
// the P25 follower currently has an active voice channel, letting a
// downstream repeater controller or panel LED track TUNED state
// without polling the engine.
type GPIOStatusLine struct {
	line *gpiocdev.Line
}

// NewGPIOStatusLine requests offset on chipName as an output line,
// initially de-asserted.
func NewGPIOStatusLine(chipName string, offset int) (*GPIOStatusLine, error) {
	line, err := gpiocdev.RequestLine(chipName, offset,
		gpiocdev.AsOutput(0),
		gpiocdev.WithConsumer("dvcore-ptt"))
	if err != nil {
		return nil, fmt.Errorf("gpio: requesting %s:%d: %w", chipName, offset, err)
	}
	return &GPIOStatusLine{line: line}, nil
}

// Set asserts or de-asserts the line.
func (g *GPIOStatusLine) Set(active bool) error {
	v := 0
	if active {
		v = 1
	}
	return g.line.SetValue(v)
}

// Close releases the line request.
func (g *GPIOStatusLine) Close() error {
	return g.line.Close()
}

// FollowTrunkState wires the status line to a P25SM, intended to be
// called from the engine's tick loop once per sample-loop iteration.
func (g *GPIOStatusLine) FollowTrunkState(sm *P25SM) {
	_ = g.Set(sm.State() == StateTuned)
}
