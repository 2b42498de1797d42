package core

import (
	"fmt"
	"os"

	"github.com/creack/pty"
)

/*
 * Pseudo-terminal status port: opens a pty pair and hands the slave
 * path to the caller, so any terminal program can `cat` or `socat` the
 * device to watch the P25 follower's state transitions as
 * newline-delimited, human-readable lines.
 */

// PTYStatusPort exposes a pseudo-terminal whose slave side streams
// one line per P25SM state transition.
type PTYStatusPort struct {
	master *os.File
	slave  *os.File
}

// NewPTYStatusPort opens a fresh pty pair and returns the slave's
// device path for the caller to print/log.
func NewPTYStatusPort() (*PTYStatusPort, string, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, "", fmt.Errorf("ptystatus: opening pty: %w", err)
	}
	return &PTYStatusPort{master: master, slave: slave}, slave.Name(), nil
}

// Publish writes one status line to the master side, visible to
// whatever is reading the slave device.
func (p *PTYStatusPort) Publish(state TrunkState, freqHz int64) error {
	_, err := fmt.Fprintf(p.master, "%s %d\n", state, freqHz)
	return err
}

// Close releases both ends of the pty pair.
func (p *PTYStatusPort) Close() error {
	err1 := p.master.Close()
	err2 := p.slave.Close()
	if err1 != nil {
		return err1
	}
	return err2
}
