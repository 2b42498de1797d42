package core

import (
	"fmt"
	"sync"

	hamlib "github.com/xylo04/goHamlib"
)

/*
 * Hamlib-backed tuning hook and RigctlBackend: full frequency/mode
 * control over a rigctld-compatible radio, driving the P25 trunking
 * follower's retune path.
 */

// HamlibRig wraps a goHamlib rig handle as both a TuningHook (for the
// P25 state machine) and a RigctlBackend (for the engine's generic
// retune command path).
type HamlibRig struct {
	mu  sync.Mutex
	rig *hamlib.Rig
}

// NewHamlibRig opens and initializes the rig identified by model at
// the given device path (e.g. "/dev/ttyUSB0" or a rigctld "host:port"
// network spec, per goHamlib convention).
func NewHamlibRig(model int, devicePath string) (*HamlibRig, error) {
	rig := hamlib.NewRig(model)
	rig.SetConf("rig_pathname", devicePath)
	if err := rig.Open(); err != nil {
		return nil, fmt.Errorf("hamlib: opening rig model %d at %s: %w", model, devicePath, err)
	}
	return &HamlibRig{rig: rig}, nil
}

// Close releases the underlying rig handle.
func (h *HamlibRig) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rig.Close()
}

// TuneToFreq implements TuningHook: an ordinary voice-channel retune.
func (h *HamlibRig) TuneToFreq(hz int64, tedSPS int) {
	_ = tedSPS
	h.mu.Lock()
	defer h.mu.Unlock()
	_ = h.rig.SetFreq(hamlib.VFOCurrent, float64(hz))
}

// TuneToCC implements TuningHook: returning to the control channel.
// Identical to TuneToFreq at the rig level; kept distinct so a future
// rig profile can apply CC-specific mode/bandwidth settings.
func (h *HamlibRig) TuneToCC(hz int64, tedSPS int) {
	h.TuneToFreq(hz, tedSPS)
}

// SetFreq implements RigctlBackend for ad hoc UI-driven retunes.
func (h *HamlibRig) SetFreq(hz int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rig.SetFreq(hamlib.VFOCurrent, float64(hz))
}

// SetModulation implements RigctlBackend.
func (h *HamlibRig) SetModulation(mode string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rig.SetMode(hamlib.VFOCurrent, mode, hamlib.PassbandNormal)
}

// GetCurrentFreq implements RigctlBackend.
func (h *HamlibRig) GetCurrentFreq() (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f, err := h.rig.GetFreq(hamlib.VFOCurrent)
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

var (
	_ TuningHook    = (*HamlibRig)(nil)
	_ RigctlBackend = (*HamlibRig)(nil)
)
