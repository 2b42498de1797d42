package core

import "context"

/*
 * External collaborator interfaces. The core depends only on these;
 * concrete front-ends/sinks/tuning backends live in separate files and
 * are swappable in tests via fakes.
 */

// SamplesSource is the front-end sample producer.
type SamplesSource interface {
	Start(ctx context.Context) error
	Stop() error
	Tune(hz int64) error
	OutputRateHz() uint32

	// Next blocks (bounded by ctx) for the next baseband sample.
	Next(ctx context.Context) (float64, error)
}

// RFMetrics is a read-mostly snapshot written only by the front-end
// thread.
type RFMetrics struct {
	SNRC4FM  float64
	SNRCQPSK float64
	SNRGFSK  float64

	CQPSKOn   bool
	FLLOn     bool
	TEDOn     bool
	AutoDSPOn bool
}

// MetricsSource exposes the current RFMetrics snapshot.
type MetricsSource interface {
	Metrics() RFMetrics
}

// DSPControls lets the engine/SM influence the upstream DSP path.
type DSPControls interface {
	SetTEDSamplesPerSymbol(sps int)
	ToggleCQPSK(on bool)
	ToggleFLL(on bool)
	ToggleTED(on bool)
	ToggleAutoDSP(on bool)
}

// AudioSink receives decoded call audio. Implementations take
// ownership of the samples by copy.
type AudioSink interface {
	WriteSamples(slot int, pcm []int16) error
	Close() error
}

// AudioDrainer is implemented by audio sinks that buffer output and
// can block until the queue empties; the trunking follower drains
// before retuning away from a voice channel.
type AudioDrainer interface {
	Drain()
}

// FileSink is the MBE-artifact / WAV lifecycle collaborator the
// dispatcher uses to open/close per-call files.
type FileSink interface {
	OpenCall(protocol string, callID uint32) error
	WriteFrame(frame []byte) error
	CloseCall() error
}

// FECDecoder is the forward-error-correction collaborator. The core
// never re-implements Hamming/Golay/Reed-Solomon/BCH/Viterbi itself;
// a handler that needs a protected field decoded hands the raw bits
// here and gets the corrected payload (or ok=false when the code is
// uncorrectable). A nil FECDecoder makes handlers fall back to
// uncoded extraction, which is what the deterministic test captures
// feed.
type FECDecoder interface {
	// Trellis12 decodes the P25 rate-1/2 trellis code (TSBK/PDU blocks).
	Trellis12(dibits []int8) ([]byte, bool)
	// BPTC19696 decodes the DMR (196,96) product code (full LC, headers).
	BPTC19696(bits []bool) ([]byte, bool)
	// EmbeddedLC decodes the DMR short-burst embedded LC (128 -> 72+5).
	EmbeddedLC(bits []bool) ([]byte, bool)
	// Conv12 decodes a rate-1/2 K=7 convolutional stream (D-STAR header,
	// NXDN SACCH, YSF FICH/DCH, M17 LSF/stream).
	Conv12(bits []bool) ([]byte, bool)
	// RS2412 decodes the P25 RS(24,12) shortened code (LDU1 link control).
	RS2412(bits []bool) ([]byte, bool)
	// RS2416 decodes the P25 RS(24,16) shortened code (LDU2 encryption sync).
	RS2416(bits []bool) ([]byte, bool)
	// AMBE49 extracts the 49-bit AMBE payload from one 72-bit frame.
	AMBE49(bits []bool) ([]byte, bool)
	// IMBE88 extracts the 88-bit IMBE payload from one 144-bit frame.
	IMBE88(bits []bool) ([]byte, bool)
}

// RigctlBackend is the optional external-radio socket interface.
type RigctlBackend interface {
	SetFreq(hz int64) error
	SetModulation(mode string) error
	GetCurrentFreq() (int64, error)
}
