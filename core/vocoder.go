package core

import "io"

/*
 * Vocoder adapter and per-call sink plumbing.
 *
 * Speech synthesis is delegated to an external MBE/Codec2 library; the
 * core hands it one voice frame's codeword bits and receives 8 kHz
 * PCM16 back. The same seam carries the per-call artifact file
 * and audio sink lifecycle so every frame handler shares one path for
 * "a voice codeword just came out of a frame".
 */

// VocoderAdapter is the external speech-synthesis collaborator. The
// codeword slice carries one voice frame's packed bits, either as
// decoded by the FECDecoder (where the handler applies one) or as
// received over the air, and nBits says how many of them are
// meaningful.
type VocoderAdapter interface {
	Decode(proto Protocol, slot int, codeword []byte, nBits int) ([]int16, error)
}

// CallSinks bundles the per-call output fan-out a frame handler feeds:
// vocoder -> audio sink, plus the optional MBE artifact file. All
// fields are optional; a nil field is skipped.
type CallSinks struct {
	Vocoder VocoderAdapter
	Audio   AudioSink
	FEC     FECDecoder

	MBE     *MBEFileWriter
	mbeFile io.Closer
}

// OpenMBE attaches an artifact writer for the in-progress call. Any
// previously open artifact file is closed first.
func (c *CallSinks) OpenMBE(w io.WriteCloser, kind MBEKind) {
	c.CloseMBE()
	c.MBE = NewMBEFileWriter(w, kind)
	c.mbeFile = w
}

// CloseMBE closes the in-progress call's artifact file, if any.
func (c *CallSinks) CloseMBE() {
	if c.mbeFile != nil {
		_ = c.mbeFile.Close()
	}
	c.MBE = nil
	c.mbeFile = nil
}

// emitVoice is the common tail for every handler that produced a voice
// codeword: artifact record, vocoder, audio sink. Decode or write
// failures are recorded in the slot's error string and otherwise
// swallowed, per the no-exceptions error model.
func (s *DecoderState) emitVoice(proto Protocol, slot int, codeword []byte, nBits int, errByte byte) {
	if slot < 0 || slot >= numSlots {
		slot = 0
	}
	c := &s.Sinks
	if c.MBE != nil {
		bit48 := nBits > 48 && len(codeword) > 6 && codeword[6]&0x80 != 0
		body := codeword
		if len(body) > c.MBE.codewordLen {
			body = body[:c.MBE.codewordLen]
		}
		if err := c.MBE.WriteFrame(errByte, body, bit48); err != nil {
			s.P25.Slots[slot].ErrorString = "mbe write: " + err.Error()
		}
	}
	if c.Vocoder == nil {
		return
	}
	pcm, err := c.Vocoder.Decode(proto, slot, codeword, nBits)
	if err != nil {
		s.P25.Slots[slot].ErrorString = "vocoder: " + err.Error()
		s.P25.Slots[slot].ErrorCount++
		return
	}
	if c.Audio != nil && len(pcm) > 0 {
		if err := c.Audio.WriteSamples(slot, pcm); err != nil {
			s.P25.Slots[slot].ErrorString = "audio: " + err.Error()
		}
	}
}
