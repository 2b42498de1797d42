package core

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

/*
 * Per-call WAV writer: 8 kHz PCM16 mono (stereo for DMR's two slots),
 * or 48 kHz PCM16 mono for "raw" front-end captures. Empty files
 * (44-byte header, zero audio) are deleted on Close rather than left
 * behind, so a call that keyed up but produced no audio doesn't leave
 * a stub file scattered around the capture directory.
 *
 * A placeholder header is written first, samples are streamed, then
 * the file is seeked back and the real sizes patched in on Close.
 */

const wavHeaderLen = 44

// WAVWriter streams PCM16 samples to path, patching the RIFF/data
// chunk sizes on Close and deleting the file if nothing was written.
type WAVWriter struct {
	f          *os.File
	path       string
	sampleRate uint32
	channels   uint16
	dataBytes  uint32
}

// NewWAVWriter creates path and reserves a placeholder 44-byte header.
func NewWAVWriter(path string, sampleRateHz uint32, channels uint16) (*WAVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("wav: creating %s: %w", path, err)
	}
	w := &WAVWriter{f: f, path: path, sampleRate: sampleRateHz, channels: channels}
	if err := w.writeHeader(0); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

func (w *WAVWriter) writeHeader(dataBytes uint32) error {
	var hdr [wavHeaderLen]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], 36+dataBytes)
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], w.channels)
	binary.LittleEndian.PutUint32(hdr[24:28], w.sampleRate)
	byteRate := w.sampleRate * uint32(w.channels) * 2
	binary.LittleEndian.PutUint32(hdr[28:32], byteRate)
	blockAlign := w.channels * 2
	binary.LittleEndian.PutUint16(hdr[32:34], blockAlign)
	binary.LittleEndian.PutUint16(hdr[34:36], 16) // bits per sample
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], dataBytes)

	if _, err := w.f.WriteAt(hdr[:], 0); err != nil {
		return fmt.Errorf("wav: writing header: %w", err)
	}
	return nil
}

// WriteSamples appends interleaved PCM16 samples, satisfying the
// AudioSink.WriteSamples contract.
func (w *WAVWriter) WriteSamples(slot int, pcm []int16) error {
	_ = slot
	if len(pcm) == 0 {
		return nil
	}
	buf := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		binary.LittleEndian.PutUint16(buf[i*2:i*2+2], uint16(s))
	}
	n, err := w.f.Write(buf)
	w.dataBytes += uint32(n)
	if err != nil {
		return fmt.Errorf("wav: writing samples: %w", err)
	}
	return nil
}

// Close patches the final header in and deletes the file if no audio
// was ever written.
func (w *WAVWriter) Close() error {
	if w.dataBytes == 0 {
		w.f.Close()
		return os.Remove(w.path)
	}
	if err := w.writeHeader(w.dataBytes); err != nil {
		w.f.Close()
		return err
	}
	return w.f.Close()
}

var _ AudioSink = (*WAVWriter)(nil)
var _ io.Closer = (*WAVWriter)(nil)
