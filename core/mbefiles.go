package core

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

/*
 * MBE codeword artifact files: the raw per-frame voice-codeword
 * capture formats written alongside (or instead of) decoded audio.
 * These writers only persist the packed codeword bytes an external
 * vocoder would later consume; speech synthesis isn't performed here.
 */

// MBEKind selects which fixed-cookie record format a writer emits.
type MBEKind int

const (
	MBEAmb MBEKind = iota // AMBE (P25, DMR, NXDN, YSF...)
	MBEImb                // IMBE (P25 phase 1/2 voice)
	MBEDmb                // D-STAR AMBE variant
)

var mbeCookie = map[MBEKind]string{
	MBEAmb: ".amb",
	MBEImb: ".imb",
	MBEDmb: ".dmb",
}

// MBEFileWriter writes one of the fixed-cookie codeword record
// formats: 4-byte magic, then fixed-stride {err_byte, codeword bytes}
// records.
type MBEFileWriter struct {
	w           io.Writer
	kind        MBEKind
	codewordLen int // 6 for AMBE/.amb/.dmb, 11 for IMBE/.imb
	wroteCookie bool
}

// NewMBEFileWriter wraps w for the given kind. AMBE packing (amb/dmb)
// is 6 codeword bytes plus a 7th byte carrying bit 48 in its MSB; IMBE
// (imb) is 11 whole codeword bytes with no trailing partial byte.
func NewMBEFileWriter(w io.Writer, kind MBEKind) *MBEFileWriter {
	codewordLen := 6
	if kind == MBEImb {
		codewordLen = 11
	}
	return &MBEFileWriter{w: w, kind: kind, codewordLen: codewordLen}
}

// WriteFrame appends one record: an error-count byte, then the packed
// codeword bytes. For AMBE formats, bit48 carries the 49th AMBE bit in
// the high bit of the trailing byte.
func (m *MBEFileWriter) WriteFrame(errByte byte, codeword []byte, bit48 bool) error {
	if !m.wroteCookie {
		if _, err := io.WriteString(m.w, mbeCookie[m.kind]); err != nil {
			return fmt.Errorf("mbe: writing cookie: %w", err)
		}
		m.wroteCookie = true
	}

	rec := make([]byte, 0, m.codewordLen+2)
	rec = append(rec, errByte)
	rec = append(rec, codeword...)
	for len(rec) < m.codewordLen+1 {
		rec = append(rec, 0)
	}
	if m.kind != MBEImb {
		var trailing byte
		if bit48 {
			trailing = 0x80
		}
		rec = append(rec, trailing)
	}

	_, err := m.w.Write(rec)
	return err
}

// MBERecord is one SDRTrunk-style .mbe JSON line.
type MBERecord struct {
	Version             int    `json:"version"`
	Protocol             string `json:"protocol"` // APCO25-PHASE1, APCO25-PHASE2, DMR
	CallType              string `json:"call_type"`
	Encrypted             bool   `json:"encrypted"`
	To                    string `json:"to"`
	From                  string `json:"from"`
	EncryptionAlgorithm   string `json:"encryption_algorithm,omitempty"`
	EncryptionKeyID       string `json:"encryption_key_id,omitempty"`
	EncryptionMI          string `json:"encryption_mi,omitempty"`
	Hex                   string `json:"hex"` // 36 hex chars IMBE, 18 hex chars AMBE
	Time                  int64  `json:"time"`
}

// Codeword decodes the Hex field back to raw bytes.
func (r MBERecord) Codeword() ([]byte, error) {
	return hex.DecodeString(r.Hex)
}

// MBEJSONWriter appends SDRTrunk-compatible .mbe JSON lines.
type MBEJSONWriter struct {
	enc *json.Encoder
}

// NewMBEJSONWriter wraps w as a line-delimited .mbe JSON sink.
func NewMBEJSONWriter(w io.Writer) *MBEJSONWriter {
	return &MBEJSONWriter{enc: json.NewEncoder(w)}
}

// WriteRecord appends one record as a single JSON line.
func (m *MBEJSONWriter) WriteRecord(r MBERecord) error {
	return m.enc.Encode(r)
}

// MBEJSONReader reads SDRTrunk .mbe JSON lines back into MBERecord
// values, one per call to Next.
type MBEJSONReader struct {
	sc *bufio.Scanner
}

// NewMBEJSONReader wraps r for line-at-a-time .mbe JSON decoding.
func NewMBEJSONReader(r io.Reader) *MBEJSONReader {
	return &MBEJSONReader{sc: bufio.NewScanner(r)}
}

// Next returns the next record, or io.EOF once the stream is
// exhausted. Blank lines are skipped.
func (m *MBEJSONReader) Next() (MBERecord, error) {
	for m.sc.Scan() {
		line := strings.TrimSpace(m.sc.Text())
		if line == "" {
			continue
		}
		var rec MBERecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return MBERecord{}, fmt.Errorf("mbe: decoding json line: %w", err)
		}
		return rec, nil
	}
	if err := m.sc.Err(); err != nil {
		return MBERecord{}, err
	}
	return MBERecord{}, io.EOF
}

// protocolString maps a core Protocol to the SDRTrunk string the .mbe
// format expects.
func protocolString(p Protocol) string {
	switch p {
	case ProtoP25P1:
		return "APCO25-PHASE1"
	case ProtoP25P2:
		return "APCO25-PHASE2"
	case ProtoDMR:
		return "DMR"
	default:
		return ""
	}
}
