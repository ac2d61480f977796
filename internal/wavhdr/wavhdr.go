// Package wavhdr builds the 44-byte streaming RIFF/PCMU header used both
// for the STT upload body and the on-disk debug capture (spec.md §4.2).
package wavhdr

import "encoding/binary"

const (
	sampleRate    = 8000
	bitsPerSample = 8
	channels      = 1
	// formatPCMU is the WAVE_FORMAT tag for ITU-T G.711 mu-law.
	formatPCMU = 0x0007
	// unknownSize marks the RIFF/data chunk sizes as unbounded, so the
	// header can be emitted before the stream's total length is known.
	unknownSize = 0xFFFFFFFF
)

// Size is the fixed length of the header in bytes.
const Size = 44

// Header returns a 44-byte RIFF header describing a streaming
// PCMU/8000Hz/mono/8-bit WAV body, with both the RIFF and data chunk sizes
// written as 0xFFFFFFFF.
func Header() []byte {
	buf := make([]byte, 0, Size)

	buf = append(buf, "RIFF"...)
	buf = appendU32(buf, unknownSize)
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = appendU32(buf, 16)
	buf = appendU16(buf, formatPCMU)
	buf = appendU16(buf, channels)
	buf = appendU32(buf, sampleRate)
	buf = appendU32(buf, sampleRate*bitsPerSample*channels/8)
	buf = appendU16(buf, bitsPerSample*channels/8)
	buf = appendU16(buf, bitsPerSample)

	buf = append(buf, "data"...)
	buf = appendU32(buf, unknownSize)

	return buf
}

func appendU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendU16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}
