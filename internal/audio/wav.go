package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

const (
	// SampleRate is the rate transcription backends expect.
	SampleRate = 16000

	bytesPerSample = 2
	pcmFormatTag   = 1
)

var errNotPCMWAV = errors.New("not a 16-bit PCM mono wav")

type wavHeader struct {
	RIFF          [4]byte
	ChunkSize     uint32
	WAVE          [4]byte
	Fmt           [4]byte
	FmtSize       uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
	Data          [4]byte
	DataSize      uint32
}

// EncodeWAV wraps PCM16LE mono samples in a WAV container.
func EncodeWAV(pcm []byte, sampleRate int) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	if err := WriteWAV(&buf, pcm, sampleRate); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteWAVFile writes PCM16LE mono samples to path as a WAV file.
func WriteWAVFile(path string, pcm []byte, sampleRate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, pcm, sampleRate); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func WriteWAV(out io.Writer, pcm []byte, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	h := wavHeader{
		RIFF:          [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     uint32(36 + len(pcm)),
		WAVE:          [4]byte{'W', 'A', 'V', 'E'},
		Fmt:           [4]byte{'f', 'm', 't', ' '},
		FmtSize:       16,
		AudioFormat:   pcmFormatTag,
		NumChannels:   1,
		SampleRate:    uint32(sampleRate),
		ByteRate:      uint32(sampleRate * bytesPerSample),
		BlockAlign:    bytesPerSample,
		BitsPerSample: 8 * bytesPerSample,
		Data:          [4]byte{'d', 'a', 't', 'a'},
		DataSize:      uint32(len(pcm)),
	}
	if err := binary.Write(out, binary.LittleEndian, h); err != nil {
		return err
	}
	_, err := out.Write(pcm)
	return err
}

// DecodePCMWAV extracts the samples of a canonical 16-bit mono PCM WAV. It
// walks chunks so files with LIST/fact chunks before data are accepted.
func DecodePCMWAV(b []byte) (pcm []byte, sampleRate int, err error) {
	if len(b) < 12 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, 0, errNotPCMWAV
	}
	var (
		fmtSeen  bool
		channels uint16
		bits     uint16
		format   uint16
	)
	pos := 12
	for pos+8 <= len(b) {
		id := string(b[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(b[pos+4 : pos+8]))
		body := pos + 8
		if size < 0 || body+size > len(b) {
			size = len(b) - body
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return nil, 0, errNotPCMWAV
			}
			format = binary.LittleEndian.Uint16(b[body : body+2])
			channels = binary.LittleEndian.Uint16(b[body+2 : body+4])
			sampleRate = int(binary.LittleEndian.Uint32(b[body+4 : body+8]))
			bits = binary.LittleEndian.Uint16(b[body+14 : body+16])
			fmtSeen = true
		case "data":
			if !fmtSeen || format != pcmFormatTag || channels != 1 || bits != 16 {
				return nil, 0, errNotPCMWAV
			}
			return b[body : body+size], sampleRate, nil
		}
		pos = body + size + size%2
	}
	return nil, 0, errNotPCMWAV
}

// PCMDuration returns the length in seconds of PCM16LE mono samples.
func PCMDuration(pcm []byte, sampleRate int) float64 {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	return float64(len(pcm)) / float64(bytesPerSample*sampleRate)
}
