package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const wavFormatPCM = 1

// WAVSource reads fixed-size frames from a PCM WAV file.
type WAVSource struct {
	f         *os.File
	dec       *wav.Decoder
	format    Format
	frameSize int
	buf       *goaudio.IntBuffer
	next      int
}

// OpenWAV opens path and prepares it for reading frames of duration
// frameDur. The caller must call Close() when done.
func OpenWAV(path string, frameDur time.Duration) (*WAVSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open wav: %w", err)
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("audio: %s is not a valid WAV file", path)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		f.Close()
		return nil, fmt.Errorf("%w: %s: unsupported WAV encoding %d (want PCM)", ErrFormatMismatch, path, dec.WavAudioFormat)
	}

	format := Format{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	frameSize := format.FrameSize(frameDur) * format.Channels
	if frameSize <= 0 {
		f.Close()
		return nil, fmt.Errorf("audio: frame duration %s too short for %s", frameDur, format)
	}

	return &WAVSource{
		f:         f,
		dec:       dec,
		format:    format,
		frameSize: frameSize,
		buf: &goaudio.IntBuffer{
			Format:         &goaudio.Format{NumChannels: format.Channels, SampleRate: format.SampleRate},
			Data:           make([]int, frameSize),
			SourceBitDepth: format.BitDepth,
		},
	}, nil
}

// Format returns the format declared in the WAV header.
func (s *WAVSource) Format() Format { return s.format }

// Next returns the next full frame. A trailing partial frame is dropped
// because voice-activity detectors only accept whole frames.
func (s *WAVSource) Next() (Frame, error) {
	n, err := s.dec.PCMBuffer(s.buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return Frame{}, fmt.Errorf("audio: read wav: %w", err)
	}
	if n < s.frameSize {
		return Frame{}, io.EOF
	}

	samples := make([]int16, n)
	for i, v := range s.buf.Data[:n] {
		samples[i] = int16(v)
	}
	frame := Frame{Index: s.next, Samples: samples}
	s.next++
	return frame, nil
}

// Close releases the underlying file.
func (s *WAVSource) Close() error {
	return s.f.Close()
}

// WriteWAV writes mono 16-bit samples to path as a PCM WAV file.
func WriteWAV(path string, sampleRate int, samples []int16) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("audio: create wav: %w", err)
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, wavFormatPCM)
	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		f.Close()
		return fmt.Errorf("audio: encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("audio: finalize wav: %w", err)
	}
	return f.Close()
}
