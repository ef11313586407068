package transcode

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// wavFormatPCM is the WAVE_FORMAT_PCM tag; float and compressed WAVs are
// left to ffmpeg.
const wavFormatPCM = 1

// ErrUnsupportedWAV is returned for WAV files go-audio cannot read as
// integer PCM.
var ErrUnsupportedWAV = errors.New("unsupported wav encoding")

func decodeWAVFile(path string) (*AudioData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	data, err := DecodeWAV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	data.Source = path
	return data, nil
}

// DecodeWAV reads integer PCM WAV, scales samples to [-1, 1] by bit depth
// and averages channels to mono.
func DecodeWAV(r io.ReadSeeker) (*AudioData, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a valid wav file", ErrUnsupportedWAV)
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedWAV, dec.WavAudioFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read pcm: %w", err)
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: missing format", ErrUnsupportedWAV)
	}

	pcm, err := intBufferToMono(buf, int(dec.BitDepth))
	if err != nil {
		return nil, err
	}

	return &AudioData{
		PCM:        pcm,
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Duration:   samplesDuration(len(pcm), buf.Format.SampleRate),
		Codec:      fmt.Sprintf("pcm_s%dle", dec.BitDepth),
	}, nil
}

func intBufferToMono(buf *audio.IntBuffer, bitDepth int) ([]float64, error) {
	var scale, offset float64
	switch bitDepth {
	case 8:
		// 8-bit WAV is unsigned
		scale, offset = 128, 128
	case 16, 24, 32:
		scale = math.Exp2(float64(bitDepth - 1))
	default:
		return nil, fmt.Errorf("%w: %d-bit samples", ErrUnsupportedWAV, bitDepth)
	}

	channels := buf.Format.NumChannels
	frames := len(buf.Data) / channels
	pcm := make([]float64, frames)
	for i := range frames {
		sum := 0.0
		for c := range channels {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		pcm[i] = sum / float64(channels)
	}
	return pcm, nil
}

// WriteWAV encodes mono samples in [-1, 1] as 16-bit PCM. Values outside
// the range are clipped.
func WriteWAV(w io.WriteSeeker, samples []float64, sampleRate int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", sampleRate)
	}

	const bitDepth = 16
	data := make([]int, len(samples))
	for i, s := range samples {
		s = max(-1, min(1, s))
		data[i] = int(math.Round(s * (math.Exp2(bitDepth-1) - 1)))
	}

	enc := wav.NewEncoder(w, sampleRate, bitDepth, 1, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write wav: %w", err)
	}
	return enc.Close()
}
