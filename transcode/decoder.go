package transcode

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/RyanBlaney/sonido-emotion/logging"
)

// AudioData is a decoded mono clip ready for analysis.
type AudioData struct {
	PCM        []float64     `json:"-"` // samples in [-1, 1]
	SampleRate int           `json:"sample_rate"`
	Channels   int           `json:"channels"` // channels in the source before downmixing
	Duration   time.Duration `json:"duration"`
	Source     string        `json:"source,omitempty"`
	Codec      string        `json:"codec,omitempty"`
}

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// TargetSampleRate is the rate ffmpeg resamples to. WAV files keep their
	// own rate.
	TargetSampleRate int           `json:"target_sample_rate" yaml:"target_sample_rate"`
	MaxDuration      time.Duration `json:"max_duration" yaml:"max_duration"`
	ResampleQuality  string        `json:"resample_quality" yaml:"resample_quality"` // "fast", "medium", "high"
	FFmpegPath       string        `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	FFprobePath      string        `json:"ffprobe_path" yaml:"ffprobe_path"`
	Timeout          time.Duration `json:"timeout" yaml:"timeout"`
	// ForceFFmpeg sends WAV files through ffmpeg as well.
	ForceFFmpeg bool `json:"force_ffmpeg" yaml:"force_ffmpeg"`
}

// DefaultDecoderConfig returns default decoder configuration
func DefaultDecoderConfig() *DecoderConfig {
	return &DecoderConfig{
		TargetSampleRate: 44100,
		MaxDuration:      0, // No limit
		ResampleQuality:  "medium",
		FFmpegPath:       "ffmpeg",
		FFprobePath:      "ffprobe",
		Timeout:          30 * time.Second,
	}
}

// Decoder turns audio files into mono float64 PCM. WAV is read in process
// with go-audio; anything else goes through ffmpeg.
type Decoder struct {
	config *DecoderConfig
	logger logging.Logger
}

// NewDecoder creates a new audio decoder
func NewDecoder(config *DecoderConfig) *Decoder {
	if config == nil {
		config = DefaultDecoderConfig()
	}
	return &Decoder{
		config: config,
		logger: logging.WithFields(logging.Fields{
			"component": "audio_decoder",
		}),
	}
}

// DecodeFile decodes path into mono PCM. The context bounds ffmpeg and
// ffprobe runs together with the configured timeout.
func (d *Decoder) DecodeFile(ctx context.Context, path string) (*AudioData, error) {
	logger := d.logger.WithFields(logging.Fields{
		"function": "DecodeFile",
		"filename": path,
	})

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !d.config.ForceFFmpeg && isWAV(path) {
		logger.Debug("Decoding WAV in process")
		data, err := decodeWAVFile(path)
		if err != nil {
			logger.Error(err, "WAV decode failed")
			return nil, err
		}
		return d.limit(data), nil
	}

	logger.Debug("Decoding with ffmpeg")
	data, err := d.decodeFileWithFFmpeg(ctx, path)
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ValidateConfig validates the decoder configuration
func (d *Decoder) ValidateConfig() error {
	if d.config.TargetSampleRate <= 0 {
		return fmt.Errorf("target sample rate must be positive: %d", d.config.TargetSampleRate)
	}
	if d.config.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", d.config.Timeout)
	}
	if d.config.MaxDuration < 0 {
		return fmt.Errorf("max duration must not be negative: %v", d.config.MaxDuration)
	}
	switch d.config.ResampleQuality {
	case "", "fast", "medium", "high":
	default:
		return fmt.Errorf("unknown resample quality %q", d.config.ResampleQuality)
	}
	return nil
}

// GetConfig returns decoder configuration information
func (d *Decoder) GetConfig() map[string]any {
	return map[string]any{
		"target_sample_rate": d.config.TargetSampleRate,
		"max_duration":       d.config.MaxDuration,
		"resample_quality":   d.config.ResampleQuality,
		"ffmpeg_path":        d.config.FFmpegPath,
		"ffprobe_path":       d.config.FFprobePath,
		"timeout":            d.config.Timeout,
		"force_ffmpeg":       d.config.ForceFFmpeg,
	}
}

// limit trims in-process decodes to MaxDuration; ffmpeg applies it with -t.
func (d *Decoder) limit(data *AudioData) *AudioData {
	if d.config.MaxDuration <= 0 || data.SampleRate <= 0 {
		return data
	}
	maxSamples := int(d.config.MaxDuration.Seconds() * float64(data.SampleRate))
	if len(data.PCM) > maxSamples {
		data.PCM = data.PCM[:maxSamples]
		data.Duration = samplesDuration(len(data.PCM), data.SampleRate)
	}
	return data
}

func isWAV(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".wav" || ext == ".wave"
}

func samplesDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(sampleRate)
}
