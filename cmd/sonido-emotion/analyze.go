package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-emotion/analysis"
	"github.com/RyanBlaney/sonido-emotion/analysis/config"
	"github.com/RyanBlaney/sonido-emotion/analysis/scoring"
	"github.com/RyanBlaney/sonido-emotion/logging"
	"github.com/RyanBlaney/sonido-emotion/store"
	"github.com/RyanBlaney/sonido-emotion/transcode"
)

type analyzeOptions struct {
	scorer     string
	modelPath  string
	frameSize  int
	hopSize    int
	workers    int
	sampleRate int
	outDir     string
	pretty     bool
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}

	cmd := &cobra.Command{
		Use:   "analyze <audio-file>",
		Short: "Score the emotions in a voice recording",
		Long: "Decode an audio file (WAV in process, other formats through ffmpeg), " +
			"extract voice features and print the analysis as JSON.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			applyAnalyzeFlags(cmd, cfg, opts)
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runAnalyze(cmd, cfg, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.scorer, "scorer", "s", config.ScorerRules,
		"Scorer: rules, classifier or baseline")
	flags.StringVarP(&opts.modelPath, "model", "m", "",
		"Classifier weights written by 'train' (default: train on built-in data)")
	flags.IntVar(&opts.frameSize, "frame-size", config.DefaultFrameSize, "Frame size in samples")
	flags.IntVar(&opts.hopSize, "hop-size", config.DefaultHopSize, "Hop size in samples")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "Frame analysis workers (0 = one per CPU)")
	flags.IntVar(&opts.sampleRate, "sample-rate", transcode.DefaultDecoderConfig().TargetSampleRate,
		"Sample rate ffmpeg resamples non-WAV input to")
	flags.StringVarP(&opts.outDir, "out", "o", "", "Also store the result as JSON in this directory")
	flags.BoolVar(&opts.pretty, "pretty", false, "Indent the JSON output")

	return cmd
}

// applyAnalyzeFlags overrides config values only for flags the user set.
func applyAnalyzeFlags(cmd *cobra.Command, cfg *config.Config, opts *analyzeOptions) {
	flags := cmd.Flags()
	if flags.Changed("scorer") {
		cfg.Scoring.Scorer = opts.scorer
	}
	if flags.Changed("model") {
		cfg.Scoring.Classifier.ModelPath = opts.modelPath
		if !flags.Changed("scorer") {
			cfg.Scoring.Scorer = config.ScorerClassifier
		}
	}
	if flags.Changed("frame-size") {
		cfg.Frame.Size = opts.frameSize
	}
	if flags.Changed("hop-size") {
		cfg.Frame.Hop = opts.hopSize
	}
	if flags.Changed("workers") {
		cfg.Workers = opts.workers
	}
}

func runAnalyze(cmd *cobra.Command, cfg *config.Config, opts *analyzeOptions, path string) error {
	ctx := cmd.Context()
	logger := logging.WithFields(logging.Fields{
		"component": "cli",
		"function":  "analyze",
		"file":      path,
	})

	scorer, err := scoring.NewFromConfig(cfg)
	if err != nil {
		return err
	}
	analyzer, err := analysis.NewAnalyzer(cfg, scorer)
	if err != nil {
		return err
	}

	decCfg := transcode.DefaultDecoderConfig()
	decCfg.TargetSampleRate = opts.sampleRate
	decoder := transcode.NewDecoder(decCfg)
	if err := decoder.ValidateConfig(); err != nil {
		return err
	}

	audio, err := decoder.DecodeFile(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	logger.Debug("Decoded audio", logging.Fields{
		"samples":     len(audio.PCM),
		"sample_rate": audio.SampleRate,
		"channels":    audio.Channels,
		"duration":    audio.Duration.Seconds(),
	})

	var st analysis.Store
	if opts.outDir != "" {
		fs, err := store.NewFileStore(opts.outDir)
		if err != nil {
			return err
		}
		st = fs
	}

	report, err := analysis.NewService(analyzer, st, nil).Process(ctx, audio, nil)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	if opts.pretty {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}
