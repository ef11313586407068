package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/RyanBlaney/sonido-emotion/analysis/scoring"
)

type trainOptions struct {
	outPath  string
	dataPath string
	epochs   int
	seed     uint64
}

// datasetFile is the YAML layout accepted by --data.
type datasetFile struct {
	Samples []struct {
		Label    string    `yaml:"label"`
		Features []float64 `yaml:"features"`
	} `yaml:"samples"`
}

func newTrainCmd(root *rootOptions) *cobra.Command {
	opts := &trainOptions{}

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Fit the emotion classifier and save its weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, root)
			if err != nil {
				return err
			}
			cc := cfg.Scoring.Classifier
			if cmd.Flags().Changed("epochs") {
				cc.Epochs = opts.epochs
			}
			if cmd.Flags().Changed("seed") {
				cc.Seed = opts.seed
			}

			ds := scoring.DefaultTrainingData()
			if opts.dataPath != "" {
				if ds, err = loadDataset(opts.dataPath); err != nil {
					return err
				}
			}

			model := scoring.NewClassifier(cc)
			report, err := model.Fit(ds)
			if err != nil {
				return err
			}

			f, err := os.Create(opts.outPath)
			if err != nil {
				return fmt.Errorf("failed to create model file: %w", err)
			}
			if err := model.Save(f); err != nil {
				f.Close()
				return fmt.Errorf("failed to save model: %w", err)
			}
			if err := f.Close(); err != nil {
				return fmt.Errorf("failed to save model: %w", err)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.outPath, "out", "o", "model.json", "Where to write the weights")
	flags.StringVar(&opts.dataPath, "data", "", "YAML training set (default: built-in examples)")
	flags.IntVar(&opts.epochs, "epochs", 0, "Training epochs (default from config)")
	flags.Uint64Var(&opts.seed, "seed", 0, "Weight initialization and shuffle seed (default from config)")

	return cmd
}

func loadDataset(path string) (scoring.Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return scoring.Dataset{}, fmt.Errorf("failed to read training data: %w", err)
	}
	var file datasetFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return scoring.Dataset{}, fmt.Errorf("failed to parse training data: %w", err)
	}

	var ds scoring.Dataset
	for i, s := range file.Samples {
		label, err := scoring.ParseLabel(s.Label)
		if err != nil {
			return scoring.Dataset{}, fmt.Errorf("sample %d: %w", i, err)
		}
		ds.Features = append(ds.Features, s.Features)
		ds.Labels = append(ds.Labels, label)
	}
	return ds, nil
}
