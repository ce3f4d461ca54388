package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/inodb/gramllr/internal/alphabet"
	"github.com/inodb/gramllr/internal/batch"
)

// Configuration keys.
const (
	keyTrack            = "track"
	keyBatchSize        = "batch_size"
	keyOutputDir        = "output_dir"
	keySequencesDir     = "sequences.dir"
	keySequencesPattern = "sequences.pattern"
	keyMatricesDir      = "matrices.dir"
	keyMatricesPattern  = "matrices.pattern"
	keyMatricesAlphabet = "matrices.alphabet"
	keyDuckDB           = "duckdb"
	keyCheckpoint       = "checkpoint"
	keyParallel         = "parallel"
)

func setDefaults() {
	viper.SetDefault(keyTrack, string(batch.TrackProtein))
	viper.SetDefault(keyBatchSize, batch.DefaultBatchSize)
	viper.SetDefault(keyOutputDir, "LLR")
	viper.SetDefault(keySequencesDir, "data/Gene")
	viper.SetDefault(keySequencesPattern, "{gene}.fasta")
	viper.SetDefault(keyParallel, 0)
}

// trackDefaults are the per-track settings used when matrices.* is unset.
type trackDefaults struct {
	matricesDir     string
	matricesPattern string
	alphabet        []string
	resultFormat    string
}

func defaultsFor(track batch.Track) trackDefaults {
	if track == batch.TrackGene {
		return trackDefaults{
			matricesDir:     "Results/Gene",
			matricesPattern: "{gene}_CaLM_grammaticality.csv",
			alphabet:        alphabet.Codons(),
			resultFormat:    "%s_LLR_CaLM_results.csv",
		}
	}
	return trackDefaults{
		matricesDir:     "Results/Protein",
		matricesPattern: "{gene}_ESM2_grammaticality.csv",
		alphabet:        alphabet.AminoAcids(),
		resultFormat:    "%s_LLR_results.csv",
	}
}

// resultFileName returns the output file name of a label on a track.
func resultFileName(track batch.Track, label string) string {
	return fmt.Sprintf(defaultsFor(track).resultFormat, label)
}

// parseAlphabet splits a comma-separated token list; empty means the
// track default.
func parseAlphabet(s string, track batch.Track) []string {
	if strings.TrimSpace(s) == "" {
		return defaultsFor(track).alphabet
	}
	var tokens []string
	for _, tok := range strings.Split(s, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func stringOr(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return fallback
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage gramllr configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/.gramllr.yaml.",
		Example: `  gramllr config                             # show all config
  gramllr config set track gene              # score codons by default
  gramllr config set matrices.dir /data/calm # matrix directory
  gramllr config get batch_size              # get a value`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigShow(cmd)
		},
	}

	cmd.AddCommand(newConfigSetCmd())
	cmd.AddCommand(newConfigGetCmd())

	return cmd
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigSet(cmd, args[0], args[1])
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigGet(cmd, args[0])
		},
	}
}

func runConfigShow(cmd *cobra.Command) error {
	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if viper.ConfigFileUsed() == "" {
		fmt.Fprintln(cmd.OutOrStdout(), "# No config file found, showing defaults. Config file: ~/.gramllr.yaml")
	}
	fmt.Fprint(cmd.OutOrStdout(), string(out))
	return nil
}

func runConfigSet(cmd *cobra.Command, key, value string) error {
	switch key {
	case keyTrack:
		if _, err := batch.ParseTrack(value); err != nil {
			return usageError{err}
		}
	}

	// Parse boolean-like values
	switch value {
	case "true", "yes", "on":
		viper.Set(key, true)
	case "false", "no", "off":
		viper.Set(key, false)
	default:
		viper.Set(key, value)
	}

	cfgFile := viper.ConfigFileUsed()
	if cfgFile == "" {
		var err error
		if cfgFile, err = defaultConfigPath(); err != nil {
			return err
		}
	}

	if err := viper.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func runConfigGet(cmd *cobra.Command, key string) error {
	val := viper.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(cmd.OutOrStdout(), val)
	return nil
}
