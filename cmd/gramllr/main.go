// Package main provides the gramllr command-line tool.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
	ExitUsage   = 2
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const configName = ".gramllr"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		var uerr usageError
		if errors.As(err, &uerr) || strings.HasPrefix(err.Error(), "unknown command") {
			fmt.Fprintf(os.Stderr, "Run '%s --help' for usage.\n", root.CommandPath())
			return ExitUsage
		}
		return ExitError
	}
	return ExitSuccess
}

// usageError marks errors caused by bad command-line input.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usagef(format string, args ...any) error {
	return usageError{fmt.Errorf(format, args...)}
}

// usageArgs wraps a cobra positional-argument validator so its failures
// exit with ExitUsage.
func usageArgs(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := v(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "gramllr",
		Short: "Score variants by grammaticality log-likelihood ratios",
		Long: `gramllr compares language-model grammaticality probabilities of wild-type
and mutant tokens (codons or amino acids) for ClinVar-style variant names and
reports log-likelihood ratios (LLR). Negative LLR means the mutant token is
less expected than the wild type.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig(cfgFile)
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.gramllr.yaml)")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")
	viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))

	root.AddCommand(newScoreCmd())
	root.AddCommand(newEvaluateCmd())
	root.AddCommand(newConvertCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  usageArgs(cobra.NoArgs),
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "gramllr version %s (%s) built %s\n", version, commit, date)
		},
	}
}

// initConfig reads ~/.gramllr.yaml (or cfgFile) and GRAMLLR_* environment
// variables. A missing default config file is not an error.
func initConfig(cfgFile string) error {
	setDefaults()

	viper.SetEnvPrefix("GRAMLLR")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func defaultConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, configName+".yaml"), nil
}

// newLogger builds the console logger on stderr.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.DisableStacktrace = true
	cfg.DisableCaller = true
	// Every skipped record is logged; sampling would hide them.
	cfg.Sampling = nil
	if viper.GetBool("verbose") {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}
