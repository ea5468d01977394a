package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"mercator-hq/ratecontrol/pkg/cli"
	"mercator-hq/ratecontrol/pkg/config"
)

var configFlags struct {
	format string
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and validate configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after defaults and RATECONTROL_* environment
overrides are applied, as YAML.

Examples:
  ratecontrol config show --config config.yaml
  RATECONTROL_ENGINE_MIN_RHYTHM=1ms ratecontrol config show`,
	Args: cobra.NoArgs,
	RunE: showConfig,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a configuration file",
	Long: `Validate a configuration file and list every problem found.

The file defaults to --config. The command exits with status 2 when the
file is invalid.

Examples:
  ratecontrol config validate config.yaml

  # JSON output for CI/CD
  ratecontrol config validate config.yaml --format json`,
	Args: cobra.MaximumNArgs(1),
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configValidateCmd.Flags().StringVar(&configFlags.format, "format", "text", "output format: text, json")
}

func showConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return cli.NewCommandError("config show", err)
	}
	return enc.Close()
}

// configValidation is the result of validating one file.
type configValidation struct {
	File   string              `json:"file"`
	Valid  bool                `json:"valid"`
	Errors []config.FieldError `json:"errors,omitempty"`
	Cause  string              `json:"cause,omitempty"`
}

func validateConfig(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no configuration file given: pass a file or --config")
	}

	format, err := cli.ParseOutputFormat(configFlags.format)
	if err != nil {
		return err
	}

	result := configValidation{File: path, Valid: true}
	if _, err := config.LoadConfigWithEnvOverrides(path); err != nil {
		result.Valid = false

		var verr config.ValidationError
		if errors.As(err, &verr) {
			result.Errors = verr.Errors
		} else {
			result.Cause = err.Error()
		}
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatText {
		if result.Valid {
			fmt.Fprintf(out, "✓ %s: valid\n", path)
		} else {
			fmt.Fprintf(out, "✗ %s: invalid\n", path)
			for _, fe := range result.Errors {
				fmt.Fprintf(out, "  - %s\n", fe.Error())
			}
			if result.Cause != "" {
				fmt.Fprintf(out, "  - %s\n", result.Cause)
			}
		}
	} else if err := cli.NewFormatter(format).FormatTo(out, result); err != nil {
		return err
	}

	if !result.Valid {
		return cli.NewConfigError("config", fmt.Sprintf("%s is not a valid configuration", path))
	}
	return nil
}
