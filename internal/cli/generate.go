package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/SmitUplenchwar2687/jobpacer/internal/config"
	"github.com/SmitUplenchwar2687/jobpacer/internal/generate"
)

func newGenerateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate sample admission files and config",
		Long: `Generates sample data for experiments.

Use "generate admissions" to create a synthetic admissions file for replay.
Use "generate config" to create an example config file.`,
	}

	var (
		output   string
		opts     = generate.DefaultOptions()
		limiters []string
	)

	admissionsCmd := &cobra.Command{
		Use:   "admissions",
		Short: "Generate a synthetic admissions JSON file",
		Long: `Creates an admissions file describing demand on the limiters.

Patterns:
  steady    Evenly distributed admissions
  burst     Concentrated bursts with quiet periods
  ramp      Gradually increasing admission rate`,
		Example: `  jobpacer generate admissions --output admissions.json --count 200
  jobpacer generate admissions --limiters auth,url_signing --pattern burst --duration 10m`,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Limiters = limiters
			if len(opts.Limiters) == 0 {
				opts.Limiters = sortedKeys(a.cfg.Limiters)
			}
			records, err := generate.Admissions(opts)
			if err != nil {
				return err
			}

			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating file: %w", err)
			}
			defer f.Close()

			enc := json.NewEncoder(f)
			enc.SetIndent("", "  ")
			if err := enc.Encode(records); err != nil {
				return fmt.Errorf("writing records: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Generated %d admissions to %s\n", len(records), output)
			fmt.Fprintf(out, "  Limiters: %d\n", len(opts.Limiters))
			fmt.Fprintf(out, "  Duration: %s\n", opts.Duration)
			fmt.Fprintf(out, "  Pattern:  %s\n", opts.Pattern)
			return nil
		},
	}

	admissionsCmd.Flags().StringVar(&output, "output", "admissions.json", "output file path")
	admissionsCmd.Flags().IntVar(&opts.Count, "count", opts.Count, "number of admissions to generate")
	admissionsCmd.Flags().StringSliceVar(&limiters, "limiters", nil, "limiters to spread admissions over (default: all configured)")
	admissionsCmd.Flags().DurationVar(&opts.Duration, "duration", opts.Duration, "time span of the admissions")
	admissionsCmd.Flags().StringVar(&opts.Pattern, "pattern", opts.Pattern, "pattern (steady, burst, ramp)")
	admissionsCmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed (0 = time based)")
	admissionsCmd.Flags().IntVar(&opts.MaxCost, "max-cost", opts.MaxCost, "largest cost of a single admission")

	var configOutput string
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Generate an example config file (JSON, or YAML by extension)",
		Example: `  jobpacer generate config --output jobpacer.json
  jobpacer generate config --output jobpacer.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.WriteExample(configOutput); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Generated example config at %s\n", configOutput)
			return nil
		},
	}
	configCmd.Flags().StringVar(&configOutput, "output", "jobpacer.json", "output file path")

	cmd.AddCommand(admissionsCmd, configCmd)
	return cmd
}
