package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/printfarm-sim/printfarm-sim/sim/trace"
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:           "printfarm-sim",
	Short:         "Discrete-event simulator for a 3D print farm",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// runCmd executes the simulation using the config file, flags and environment
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the print farm simulation",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := bindViper(cmd)
		if err != nil {
			return err
		}
		if err := setLogLevel(v.GetString("log")); err != nil {
			return err
		}
		cfg, err := resolveConfig(v)
		if err != nil {
			return err
		}

		level := trace.TraceLevel(v.GetString("trace-level"))
		if !trace.IsValidTraceLevel(string(level)) {
			return fmt.Errorf("invalid trace level %q; valid: none, stages", level)
		}
		if v.GetString("trace-out") != "" {
			level = trace.TraceLevelStages
		}

		report, runErr := Simulate(cfg, level)
		if report == nil {
			return runErr
		}
		report.Print(cmd.OutOrStdout())
		if err := writeOutputs(report, v.GetString("trace-out"), v.GetString("metrics-out")); err != nil {
			return err
		}
		if runErr != nil {
			logrus.Warnf("run %s ended %s: %v", report.RunID, report.State, runErr)
			return runErr
		}
		logrus.Info("Simulation complete.")
		return nil
	},
}

// validateCmd checks a config file without running it
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := bindViper(cmd)
		if err != nil {
			return err
		}
		cfg, err := resolveConfig(v)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "configuration OK: %d days, horizon %d ticks, %d printers\n",
			cfg.Plant.Days, cfg.Plant.Horizon(), cfg.Plant.Build.Printers)
		return nil
	},
}

// bindViper layers PRINTFARM_* environment variables under the command's
// flags, e.g. PRINTFARM_RESIDUAL_POLICY for --residual-policy.
func bindViper(cmd *cobra.Command) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix("PRINTFARM")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("binding flags: %w", err)
	}
	return v, nil
}

func resolveConfig(v *viper.Viper) (Config, error) {
	cfg, err := LoadConfig(v.GetString("config"))
	if err != nil {
		return cfg, err
	}
	applyOverrides(&cfg, v)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func setLogLevel(name string) error {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	logrus.SetLevel(level)
	return nil
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logrus.Error(err)
		os.Exit(exitCode(err))
	}
}

// addConfigFlags registers the flags shared by run and validate.
func addConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("config", "", "YAML config file (plant, workload, rates sections)")
	cmd.Flags().Int64("seed", 42, "Seed for job generation and inspection draws")
	cmd.Flags().Int("days", 2, "Number of days customers place orders")
	cmd.Flags().String("rule", "", "Dispatching rule (FIFO, LIFO, SPT, LPT, EDD)")
	cmd.Flags().String("residual-policy", "", "Drain policy for under-full batches (force, wait)")
	cmd.Flags().String("dry-mode", "", "Dry stage mode (batch, race)")
	cmd.Flags().Int("pallets", 0, "Build pallets shared by the printers (0 disables)")
	cmd.Flags().String("defect-rule", "", "Inspection defect expression, e.g. \"Item.Position % 5 == 0\"")
}

// init sets up CLI flags and subcommands
func init() {
	addConfigFlags(runCmd)
	runCmd.Flags().String("log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().String("trace-level", string(trace.TraceLevelStages), "Stage record collection (none, stages)")
	runCmd.Flags().String("trace-out", "", "Write stage records as CSV to this path")
	runCmd.Flags().String("metrics-out", "", "Write Prometheus metrics in text format to this path")

	addConfigFlags(validateCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
}
