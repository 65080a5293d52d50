// cmd/recorder/commands.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"myo-recorder/internal/config"
	"myo-recorder/internal/utils"
	"myo-recorder/pkg/devicetypes"
)

const defaultConfigFile = "config.yaml"

// Execute builds the command tree and runs it
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	v := config.New()

	rootCmd := &cobra.Command{
		Use:   "recorder <output_directory> [<device_identity>]",
		Short: "record EMG and IMU samples from a Myo armband",
		Long: `recorder connects to a Myo armband through a BLED112 dongle and writes one
CSV file per connection into output_directory, reconnecting on its own until
it is stopped with SIGINT or SIGTERM.

device_identity is either the armband address (XX:XX:XX:XX:XX:XX) or the
dongle port path (/dev/ttyACM1, COM3). Configuration is read, in order, from
the path in --config, the MYO_RECORDER_CONFIG environment variable, then
config.yaml in the current directory, $HOME/.config/myo-recorder and
/etc/myo-recorder. Flags and MYO_RECORDER_* environment variables override
the file.
`,
		Example: `  recorder ./data
  recorder ./data C8:2F:84:E5:96:F7
  recorder ./data /dev/ttyACM1 --config /path/to/config.yaml`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runRecord(cmd, v, args)
		},
	}

	rootCmd.PersistentFlags().String("config", "", "configuration file path")
	rootCmd.PersistentFlags().Bool("debug", false, "toggle debug logging")
	rootCmd.Flags().String("kind", "", "device kind (myo, simulated)")
	rootCmd.Flags().StringP("port", "p", "", "dongle serial port, or auto")
	mustBind(v, "app.debug", rootCmd.PersistentFlags().Lookup("debug"))
	mustBind(v, "device.kind", rootCmd.Flags().Lookup("kind"))
	mustBind(v, "device.port", rootCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(newProbeCmd(v))
	rootCmd.AddCommand(newInitCmd(v))

	return rootCmd
}

func runRecord(cmd *cobra.Command, v *viper.Viper, args []string) error {
	cfg, err := loadConfig(cmd, v)
	if err != nil {
		return err
	}

	rawIdentity := cfg.Device.Identity
	if len(args) > 1 {
		rawIdentity = args[1]
	}
	identity, err := devicetypes.ParseIdentity(rawIdentity)
	if err != nil {
		return err
	}

	logger, err := utils.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer utils.CloseLogger(logger)

	app, err := NewApplication(cfg, logger, args[0], identity)
	if err != nil {
		logger.Error("Failed to initialize application", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx); err != nil {
		logger.Error("Acquisition ended with error", zap.Error(err))
		return err
	}
	return nil
}

func newProbeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:        "probe",
		SuggestFor: []string{"pro", "prob"},
		Short:      "list serial ports and mark BLED112 dongles",
		Example:    `  recorder probe`,
		Args:       cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			cfg, err := loadConfig(cmd, v)
			if err != nil {
				return err
			}
			logger, err := utils.NewLogger(&cfg.Logging)
			if err != nil {
				return err
			}
			defer utils.CloseLogger(logger)

			ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
			defer cancel()

			devices, err := newScannerManager(logger).ScanAll(ctx)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "PORT\tVID:PID\tSERIAL\tDEVICE\tDONGLE")
			for _, device := range devices {
				ids := "-"
				if device.IsUSB {
					ids = device.VendorID + ":" + device.ProductID
				}
				dongle := ""
				if device.IsDongle() {
					dongle = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", device.Port, ids, device.SerialNumber, device.Product, dongle)
			}
			return w.Flush()
		},
	}
}

func newInitCmd(v *viper.Viper) *cobra.Command {
	initCmd := &cobra.Command{
		Use:        "init",
		SuggestFor: []string{"ini", "in"},
		Short:      "init create a configuration template",
		Long: `init create a configuration template with every default value.
If --print flag is present, the configuration will be printed to stdout.
Otherwise it is written to --output / -o (default config.yaml). An existing
file is only replaced when --yes / -y is present.
`,
		Example: `  recorder init --print
  recorder init -o /path/to/config.yaml -y`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printOnly, _ := cmd.Flags().GetBool("print")
			overwrite, _ := cmd.Flags().GetBool("yes")
			output, _ := cmd.Flags().GetString("output")

			if printOnly {
				data, err := config.DumpYAML(v)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			if err := config.WriteFile(v, output, overwrite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration written to %s\n", output)
			return nil
		},
	}

	initCmd.Flags().Bool("print", false, "print config to stdout")
	initCmd.Flags().BoolP("yes", "y", false, "overwrite")
	initCmd.Flags().StringP("output", "o", defaultConfigFile, "output path")
	return initCmd
}

// loadConfig loads the configuration named by --config or
// MYO_RECORDER_CONFIG, falling back to the search paths
func loadConfig(cmd *cobra.Command, v *viper.Viper) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		configFile = os.Getenv(config.EnvPrefix + "_CONFIG")
	}

	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	if cfg.App.Debug {
		cfg.Logging.Level = "debug"
	}
	return cfg, nil
}

func mustBind(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}
