package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/opencl"
	"github.com/gogpu/opencl/driver"
	_ "github.com/gogpu/opencl/driver/host"
	_ "github.com/gogpu/opencl/driver/native"
)

type rootFlags struct {
	driver   string
	logLevel string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:   "clinfo",
		Short: "Inspect OpenCL platforms and build kernels",
		Long: `clinfo lists the OpenCL platforms and devices visible through the
selected driver and test-builds kernel sources on them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := parseLevel(flags.logLevel)
			if err != nil {
				return err
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			opencl.SetLogger(slog.New(handler))
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&flags.driver, "driver", "", "Driver to use (native, host); default picks the best available")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	cmd.AddCommand(newDevicesCmd(flags), newBuildCmd(flags), newVersionCmd())
	return cmd
}

func parseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

// openRuntime opens the driver named by --driver, or the default one.
func (f *rootFlags) openRuntime(opts ...opencl.Option) (*opencl.Runtime, error) {
	if f.driver == "" {
		return opencl.Open(opts...)
	}
	drv, err := driver.Open(f.driver)
	if err != nil {
		return nil, err
	}
	return opencl.New(drv, opts...)
}
