package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/gogpu/opencl"
)

func newBuildCmd(flags *rootFlags) *cobra.Command {
	var options string
	cmd := &cobra.Command{
		Use:   "build FILE...",
		Short: "Build kernel sources on every device",
		Long: `Build compiles the given files as one program on each device separately
and prints the build log of every failure. The exit status is non-zero if
any device fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := flags.openRuntime(opencl.WithBuildOptions(options))
			if err != nil {
				return err
			}
			return buildOnDevices(cmd, rt, args)
		},
	}
	cmd.Flags().StringVarP(&options, "options", "o", "", "Compiler options, e.g. \"-D N=16\"")
	return cmd
}

// buildOnDevices builds paths in a separate context per device so one
// failing device does not hide the others.
func buildOnDevices(cmd *cobra.Command, rt *opencl.Runtime, paths []string) error {
	devices, err := rt.Devices()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var errs error
	for _, d := range devices {
		name, err := d.Name()
		if err != nil {
			return err
		}
		ctx, err := rt.CreateContext(d)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}

		prog, err := ctx.BuildProgramFromFiles(paths...)
		if err != nil {
			var be *opencl.BuildError
			if errors.As(err, &be) {
				fmt.Fprintf(out, "%s: FAILED\n%s\n", name, err)
			}
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", name, err))
			ctx.Release()
			continue
		}

		kernels, err := prog.KernelNames()
		if err != nil {
			errs = multierr.Append(errs, err)
		}
		fmt.Fprintf(out, "%s: OK (%d kernels: %v)\n", name, len(kernels), kernels)
		prog.Release()
		ctx.Release()
	}
	return errs
}
