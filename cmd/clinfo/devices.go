package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/gogpu/opencl"
	"github.com/gogpu/opencl/driver"
)

func newDevicesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List platforms and their devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := flags.openRuntime()
			if err != nil {
				return err
			}
			return listDevices(cmd, rt)
		},
	}
}

func listDevices(cmd *cobra.Command, rt *opencl.Runtime) error {
	platforms, err := rt.Platforms()
	if err != nil {
		return err
	}
	if len(platforms) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No OpenCL platforms found.")
		return nil
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(cmd.OutOrStdout())
	tw.SetStyle(table.StyleLight)
	tw.SetTitle("driver: " + rt.Driver().Name())
	tw.AppendHeader(table.Row{"Platform", "Device", "Type", "Version", "Compute Units", "Global Memory", "Built-in Kernels"})

	for _, p := range platforms {
		pname, err := p.Name()
		if err != nil {
			return err
		}
		devices, err := p.Devices(driver.DeviceTypeAll)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			tw.AppendRow(table.Row{pname, "-", "-", "-", "-", "-", "-"})
			continue
		}
		for _, d := range devices {
			row, err := deviceRow(pname, d)
			if err != nil {
				return err
			}
			tw.AppendRow(row)
		}
	}
	tw.Render()
	return nil
}

func deviceRow(platform string, d *opencl.Device) (table.Row, error) {
	name, err := d.Name()
	if err != nil {
		return nil, err
	}
	typ, err := d.Type()
	if err != nil {
		return nil, err
	}
	version, err := d.Version()
	if err != nil {
		return nil, err
	}
	units, err := d.MaxComputeUnits()
	if err != nil {
		return nil, err
	}
	mem, err := d.GlobalMemorySize()
	if err != nil {
		return nil, err
	}
	builtIns, err := d.BuiltInKernels()
	if err != nil {
		return nil, err
	}
	return table.Row{platform, name, typ, version, units, formatBytes(mem), strings.Join(builtIns, ", ")}, nil
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
