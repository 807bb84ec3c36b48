package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/common-nighthawk/go-figure"
	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"github.com/fxnlabs/zebench/internal/gpu"
)

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Print the selected device and its queue groups",
		Action: func(c *cli.Context) (err error) {
			st := state(c)
			env, err := st.env(c.App.Writer)
			if err != nil {
				return err
			}
			s, err := gpu.NewSession(env.Backend, st.log.Named("gpu"))
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, s.Close()) }()

			printDeviceInfo(c.App.Writer, env.Backend.Name(), s)
			return nil
		},
	}
}

func printDeviceInfo(w io.Writer, backend string, s *gpu.Session) {
	fmt.Fprintln(w, figure.NewFigure("zebench", "", true).String())
	p := s.Props
	fmt.Fprintf(w, "Backend  : %s\n", backend)
	fmt.Fprintf(w, "Device   : %s\n", p.Name)
	fmt.Fprintf(w, "Type     : %s\n", p.Type)
	fmt.Fprintf(w, "Vendor ID: %x\n", p.VendorID)
	fmt.Fprintf(w, "Device ID: %x\n", p.DeviceID)
	fmt.Fprintf(w, "API      : %s\n", p.APIVersion)
	fmt.Fprintf(w, "Max Allocation Size: %d (bytes) %s\n", p.MaxMemAllocSize, humanize.IBytes(p.MaxMemAllocSize))
	if p.CyclesPerSecond {
		fmt.Fprintf(w, "Timer Resolution: %d cycles/s\n", p.TimerResolution)
	} else {
		fmt.Fprintf(w, "Timer Resolution: %d ns\n", p.TimerResolution)
	}
	fmt.Fprintf(w, "Timestamp Valid Bits: %d (kernel %d)\n", p.TimestampValidBits, p.KernelTimestampValidBits)
	fmt.Fprintf(w, "#Queue Groups: %d (compute ordinal %d)\n", len(s.QueueGroups), s.Ordinal)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Ordinal", "Compute", "Copy", "Queues"})
	for _, g := range s.QueueGroups {
		table.Append([]string{
			strconv.FormatUint(uint64(g.Ordinal), 10),
			strconv.FormatBool(g.Compute),
			strconv.FormatBool(g.Copy),
			strconv.FormatUint(uint64(g.NumQueues), 10),
		})
	}
	table.Render()
}
