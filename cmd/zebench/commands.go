package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/fxnlabs/zebench/internal/bench"
)

const exitUsage = 2

func usageError(c *cli.Context, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return cli.Exit(fmt.Sprintf("%s\nUsage: %s %s %s", msg, c.App.Name, c.Command.Name, c.Command.ArgsUsage), exitUsage)
}

// uintArg parses the positional argument at index i, falling back to def
// when it is absent.
func uintArg(c *cli.Context, i int, name string, def uint64, bitSize int) (uint64, error) {
	s := c.Args().Get(i)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseUint(s, 10, bitSize)
	if err != nil {
		return 0, usageError(c, "invalid %s %q: not a non-negative integer", name, s)
	}
	return v, nil
}

func stringArg(c *cli.Context, i int, def string) string {
	if s := c.Args().Get(i); s != "" {
		return s
	}
	return def
}

func vectorAddCommand() *cli.Command {
	return &cli.Command{
		Name:      "vector-add",
		Usage:     "Add two float vectors in shared memory",
		ArgsUsage: "[size]",
		Action: func(c *cli.Context) error {
			size, err := uintArg(c, 0, "size", 512, 32)
			if err != nil {
				return err
			}
			env, err := state(c).env(c.App.Writer)
			if err != nil {
				return err
			}
			_, err = bench.VectorAdd(c.Context, env, uint32(size))
			return err
		},
	}
}

func transfersCommand() *cli.Command {
	return &cli.Command{
		Name:      "transfers",
		Usage:     "Time memory copies between shared, heap, host and device memory",
		ArgsUsage: "[bytes]",
		Action: func(c *cli.Context) error {
			size, err := uintArg(c, 0, "bytes", 512, 64)
			if err != nil {
				return err
			}
			env, err := state(c).env(c.App.Writer)
			if err != nil {
				return err
			}
			_, err = bench.Transfers(c.Context, env, size, state(c).cfg.Bench.TransferIterations)
			return err
		},
	}
}

func mxmCommand() *cli.Command {
	return &cli.Command{
		Name:      "mxm",
		Usage:     "Multiply two square float matrices",
		ArgsUsage: "[size]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "validate",
				Value: true,
				Usage: "Compare the result with a sequential multiplication",
			},
		},
		Action: func(c *cli.Context) error {
			n, err := uintArg(c, 0, "size", 512, 32)
			if err != nil {
				return err
			}
			env, err := state(c).env(c.App.Writer)
			if err != nil {
				return err
			}
			_, err = bench.MatrixMultiply(c.Context, env, uint32(n), c.Bool("validate"))
			return err
		},
	}
}

func allocCommand() *cli.Command {
	return &cli.Command{
		Name:      "alloc",
		Usage:     "Check which memory kinds accept a large allocation",
		ArgsUsage: "[bytes]",
		Action: func(c *cli.Context) error {
			size, err := uintArg(c, 0, "bytes", 2<<30, 64)
			if err != nil {
				return err
			}
			env, err := state(c).env(c.App.Writer)
			if err != nil {
				return err
			}
			_, err = bench.Alloc(c.Context, env, size)
			return err
		},
	}
}

func memoryEffectCommand() *cli.Command {
	return &cli.Command{
		Name:      "memory-effect",
		Usage:     "Run an integer vector kernel with the buffers in s(hared), d(evice), h(ost staging) or o(nly host) memory",
		ArgsUsage: "[mode] [items]",
		Action: func(c *cli.Context) error {
			placement, err := bench.ParseVectorMode(stringArg(c, 0, "s"))
			if err != nil {
				return usageError(c, "%v", err)
			}
			items, err := uintArg(c, 1, "items", 8192, 32)
			if err != nil {
				return err
			}
			env, err := state(c).env(c.App.Writer)
			if err != nil {
				return err
			}
			_, err = bench.MemoryEffect(c.Context, env, placement, uint32(items), state(c).cfg.Bench.MemoryEffectIterations)
			return err
		},
	}
}

func memoryEffectMxMCommand() *cli.Command {
	return &cli.Command{
		Name:      "memory-effect-mxm",
		Usage:     "Run the integer matrix multiply with the buffers in s(hared), d(evice), c(ombined) or h(ost) memory",
		ArgsUsage: "[mode] [size]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "validate",
				Usage: "Compare the result with a sequential multiplication",
			},
		},
		Action: func(c *cli.Context) error {
			placement, err := bench.ParseMatrixMode(stringArg(c, 0, "s"))
			if err != nil {
				return usageError(c, "%v", err)
			}
			n, err := uintArg(c, 1, "size", 512, 32)
			if err != nil {
				return err
			}
			env, err := state(c).env(c.App.Writer)
			if err != nil {
				return err
			}
			_, err = bench.MemoryEffectMatrix(c.Context, env, placement, uint32(n),
				state(c).cfg.Bench.MemoryEffectIterations, c.Bool("validate"))
			return err
		},
	}
}
