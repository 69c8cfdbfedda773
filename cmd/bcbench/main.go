// Command bcbench drives a concurrent block workload through a blockcache
// Cache and reports cache and device statistics.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	dev, closeDev, err := openDevice(ctx, opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeDev(); cerr != nil {
			fmt.Fprintln(stderr, "close device:", cerr)
		}
	}()

	res, err := runWorkload(ctx, opts, dev)
	if err != nil {
		return err
	}

	printResult(stdout, res)

	if opts.report != "" {
		if err := writeReport(opts.report, res); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "report written to", opts.report)
	}
	return nil
}
