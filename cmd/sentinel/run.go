package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/sentinel/cmd/sentinel/tui"
	"github.com/jamesainslie/sentinel/pkg/sentinel/output"
	"github.com/jamesainslie/sentinel/pkg/sentinel/sweep"
	"github.com/jamesainslie/sentinel/pkg/sentinel/types"
)

func outputFormats() []string { return output.Available() }

// render prints r in the --output format (pretty by default).
func render(r *output.Report) error {
	name := vcfg.GetString("output")
	if name == "" {
		name = "pretty"
	}
	f, err := output.Get(name)
	if err != nil {
		return fmt.Errorf("%w (available: %v)", err, outputFormats())
	}

	var buf bytes.Buffer
	if err := f.Format(&buf, r); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}
	_, err = os.Stdout.Write(buf.Bytes())
	return err
}

// execute runs work under the progress view, or with one-line progress on
// stderr when the view is disabled. Interrupts cancel work cooperatively.
func execute(ctx context.Context, title string, work tui.Work) error {
	if interactive() {
		return tui.Run(ctx, title, work)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	live := !getQuiet() && isTerminal(os.Stderr)
	events := make(chan types.Progress, 16)

	var g errgroup.Group
	g.Go(func() error {
		defer close(events)
		return work(ctx,
			func(p types.Progress) {
				select {
				case events <- p:
				default:
				}
			},
			func(ph sweep.Phase) { printVerbose("phase: %s", ph) })
	})
	g.Go(func() error {
		printed := false
		for p := range events {
			if live {
				fmt.Fprintf(os.Stderr, "\r\033[K[%3.0f%%] %s", p.Fraction()*100, p.Message)
				printed = true
			}
		}
		if printed {
			fmt.Fprintln(os.Stderr)
		}
		return nil
	})
	return g.Wait()
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	return err == nil && fi.Mode()&os.ModeCharDevice != 0
}
