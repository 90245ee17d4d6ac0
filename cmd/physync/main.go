// Command physync runs a scripted physics sync session against the
// reference engine and journals the edits it produces.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/openworld/physync/internal/config"
)

func main() {
	var opts options
	flag.StringVar(&opts.configDir, "config", ".", "directory containing "+config.FileName)
	flag.StringVar(&opts.scenarioPath, "scenario", "", "scenario YAML file (overrides scenario.path)")
	flag.Uint64Var(&opts.frames, "frames", 0, "frames to run (overrides the scenario)")
	flag.StringVar(&opts.storageType, "storage", "", "storage backend: memory, sqlite, postgres, websocket or none")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "physync:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	h, err := newHarness(opts)
	if err != nil {
		return err
	}
	defer h.Close()
	return h.Run(ctx)
}
