package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"

	"stockquote/internal/app"
	"stockquote/internal/config"
)

type lockCmd struct {
	load func() (config.Config, error)
	out  io.Writer

	hold time.Duration
	wait time.Duration
}

func (*lockCmd) Name() string     { return "lock" }
func (*lockCmd) Synopsis() string { return "acquire and hold the quote server lock" }
func (*lockCmd) Usage() string {
	return `quotectl lock [-hold <duration>] [-wait <duration>]

  Acquires the configured lock, holds it, then releases it. While held, no
  instance sharing the lock backend can send to the quote server.
`
}

func (c *lockCmd) SetFlags(f *flag.FlagSet) {
	f.DurationVar(&c.hold, "hold", 2*time.Second, "how long to hold the lease")
	f.DurationVar(&c.wait, "wait", 30*time.Second, "give up acquiring after this long")
}

func (c *lockCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, err := c.load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	a, err := app.Build(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer a.Close()

	acquireCtx, cancel := context.WithTimeout(ctx, c.wait)
	defer cancel()
	start := time.Now()
	lease, err := a.Locker.Acquire(acquireCtx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "acquire %s lock: %v\n", cfg.Lock.Backend, err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(c.out, "acquired %s lock %q after %s\n", cfg.Lock.Backend, cfg.Lock.Name, time.Since(start).Round(time.Millisecond))

	select {
	case <-ctx.Done():
	case <-time.After(c.hold):
	}

	releaseCtx, cancelRelease := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancelRelease()
	if err := lease.Release(releaseCtx); err != nil {
		fmt.Fprintf(os.Stderr, "release: %v\n", err)
		return subcommands.ExitFailure
	}
	fmt.Fprintln(c.out, "released")
	return subcommands.ExitSuccess
}
