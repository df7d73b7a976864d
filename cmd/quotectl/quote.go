package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"

	"stockquote/internal/app"
	"stockquote/internal/config"
	"stockquote/internal/quote"
)

type quoteCmd struct {
	load func() (config.Config, error)
	out  io.Writer

	user     string
	tx       string
	parallel int
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "fetch quotes through the cache, lock and throttle" }
func (*quoteCmd) Usage() string {
	return `quotectl quote [-user <id>] [-tx <id>] [-parallel <n>] SYMBOL...

  Looks up each symbol exactly as the server does and prints one line per
  symbol: symbol, price, quote server time and crypto key. Symbols that
  cannot be quoted are reported on stderr.
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "quotectl", "user id sent to the quote server")
	f.StringVar(&c.tx, "tx", "", "transaction id recorded in the audit trail")
	f.IntVar(&c.parallel, "parallel", 4, "maximum lookups in flight")
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	symbols := f.Args()
	if len(symbols) == 0 {
		fmt.Fprintln(os.Stderr, "at least one symbol is required")
		return subcommands.ExitUsageError
	}
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

	quotes := make([]quote.Quote, len(symbols))
	errs := make([]error, len(symbols))
	var g errgroup.Group
	if c.parallel > 0 {
		g.SetLimit(c.parallel)
	}
	for i, sym := range symbols {
		g.Go(func() error {
			quotes[i], errs[i] = a.Quotes.GetQuote(ctx, c.user, sym, c.tx)
			return nil
		})
	}
	_ = g.Wait()

	status := subcommands.ExitSuccess
	for i, sym := range symbols {
		if errs[i] != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", sym, errs[i])
			status = subcommands.ExitFailure
			continue
		}
		q := quotes[i]
		fmt.Fprintf(c.out, "%s\t%s\t%s\t%s\n", q.Symbol, q.UnitPrice.String(), q.ServerTime.Format(time.RFC3339Nano), q.CryptoKey)
	}
	return status
}
