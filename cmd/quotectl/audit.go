package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"stockquote/internal/audit"
	"stockquote/internal/audit/sqlitestore"
	"stockquote/internal/config"
	"stockquote/internal/sqlitedb"
)

type auditCmd struct {
	load func() (config.Config, error)
	out  io.Writer

	user   string
	typ    string
	limit  int
	format string
}

func (*auditCmd) Name() string     { return "audit" }
func (*auditCmd) Synopsis() string { return "print audit trail entries from the SQLite store" }
func (*auditCmd) Usage() string {
	return `quotectl audit [-user <id>] [-type <logType>] [-limit <n>] [-format json|xml]

  Reads the audit trail, oldest first. json prints one entry per line; xml
  prints the DUMPLOG document.
`
}

func (c *auditCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "user", "", "only entries for this user")
	f.StringVar(&c.typ, "type", "", "only entries of this type (userCommand, quoteServer, accountTransaction, systemEvent, errorEvent, debugEvent)")
	f.IntVar(&c.limit, "limit", 0, "maximum entries to print (0 for all)")
	f.StringVar(&c.format, "format", "json", "output format: json or xml")
}

func (c *auditCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	filter := audit.Filter{User: c.user, Type: audit.LogType(c.typ), Limit: c.limit}
	if filter.Type != "" && !filter.Type.Valid() {
		fmt.Fprintf(os.Stderr, "unknown log type %q\n", c.typ)
		return subcommands.ExitUsageError
	}
	if c.format != "json" && c.format != "xml" {
		fmt.Fprintf(os.Stderr, "unknown format %q\n", c.format)
		return subcommands.ExitUsageError
	}

	cfg, err := c.load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	db, err := sqlitedb.Open(cfg.SQLite.Path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer db.Close()
	store, err := sqlitestore.New(ctx, db)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	entries, err := store.List(ctx, filter)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	if c.format == "xml" {
		if err := audit.WriteXML(c.out, entries); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}
	enc := json.NewEncoder(c.out)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return subcommands.ExitFailure
		}
	}
	return subcommands.ExitSuccess
}
