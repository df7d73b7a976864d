package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
	"github.com/rs/zerolog/log"

	"stockquote/internal/config"
	"stockquote/internal/logging"
)

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))

	load := func() (config.Config, error) {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return cfg, err
		}
		return cfg, logging.Init(os.Stderr, cfg.Log.Level, true)
	}

	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(&quoteCmd{load: load, out: os.Stdout}, "")
	commander.Register(&auditCmd{load: load, out: os.Stdout}, "")
	commander.Register(&lockCmd{load: load, out: os.Stdout}, "")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	if status != subcommands.ExitSuccess {
		log.Debug().Int("status", int(status)).Msg("exit")
	}
	os.Exit(int(status))
}
