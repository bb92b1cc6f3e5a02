// Command mailboxd serves voicemail notifications over HTTP, persisting
// per-recipient message boxes in a bbolt database.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/bitfsorg/libvoicemail-go/config"
	"github.com/bitfsorg/libvoicemail-go/logging"
	"github.com/bitfsorg/libvoicemail-go/relay"
)

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	app := cli.NewApp()
	app.Name = "mailboxd"
	app.Usage = "voicemail notification relay"
	app.Version = version
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "datadir, d",
			Value: config.DefaultDataDir(),
			Usage: " data `DIR` holding config and mailbox.db",
		},
		cli.StringFlag{
			Name:  "listen, l",
			Usage: " listen `ADDR` (overrides config)",
		},
		cli.StringFlag{
			Name:  "loglevel",
			Usage: " `LEVEL` [debug|info|warn|error] (overrides config)",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "mailboxd: %s\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	dataDir := c.String("datadir")
	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return err
	}
	cfg.DataDir = dataDir
	if v := c.String("listen"); v != "" {
		cfg.ListenAddr = v
	}
	if v := c.String("loglevel"); v != "" {
		cfg.LogLevel = v
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return err
	}

	log, closer, err := logging.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	mb, err := relay.OpenBoltMailbox(filepath.Join(cfg.DataDir, "mailbox.db"))
	if err != nil {
		return err
	}
	defer mb.Close()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           relay.NewServer(mb, log).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info(ctx, "mailbox relay listening", "addr", cfg.ListenAddr, "datadir", cfg.DataDir)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
