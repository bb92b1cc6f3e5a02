package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli"

	"github.com/bitfsorg/libvoicemail-go/config"
	"github.com/bitfsorg/libvoicemail-go/ledger"
	"github.com/bitfsorg/libvoicemail-go/logging"
	"github.com/bitfsorg/libvoicemail-go/network"
	"github.com/bitfsorg/libvoicemail-go/relay"
	"github.com/bitfsorg/libvoicemail-go/store"
	"github.com/bitfsorg/libvoicemail-go/token"
	"github.com/bitfsorg/libvoicemail-go/voicemail"
	"github.com/bitfsorg/libvoicemail-go/wallet"
)

const walletDBName = "wallet.db"

func meta(c *cli.Context) *metadata {
	return c.App.Metadata["config"].(*metadata)
}

// loadConfig reads the config file of the data directory and applies the
// global flag overrides. A missing file yields the defaults.
func loadConfig(c *cli.Context) (config.Config, error) {
	dataDir := c.GlobalString("datadir")
	cfg, err := config.LoadConfig(config.ConfigPath(dataDir))
	if err != nil && !errors.Is(err, config.ErrConfigNotFound) {
		return cfg, err
	}
	cfg.DataDir = dataDir

	override := func(dst *string, flag string) {
		if v := c.GlobalString(flag); v != "" {
			*dst = v
		}
	}
	override(&cfg.Network, "network")
	override(&cfg.RelayURL, "relay")
	override(&cfg.RPCURL, "rpc-url")
	override(&cfg.RPCUser, "rpc-user")
	override(&cfg.RPCPassword, "rpc-pass")
	override(&cfg.LogLevel, "loglevel")

	return cfg, config.ValidateConfig(cfg)
}

// session is an opened wallet and the service around it.
type session struct {
	cfg     config.Config
	log     logging.Logger
	wallet  *ledger.LocalWallet
	svc     *voicemail.Service
	closers []io.Closer
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
}

// openSession decrypts the seed and wires wallet, node, relay and service.
func openSession(c *cli.Context) (*session, error) {
	m := meta(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}

	log, logCloser, err := logging.Open(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, log: log, closers: []io.Closer{logCloser}}

	fail := func(err error) (*session, error) {
		s.Close()
		return nil, err
	}

	netCfg, err := wallet.GetNetwork(cfg.Network)
	if err != nil {
		return fail(err)
	}
	password, err := walletPassword(m)
	if err != nil {
		return fail(err)
	}
	seed, err := wallet.ReadSeedFile(cfg.DataDir, password)
	if err != nil {
		return fail(fmt.Errorf("%w (run `voicemail init` first)", err))
	}
	keys, err := wallet.NewWallet(seed, netCfg)
	if err != nil {
		return fail(err)
	}

	st, err := store.OpenBoltStore(filepath.Join(cfg.DataDir, walletDBName))
	if err != nil {
		return fail(err)
	}
	s.closers = append(s.closers, st)

	rpcCfg, err := network.ResolveConfig(&network.RPCConfig{
		URL:      cfg.RPCURL,
		User:     cfg.RPCUser,
		Password: cfg.RPCPassword,
	}, environ(), cfg.Network)
	if err != nil {
		return fail(err)
	}
	chain := ledger.NewNodeChain(network.NewRPCClient(*rpcCfg))

	w, err := ledger.NewLocalWallet(ledger.LocalWalletConfig{
		Keys:  keys,
		Store: st,
		Chain: chain,
		Log:   log,
	})
	if err != nil {
		return fail(err)
	}
	s.wallet = w

	svcCfg := voicemail.Config{Wallet: w, Acks: st, Log: log}
	if cfg.RelayURL != "" {
		id, err := w.IdentityKey(context.Background())
		if err != nil {
			return fail(err)
		}
		if svcCfg.Relay, err = relay.NewClient(cfg.RelayURL, id); err != nil {
			return fail(err)
		}
	}
	s.svc, err = voicemail.New(svcCfg)
	if err != nil {
		return fail(err)
	}
	return s, nil
}

// environ returns the process environment as a map.
func environ() map[string]string {
	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok {
			env[k] = v
		}
	}
	return env
}

func parseOutpointArg(c *cli.Context) (token.Outpoint, error) {
	if c.NArg() != 1 {
		return token.Outpoint{}, fmt.Errorf("expected one TXID.INDEX argument")
	}
	return token.ParseOutpoint(c.Args().First())
}

func shortKey(b []byte) string {
	s := hex.EncodeToString(b)
	if len(s) > 16 {
		return s[:16] + "…"
	}
	return s
}
