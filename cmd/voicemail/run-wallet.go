package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli"

	"github.com/bitfsorg/libvoicemail-go/config"
	"github.com/bitfsorg/libvoicemail-go/wallet"
)

func runInit(c *cli.Context) error {
	m := meta(c)
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	mnemonic := c.String("mnemonic")
	generated := mnemonic == ""
	if generated {
		bits := wallet.Mnemonic12Words
		if c.Int("words") == 24 {
			bits = wallet.Mnemonic24Words
		} else if c.Int("words") != 12 {
			return fmt.Errorf("words must be 12 or 24")
		}
		if mnemonic, err = wallet.GenerateMnemonic(bits); err != nil {
			return err
		}
	} else if !wallet.ValidateMnemonic(mnemonic) {
		return fmt.Errorf("invalid mnemonic")
	}

	seed, err := wallet.SeedFromMnemonic(mnemonic, "")
	if err != nil {
		return err
	}
	password, err := newPassword(m)
	if err != nil {
		return err
	}
	if err := wallet.WriteSeedFile(cfg.DataDir, seed, password); err != nil {
		return err
	}

	path := config.ConfigPath(cfg.DataDir)
	if _, err := config.LoadConfig(path); errors.Is(err, config.ErrConfigNotFound) {
		if err := config.SaveConfig(path, cfg); err != nil {
			return err
		}
	}

	fmt.Fprintf(m.w, "wallet created in %s\n", cfg.DataDir)
	if generated {
		fmt.Fprintf(m.w, "\nrecovery mnemonic (write it down, it is not stored):\n\n  %s\n\n", mnemonic)
	}
	return nil
}

func runIdentity(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	id, err := s.svc.Identity(ctx)
	if err != nil {
		return err
	}
	addr, err := s.wallet.ReceiveAddress(ctx)
	if err != nil {
		return err
	}
	balance, err := s.wallet.Balance(ctx)
	if err != nil {
		return err
	}

	w := meta(c).w
	fmt.Fprintf(w, "identity:        %s\n", hex.EncodeToString(id.Compressed()))
	fmt.Fprintf(w, "receive address: %s (index %d)\n", addr.Address, addr.Index)
	fmt.Fprintf(w, "balance:         %d sat\n", balance)
	return nil
}

func runFund(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected RAWTX-HEX and ADDRESS-INDEX")
	}
	raw, err := hex.DecodeString(c.Args().Get(0))
	if err != nil {
		return fmt.Errorf("raw tx: %w", err)
	}
	idx, err := strconv.ParseUint(c.Args().Get(1), 10, 32)
	if err != nil {
		return fmt.Errorf("address index: %w", err)
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	sats, err := s.wallet.InternalizeFunding(context.Background(), raw, uint32(idx))
	if err != nil {
		return err
	}
	fmt.Fprintf(meta(c).w, "added %d sat\n", sats)
	return nil
}
