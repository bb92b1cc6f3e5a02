package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli"
)

func runContactsAdd(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("expected NAME and ADDRESS")
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	key, err := s.svc.ResolveRecipient(ctx, c.Args().Get(1))
	if err != nil {
		return err
	}
	tok, err := s.svc.AddContact(ctx, c.Args().Get(0), key)
	if err != nil {
		return err
	}
	fmt.Fprintf(meta(c).w, "added %s as %s\n", tok.Contact.Name, tok.Outpoint)
	return nil
}

func runContactsList(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	contacts, err := s.svc.ListContacts(context.Background())
	if err != nil {
		return err
	}
	w := meta(c).w
	if len(contacts) == 0 {
		fmt.Fprintln(w, "(no contacts)")
		return nil
	}
	for _, tok := range contacts {
		fmt.Fprintf(w, "%-24s %s  %s\n", tok.Contact.Name, hex.EncodeToString(tok.Contact.IdentityKey.Compressed()), tok.Outpoint)
	}
	return nil
}

func runContactsForget(c *cli.Context) error {
	op, err := parseOutpointArg(c)
	if err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	txid, err := s.svc.ForgetContact(context.Background(), op)
	if err != nil {
		return err
	}
	fmt.Fprintf(meta(c).w, "forgot %s in %s\n", op, txid)
	return nil
}
