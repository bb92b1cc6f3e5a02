package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/bitfsorg/libvoicemail-go/lifecycle"
	"github.com/bitfsorg/libvoicemail-go/reconcile"
	"github.com/bitfsorg/libvoicemail-go/token"
	"github.com/bitfsorg/libvoicemail-go/voicemail"
)

func runSend(c *cli.Context) error {
	self := c.Bool("self")
	to := c.String("to")
	if to == "" && !self {
		return fmt.Errorf("--to or --self is required")
	}
	if c.String("audio") == "" {
		return fmt.Errorf("--audio is required")
	}
	audio, err := os.ReadFile(c.String("audio"))
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	ctx := context.Background()

	req := lifecycle.SendRequest{
		Audio:         audio,
		Message:       c.String("message"),
		Satoshis:      c.Uint64("satoshis"),
		SelfAddressed: self,
	}
	if !self {
		if req.Recipient, err = s.svc.ResolveRecipient(ctx, to); err != nil {
			return err
		}
	}

	res, err := s.svc.SendToken(ctx, req)
	if err != nil {
		return err
	}
	w := meta(c).w
	fmt.Fprintf(w, "sent %s (%d sat)\n", res.Token.Outpoint, res.Token.Satoshis)
	if res.NotificationID != "" {
		fmt.Fprintf(w, "notification %s\n", res.NotificationID)
	}
	if res.RelayWarning != nil {
		fmt.Fprintf(meta(c).e, "warning: recipient not notified: %s\n", res.RelayWarning)
	}
	return nil
}

func parseSort(field string, desc bool) (token.SortSpec, error) {
	spec := token.SortSpec{Order: token.Ascending}
	if desc {
		spec.Order = token.Descending
	}
	switch field {
	case "time":
		spec.Field = token.ByTime
	case "value":
		spec.Field = token.ByValue
	default:
		return spec, fmt.Errorf("unknown sort field %q", field)
	}
	return spec, nil
}

func runList(c *cli.Context) error {
	basket := token.Basket(c.String("basket"))
	switch basket {
	case token.BasketInbox, token.BasketSent, token.BasketSelf:
	default:
		return fmt.Errorf("unknown basket %q", basket)
	}
	spec, err := parseSort(c.String("sort"), c.Bool("desc"))
	if err != nil {
		return err
	}

	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	tokens, err := s.svc.ListCollection(context.Background(), basket, spec)
	if err != nil {
		return err
	}
	w := meta(c).w
	printTokens(w, tokens)

	if dir := c.String("save"); dir != "" {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
		saved := 0
		for _, tok := range tokens {
			if tok.Voicemail == nil {
				continue
			}
			path := filepath.Join(dir, tok.Outpoint.String()+".audio")
			if err := os.WriteFile(path, tok.Voicemail.Audio, 0600); err != nil {
				return err
			}
			saved++
		}
		fmt.Fprintf(w, "saved %d audio files to %s\n", saved, dir)
	}
	return nil
}

func printTokens(w io.Writer, tokens []*token.Token) {
	if len(tokens) == 0 {
		fmt.Fprintln(w, "(empty)")
		return
	}
	for _, tok := range tokens {
		vm := tok.Voicemail
		if vm == nil {
			fmt.Fprintf(w, "%s  %8d sat\n", tok.Outpoint, tok.Satoshis)
			continue
		}
		from := "unknown"
		if vm.Sender != nil {
			from = shortKey(vm.Sender.Compressed())
		}
		fmt.Fprintf(w, "%s  %8d sat  %s  from %s  %d bytes",
			tok.Outpoint, tok.Satoshis, tok.Time().Local().Format(time.DateTime), from, len(vm.Audio))
		if vm.Message != "" {
			fmt.Fprintf(w, "  %q", vm.Message)
		}
		fmt.Fprintln(w)
	}
}

func runRedeem(c *cli.Context) error {
	op, err := parseOutpointArg(c)
	if err != nil {
		return err
	}
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()

	txid, err := s.svc.RedeemToken(context.Background(), op)
	if err != nil {
		return err
	}
	fmt.Fprintf(meta(c).w, "redeemed %s in %s\n", op, txid)
	return nil
}

func runSync(c *cli.Context) error {
	s, err := openSession(c)
	if err != nil {
		return err
	}
	defer s.Close()
	w := meta(c).w

	if !c.Bool("watch") {
		report, err := s.svc.SyncAndReconcile(context.Background())
		if report != nil {
			printReport(w, report)
		}
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	poller, err := s.svc.Poller(s.cfg.PollInterval, func(res *reconcile.Result) {
		for _, tok := range res.Imported {
			fmt.Fprintf(w, "new voicemail %s (%d sat)\n", tok.Outpoint, tok.Satoshis)
		}
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "watching for voicemail every %s, Ctrl-C to stop\n", s.cfg.PollInterval)
	if err := poller.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printReport(w io.Writer, r *voicemail.SyncReport) {
	fmt.Fprintf(w, "imported %d, acknowledged %d, pending %d\n", len(r.Imported), len(r.Acknowledged), len(r.Pending))
	if r.Skipped+r.Corrupt > 0 {
		fmt.Fprintf(w, "%d outputs skipped, %d corrupt\n", r.Skipped, r.Corrupt)
	}
	printTokens(w, r.Inbox)
}
