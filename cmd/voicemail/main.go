// Command voicemail sends, lists and redeems encrypted voicemail tokens and
// manages the encrypted contact list of one wallet.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli"

	"github.com/bitfsorg/libvoicemail-go/config"
)

type metadata struct {
	dataDir  string
	password string
	w        io.Writer
	e        io.Writer
}

// set by the linker: go build -ldflags "-X main.version=M.N" ./...
var version = "dev"

func main() {
	app := cli.NewApp()
	app.Name = "voicemail"
	app.Usage = "encrypted voicemail tokens on BSV"
	app.Version = version
	app.Writer = os.Stdout
	app.ErrWriter = os.Stderr

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "datadir, d",
			Value: config.DefaultDataDir(),
			Usage: " wallet data `DIR`",
		},
		cli.StringFlag{
			Name:  "network, n",
			Usage: " `NETWORK` [mainnet|testnet|regtest] (overrides config)",
		},
		cli.StringFlag{
			Name:  "relay, r",
			Usage: " mailbox relay `URL` (overrides config)",
		},
		cli.StringFlag{
			Name:  "rpc-url",
			Usage: " BSV node JSON-RPC `URL` (overrides config)",
		},
		cli.StringFlag{
			Name:  "rpc-user",
			Usage: " JSON-RPC `USER`",
		},
		cli.StringFlag{
			Name:  "rpc-pass",
			Usage: " JSON-RPC `PASSWORD`",
		},
		cli.StringFlag{
			Name:   "password, p",
			EnvVar: "VOICEMAIL_PASSWORD",
			Usage:  " wallet `PASSWORD` (prompted when empty)",
		},
		cli.StringFlag{
			Name:  "loglevel",
			Usage: " `LEVEL` [debug|info|warn|error] (overrides config)",
		},
	}

	app.Commands = []cli.Command{
		{
			Name:  "init",
			Usage: "create the wallet seed and config file",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "words, w",
					Value: 12,
					Usage: " mnemonic length `N` [12|24]",
				},
				cli.StringFlag{
					Name:  "mnemonic, m",
					Usage: " restore from an existing `MNEMONIC`",
				},
			},
			Action: runInit,
		},
		{
			Name:   "identity",
			Usage:  "show the identity key, a receive address and the balance",
			Action: runIdentity,
		},
		{
			Name:      "fund",
			Usage:     "record a transaction paying a receive address",
			ArgsUsage: "RAWTX-HEX ADDRESS-INDEX",
			Action:    runFund,
		},
		{
			Name:  "send",
			Usage: "send a voicemail",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "to, t",
					Usage: "*recipient `ADDRESS` (paymail, domain or hex key)",
				},
				cli.StringFlag{
					Name:  "audio, a",
					Usage: "*audio `FILE`",
				},
				cli.StringFlag{
					Name:  "message, m",
					Usage: " text `MESSAGE`",
				},
				cli.Uint64Flag{
					Name:  "satoshis, s",
					Value: 1000,
					Usage: " attached value `SATS`",
				},
				cli.BoolFlag{
					Name:  "self",
					Usage: " address the voicemail to this wallet",
				},
			},
			Action: runSend,
		},
		{
			Name:  "list",
			Usage: "list a basket",
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "basket, b",
					Value: "inbox",
					Usage: " `BASKET` [inbox|sent|self]",
				},
				cli.StringFlag{
					Name:  "sort",
					Value: "time",
					Usage: " sort `FIELD` [time|value]",
				},
				cli.BoolFlag{
					Name:  "desc",
					Usage: " descending order",
				},
				cli.StringFlag{
					Name:  "save",
					Usage: " write each audio field into `DIR`",
				},
			},
			Action: runList,
		},
		{
			Name:      "redeem",
			Usage:     "spend a voicemail back into the wallet",
			ArgsUsage: "TXID.INDEX",
			Action:    runRedeem,
		},
		{
			Name:  "sync",
			Usage: "import notified voicemail and acknowledge it",
			Flags: []cli.Flag{
				cli.BoolFlag{
					Name:  "watch",
					Usage: " keep polling until interrupted",
				},
			},
			Action: runSync,
		},
		{
			Name:  "contacts",
			Usage: "manage encrypted contacts",
			Subcommands: []cli.Command{
				{
					Name:      "add",
					Usage:     "add a contact",
					ArgsUsage: "NAME ADDRESS",
					Action:    runContactsAdd,
				},
				{
					Name:   "list",
					Usage:  "list contacts by name",
					Action: runContactsList,
				},
				{
					Name:      "forget",
					Usage:     "spend a contact token",
					ArgsUsage: "TXID.INDEX",
					Action:    runContactsForget,
				},
			},
		},
	}

	app.Before = func(c *cli.Context) error {
		c.App.Metadata = map[string]interface{}{
			"config": &metadata{
				dataDir:  c.GlobalString("datadir"),
				password: c.GlobalString("password"),
				w:        c.App.Writer,
				e:        c.App.ErrWriter,
			},
		}
		return nil
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "voicemail: %s\n", err)
		os.Exit(1)
	}
}
