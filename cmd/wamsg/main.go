package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:    "wamsg",
		Usage:   "Link a WhatsApp account and browse cached messages offline",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "session",
				Usage: "session name (overrides config default)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "machine-readable JSON output",
			},
		},
		Commands: []*cli.Command{
			linkCommand,
			unlinkCommand,
			statusCommand,
			syncCommand,
			chatsCommand,
			groupsCommand,
			messagesCommand,
			searchCommand,
			sendCommand,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
