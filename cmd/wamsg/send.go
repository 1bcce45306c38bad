package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
)

var sendCommand = &cli.Command{
	Name:      "send",
	Usage:     "Send a text message",
	ArgsUsage: "RECIPIENT MESSAGE...",
	Description: "RECIPIENT is a chat JID (5511999@s.whatsapp.net, 1203...@g.us)\n" +
		"or a bare phone number with country code.",
	Action: cmdSend,
}

func cmdSend(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return fmt.Errorf("usage: wamsg send RECIPIENT MESSAGE...")
	}
	recipient := resolveRecipient(ctx.Args().Get(0))
	text := strings.Join(ctx.Args().Slice()[1:], " ")

	name, err := activeSession(ctx)
	if err != nil {
		return err
	}
	if err := requireLinked(name); err != nil {
		return err
	}

	handles, fxApp, err := startLive(ctx, name)
	if err != nil {
		return err
	}
	defer stopLive(fxApp)

	if err := handles.Controller.Connect(ctx.Context, 0); err != nil {
		return err
	}

	id, err := handles.Controller.Send(ctx.Context, recipient, text)
	if err != nil {
		return err
	}
	if ctx.Bool("json") {
		return outputJSON(map[string]string{"id": id, "to": recipient})
	}
	fmt.Printf("Sent to %s (id %s).\n", recipient, id)
	return nil
}

// resolveRecipient turns a bare phone number into a user JID; full JIDs
// pass through.
func resolveRecipient(arg string) string {
	if strings.Contains(arg, "@") {
		return arg
	}
	return strings.TrimPrefix(arg, "+") + "@s.whatsapp.net"
}
