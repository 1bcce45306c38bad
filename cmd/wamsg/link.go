package main

import (
	"fmt"
	"os"
	"time"

	"github.com/matheus3301/wamsg/internal/app"
	"github.com/matheus3301/wamsg/internal/wa"
	"github.com/mdp/qrterminal/v3"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"
)

var linkCommand = &cli.Command{
	Name:  "link",
	Usage: "Link a WhatsApp account by scanning a QR code",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "qr-file",
			Usage: "also write the QR code to a PNG file",
		},
		&cli.DurationFlag{
			Name:  "sync-timeout",
			Usage: "how long to wait for the initial history sync",
			Value: 2 * time.Minute,
		},
	},
	Action: cmdLink,
}

func cmdLink(ctx *cli.Context) error {
	name, err := activeSession(ctx)
	if err != nil {
		return err
	}

	handles, fxApp, err := startLive(ctx, name)
	if err != nil {
		return err
	}
	defer stopLive(fxApp)

	if handles.Controller.IsLinked() {
		fmt.Printf("Session %q is already linked to +%s.\n", name, handles.Controller.PhoneNumber())
		fmt.Println("Run 'wamsg unlink' first to link a different account.")
		return nil
	}

	events, err := handles.Adapter.StartQRAuth(ctx.Context, handles.Bus)
	if err != nil {
		return err
	}

	qrFile := ctx.String("qr-file")
	shown := false
	for evt := range events {
		switch evt.Type {
		case wa.AuthEventQRCode:
			if !shown {
				fmt.Println("Scan this QR code with WhatsApp on your phone")
				fmt.Println("(Settings > Linked Devices > Link a Device):")
				fmt.Println()
				shown = true
			} else {
				fmt.Println("QR code refreshed:")
			}
			qrterminal.GenerateHalfBlock(evt.QRCode, qrterminal.L, os.Stdout)
			if qrFile != "" {
				if err := qrcode.WriteFile(evt.QRCode, qrcode.Medium, 512, qrFile); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: failed to write %s: %v\n", qrFile, err)
				} else {
					fmt.Printf("QR code also written to %s\n", qrFile)
				}
			}
		case wa.AuthEventAuthenticated:
			fmt.Printf("Linked as +%s.\n", handles.Controller.PhoneNumber())
			return waitInitialSync(handles, ctx.Duration("sync-timeout"))
		case wa.AuthEventTimeout:
			return fmt.Errorf("QR code expired before it was scanned")
		default:
			return fmt.Errorf("linking failed: %s", evt.Message)
		}
	}
	return fmt.Errorf("linking aborted")
}

func waitInitialSync(handles *app.Handles, timeout time.Duration) error {
	fmt.Println("Syncing message history from phone...")
	complete := handles.Controller.WaitForSync(timeout)
	msgs, chats := handles.Controller.Counters()
	if !complete {
		fmt.Printf("Sync still running after %s; cached %d messages in %d chats so far.\n", timeout, msgs, chats)
		fmt.Println("Run 'wamsg sync' to pick up where it left off.")
		return nil
	}
	fmt.Printf("Done. Cached %d messages in %d chats.\n", msgs, chats)
	return nil
}
