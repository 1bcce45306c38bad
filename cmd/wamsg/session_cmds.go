package main

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/wamsg/internal/wa"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var unlinkCommand = &cli.Command{
	Name:   "unlink",
	Usage:  "Log out and delete the session's local credentials and cache",
	Action: cmdUnlink,
}

var statusCommand = &cli.Command{
	Name:   "status",
	Usage:  "Show link state and cache counts for the session",
	Action: cmdStatus,
}

var syncCommand = &cli.Command{
	Name:  "sync",
	Usage: "Connect and pull message history into the local cache",
	Flags: []cli.Flag{
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "how long to wait for history sync to complete",
			Value: 2 * time.Minute,
		},
	},
	Action: cmdSync,
}

func cmdUnlink(ctx *cli.Context) error {
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

	if err := handles.Controller.Unlink(ctx.Context); err != nil {
		return err
	}
	fmt.Printf("Session %q unlinked. Credentials and cache removed.\n", name)
	return nil
}

type statusOutput struct {
	Session  string `json:"session"`
	Linked   bool   `json:"linked"`
	Phone    string `json:"phone,omitempty"`
	Messages int    `json:"messages"`
	Chats    int    `json:"chats"`
	Contacts int    `json:"contacts"`
	LastSync string `json:"lastMessageTime,omitempty"`
}

func cmdStatus(ctx *cli.Context) error {
	name, err := activeSession(ctx)
	if err != nil {
		return err
	}

	out := statusOutput{Session: name}
	if requireLinked(name) == nil {
		adapter, err := wa.NewAdapter(context.Background(), name, zap.NewNop())
		if err != nil {
			return err
		}
		out.Linked = adapter.IsLoggedIn()
		out.Phone = adapter.PhoneNumber()
	}

	store := loadCacheStore(name)
	out.Messages = store.MessageCount()
	out.Chats = store.ChatCount()
	out.Contacts = len(store.Contacts)
	var latest int64
	for _, c := range store.Chats {
		if c.LastMessageTime > latest {
			latest = c.LastMessageTime
		}
	}
	if latest > 0 {
		out.LastSync = formatTime(latest)
	}

	if ctx.Bool("json") {
		return outputJSON(out)
	}
	fmt.Printf("Session:  %s\n", out.Session)
	if out.Linked {
		fmt.Printf("Linked:   yes (+%s)\n", out.Phone)
	} else {
		fmt.Println("Linked:   no")
	}
	fmt.Printf("Messages: %d\n", out.Messages)
	fmt.Printf("Chats:    %d\n", out.Chats)
	fmt.Printf("Contacts: %d\n", out.Contacts)
	if out.LastSync != "" {
		fmt.Printf("Latest:   %s\n", out.LastSync)
	}
	return nil
}

func cmdSync(ctx *cli.Context) error {
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

	fmt.Println("Connecting...")
	if err := handles.Controller.Connect(ctx.Context, 0); err != nil {
		return err
	}

	fmt.Println("Syncing message history...")
	complete := handles.Controller.WaitForSync(ctx.Duration("timeout"))
	handles.Controller.ReconcileGroups(ctx.Context)

	msgs, chats := handles.Controller.Counters()
	if ctx.Bool("json") {
		return outputJSON(map[string]any{
			"complete": complete,
			"messages": msgs,
			"chats":    chats,
		})
	}
	if complete {
		fmt.Printf("Sync complete: %d new messages, %d chats updated.\n", msgs, chats)
	} else {
		fmt.Printf("Timed out waiting for sync; ingested %d messages, %d chats so far.\n", msgs, chats)
	}
	return nil
}
