package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/matheus3301/wamsg/internal/cache"
	"github.com/urfave/cli/v2"
)

var chatsCommand = &cli.Command{
	Name:  "chats",
	Usage: "List cached chats, most recently active first",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "groups", Usage: "only group chats"},
		&cli.BoolFlag{Name: "dms", Usage: "only direct chats"},
	},
	Action: cmdChats,
}

var groupsCommand = &cli.Command{
	Name:   "groups",
	Usage:  "List cached group chats (shorthand for 'chats --groups')",
	Action: cmdGroups,
}

var messagesCommand = &cli.Command{
	Name:   "messages",
	Usage:  "List cached messages, newest first",
	Flags:  append(filterFlags(), liveFlags()...),
	Action: cmdMessages,
}

var searchCommand = &cli.Command{
	Name:      "search",
	Usage:     "Search cached message bodies",
	ArgsUsage: "QUERY",
	Flags:     append(filterFlags(), liveFlags()...),
	Action:    cmdSearch,
}

func filterFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "chat", Usage: "chat JID or name substring"},
		&cli.StringFlag{Name: "sender", Usage: "sender JID or name substring"},
		&cli.StringFlag{Name: "search", Usage: "body substring (case-insensitive)"},
		&cli.StringFlag{Name: "since", Usage: "lower time bound: 12h, 7d, 2w, 1m or 2006-01-02"},
		&cli.StringFlag{Name: "until", Usage: "upper time bound, same formats as --since"},
		&cli.IntFlag{Name: "limit", Usage: "max results", Value: 50},
		&cli.BoolFlag{Name: "groups", Usage: "only group chats"},
		&cli.BoolFlag{Name: "dms", Usage: "only direct chats"},
	}
}

func liveFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{Name: "live", Usage: "connect and sync before reading"},
		&cli.DurationFlag{Name: "timeout", Usage: "sync wait with --live", Value: 0},
	}
}

type chatRow struct {
	JID             string `json:"jid"`
	Name            string `json:"name"`
	IsGroup         bool   `json:"isGroup"`
	LastMessageTime int64  `json:"lastMessageTime"`
	Messages        int    `json:"messages"`
}

func cmdChats(ctx *cli.Context) error {
	return listChats(ctx, ctx.Bool("groups"), ctx.Bool("dms"))
}

func cmdGroups(ctx *cli.Context) error {
	return listChats(ctx, true, false)
}

func listChats(ctx *cli.Context, groupsOnly, dmsOnly bool) error {
	name, err := activeSession(ctx)
	if err != nil {
		return err
	}
	if err := requireLinked(name); err != nil {
		return err
	}
	if groupsOnly && dmsOnly {
		return fmt.Errorf("--groups and --dms are mutually exclusive")
	}

	store := loadCacheStore(name)
	var rows []chatRow
	for jid, c := range store.Chats {
		if groupsOnly && !c.IsGroup {
			continue
		}
		if dmsOnly && c.IsGroup {
			continue
		}
		rows = append(rows, chatRow{
			JID:             jid,
			Name:            c.Name,
			IsGroup:         c.IsGroup,
			LastMessageTime: c.LastMessageTime,
			Messages:        len(store.Messages[jid]),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].LastMessageTime != rows[j].LastMessageTime {
			return rows[i].LastMessageTime > rows[j].LastMessageTime
		}
		return rows[i].JID < rows[j].JID
	})

	if ctx.Bool("json") {
		if rows == nil {
			rows = []chatRow{}
		}
		return outputJSON(rows)
	}
	if len(rows) == 0 {
		fmt.Println("No chats cached. Run 'wamsg sync' first.")
		return nil
	}
	for _, r := range rows {
		kind := "dm"
		if r.IsGroup {
			kind = "group"
		}
		fmt.Printf("%-16s  %-5s  %4d msgs  %-30s  %s\n",
			formatTime(r.LastMessageTime), kind, r.Messages, truncate(r.Name, 30), r.JID)
	}
	return nil
}

func buildFilter(ctx *cli.Context, search string) (cache.Filter, error) {
	if ctx.Bool("groups") && ctx.Bool("dms") {
		return cache.Filter{}, fmt.Errorf("--groups and --dms are mutually exclusive")
	}
	kind := cache.KindAny
	if ctx.Bool("groups") {
		kind = cache.KindGroup
	} else if ctx.Bool("dms") {
		kind = cache.KindDM
	}
	since, err := parseTimeFlag(ctx.String("since"))
	if err != nil {
		return cache.Filter{}, err
	}
	until, err := parseTimeFlag(ctx.String("until"))
	if err != nil {
		return cache.Filter{}, err
	}
	return cache.Filter{
		Kind:   kind,
		Chat:   ctx.String("chat"),
		Sender: ctx.String("sender"),
		Search: search,
		Since:  since,
		Until:  until,
		Limit:  ctx.Int("limit"),
	}, nil
}

func cmdMessages(ctx *cli.Context) error {
	return runFilter(ctx, ctx.String("search"))
}

func cmdSearch(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("you must provide a search query")
	}
	query := strings.Join(ctx.Args().Slice(), " ")
	return runFilter(ctx, query)
}

func runFilter(ctx *cli.Context, search string) error {
	name, err := activeSession(ctx)
	if err != nil {
		return err
	}
	if err := requireLinked(name); err != nil {
		return err
	}
	filter, err := buildFilter(ctx, search)
	if err != nil {
		return err
	}

	if !ctx.Bool("live") {
		store := loadCacheStore(name)
		return renderMessages(ctx, store, filter.Apply(store))
	}

	handles, fxApp, err := startLive(ctx, name)
	if err != nil {
		return err
	}
	defer stopLive(fxApp)

	if err := handles.Controller.Connect(ctx.Context, 0); err != nil {
		return err
	}
	timeout := ctx.Duration("timeout")
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	handles.Controller.WaitForSync(timeout)

	var renderErr error
	handles.Controller.View(func(s *cache.Store) {
		renderErr = renderMessages(ctx, s, filter.Apply(s))
	})
	return renderErr
}

func renderMessages(ctx *cli.Context, s *cache.Store, msgs []cache.Message) error {
	if ctx.Bool("json") {
		if msgs == nil {
			msgs = []cache.Message{}
		}
		return outputJSON(msgs)
	}
	if len(msgs) == 0 {
		fmt.Println("No matching messages.")
		return nil
	}
	for _, m := range msgs {
		chatLabel := m.ChatJID
		if c, ok := s.Chats[m.ChatJID]; ok && c.Name != "" {
			chatLabel = c.Name
		}
		sender := m.SenderName
		if sender == "" {
			sender = m.Sender
		}
		fmt.Printf("%s  [%s] %s: %s\n",
			formatTime(m.Timestamp), truncate(chatLabel, 24), truncate(sender, 20), m.Body)
		if m.QuotedBody != "" {
			fmt.Printf("%18sreply to: %s\n", "", truncate(m.QuotedBody, 60))
		}
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
