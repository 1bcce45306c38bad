package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// maxChatMessages bounds each per-chat list. The cache is a recency
// window per conversation, not a full archive.
const maxChatMessages = 1000

const groupSuffix = "@g.us"

// Message is a normalized, persisted record of one message. Immutable
// once stored except for SenderName, which may be overwritten by a
// newer resolution.
type Message struct {
	ID         string `json:"id"`
	ChatJID    string `json:"chatId"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName,omitempty"`
	Timestamp  int64  `json:"timestamp"`
	Body       string `json:"body"`
	FromMe     bool   `json:"isFromMe"`
	QuotedID   string `json:"quotedMessageId,omitempty"`
	QuotedBody string `json:"quotedBody,omitempty"`
	HasMedia   bool   `json:"hasMedia,omitempty"`
	MediaType  string `json:"mediaType,omitempty"`
}

// Chat is the cached metadata for one conversation.
type Chat struct {
	Name            string `json:"name"`
	IsGroup         bool   `json:"isGroup"`
	LastMessageTime int64  `json:"lastMessageTime"`
}

// Store is the in-memory snapshot of the on-disk cache file.
type Store struct {
	Messages map[string][]Message `json:"messages"`
	Chats    map[string]Chat      `json:"chats"`
	Contacts map[string]string    `json:"contacts"`
}

// New returns an empty store.
func New() *Store {
	return &Store{
		Messages: make(map[string][]Message),
		Chats:    make(map[string]Chat),
		Contacts: make(map[string]string),
	}
}

// Load reads the cache snapshot from path. A missing or unparsable
// file yields an empty store: the cache is reconstructible from the
// server, so corruption is never worth failing a command over.
func Load(path string) *Store {
	data, err := os.ReadFile(path)
	if err != nil {
		return New()
	}
	var s Store
	if err := json.Unmarshal(data, &s); err != nil {
		return New()
	}
	if s.Messages == nil {
		s.Messages = make(map[string][]Message)
	}
	if s.Chats == nil {
		s.Chats = make(map[string]Chat)
	}
	if s.Contacts == nil {
		s.Contacts = make(map[string]string)
	}
	return &s
}

// Save serializes the full snapshot and overwrites the file at path.
func (s *Store) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encode cache: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write cache: %w", err)
	}
	return nil
}

// AddMessage appends m to its chat's list unless a message with the
// same ID is already present (dedup is per chat; message IDs are not
// globally unique). The list is kept sorted ascending by timestamp and
// trimmed oldest-first to maxChatMessages. A known chat's
// LastMessageTime advances monotonically; an unknown chat id does NOT
// get a chat entry here — those come only from chat metadata events.
// Reports whether the message was actually added.
func (s *Store) AddMessage(m Message) bool {
	msgs := s.Messages[m.ChatJID]
	for _, existing := range msgs {
		if existing.ID == m.ID {
			return false
		}
	}

	msgs = append(msgs, m)
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp < msgs[j].Timestamp
	})
	if len(msgs) > maxChatMessages {
		msgs = msgs[len(msgs)-maxChatMessages:]
	}
	s.Messages[m.ChatJID] = msgs

	if chat, ok := s.Chats[m.ChatJID]; ok && m.Timestamp > chat.LastMessageTime {
		chat.LastMessageTime = m.Timestamp
		s.Chats[m.ChatJID] = chat
	}
	return true
}

// UpsertChat creates or updates a chat entry. IsGroup is derived from
// the JID shape on creation and never re-derived; an empty name leaves
// any existing name in place; LastMessageTime only moves forward.
func (s *Store) UpsertChat(jid, name string, lastMessageTime int64) {
	chat, ok := s.Chats[jid]
	if !ok {
		chat = Chat{Name: jid, IsGroup: IsGroupJID(jid)}
	}
	if name != "" {
		chat.Name = name
	}
	if lastMessageTime > chat.LastMessageTime {
		chat.LastMessageTime = lastMessageTime
	}
	s.Chats[jid] = chat
}

// UpsertContact records a display name for a sender. Last write wins.
func (s *Store) UpsertContact(jid, name string) {
	if name == "" {
		return
	}
	s.Contacts[NormalizeContactID(jid)] = name
}

// ResolveName looks up the display name for a sender JID. Returns ""
// when unknown.
func (s *Store) ResolveName(jid string) string {
	return s.Contacts[NormalizeContactID(jid)]
}

// MessageCount returns the total number of cached messages.
func (s *Store) MessageCount() int {
	n := 0
	for _, msgs := range s.Messages {
		n += len(msgs)
	}
	return n
}

// ChatCount returns the number of known chats.
func (s *Store) ChatCount() int {
	return len(s.Chats)
}

// ChatJIDs returns all chat ids that have cached messages, sorted, so
// scans over the store are deterministic.
func (s *Store) ChatJIDs() []string {
	jids := make([]string, 0, len(s.Messages))
	for jid := range s.Messages {
		jids = append(jids, jid)
	}
	sort.Strings(jids)
	return jids
}

// IsGroupJID reports whether a chat id is a group conversation. Group
// JIDs carry the g.us server suffix; everything else is a DM.
func IsGroupJID(jid string) bool {
	return strings.HasSuffix(jid, groupSuffix)
}

// NormalizeContactID strips the domain suffix and any device part from
// a JID, leaving the bare user identifier used as the contact key.
func NormalizeContactID(jid string) string {
	if at := strings.Index(jid, "@"); at >= 0 {
		jid = jid[:at]
	}
	if colon := strings.Index(jid, ":"); colon >= 0 {
		jid = jid[:colon]
	}
	return jid
}
