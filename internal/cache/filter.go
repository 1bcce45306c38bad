package cache

import (
	"sort"
	"strings"
)

// Kind selects the chat kinds a filter matches.
type Kind int

const (
	KindAny Kind = iota
	KindGroup
	KindDM
)

// Filter is a set of predicates applied to the cache. Zero values mean
// "no constraint"; set predicates combine with AND semantics.
type Filter struct {
	Kind   Kind
	Chat   string // substring of the chat id, or case-insensitive substring of the chat name
	Sender string // substring of the sender id, or case-insensitive substring of the resolved name
	Search string // case-insensitive substring of the body
	Since  int64  // unix millis, inclusive; 0 = unbounded
	Until  int64  // unix millis, inclusive; 0 = unbounded
	Limit  int    // max results; <= 0 = unbounded
}

// Apply scans every chat's message list, collects messages matching all
// set predicates, and returns them newest-first, truncated to Limit.
// Chat-level predicates (kind, chat id/name) skip whole chats before
// any per-message work. The full scan is fine at the cache's bounded
// size; output order is deterministic for a given snapshot.
func (f Filter) Apply(s *Store) []Message {
	var out []Message
	for _, jid := range s.ChatJIDs() {
		if !f.matchChat(s, jid) {
			continue
		}
		for _, m := range s.Messages[jid] {
			if f.matchMessage(s, m) {
				out = append(out, m)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp > out[j].Timestamp
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func (f Filter) matchChat(s *Store, jid string) bool {
	switch f.Kind {
	case KindGroup:
		if !IsGroupJID(jid) {
			return false
		}
	case KindDM:
		if IsGroupJID(jid) {
			return false
		}
	}

	if f.Chat != "" {
		if strings.Contains(jid, f.Chat) {
			return true
		}
		chat, ok := s.Chats[jid]
		if !ok {
			// No chat record, so a name predicate cannot match.
			return false
		}
		return strings.Contains(strings.ToLower(chat.Name), strings.ToLower(f.Chat))
	}
	return true
}

func (f Filter) matchMessage(s *Store, m Message) bool {
	if f.Since > 0 && m.Timestamp < f.Since {
		return false
	}
	if f.Until > 0 && m.Timestamp > f.Until {
		return false
	}
	if f.Sender != "" {
		name := m.SenderName
		if name == "" {
			name = s.ResolveName(m.Sender)
		}
		if !strings.Contains(m.Sender, f.Sender) &&
			!strings.Contains(strings.ToLower(name), strings.ToLower(f.Sender)) {
			return false
		}
	}
	if f.Search != "" && !strings.Contains(strings.ToLower(m.Body), strings.ToLower(f.Search)) {
		return false
	}
	return true
}
