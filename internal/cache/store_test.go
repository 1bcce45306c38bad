package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestAddMessageIdempotent(t *testing.T) {
	s := New()
	msg := Message{ID: "m1", ChatJID: "123@s.whatsapp.net", Body: "hello", Timestamp: 1000}

	if !s.AddMessage(msg) {
		t.Fatal("first AddMessage returned false")
	}
	if s.AddMessage(msg) {
		t.Error("second AddMessage with same id returned true")
	}
	if got := len(s.Messages["123@s.whatsapp.net"]); got != 1 {
		t.Errorf("got %d messages, want 1", got)
	}
}

func TestAddMessageSameIDDifferentChats(t *testing.T) {
	// Message ids are only unique within a chat.
	s := New()
	s.AddMessage(Message{ID: "m1", ChatJID: "a@s.whatsapp.net", Body: "one", Timestamp: 1})
	if !s.AddMessage(Message{ID: "m1", ChatJID: "b@s.whatsapp.net", Body: "two", Timestamp: 2}) {
		t.Error("same id in a different chat was rejected")
	}
	if s.MessageCount() != 2 {
		t.Errorf("MessageCount = %d, want 2", s.MessageCount())
	}
}

func TestAddMessageKeepsAscendingOrder(t *testing.T) {
	s := New()
	for _, ts := range []int64{3000, 1000, 5000, 2000, 4000} {
		s.AddMessage(Message{ID: fmt.Sprintf("m%d", ts), ChatJID: "c@s.whatsapp.net", Body: "x", Timestamp: ts})
	}

	msgs := s.Messages["c@s.whatsapp.net"]
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp < msgs[i-1].Timestamp {
			t.Fatalf("messages out of order at %d: %d < %d", i, msgs[i].Timestamp, msgs[i-1].Timestamp)
		}
	}
}

func TestAddMessageEvictsOldest(t *testing.T) {
	s := New()
	for i := 0; i < 1005; i++ {
		s.AddMessage(Message{ID: fmt.Sprintf("m%d", i), ChatJID: "c@g.us", Body: "x", Timestamp: int64(i * 1000)})
	}

	msgs := s.Messages["c@g.us"]
	if len(msgs) != 1000 {
		t.Fatalf("got %d messages, want 1000", len(msgs))
	}
	// The 5 oldest must be gone.
	if msgs[0].Timestamp != 5000 {
		t.Errorf("oldest kept timestamp = %d, want 5000", msgs[0].Timestamp)
	}
	if msgs[len(msgs)-1].Timestamp != 1004000 {
		t.Errorf("newest timestamp = %d, want 1004000", msgs[len(msgs)-1].Timestamp)
	}
}

func TestAddMessageUpdatesKnownChat(t *testing.T) {
	s := New()
	s.UpsertChat("c@g.us", "Team", 1000)

	s.AddMessage(Message{ID: "m1", ChatJID: "c@g.us", Body: "hi", Timestamp: 5000})
	if got := s.Chats["c@g.us"].LastMessageTime; got != 5000 {
		t.Errorf("LastMessageTime = %d, want 5000", got)
	}

	// Older message must not move it backwards.
	s.AddMessage(Message{ID: "m2", ChatJID: "c@g.us", Body: "old", Timestamp: 2000})
	if got := s.Chats["c@g.us"].LastMessageTime; got != 5000 {
		t.Errorf("LastMessageTime = %d after old message, want 5000", got)
	}
}

func TestAddMessageDoesNotCreateChat(t *testing.T) {
	s := New()
	s.AddMessage(Message{ID: "m1", ChatJID: "stranger@s.whatsapp.net", Body: "hi", Timestamp: 1000})
	if _, ok := s.Chats["stranger@s.whatsapp.net"]; ok {
		t.Error("chat entry created as a side effect of a message")
	}
}

func TestUpsertChat(t *testing.T) {
	s := New()
	s.UpsertChat("123@g.us", "", 0)

	chat := s.Chats["123@g.us"]
	if !chat.IsGroup {
		t.Error("IsGroup = false for @g.us jid")
	}
	if chat.Name != "123@g.us" {
		t.Errorf("Name = %q, want jid fallback", chat.Name)
	}

	s.UpsertChat("123@g.us", "Team Chat", 9000)
	chat = s.Chats["123@g.us"]
	if chat.Name != "Team Chat" {
		t.Errorf("Name = %q, want Team Chat", chat.Name)
	}
	if chat.LastMessageTime != 9000 {
		t.Errorf("LastMessageTime = %d, want 9000", chat.LastMessageTime)
	}

	// Empty name must not clobber a known one.
	s.UpsertChat("123@g.us", "", 1000)
	chat = s.Chats["123@g.us"]
	if chat.Name != "Team Chat" {
		t.Errorf("Name = %q after empty upsert, want Team Chat", chat.Name)
	}
	if chat.LastMessageTime != 9000 {
		t.Errorf("LastMessageTime = %d moved backwards", chat.LastMessageTime)
	}
}

func TestContacts(t *testing.T) {
	s := New()
	s.UpsertContact("5511999000111@s.whatsapp.net", "Alice")

	if got := s.ResolveName("5511999000111@s.whatsapp.net"); got != "Alice" {
		t.Errorf("ResolveName = %q, want Alice", got)
	}
	// Device suffix variants resolve to the same contact.
	if got := s.ResolveName("5511999000111:3@s.whatsapp.net"); got != "Alice" {
		t.Errorf("ResolveName with device suffix = %q, want Alice", got)
	}

	// Last write wins.
	s.UpsertContact("5511999000111@s.whatsapp.net", "Alice B")
	if got := s.ResolveName("5511999000111@s.whatsapp.net"); got != "Alice B" {
		t.Errorf("ResolveName = %q, want Alice B", got)
	}

	// Empty names are ignored.
	s.UpsertContact("5511999000111@s.whatsapp.net", "")
	if got := s.ResolveName("5511999000111@s.whatsapp.net"); got != "Alice B" {
		t.Errorf("ResolveName = %q after empty upsert, want Alice B", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")

	s := New()
	s.UpsertChat("g1@g.us", "Group One", 0)
	s.UpsertChat("111@s.whatsapp.net", "Bob", 0)
	s.UpsertContact("111@s.whatsapp.net", "Bob")
	s.AddMessage(Message{ID: "m1", ChatJID: "g1@g.us", Sender: "222@s.whatsapp.net", SenderName: "Carol", Body: "hello", Timestamp: 1000})
	s.AddMessage(Message{ID: "m2", ChatJID: "g1@g.us", Sender: "222@s.whatsapp.net", Body: "", HasMedia: true, MediaType: "image", Timestamp: 2000})
	s.AddMessage(Message{ID: "m3", ChatJID: "111@s.whatsapp.net", Sender: "111@s.whatsapp.net", Body: "hey", FromMe: false, Timestamp: 3000, QuotedID: "m1", QuotedBody: "hello"})

	if err := s.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded := Load(path)
	if loaded.MessageCount() != 3 {
		t.Fatalf("MessageCount = %d, want 3", loaded.MessageCount())
	}
	if loaded.ChatCount() != 2 {
		t.Fatalf("ChatCount = %d, want 2", loaded.ChatCount())
	}
	if got := loaded.Chats["g1@g.us"]; got.Name != "Group One" || !got.IsGroup {
		t.Errorf("chat g1@g.us = %+v", got)
	}
	if got := loaded.Messages["g1@g.us"][1]; !got.HasMedia || got.MediaType != "image" {
		t.Errorf("media message = %+v", got)
	}
	if got := loaded.Messages["111@s.whatsapp.net"][0]; got.QuotedID != "m1" || got.QuotedBody != "hello" {
		t.Errorf("quoted fields = %+v", got)
	}
	if got := loaded.ResolveName("111@s.whatsapp.net"); got != "Bob" {
		t.Errorf("ResolveName = %q, want Bob", got)
	}
}

func TestLoadMissingFile(t *testing.T) {
	s := Load(filepath.Join(t.TempDir(), "nope.json"))
	if s == nil || s.MessageCount() != 0 || s.ChatCount() != 0 {
		t.Errorf("missing file did not yield empty store: %+v", s)
	}
	// Maps must be usable immediately.
	s.AddMessage(Message{ID: "m1", ChatJID: "c@g.us", Body: "x", Timestamp: 1})
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	s := Load(path)
	if s.MessageCount() != 0 {
		t.Errorf("corrupt file did not yield empty store")
	}
}

func TestIsGroupJID(t *testing.T) {
	tests := []struct {
		jid  string
		want bool
	}{
		{"120363123456@g.us", true},
		{"g1@g.us", true},
		{"5511999000111@s.whatsapp.net", false},
		{"status@broadcast", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := IsGroupJID(tt.jid); got != tt.want {
			t.Errorf("IsGroupJID(%q) = %v, want %v", tt.jid, got, tt.want)
		}
	}
}

func TestNormalizeContactID(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"5511999000111@s.whatsapp.net", "5511999000111"},
		{"5511999000111:2@s.whatsapp.net", "5511999000111"},
		{"120363123456@g.us", "120363123456"},
		{"bare", "bare"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeContactID(tt.in); got != tt.want {
			t.Errorf("NormalizeContactID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
