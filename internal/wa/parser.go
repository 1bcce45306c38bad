package wa

import (
	"strings"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// SelfSender is the sentinel sender id for self-authored messages in
// direct chats.
const SelfSender = "me"

// ParsedMessage is a normalized message ready for ingestion. PushName
// travels alongside so the ingestion engine can learn display names
// from live traffic; it is not itself a stored field.
type ParsedMessage struct {
	ChatJID    string
	MsgID      string
	Sender     string
	PushName   string
	Body       string
	MediaType  string
	QuotedID   string
	QuotedBody string
	FromMe     bool
	Timestamp  int64
}

// HasMedia reports whether the message carries a media payload.
func (p *ParsedMessage) HasMedia() bool {
	return p.MediaType != ""
}

// ChatUpsert is the payload for chat metadata events.
type ChatUpsert struct {
	JID             string
	Name            string
	LastMessageTime int64
}

// ContactEntry is one learned display name.
type ContactEntry struct {
	JID  string
	Name string
}

// ParseLiveMessage normalizes a live whatsmeow message event. Returns
// nil when the event has no usable id/chat or nothing worth storing
// (empty body and no media).
func ParseLiveMessage(evt *events.Message) *ParsedMessage {
	chatJID := NormalizeJID(evt.Info.Chat.String())
	senderJID := NormalizeJID(evt.Info.Sender.String())
	return parse(
		evt.Message,
		chatJID,
		evt.Info.ID,
		senderJID,
		evt.Info.PushName,
		evt.Info.IsFromMe,
		evt.Info.Timestamp.UnixMilli(),
	)
}

// ParseHistoryMessage normalizes one message from a history sync
// conversation. Same drop rules as ParseLiveMessage.
func ParseHistoryMessage(chatJID string, msg *waE2E.Message, id, participant, pushName string, fromMe bool, timestampMS int64) *ParsedMessage {
	return parse(msg, NormalizeJID(chatJID), id, NormalizeJID(participant), pushName, fromMe, timestampMS)
}

func parse(msg *waE2E.Message, chatJID, id, senderJID, pushName string, fromMe bool, timestampMS int64) *ParsedMessage {
	if id == "" || chatJID == "" {
		return nil
	}

	body := extractBody(msg)
	mediaType := detectMediaType(msg)
	if body == "" && mediaType == "" {
		return nil
	}

	p := &ParsedMessage{
		ChatJID:   chatJID,
		MsgID:     id,
		Sender:    deriveSender(chatJID, senderJID, fromMe),
		PushName:  pushName,
		Body:      body,
		MediaType: mediaType,
		FromMe:    fromMe,
		Timestamp: timestampMS,
	}

	if ctx := contextInfo(msg); ctx != nil && ctx.GetStanzaID() != "" {
		p.QuotedID = ctx.GetStanzaID()
		p.QuotedBody = extractBody(ctx.GetQuotedMessage())
		if p.QuotedBody == "" {
			p.QuotedBody = "[Media]"
		}
	}

	return p
}

// deriveSender picks the stored sender id: the participant for group
// chats, the self sentinel for own messages in direct chats, otherwise
// the chat id itself.
func deriveSender(chatJID, senderJID string, fromMe bool) string {
	if strings.HasSuffix(chatJID, "@"+types.GroupServer) {
		return senderJID
	}
	if fromMe {
		return SelfSender
	}
	return chatJID
}

// extractBody renders a human-readable body from the message content
// variants. First match wins; unrecognized content yields "".
func extractBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil && ext.GetText() != "" {
		return ext.GetText()
	}
	if img := msg.GetImageMessage(); img != nil {
		return tagged("[Image]", img.GetCaption())
	}
	if vid := msg.GetVideoMessage(); vid != nil {
		return tagged("[Video]", vid.GetCaption())
	}
	if doc := msg.GetDocumentMessage(); doc != nil {
		return tagged("[Document]", doc.GetFileName())
	}
	if msg.GetAudioMessage() != nil {
		return "[Audio]"
	}
	if msg.GetStickerMessage() != nil {
		return "[Sticker]"
	}
	if contact := msg.GetContactMessage(); contact != nil {
		return "[Contact: " + contact.GetDisplayName() + "]"
	}
	if loc := msg.GetLocationMessage(); loc != nil {
		return "[Location: " + loc.GetName() + "]"
	}
	if reaction := msg.GetReactionMessage(); reaction != nil {
		return "[Reaction: " + reaction.GetText() + "]"
	}
	if poll := msg.GetPollCreationMessage(); poll != nil {
		return "[Poll: " + poll.GetName() + "]"
	}
	return ""
}

func tagged(tag, extra string) string {
	if extra == "" {
		return tag
	}
	return tag + " " + extra
}

func detectMediaType(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	switch {
	case msg.GetImageMessage() != nil:
		return "image"
	case msg.GetVideoMessage() != nil:
		return "video"
	case msg.GetAudioMessage() != nil:
		return "audio"
	case msg.GetDocumentMessage() != nil:
		return "document"
	case msg.GetStickerMessage() != nil:
		return "sticker"
	default:
		return ""
	}
}

// contextInfo returns the reply context of the content variant carrying
// one, if any.
func contextInfo(msg *waE2E.Message) *waE2E.ContextInfo {
	if msg == nil {
		return nil
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil && ext.GetContextInfo() != nil {
		return ext.GetContextInfo()
	}
	if img := msg.GetImageMessage(); img != nil && img.GetContextInfo() != nil {
		return img.GetContextInfo()
	}
	if vid := msg.GetVideoMessage(); vid != nil && vid.GetContextInfo() != nil {
		return vid.GetContextInfo()
	}
	if doc := msg.GetDocumentMessage(); doc != nil && doc.GetContextInfo() != nil {
		return doc.GetContextInfo()
	}
	return nil
}

// NormalizeJID strips device and agent suffixes from a JID string.
// History sync and live messages otherwise produce different JIDs for
// the same contact (e.g. "5511999:0@s.whatsapp.net" vs
// "5511999@s.whatsapp.net"), duplicating chat entries.
func NormalizeJID(jid string) string {
	if jid == "" {
		return ""
	}
	parsed, err := types.ParseJID(jid)
	if err != nil {
		return jid
	}
	return parsed.ToNonAD().String()
}
