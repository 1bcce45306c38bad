package wa

import (
	"time"

	"github.com/matheus3301/wamsg/internal/bus"
	"github.com/matheus3301/wamsg/internal/status"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
)

// EventHandler processes whatsmeow events, drives the state machine,
// and publishes parsed domain events on the bus. It does NOT touch the
// cache — the ingestion engine subscribes to the bus independently, so
// the cache keeps a single writer.
type EventHandler struct {
	bus     *bus.Bus
	machine *status.Machine
	logger  *zap.Logger
}

// NewEventHandler creates a new event handler.
func NewEventHandler(b *bus.Bus, machine *status.Machine, logger *zap.Logger) *EventHandler {
	return &EventHandler{
		bus:     b,
		machine: machine,
		logger:  logger,
	}
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.OfflineSyncCompleted:
		h.publish(bus.KindHistoryDone, nil)
	case *events.PushName:
		h.publish(bus.KindContactBatch, []ContactEntry{{
			JID:  evt.JID.ToNonAD().String(),
			Name: evt.NewPushName,
		}})
	case *events.Contact:
		name := evt.Action.GetFullName()
		if name == "" {
			name = evt.Action.GetFirstName()
		}
		if name != "" {
			h.publish(bus.KindContactBatch, []ContactEntry{{
				JID:  evt.JID.ToNonAD().String(),
				Name: name,
			}})
		}
	case *events.GroupInfo:
		if evt.Name != nil && evt.Name.Name != "" {
			h.publish(bus.KindChatUpsert, ChatUpsert{
				JID:  evt.JID.String(),
				Name: evt.Name.Name,
			})
		}
	case *events.JoinedGroup:
		h.publish(bus.KindChatUpsert, ChatUpsert{
			JID:  evt.JID.String(),
			Name: evt.Name,
		})
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		if h.machine.Current() == status.AuthRequired {
			_ = h.machine.Transition(status.Connecting)
		}
		_ = h.machine.Transition(status.Syncing)
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		_ = h.machine.Transition(status.Closed)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		_ = h.machine.Transition(status.AuthRequired)
		h.publish(bus.KindLoggedOut, evt.Reason.String())
	}
}

func (h *EventHandler) publish(kind string, payload any) {
	h.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	if h.machine.Current() == status.Syncing {
		_ = h.machine.Transition(status.Ready)
	}

	parsed := ParseLiveMessage(evt)
	if parsed == nil {
		return
	}
	h.publish(bus.KindMessage, parsed)
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	var chats []ChatUpsert
	var msgs []*ParsedMessage
	for _, conv := range data.GetConversations() {
		chatJID := NormalizeJID(conv.GetID())
		if chatJID == "" {
			continue
		}
		chats = append(chats, ChatUpsert{
			JID:             chatJID,
			Name:            conv.GetName(),
			LastMessageTime: int64(conv.GetConversationTimestamp()) * 1000,
		})
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			parsed := ParseHistoryMessage(
				chatJID,
				wmsg.GetMessage(),
				wmsg.GetKey().GetID(),
				wmsg.GetKey().GetParticipant(),
				wmsg.GetPushName(),
				wmsg.GetKey().GetFromMe(),
				int64(wmsg.GetMessageTimestamp())*1000,
			)
			if parsed != nil {
				msgs = append(msgs, parsed)
			}
		}
	}

	var contacts []ContactEntry
	for _, pn := range data.GetPushnames() {
		if pn.GetID() != "" && pn.GetPushname() != "" {
			contacts = append(contacts, ContactEntry{JID: pn.GetID(), Name: pn.GetPushname()})
		}
	}

	for _, c := range chats {
		h.publish(bus.KindChatUpsert, c)
	}
	if len(contacts) > 0 {
		h.publish(bus.KindContactBatch, contacts)
	}
	if len(msgs) > 0 {
		h.logger.Info("history sync batch parsed",
			zap.Int("messages", len(msgs)),
			zap.Int("chats", len(chats)),
			zap.Uint32("progress", data.GetProgress()),
		)
		h.publish(bus.KindHistoryBatch, msgs)
	}
	if data.GetProgress() >= 100 {
		h.publish(bus.KindHistoryDone, nil)
	}
}
