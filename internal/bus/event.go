package bus

import "time"

// Well-known event kinds. Subscribers filter by namespace prefix, so
// everything the WhatsApp layer emits lives under "wa." and everything
// the session lifecycle emits lives under "session.".
const (
	KindMessage      = "wa.message"
	KindHistoryBatch = "wa.history_batch"
	KindHistoryDone  = "wa.history_done"
	KindChatUpsert   = "wa.chat_upsert"
	KindContactBatch = "wa.contact_batch"

	KindStatusChanged = "session.status_changed"
	KindLoggedOut     = "session.logged_out"
	KindQRCode        = "session.qr_code"
)

// Event is a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
