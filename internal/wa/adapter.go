package wa

import (
	"context"
	"fmt"

	"github.com/matheus3301/wamsg/internal/session"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wastore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	_ "github.com/mattn/go-sqlite3"
)

// GroupEntry is the reconcilable metadata of one joined group.
type GroupEntry struct {
	JID  string
	Name string
}

// Adapter wraps the whatsmeow client and manages the WhatsApp connection.
type Adapter struct {
	client    *whatsmeow.Client
	container *sqlstore.Container
	logger    *zap.Logger
	session   string
}

// SetFullHistorySync requests full on-phone history at the next
// pairing. Only takes effect for links made after the call.
func SetFullHistorySync(enabled bool) {
	wastore.DeviceProps.RequireFullSync = proto.Bool(enabled)
}

// NewAdapter creates a new WhatsApp adapter for the given session.
func NewAdapter(ctx context.Context, sessionName string, logger *zap.Logger) (*Adapter, error) {
	// Set device name shown on the phone's linked devices list.
	wastore.SetOSInfo("wamsg", [3]uint32{0, 1, 0})

	dbPath := session.SessionDBPath(sessionName)

	container, err := sqlstore.New(ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=on", dbPath),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create session store: %w", err)
	}

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get device store: %w", err)
	}

	client := whatsmeow.NewClient(deviceStore, nil)

	return &Adapter{
		client:    client,
		container: container,
		logger:    logger,
		session:   sessionName,
	}, nil
}

// Client returns the underlying whatsmeow client.
func (a *Adapter) Client() *whatsmeow.Client {
	return a.client
}

// IsLoggedIn returns whether the adapter has valid credentials.
func (a *Adapter) IsLoggedIn() bool {
	return a.client.Store.ID != nil
}

// Connect initiates the WhatsApp connection.
func (a *Adapter) Connect() error {
	a.logger.Info("connecting to WhatsApp")
	return a.client.Connect()
}

// Disconnect terminates the WhatsApp connection.
func (a *Adapter) Disconnect() {
	a.logger.Info("disconnecting from WhatsApp")
	a.client.Disconnect()
}

// Logout invalidates the session and removes credentials.
func (a *Adapter) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// RegisterEventHandler adds a handler for whatsmeow events.
func (a *Adapter) RegisterEventHandler(handler whatsmeow.EventHandler) {
	a.client.AddEventHandler(handler)
}

// SendText sends a text message to the given JID. Returns the server message ID.
func (a *Adapter) SendText(ctx context.Context, jid string, text string) (string, error) {
	to, err := types.ParseJID(jid)
	if err != nil {
		return "", fmt.Errorf("parse JID: %w", err)
	}
	resp, err := a.client.SendMessage(ctx, to, &waE2E.Message{
		Conversation: proto.String(text),
	})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}
	return resp.ID, nil
}

// GetQRChannel returns the QR channel for pairing. Must be called before Connect.
func (a *Adapter) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	if a.IsLoggedIn() {
		return nil, fmt.Errorf("already linked")
	}
	ch, err := a.client.GetQRChannel(ctx)
	if err != nil {
		return nil, fmt.Errorf("get QR channel: %w", err)
	}
	return ch, nil
}

// JoinedGroups enumerates the groups the account currently participates
// in, from the live server. Returns nil on failure; reconciliation is
// best-effort.
func (a *Adapter) JoinedGroups(ctx context.Context) []GroupEntry {
	groups, err := a.client.GetJoinedGroups(ctx)
	if err != nil {
		a.logger.Warn("failed to list joined groups", zap.Error(err))
		return nil
	}
	entries := make([]GroupEntry, 0, len(groups))
	for _, g := range groups {
		entries = append(entries, GroupEntry{
			JID:  g.JID.String(),
			Name: g.Name,
		})
	}
	return entries
}

// Contacts returns display names from the whatsmeow device store, used
// to seed the cache's contact table on connect.
func (a *Adapter) Contacts(ctx context.Context) []ContactEntry {
	allContacts, err := a.client.Store.Contacts.GetAllContacts(ctx)
	if err != nil {
		a.logger.Warn("failed to get contacts from device store", zap.Error(err))
		return nil
	}
	var contacts []ContactEntry
	for jid, info := range allContacts {
		name := info.FullName
		if name == "" {
			name = info.PushName
		}
		if name == "" {
			continue
		}
		contacts = append(contacts, ContactEntry{
			JID:  jid.ToNonAD().String(),
			Name: name,
		})
	}
	return contacts
}

// PhoneNumber returns the phone number from the device store, or empty string.
func (a *Adapter) PhoneNumber() string {
	if a.client.Store.ID == nil {
		return ""
	}
	return a.client.Store.ID.User
}

// DeleteSession removes local credential storage. The adapter must be
// disconnected first.
func (a *Adapter) DeleteSession(ctx context.Context) error {
	device, err := a.container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("get device store: %w", err)
	}
	if device.ID != nil {
		if err := device.Delete(ctx); err != nil {
			return fmt.Errorf("delete device store: %w", err)
		}
	}
	return nil
}
