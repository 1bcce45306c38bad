package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/matheus3301/wamsg/internal/cache"
	"github.com/matheus3301/wamsg/internal/session"
	"github.com/matheus3301/wamsg/internal/status"
	intsync "github.com/matheus3301/wamsg/internal/sync"
	"github.com/matheus3301/wamsg/internal/wa"
	"go.uber.org/zap"
)

var (
	// ErrNotLinked means there are no stored credentials for the session.
	ErrNotLinked = errors.New("not linked: run 'wamsg link' first")
	// ErrLoggedOut means the phone revoked this device's credentials.
	ErrLoggedOut = errors.New("logged out by phone: run 'wamsg link' to relink")
	// ErrConnectTimeout means the connection did not become usable in time.
	ErrConnectTimeout = errors.New("timed out waiting for connection")
)

// DefaultConnectTimeout bounds how long Connect polls for a usable state.
const DefaultConnectTimeout = 60 * time.Second

// Client is the subset of the WhatsApp adapter the controller drives.
// *wa.Adapter satisfies it; tests substitute a fake.
type Client interface {
	IsLoggedIn() bool
	Connect() error
	Disconnect()
	Logout(ctx context.Context) error
	SendText(ctx context.Context, jid string, text string) (string, error)
	JoinedGroups(ctx context.Context) []wa.GroupEntry
	Contacts(ctx context.Context) []wa.ContactEntry
	PhoneNumber() string
	DeleteSession(ctx context.Context) error
}

// Controller coordinates one CLI invocation's session lifecycle:
// connect, wait for sync, read through the engine, tear down. Cache-only
// commands never construct one.
type Controller struct {
	session string
	client  Client
	engine  *intsync.Engine
	machine *status.Machine
	logger  *zap.Logger
}

// NewController creates a session controller.
func NewController(sessionName string, client Client, engine *intsync.Engine, machine *status.Machine, logger *zap.Logger) *Controller {
	return &Controller{
		session: sessionName,
		client:  client,
		engine:  engine,
		machine: machine,
		logger:  logger,
	}
}

// Session returns the session name.
func (c *Controller) Session() string {
	return c.session
}

// IsLinked reports whether stored credentials exist.
func (c *Controller) IsLinked() bool {
	return c.client.IsLoggedIn()
}

// PhoneNumber returns the linked account's phone number, or "".
func (c *Controller) PhoneNumber() string {
	return c.client.PhoneNumber()
}

// State returns the current session state.
func (c *Controller) State() status.State {
	return c.machine.Current()
}

// Connect opens the WhatsApp connection and blocks until the session is
// usable (syncing or ready), the credentials turn out to be revoked, or
// the timeout elapses. timeout <= 0 uses DefaultConnectTimeout.
func (c *Controller) Connect(ctx context.Context, timeout time.Duration) error {
	if !c.client.IsLoggedIn() {
		return ErrNotLinked
	}
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}

	_ = c.machine.Transition(status.Connecting)
	if err := c.client.Connect(); err != nil {
		_ = c.machine.Transition(status.Error)
		return fmt.Errorf("connect: %w", err)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch c.machine.Current() {
		case status.Syncing, status.Ready:
			c.seedContacts(ctx)
			return nil
		case status.AuthRequired:
			return ErrLoggedOut
		case status.Closed, status.Error:
			return fmt.Errorf("connection closed before becoming usable")
		}
		if time.Now().After(deadline) {
			return ErrConnectTimeout
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Disconnect stops ingestion, flushes the cache, and closes the
// connection.
func (c *Controller) Disconnect() {
	c.engine.Stop()
	c.client.Disconnect()
}

// WaitForSync blocks until history sync completes or the timeout
// elapses. Reports whether sync completed.
func (c *Controller) WaitForSync(timeout time.Duration) bool {
	return c.engine.WaitForSync(timeout)
}

// ReconcileGroups folds the live joined-group list into the cache, so
// group names are correct even for groups with no recent messages.
func (c *Controller) ReconcileGroups(ctx context.Context) {
	groups := c.client.JoinedGroups(ctx)
	if len(groups) == 0 {
		return
	}
	c.engine.Update(func(s *cache.Store) {
		for _, g := range groups {
			s.UpsertChat(g.JID, g.Name, 0)
		}
	})
	if err := c.engine.Flush(); err != nil {
		c.logger.Error("failed to save cache after group reconcile", zap.Error(err))
	}
	c.logger.Info("joined groups reconciled", zap.Int("count", len(groups)))
}

// seedContacts copies display names from the device store into the
// cache's contact table. Best-effort.
func (c *Controller) seedContacts(ctx context.Context) {
	contacts := c.client.Contacts(ctx)
	if len(contacts) == 0 {
		return
	}
	c.engine.Update(func(s *cache.Store) {
		for _, entry := range contacts {
			s.UpsertContact(entry.JID, entry.Name)
		}
	})
	c.logger.Info("contacts seeded from device store", zap.Int("count", len(contacts)))
}

// Send delivers a text message and records the echo in the cache. The
// returned ID is the server message ID.
func (c *Controller) Send(ctx context.Context, jid, text string) (string, error) {
	clientMsgID := uuid.New().String()
	c.logger.Info("sending message",
		zap.String("client_msg_id", clientMsgID),
		zap.String("chat_jid", jid),
	)

	serverMsgID, err := c.client.SendText(ctx, jid, text)
	if err != nil {
		c.logger.Error("send failed", zap.Error(err), zap.String("client_msg_id", clientMsgID))
		return "", err
	}
	msgID := serverMsgID
	if msgID == "" {
		msgID = clientMsgID
	}

	c.engine.Update(func(s *cache.Store) {
		s.AddMessage(cache.Message{
			ID:        msgID,
			ChatJID:   wa.NormalizeJID(jid),
			Sender:    wa.SelfSender,
			Timestamp: time.Now().UnixMilli(),
			Body:      text,
			FromMe:    true,
		})
	})
	if err := c.engine.Flush(); err != nil {
		c.logger.Error("failed to save cache after send", zap.Error(err))
	}

	c.logger.Info("message sent",
		zap.String("client_msg_id", clientMsgID),
		zap.String("server_msg_id", serverMsgID),
	)
	return msgID, nil
}

// Unlink logs out from the phone when possible, deletes the stored
// credentials, and removes the session's local files.
func (c *Controller) Unlink(ctx context.Context) error {
	// Stop ingestion first so teardown cannot rewrite the files
	// removed below.
	c.engine.Stop()
	if c.client.IsLoggedIn() {
		if err := c.client.Logout(ctx); err != nil {
			// Logout needs a live connection; proceed with local
			// deletion so unlink works offline too.
			c.logger.Warn("remote logout failed, deleting local state anyway", zap.Error(err))
		}
	}
	if err := c.client.DeleteSession(ctx); err != nil {
		return fmt.Errorf("delete credentials: %w", err)
	}
	for _, path := range []string{
		session.CachePath(c.session),
		session.SessionDBPath(c.session),
	} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove %s: %w", path, err)
		}
	}
	c.logger.Info("session unlinked", zap.String("session", c.session))
	return nil
}

// View runs fn with read access to the live cache.
func (c *Controller) View(fn func(s *cache.Store)) {
	c.engine.View(fn)
}

// Counters returns messages and chats ingested during this invocation.
func (c *Controller) Counters() (messages, chats int) {
	return c.engine.Counters()
}
