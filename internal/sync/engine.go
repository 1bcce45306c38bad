package sync

import (
	"context"
	"sync"
	"time"

	"github.com/matheus3301/wamsg/internal/bus"
	"github.com/matheus3301/wamsg/internal/cache"
	"github.com/matheus3301/wamsg/internal/wa"
	"go.uber.org/zap"
)

// Engine ingests parsed WhatsApp events into the cache store. It
// subscribes to "wa." events on the bus and processes them on a single
// goroutine, so the store has exactly one writer. Readers go through
// View, which serializes against ingestion.
type Engine struct {
	mu        sync.RWMutex
	store     *cache.Store
	cachePath string
	bus       *bus.Bus
	logger    *zap.Logger
	cancel    context.CancelFunc

	msgsIngested  int
	chatsUpserted int
	closed        bool
	syncDone      chan struct{}
	syncOnce      sync.Once
}

// NewEngine creates an engine over an already loaded store. The store
// must not be mutated elsewhere while the engine runs.
func NewEngine(store *cache.Store, cachePath string, b *bus.Bus, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		cachePath: cachePath,
		bus:       b,
		logger:    logger,
		syncDone:  make(chan struct{}),
	}
}

// Start subscribes to inbound WhatsApp events on the bus.
func (e *Engine) Start(ctx context.Context) {
	ctx, e.cancel = context.WithCancel(ctx)
	ch, unsub := e.bus.Subscribe("wa.", 256)

	go func() {
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine after a final flush. Stop is terminal: later
// Flush calls are no-ops, so teardown cannot resurrect a cache file an
// unlink just removed.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	if err := e.Flush(); err != nil {
		e.logger.Error("failed to flush cache on stop", zap.Error(err))
	}
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
}

// Flush writes the cache snapshot to disk.
func (e *Engine) Flush() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return nil
	}
	return e.store.Save(e.cachePath)
}

// View runs fn with read access to the store, serialized against
// ingestion.
func (e *Engine) View(fn func(s *cache.Store)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.store)
}

// Update runs fn with write access to the store. Used by the session
// controller for group reconciliation; ingestion never calls it.
func (e *Engine) Update(fn func(s *cache.Store)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.store)
}

// Counters returns the number of messages and chats ingested since Start.
func (e *Engine) Counters() (messages, chats int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.msgsIngested, e.chatsUpserted
}

// WaitForSync blocks until the history sync completes or the timeout
// elapses. Reports whether the completion signal arrived; a timeout is
// not an error, just "possibly incomplete".
func (e *Engine) WaitForSync(timeout time.Duration) bool {
	select {
	case <-e.syncDone:
		return true
	case <-time.After(timeout):
		return false
	}
}

func (e *Engine) handleEvent(evt bus.Event) {
	switch evt.Kind {
	case bus.KindMessage:
		msg, ok := evt.Payload.(*wa.ParsedMessage)
		if !ok {
			return
		}
		e.mu.Lock()
		added := e.ingest(msg)
		e.mu.Unlock()
		if added {
			if err := e.Flush(); err != nil {
				e.logger.Error("failed to save cache", zap.Error(err), zap.String("msg_id", msg.MsgID))
			}
		}

	case bus.KindHistoryBatch:
		msgs, ok := evt.Payload.([]*wa.ParsedMessage)
		if !ok {
			return
		}
		e.mu.Lock()
		added := 0
		for _, msg := range msgs {
			if e.ingest(msg) {
				added++
			}
		}
		e.mu.Unlock()
		if err := e.Flush(); err != nil {
			e.logger.Error("failed to save cache after batch", zap.Error(err))
		}
		e.logger.Info("history batch ingested", zap.Int("received", len(msgs)), zap.Int("added", added))

	case bus.KindChatUpsert:
		up, ok := evt.Payload.(wa.ChatUpsert)
		if !ok {
			return
		}
		e.mu.Lock()
		e.store.UpsertChat(up.JID, up.Name, up.LastMessageTime)
		e.chatsUpserted++
		e.mu.Unlock()
		if err := e.Flush(); err != nil {
			e.logger.Error("failed to save cache after chat upsert", zap.Error(err))
		}

	case bus.KindContactBatch:
		contacts, ok := evt.Payload.([]wa.ContactEntry)
		if !ok {
			return
		}
		e.mu.Lock()
		for _, c := range contacts {
			e.store.UpsertContact(c.JID, c.Name)
		}
		e.mu.Unlock()
		if err := e.Flush(); err != nil {
			e.logger.Error("failed to save cache after contacts", zap.Error(err))
		}

	case bus.KindHistoryDone:
		e.syncOnce.Do(func() { close(e.syncDone) })
		e.logger.Info("history sync complete")
	}
}

// ingest finalizes one parsed message and adds it to the store: learn
// the push name, resolve the display name, append with dedup. Caller
// holds the write lock.
func (e *Engine) ingest(msg *wa.ParsedMessage) bool {
	if msg.PushName != "" && msg.Sender != wa.SelfSender {
		e.store.UpsertContact(msg.Sender, msg.PushName)
	}

	name := e.store.ResolveName(msg.Sender)
	if name == "" {
		name = msg.PushName
	}

	added := e.store.AddMessage(cache.Message{
		ID:         msg.MsgID,
		ChatJID:    msg.ChatJID,
		Sender:     msg.Sender,
		SenderName: name,
		Timestamp:  msg.Timestamp,
		Body:       msg.Body,
		FromMe:     msg.FromMe,
		QuotedID:   msg.QuotedID,
		QuotedBody: msg.QuotedBody,
		HasMedia:   msg.HasMedia(),
		MediaType:  msg.MediaType,
	})
	if added {
		e.msgsIngested++
	}
	return added
}
