package wa

import (
	"context"
	"time"

	"github.com/matheus3301/wamsg/internal/bus"
)

// AuthEventType enumerates auth event types.
type AuthEventType string

const (
	AuthEventQRCode        AuthEventType = "qr_code"
	AuthEventAuthenticated AuthEventType = "authenticated"
	AuthEventAuthFailed    AuthEventType = "auth_failed"
	AuthEventTimeout       AuthEventType = "timeout"
)

// AuthEvent represents an auth lifecycle event.
type AuthEvent struct {
	Type    AuthEventType
	QRCode  string
	Message string
}

// StartQRAuth begins the QR pairing flow and streams events to the
// returned channel until it closes. b also receives qr_code events so
// other observers can react.
func (a *Adapter) StartQRAuth(ctx context.Context, b *bus.Bus) (<-chan AuthEvent, error) {
	qrChan, err := a.GetQRChannel(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan AuthEvent, 10)

	go func() {
		defer close(out)

		// Connect must be called after GetQRChannel.
		if err := a.Connect(); err != nil {
			out <- AuthEvent{Type: AuthEventAuthFailed, Message: err.Error()}
			return
		}

		for item := range qrChan {
			switch item.Event {
			case "code":
				out <- AuthEvent{Type: AuthEventQRCode, QRCode: item.Code}
				if b != nil {
					b.Publish(bus.Event{Kind: bus.KindQRCode, Timestamp: time.Now(), Payload: item.Code})
				}
			case "success":
				out <- AuthEvent{Type: AuthEventAuthenticated, Message: "authenticated"}
				return
			case "timeout":
				out <- AuthEvent{Type: AuthEventTimeout, Message: "QR code timeout"}
				return
			default:
				if item.Error != nil {
					out <- AuthEvent{Type: AuthEventAuthFailed, Message: item.Error.Error()}
					return
				}
			}
		}
	}()

	return out, nil
}
