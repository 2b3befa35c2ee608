package identity

import (
	"context"
	"time"
)

// Channel is an outbound delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// AccountAlert describes a new-device security alert.
type AccountAlert struct {
	Channel     Channel
	Destination string
	IdentityID  string
	DeviceName  string
	Platform    string
	IP          string
	UserAgent   string
	OccurredAt  time.Time
	RejectLink  string
}

// Messenger delivers confirmation links, one-time codes and account alerts.
type Messenger interface {
	SendConfirmation(ctx context.Context, email, link string) error
	SendOTP(ctx context.Context, channel Channel, destination, code string) error
	SendAccountAlert(ctx context.Context, alert AccountAlert) error
}
