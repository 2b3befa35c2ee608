// Package notify provides identity.Messenger implementations that do not leave the process.
package notify

import (
	"context"
	"log"
	"sync"

	"github.com/MrEthical07/goIdentity/identity"
)

// LogMessenger writes every message to a logger. It is meant for development servers where
// no mail or SMS provider is configured.
type LogMessenger struct {
	logger *log.Logger
}

// NewLogMessenger returns a LogMessenger writing to logger, or to the standard logger when
// logger is nil.
func NewLogMessenger(logger *log.Logger) *LogMessenger {
	if logger == nil {
		logger = log.Default()
	}
	return &LogMessenger{logger: logger}
}

func (m *LogMessenger) SendConfirmation(_ context.Context, email, link string) error {
	m.logger.Printf("goIdentity: confirmation for %s: %s", email, link)
	return nil
}

func (m *LogMessenger) SendOTP(_ context.Context, channel identity.Channel, destination, code string) error {
	m.logger.Printf("goIdentity: %s code for %s: %s", channel, destination, code)
	return nil
}

func (m *LogMessenger) SendAccountAlert(_ context.Context, alert identity.AccountAlert) error {
	m.logger.Printf("goIdentity: new device %q (%s) on %s from %s, reject: %s",
		alert.DeviceName, alert.Platform, alert.Destination, alert.IP, alert.RejectLink)
	return nil
}

// Recorder keeps every message in memory. It is safe for concurrent use.
type Recorder struct {
	mu            sync.Mutex
	Confirmations []Confirmation
	Codes         []Code
	Alerts        []identity.AccountAlert
}

// Confirmation is one recorded confirmation link.
type Confirmation struct {
	Email string
	Link  string
}

// Code is one recorded one-time code.
type Code struct {
	Channel     identity.Channel
	Destination string
	Code        string
}

func (r *Recorder) SendConfirmation(_ context.Context, email, link string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Confirmations = append(r.Confirmations, Confirmation{Email: email, Link: link})
	return nil
}

func (r *Recorder) SendOTP(_ context.Context, channel identity.Channel, destination, code string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Codes = append(r.Codes, Code{Channel: channel, Destination: destination, Code: code})
	return nil
}

func (r *Recorder) SendAccountAlert(_ context.Context, alert identity.AccountAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Alerts = append(r.Alerts, alert)
	return nil
}

// LastCode returns the most recent code sent to destination.
func (r *Recorder) LastCode(destination string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.Codes) - 1; i >= 0; i-- {
		if r.Codes[i].Destination == destination {
			return r.Codes[i].Code, true
		}
	}
	return "", false
}

// AlertCount returns how many account alerts were recorded.
func (r *Recorder) AlertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.Alerts)
}

// ConfirmationLinks returns a copy of the recorded confirmation links.
func (r *Recorder) ConfirmationLinks() []Confirmation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Confirmation(nil), r.Confirmations...)
}
