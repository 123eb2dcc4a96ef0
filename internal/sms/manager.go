// Package sms manages the single out-of-band SMS alert subscription.
package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/mr1hm/go-quake-alerts/internal/models"
	"github.com/mr1hm/go-quake-alerts/internal/observability"
)

var (
	ErrInvalidPhoneNumber = errors.New("invalid phone number")
	ErrInvalidTransition  = errors.New("invalid subscription state")
)

const (
	subscribedMessage      = "Successfully subscribed to SMS alerts."
	subscribeFailedMessage = "SMS subscription failed. Please try again."
	unsubscribeFailedMsg   = "Failed to unsubscribe from SMS alerts. Please try again."
)

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)

// NormalizePhoneNumber strips common separators and checks the result is
// E.164 shaped.
func NormalizePhoneNumber(raw string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '(', ')', '.':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if !e164.MatchString(cleaned) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhoneNumber, raw)
	}
	return cleaned, nil
}

// PhoneStore persists the subscribed number across restarts.
type PhoneStore interface {
	LoadPhoneNumber(ctx context.Context) string
	SavePhoneNumber(ctx context.Context, phone string)
	ClearPhoneNumber(ctx context.Context)
}

type Notifier interface {
	Success(message string)
	Alert(message string)
}

type Manager struct {
	mu     sync.Mutex
	status models.SmsStatus
	phone  string

	// pending is the number being registered while status is subscribing.
	pending string

	gateway  Gateway
	store    PhoneStore
	notifier Notifier
	metrics  *observability.Metrics
}

// NewManager restores a previously persisted subscription as subscribed
// without contacting the gateway.
func NewManager(ctx context.Context, gateway Gateway, store PhoneStore, notifier Notifier, metrics *observability.Metrics) *Manager {
	m := &Manager{
		status:   models.SmsStatusIdle,
		gateway:  gateway,
		store:    store,
		notifier: notifier,
		metrics:  metrics,
	}
	if phone := store.LoadPhoneNumber(ctx); phone != "" {
		m.phone = phone
		m.status = models.SmsStatusSubscribed
		slog.Info("sms subscription restored")
	}
	return m
}

// Status returns the current state and the phone number it applies to.
func (m *Manager) Status() (models.SmsStatus, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == models.SmsStatusSubscribing {
		return m.status, m.pending
	}
	return m.status, m.phone
}

// Subscribe registers phoneNumber with the gateway. Gateway failures end in
// the error state with a notification and are not returned; the previously
// held number, if any, is left untouched.
func (m *Manager) Subscribe(ctx context.Context, phoneNumber string) error {
	phone, err := NormalizePhoneNumber(phoneNumber)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if m.status != models.SmsStatusIdle && m.status != models.SmsStatusError {
		status := m.status
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot subscribe while %s", ErrInvalidTransition, status)
	}
	m.status = models.SmsStatusSubscribing
	m.pending = phone
	m.mu.Unlock()

	err = m.gateway.Subscribe(ctx, phone)

	m.mu.Lock()
	m.pending = ""
	if err != nil {
		m.status = models.SmsStatusError
	} else {
		m.status = models.SmsStatusSubscribed
		m.phone = phone
	}
	m.mu.Unlock()

	if err != nil {
		slog.Error("sms subscribe failed", "error", err)
		m.count("subscribe", "error")
		m.notifier.Alert(subscribeFailedMessage)
		return nil
	}

	m.store.SavePhoneNumber(ctx, phone)
	m.count("subscribe", "success")
	m.notifier.Success(subscribedMessage)
	slog.Info("sms subscribed")
	return nil
}

// Unsubscribe removes the current number. A failed call keeps the number so
// the user can retry without re-entering it.
func (m *Manager) Unsubscribe(ctx context.Context) error {
	m.mu.Lock()
	if m.phone == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: no phone number subscribed", ErrInvalidTransition)
	}
	if m.status != models.SmsStatusSubscribed && m.status != models.SmsStatusError {
		status := m.status
		m.mu.Unlock()
		return fmt.Errorf("%w: cannot unsubscribe while %s", ErrInvalidTransition, status)
	}
	m.status = models.SmsStatusUnsubscribing
	phone := m.phone
	m.mu.Unlock()

	err := m.gateway.Unsubscribe(ctx, phone)

	m.mu.Lock()
	if err != nil {
		m.status = models.SmsStatusError
	} else {
		m.status = models.SmsStatusIdle
		m.phone = ""
	}
	m.mu.Unlock()

	if err != nil {
		slog.Error("sms unsubscribe failed", "error", err)
		m.count("unsubscribe", "error")
		m.notifier.Alert(unsubscribeFailedMsg)
		return nil
	}

	m.store.ClearPhoneNumber(ctx)
	m.count("unsubscribe", "success")
	slog.Info("sms unsubscribed")
	return nil
}

func (m *Manager) count(op, outcome string) {
	if m.metrics != nil {
		m.metrics.SMSOperations.WithLabelValues(op, outcome).Inc()
	}
}
