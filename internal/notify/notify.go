// Package notify delivers payment reminders over the channels a shop owner can
// pick: push, SMS, WhatsApp and a phone call.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"shopmunim-backend/internal/domain"

	"firebase.google.com/go/v4/messaging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ErrNoRecipient       = errors.New("no registered device for customer")
	ErrChannelDisabled   = errors.New("notification channel not configured")
	ErrUnsupportedMethod = errors.New("unsupported notification method")
)

var remindersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "shopmunim_reminders_total",
	Help: "Payment reminders dispatched, by method and outcome.",
}, []string{"method", "status"})

// Message is one reminder addressed to a customer.
type Message struct {
	Method domain.NotificationMethod
	Title  string
	Body   string
	Phone  string
	// Tokens are the FCM registration tokens of the customer's linked user.
	Tokens []string
}

// Result is the outcome of a dispatch. Link is set for channels the client
// opens itself (WhatsApp, phone call).
type Result struct {
	Status domain.NotificationStatus
	Link   string
	Err    error
}

// Sender delivers a message over one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) (link string, err error)
}

// Dispatcher routes messages to the sender registered for their method.
type Dispatcher struct {
	Senders map[domain.NotificationMethod]Sender
	Logger  *slog.Logger
}

// NewDispatcher wires the standard channels. push may be nil when FCM is not
// configured; sms falls back to logging.
func NewDispatcher(push *messaging.Client, sms SMSGateway, countryCode string, logger *slog.Logger) *Dispatcher {
	if sms == nil {
		sms = NewLogSMSGateway(logger)
	}
	return &Dispatcher{
		Senders: map[domain.NotificationMethod]Sender{
			domain.MethodPush:     PushSender{Client: push, Logger: logger},
			domain.MethodSMS:      SMSSender{Gateway: sms, CountryCode: countryCode},
			domain.MethodWhatsApp: WhatsAppSender{CountryCode: countryCode},
			domain.MethodCall:     CallSender{CountryCode: countryCode},
		},
		Logger: logger,
	}
}

// Dispatch never returns an error; failures are reported in Result.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) Result {
	sender, ok := d.Senders[msg.Method]
	if !ok {
		remindersTotal.WithLabelValues(string(msg.Method), string(domain.NotificationFailed)).Inc()
		return Result{Status: domain.NotificationFailed, Err: ErrUnsupportedMethod}
	}
	link, err := sender.Send(ctx, msg)
	if err != nil {
		if d.Logger != nil {
			d.Logger.Warn("reminder delivery failed", "method", msg.Method, "err", err)
		}
		remindersTotal.WithLabelValues(string(msg.Method), string(domain.NotificationFailed)).Inc()
		return Result{Status: domain.NotificationFailed, Link: link, Err: err}
	}
	remindersTotal.WithLabelValues(string(msg.Method), string(domain.NotificationSent)).Inc()
	return Result{Status: domain.NotificationSent, Link: link}
}

// PushSender sends through Firebase Cloud Messaging.
type PushSender struct {
	Client *messaging.Client
	Logger *slog.Logger
}

// Send succeeds if at least one registered device accepted the message.
func (s PushSender) Send(ctx context.Context, msg Message) (string, error) {
	if s.Client == nil {
		return "", ErrChannelDisabled
	}
	if len(msg.Tokens) == 0 {
		return "", ErrNoRecipient
	}
	var lastErr error
	delivered := 0
	for _, token := range msg.Tokens {
		_, err := s.Client.Send(ctx, &messaging.Message{
			Token: token,
			Notification: &messaging.Notification{
				Title: msg.Title,
				Body:  msg.Body,
			},
			Data: map[string]string{"type": "payment_reminder"},
		})
		if err != nil {
			lastErr = err
			if s.Logger != nil {
				s.Logger.Warn("fcm send failed", "err", err)
			}
			continue
		}
		delivered++
	}
	if delivered == 0 {
		return "", fmt.Errorf("push: %w", lastErr)
	}
	return "", nil
}

// SMSGateway is the transport behind SMS reminders.
type SMSGateway interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSMSGateway writes SMS messages to the logger instead of a carrier.
type LogSMSGateway struct {
	logger *slog.Logger
}

func NewLogSMSGateway(logger *slog.Logger) *LogSMSGateway {
	return &LogSMSGateway{logger: logger}
}

func (g *LogSMSGateway) SendSMS(_ context.Context, to, body string) error {
	if g == nil || g.logger == nil {
		return nil
	}
	g.logger.Info("sms", "to", to, "body", body)
	return nil
}

type SMSSender struct {
	Gateway     SMSGateway
	CountryCode string
}

func (s SMSSender) Send(ctx context.Context, msg Message) (string, error) {
	if s.Gateway == nil {
		return "", ErrChannelDisabled
	}
	if msg.Phone == "" {
		return "", ErrNoRecipient
	}
	return "", s.Gateway.SendSMS(ctx, "+"+s.CountryCode+msg.Phone, msg.Body)
}

// WhatsAppSender does not deliver anything itself; the client opens the link.
type WhatsAppSender struct {
	CountryCode string
}

func (s WhatsAppSender) Send(_ context.Context, msg Message) (string, error) {
	if msg.Phone == "" {
		return "", ErrNoRecipient
	}
	return WhatsAppLink(s.CountryCode, msg.Phone, msg.Body), nil
}

type CallSender struct {
	CountryCode string
}

func (s CallSender) Send(_ context.Context, msg Message) (string, error) {
	if msg.Phone == "" {
		return "", ErrNoRecipient
	}
	return "tel:+" + s.CountryCode + msg.Phone, nil
}

// WhatsAppLink builds a wa.me deep link with a prefilled message.
func WhatsAppLink(countryCode, phone, text string) string {
	link := "https://wa.me/" + countryCode + strings.TrimPrefix(phone, "+")
	if text == "" {
		return link
	}
	return link + "?text=" + url.QueryEscape(text)
}
