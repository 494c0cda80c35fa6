package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/format"
	"shopmunim-backend/internal/notify"
	"shopmunim-backend/internal/repository"
)

var (
	ErrInvalidMethod = errors.New("method must be one of Push Notification, SMS Message, WhatsApp, Phone Call")
	ErrEmptyMessage  = errors.New("title and body are required")
)

type ReminderService struct {
	Customers     repository.CustomerRepository
	Notifications repository.NotificationRepository
	Tokens        repository.FCMRepository
	Dispatcher    *notify.Dispatcher
	Logger        *slog.Logger
	Now           func() time.Time
}

type NotifyInput struct {
	Title       string
	Body        string
	Method      domain.NotificationMethod
	ScheduledAt *time.Time
}

// NotifyResult is what the owner sees after sending. Link is set for channels
// the app opens itself.
type NotifyResult struct {
	Notification domain.Notification
	Link         string
	Error        string
}

func (s ReminderService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Notify sends now, or records a scheduled notification when ScheduledAt is
// in the future.
func (s ReminderService) Notify(ctx context.Context, customer domain.Customer, in NotifyInput) (*NotifyResult, error) {
	if !in.Method.Valid() {
		return nil, ErrInvalidMethod
	}
	in.Title = strings.TrimSpace(in.Title)
	in.Body = strings.TrimSpace(in.Body)
	if in.Title == "" || in.Body == "" {
		return nil, ErrEmptyMessage
	}

	if in.ScheduledAt != nil && in.ScheduledAt.After(s.now()) {
		n, err := s.Notifications.Create(ctx, repository.CreateNotificationInput{
			ShopID:      customer.ShopID,
			CustomerID:  customer.ID,
			Title:       in.Title,
			Body:        in.Body,
			Method:      in.Method,
			Status:      domain.NotificationScheduled,
			ScheduledAt: in.ScheduledAt,
		})
		if err != nil {
			return nil, err
		}
		return &NotifyResult{Notification: *n}, nil
	}

	res := s.deliver(ctx, customer, in.Method, in.Title, in.Body)
	n, err := s.Notifications.Create(ctx, repository.CreateNotificationInput{
		ShopID:     customer.ShopID,
		CustomerID: customer.ID,
		Title:      in.Title,
		Body:       in.Body,
		Method:     in.Method,
		Status:     res.Status,
	})
	if err != nil {
		return nil, err
	}
	out := &NotifyResult{Notification: *n, Link: res.Link}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out, nil
}

func (s ReminderService) List(ctx context.Context, shopID, customerID string) ([]domain.Notification, error) {
	return s.Notifications.ListByCustomer(ctx, shopID, customerID, 100)
}

func (s ReminderService) deliver(ctx context.Context, c domain.Customer, method domain.NotificationMethod, title, body string) notify.Result {
	msg := notify.Message{Method: method, Title: title, Body: body, Phone: c.Phone}
	if method == domain.MethodPush && c.UserID != nil {
		tokens, err := s.Tokens.TokensForUser(ctx, *c.UserID)
		if err != nil {
			s.Logger.Warn("load device tokens failed", "customer_id", c.ID, "err", err)
		}
		msg.Tokens = tokens
	}
	return s.Dispatcher.Dispatch(ctx, msg)
}

// SendDue delivers scheduled notifications whose time has passed.
func (s ReminderService) SendDue(ctx context.Context) (int, error) {
	due, err := s.Notifications.Due(ctx, s.now(), 100)
	if err != nil {
		return 0, err
	}
	sent := 0
	for _, n := range due {
		c, err := s.Customers.Get(ctx, n.ShopID, n.CustomerID)
		if err != nil {
			s.Logger.Warn("scheduled notification customer lookup failed", "notification_id", n.ID, "err", err)
			_, _ = s.Notifications.SetStatus(ctx, n.ID, domain.NotificationFailed)
			continue
		}
		res := s.deliver(ctx, *c, n.Method, n.Title, n.Body)
		if _, err := s.Notifications.SetStatus(ctx, n.ID, res.Status); err != nil {
			s.Logger.Warn("update notification status failed", "notification_id", n.ID, "err", err)
		}
		if res.Status == domain.NotificationSent {
			sent++
		}
	}
	return sent, nil
}

// SendAutoReminders messages customers whose reminder settings say one is due.
func (s ReminderService) SendAutoReminders(ctx context.Context) (int, error) {
	candidates, err := s.Customers.ReminderCandidates(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	sent := 0
	for _, rc := range candidates {
		c := rc.Customer
		if !ReminderDue(c.Reminder, rc.LastTransactionAt, now) {
			continue
		}
		owed := c.Balance.Neg()
		body := notify.Render(c.Reminder.Template, notify.TemplateVars{
			Name:   c.Name,
			Amount: format.Currency(owed),
			Shop:   rc.ShopName,
			UPI:    notify.UPILink(rc.ShopUPIID, rc.ShopName, owed),
		})
		method := c.Reminder.Method
		if !method.Valid() {
			method = domain.MethodWhatsApp
		}
		title := "Payment reminder from " + rc.ShopName
		res := s.deliver(ctx, c, method, title, body)
		if _, err := s.Notifications.Create(ctx, repository.CreateNotificationInput{
			ShopID:     c.ShopID,
			CustomerID: c.ID,
			Title:      title,
			Body:       body,
			Method:     method,
			Status:     res.Status,
		}); err != nil {
			s.Logger.Warn("record auto reminder failed", "customer_id", c.ID, "err", err)
		}
		if err := s.Customers.MarkReminderSent(ctx, c.ID, now); err != nil {
			s.Logger.Warn("mark reminder sent failed", "customer_id", c.ID, "err", err)
		}
		if res.Status == domain.NotificationSent {
			sent++
		}
	}
	return sent, nil
}

// ReminderDue decides whether an automatic reminder should go out at now.
// The first reminder waits for the configured delay after the last
// transaction. Later ones repeat per frequency from the previous send; a new
// transaction after the previous send starts a new cycle.
func ReminderDue(rs domain.ReminderSettings, lastTx *time.Time, now time.Time) bool {
	if !rs.Enabled || lastTx == nil {
		return false
	}
	if now.Before(lastTx.Add(rs.Delay.Duration())) {
		return false
	}
	if rs.LastSentAt == nil || rs.LastSentAt.Before(*lastTx) {
		return true
	}
	last := *rs.LastSentAt
	switch rs.Frequency {
	case domain.ReminderDaily:
		return !now.Before(last.Add(24 * time.Hour))
	case domain.ReminderWeekly:
		return !now.Before(last.Add(7 * 24 * time.Hour))
	case domain.ReminderMonthly:
		return !now.Before(last.AddDate(0, 1, 0))
	default:
		return false
	}
}
