package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"shopmunim-backend/internal/domain"
	"shopmunim-backend/internal/ledger"

	"github.com/shopspring/decimal"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	tok, err := IssueAccessToken("secret", "user-1", "sess-1", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseAccessToken("secret", tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "user-1" || claims.SessionID != "sess-1" {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if _, err := ParseAccessToken("other", tok); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected invalid token with wrong secret, got %v", err)
	}
	expired, _ := IssueAccessToken("secret", "user-1", "sess-1", time.Now().Add(-time.Minute))
	if _, err := ParseAccessToken("secret", expired); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}

func TestPrepareTransaction(t *testing.T) {
	items := []domain.TransactionItem{
		{Name: "Rice", Price: decimal.NewFromInt(50), Quantity: 2},
		{Name: " Dal ", Price: decimal.RequireFromString("32.50"), Quantity: 1},
	}
	prepared, amount, err := PrepareTransaction("credit", nil, items)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if !amount.Equal(decimal.RequireFromString("132.50")) {
		t.Fatalf("amount = %s", amount)
	}
	if !prepared[0].Subtotal.Equal(decimal.NewFromInt(100)) || prepared[1].Name != "Dal" {
		t.Fatalf("unexpected items %+v", prepared)
	}

	explicit := decimal.NewFromInt(120)
	_, amount, err = PrepareTransaction("debit", &explicit, items)
	if err != nil || !amount.Equal(explicit) {
		t.Fatalf("explicit amount should win, got %s %v", amount, err)
	}

	cases := []struct {
		name   string
		typ    string
		amount *decimal.Decimal
		items  []domain.TransactionItem
		want   error
	}{
		{"bad type", "refund", &explicit, nil, ErrInvalidType},
		{"negative", "credit", ptr(decimal.NewFromInt(-1)), nil, ErrInvalidAmount},
		{"no amount no items", "credit", nil, nil, ErrAmountRequired},
		{"zero quantity", "credit", nil, []domain.TransactionItem{{Name: "x", Price: decimal.NewFromInt(1)}}, ErrInvalidItem},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := PrepareTransaction(tc.typ, tc.amount, tc.items); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	for _, alias := range []string{"CREDIT", "DEBIT", "payment"} {
		if _, _, err := PrepareTransaction(alias, &explicit, nil); err != nil {
			t.Fatalf("alias %q rejected: %v", alias, err)
		}
	}
}

func TestBuildLedger(t *testing.T) {
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)
	var txs []domain.Transaction
	for i := 0; i < 12; i++ {
		typ := "credit"
		if i%3 == 0 {
			typ = "debit"
		}
		txs = append(txs, domain.Transaction{
			ID:     string(rune('a' + i)),
			Type:   typ,
			Amount: decimal.NewFromInt(10),
			Date:   base.AddDate(0, 0, i),
		})
	}

	res, err := BuildLedger(txs, LedgerQuery{Page: 2, PerPage: 5})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.Page.TotalPages != 3 || res.Page.CurrentPage != 2 || len(res.Transactions) != 5 {
		t.Fatalf("unexpected page %+v", res.Page)
	}
	if res.Transactions[0].ID != "g" {
		t.Fatalf("expected newest-first ordering, page 2 starts with %q", res.Transactions[0].ID)
	}
	if res.Summary.Total != 12 || res.Summary.PaymentCount != 4 || res.Summary.CreditCount != 8 {
		t.Fatalf("summary should cover the whole filtered set: %+v", res.Summary)
	}
	if !res.Summary.NetBalance.Equal(decimal.NewFromInt(-40)) {
		t.Fatalf("net balance = %s", res.Summary.NetBalance)
	}

	res, err = BuildLedger(txs, LedgerQuery{Criteria: ledger.Criteria{Type: ledger.TypePayment}})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res.Summary.Total != 4 || res.Page.PerPage != ledger.DefaultPerPage {
		t.Fatalf("unexpected payment ledger %+v", res.Page)
	}

	res, err = BuildLedger(txs, LedgerQuery{Page: 922337203685477582, PerPage: 10})
	if err != nil {
		t.Fatalf("build far page: %v", err)
	}
	if len(res.Transactions) != 0 || res.Summary.Total != 12 {
		t.Fatalf("page past the end should be empty with the full summary, got %d items", len(res.Transactions))
	}

	if _, err := BuildLedger(txs, LedgerQuery{PerPage: 7}); !errors.Is(err, ledger.ErrInvalidPerPage) {
		t.Fatalf("expected per-page validation, got %v", err)
	}
}

func TestReminderDue(t *testing.T) {
	now := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time { v := now.Add(-d); return &v }
	day := 24 * time.Hour

	cases := []struct {
		name   string
		rs     domain.ReminderSettings
		lastTx *time.Time
		want   bool
	}{
		{"disabled", domain.ReminderSettings{Delay: domain.Delay1Day}, at(5 * day), false},
		{"no transactions", domain.ReminderSettings{Enabled: true, Delay: domain.Delay1Day}, nil, false},
		{"delay not passed", domain.ReminderSettings{Enabled: true, Delay: domain.Delay3Days}, at(2 * day), false},
		{"first reminder", domain.ReminderSettings{Enabled: true, Delay: domain.Delay3Days}, at(3 * day), true},
		{"once already sent", domain.ReminderSettings{Enabled: true, Delay: domain.Delay1Day, Frequency: domain.ReminderOnce, LastSentAt: at(day)}, at(10 * day), false},
		{"daily not yet", domain.ReminderSettings{Enabled: true, Delay: domain.Delay1Day, Frequency: domain.ReminderDaily, LastSentAt: at(20 * time.Hour)}, at(10 * day), false},
		{"daily due", domain.ReminderSettings{Enabled: true, Delay: domain.Delay1Day, Frequency: domain.ReminderDaily, LastSentAt: at(day)}, at(10 * day), true},
		{"weekly not yet", domain.ReminderSettings{Enabled: true, Delay: domain.Delay1Day, Frequency: domain.ReminderWeekly, LastSentAt: at(6 * day)}, at(10 * day), false},
		{"monthly due", domain.ReminderSettings{Enabled: true, Delay: domain.Delay1Day, Frequency: domain.ReminderMonthly, LastSentAt: at(31 * day)}, at(40 * day), true},
		{"new activity restarts cycle", domain.ReminderSettings{Enabled: true, Delay: domain.Delay1Day, Frequency: domain.ReminderOnce, LastSentAt: at(5 * day)}, at(2 * day), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ReminderDue(tc.rs, tc.lastTx, now); got != tc.want {
				t.Fatalf("ReminderDue = %v, want %v", got, tc.want)
			}
		})
	}
}

type fakeJobs struct {
	due, auto int
	err       error
}

func (f *fakeJobs) SendDue(context.Context) (int, error) {
	f.due++
	return 1, f.err
}

func (f *fakeJobs) SendAutoReminders(context.Context) (int, error) {
	f.auto++
	return 0, nil
}

func TestSchedulerTickRunsBothJobs(t *testing.T) {
	jobs := &fakeJobs{err: errors.New("db down")}
	s := ReminderScheduler{Jobs: jobs, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	s.Tick(context.Background())
	if jobs.due != 1 || jobs.auto != 1 {
		t.Fatalf("a failing job must not skip the other: %+v", jobs)
	}
}

func TestSchedulerStopsOnCancel(t *testing.T) {
	jobs := &fakeJobs{}
	s := ReminderScheduler{Jobs: jobs, Interval: 5 * time.Millisecond, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func ptr[T any](v T) *T { return &v }
