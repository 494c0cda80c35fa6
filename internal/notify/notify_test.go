package notify

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"shopmunim-backend/internal/domain"

	"github.com/shopspring/decimal"
)

type recordingGateway struct {
	to, body string
	err      error
}

func (g *recordingGateway) SendSMS(_ context.Context, to, body string) error {
	g.to, g.body = to, body
	return g.err
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatchWhatsAppAndCall(t *testing.T) {
	d := NewDispatcher(nil, &recordingGateway{}, "91", discard())
	ctx := context.Background()

	res := d.Dispatch(ctx, Message{Method: domain.MethodWhatsApp, Phone: "9876543210", Body: "Pay ₹100.00 & thanks"})
	if res.Status != domain.NotificationSent {
		t.Fatalf("expected sent, got %s (%v)", res.Status, res.Err)
	}
	if !strings.HasPrefix(res.Link, "https://wa.me/919876543210?text=") {
		t.Fatalf("unexpected link %q", res.Link)
	}
	if strings.Contains(res.Link, " ") || strings.Contains(res.Link, "&thanks") {
		t.Fatalf("message not escaped: %q", res.Link)
	}

	res = d.Dispatch(ctx, Message{Method: domain.MethodCall, Phone: "9876543210"})
	if res.Link != "tel:+919876543210" {
		t.Fatalf("unexpected call link %q", res.Link)
	}
}

func TestDispatchSMS(t *testing.T) {
	gw := &recordingGateway{}
	d := NewDispatcher(nil, gw, "91", discard())
	res := d.Dispatch(context.Background(), Message{Method: domain.MethodSMS, Phone: "9876543210", Body: "hello"})
	if res.Status != domain.NotificationSent {
		t.Fatalf("expected sent, got %s", res.Status)
	}
	if gw.to != "+919876543210" || gw.body != "hello" {
		t.Fatalf("gateway got %q %q", gw.to, gw.body)
	}

	gw.err = errors.New("carrier down")
	res = d.Dispatch(context.Background(), Message{Method: domain.MethodSMS, Phone: "9876543210", Body: "hello"})
	if res.Status != domain.NotificationFailed || res.Err == nil {
		t.Fatalf("expected failure, got %+v", res)
	}
}

func TestDispatchPushWithoutFCMFails(t *testing.T) {
	d := NewDispatcher(nil, nil, "91", discard())
	res := d.Dispatch(context.Background(), Message{Method: domain.MethodPush, Tokens: []string{"tok"}})
	if res.Status != domain.NotificationFailed || !errors.Is(res.Err, ErrChannelDisabled) {
		t.Fatalf("expected channel disabled failure, got %+v", res)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := NewDispatcher(nil, nil, "91", discard())
	res := d.Dispatch(context.Background(), Message{Method: "Carrier Pigeon"})
	if res.Status != domain.NotificationFailed || !errors.Is(res.Err, ErrUnsupportedMethod) {
		t.Fatalf("expected unsupported method, got %+v", res)
	}
}

func TestRender(t *testing.T) {
	got := Render("Dear {name}, {amount} due at {shop}.", TemplateVars{Name: "Ravi", Amount: "₹60.00", Shop: "Gupta Stores"})
	if got != "Dear Ravi, ₹60.00 due at Gupta Stores." {
		t.Fatalf("got %q", got)
	}
	def := Render("", TemplateVars{Name: "Ravi", Amount: "₹60.00", Shop: "Gupta Stores"})
	if !strings.HasPrefix(def, "Hi Ravi, your pending balance at Gupta Stores is ₹60.00.") {
		t.Fatalf("default template rendered %q", def)
	}
	if strings.HasSuffix(def, " ") {
		t.Fatal("empty upi placeholder should be trimmed")
	}
}

func TestUPILink(t *testing.T) {
	if UPILink("", "Shop", decimal.NewFromInt(10)) != "" {
		t.Fatal("expected empty link without upi id")
	}
	link := UPILink("gupta@upi", "Gupta Stores", decimal.RequireFromString("60"))
	for _, part := range []string{"upi://pay?", "pa=gupta%40upi", "pn=Gupta+Stores", "am=60.00", "cu=INR"} {
		if !strings.Contains(link, part) {
			t.Fatalf("link %q missing %q", link, part)
		}
	}
}
