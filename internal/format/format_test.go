package format

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCurrency(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"100", "₹100.00"},
		{"40.5", "₹40.50"},
		{"0", "₹0.00"},
		{"-60", "-₹60.00"},
		{"1234.567", "₹1234.57"},
	}
	for _, c := range cases {
		got := Currency(decimal.RequireFromString(c.in))
		if got != c.want {
			t.Fatalf("Currency(%s) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPhoneAndOTPValidation(t *testing.T) {
	if !ValidPhone("9876543210") {
		t.Fatal("expected 10 digits to be valid")
	}
	for _, bad := range []string{"", "98765", "98765432101", "98765abc10", "+919876543"} {
		if ValidPhone(bad) {
			t.Fatalf("expected %q to be invalid", bad)
		}
	}
	if !ValidOTP("123456") {
		t.Fatal("expected 6 digits to be valid")
	}
	if ValidOTP("12345") || ValidOTP("12345a") {
		t.Fatal("expected malformed otp to be invalid")
	}
	if !ValidPIN("0000") || ValidPIN("00000") {
		t.Fatal("pin validation mismatch")
	}
}

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+91 98765-43210": "9876543210",
		"09876543210":     "9876543210",
		"9876543210":      "9876543210",
		"12345":           "12345",
	}
	for in, want := range cases {
		if got := NormalizePhone(in); got != want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInitials(t *testing.T) {
	cases := map[string]string{
		"ravi kumar":        "RK",
		"Ravi":              "R",
		"  anita  devi rao ": "AD",
		"":                  "?",
		"éclair shop":       "ÉS",
	}
	for in, want := range cases {
		if got := Initials(in); got != want {
			t.Fatalf("Initials(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := Truncate("hello world", 8); got != "hello..." {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("₹₹₹₹₹₹", 5); got != "₹₹..." {
		t.Fatalf("got %q", got)
	}
	if got := Truncate("abc", 0); got != "" {
		t.Fatalf("got %q", got)
	}
}

func TestDate(t *testing.T) {
	ts := time.Date(2024, 1, 2, 15, 4, 0, 0, time.UTC)
	if got := Date(ts); got != "02 Jan 2024" {
		t.Fatalf("Date = %q", got)
	}
	if got := DateTime(ts); got != "02 Jan 2024, 03:04 PM" {
		t.Fatalf("DateTime = %q", got)
	}
	if Date(time.Time{}) != "" {
		t.Fatal("zero time should render empty")
	}
}
