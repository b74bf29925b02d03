package telephony

import (
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"voice-nerve/internal/dialog"
)

func TestParseFlowCallback_FirstCallback(t *testing.T) {
	custom := `{"call_type":"vendor_order_confirmation","order_id":42,"vendor_name":"Sharma Foods","language":"en"}`
	req := httptest.NewRequest("GET",
		"/webhooks/exotel/flow?CallSid=CA1&CallFrom=09876543210&CustomField="+url.QueryEscape(custom), nil)

	cb, err := ParseFlowCallback(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.CallSid != "CA1" {
		t.Fatalf("unexpected sid %q", cb.CallSid)
	}
	if cb.Digits != "" {
		t.Fatalf("first callback should carry no digits, got %q", cb.Digits)
	}
	if !cb.HasContext || cb.Context.OrderID != 42 || cb.Context.CallKind != dialog.KindVendorConfirmation {
		t.Fatalf("custom field not decoded: %+v", cb.Context)
	}
}

func TestParseFlowCallback_QuotedDigits(t *testing.T) {
	req := httptest.NewRequest("GET", `/flow?CallSid=CA1&digits=%221%22`, nil)
	cb, err := ParseFlowCallback(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.Digits != "1" {
		t.Fatalf("expected unquoted digits, got %q", cb.Digits)
	}
}

func TestParseFlowCallback_UppercaseDigitsFallback(t *testing.T) {
	req := httptest.NewRequest("GET", "/flow?CallSid=CA1&Digits=25%23", nil)
	cb, err := ParseFlowCallback(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.Digits != "25#" {
		t.Fatalf("expected 25#, got %q", cb.Digits)
	}
}

func TestParseFlowCallback_MissingSidRejected(t *testing.T) {
	req := httptest.NewRequest("GET", "/flow?digits=1", nil)
	if _, err := ParseFlowCallback(req); err == nil {
		t.Fatalf("expected error for missing CallSid")
	}
}

func TestParseFlowCallback_MalformedCustomFieldIgnored(t *testing.T) {
	req := httptest.NewRequest("GET", "/flow?CallSid=CA1&CustomField=not-json", nil)
	cb, err := ParseFlowCallback(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.HasContext {
		t.Fatalf("malformed custom field must not set context")
	}
}

func TestParseStatusCallback_Form(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA9")
	form.Set("CallStatus", "completed")
	form.Set("Duration", "48")
	form.Set("RecordingUrl", "https://recordings.example.com/CA9.mp3")

	req := httptest.NewRequest("POST", "/webhooks/exotel/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	cb, err := ParseStatusCallback(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.CallSid != "CA9" || !cb.Completed() || cb.DurationSeconds != 48 {
		t.Fatalf("unexpected callback: %+v", cb)
	}
	if cb.RecordingURL == "" {
		t.Fatalf("recording url lost")
	}
}

func TestParseStatusCallback_StatusFieldFallback(t *testing.T) {
	form := url.Values{}
	form.Set("CallSid", "CA9")
	form.Set("Status", "no-answer")

	req := httptest.NewRequest("POST", "/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	cb, err := ParseStatusCallback(req)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cb.CallStatus != "no-answer" || cb.Completed() {
		t.Fatalf("unexpected status: %+v", cb)
	}
}
