package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient("https://hooks.slack.com/services/T/B/X")
	if err != nil {
		t.Fatal(err)
	}
	if c.WebhookURL != "https://hooks.slack.com/services/T/B/X" {
		t.Errorf("WebhookURL = %q", c.WebhookURL)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK", "")
	t.Setenv("SLACK_WEBHOOK_URL", "https://hooks.slack.com/services/T/B/Y")

	c, err := NewClient("")
	if err != nil {
		t.Fatal(err)
	}
	if c.WebhookURL != "https://hooks.slack.com/services/T/B/Y" {
		t.Errorf("WebhookURL = %q", c.WebhookURL)
	}
}

func TestNewClientNoURL(t *testing.T) {
	t.Setenv("SLACK_WEBHOOK", "")
	t.Setenv("SLACK_WEBHOOK_URL", "")
	if _, err := NewClient(""); err == nil {
		t.Fatal("expected an error without a webhook URL")
	}
}

func TestSend(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding payload: %v", err)
		}
		fmt.Fprint(w, "ok")
	}))
	defer srv.Close()

	c := &Client{WebhookURL: srv.URL, HTTPClient: srv.Client()}
	msg := CIReport([]string{"orders", "customers"}, ReportMeta{ProjectName: "myproj", Branch: "feature/x", CommitSHA: "abc1234"})
	if err := c.Send(context.Background(), msg); err != nil {
		t.Fatal(err)
	}

	if got.Text != "2 modified model(s) detected" {
		t.Errorf("fallback text = %q", got.Text)
	}
	if len(got.Blocks) != 2 {
		t.Fatalf("got %d blocks, want section + context", len(got.Blocks))
	}
}

func TestSendNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_payload", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := &Client{WebhookURL: srv.URL, HTTPClient: srv.Client()}
	err := c.Send(context.Background(), Message{Text: "hi"})
	if err == nil {
		t.Fatal("expected an error on HTTP 400")
	}
	if !strings.Contains(err.Error(), "400") || !strings.Contains(err.Error(), "invalid_payload") {
		t.Errorf("err = %v, want status and body included", err)
	}
}

func TestCIReportTruncatesLongLists(t *testing.T) {
	modified := make([]string, maxListedNodes+7)
	for i := range modified {
		modified[i] = fmt.Sprintf("model_%d", i)
	}

	msg := CIReport(modified, ReportMeta{})
	body := msg.Blocks[0]["text"].(map[string]any)["text"].(string)

	if !strings.Contains(body, "... and 7 more") {
		t.Errorf("body missing truncation marker:\n%s", body)
	}
	if strings.Contains(body, "model_25") {
		t.Error("names past the cap must not be listed")
	}
}

func TestCIReportEmpty(t *testing.T) {
	msg := CIReport(nil, ReportMeta{ProjectName: "myproj"})
	if msg.Text != "No modified models detected" {
		t.Errorf("text = %q", msg.Text)
	}
	if len(msg.Blocks) != 1 {
		t.Errorf("got %d blocks, want just the section", len(msg.Blocks))
	}
}
