package server

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/store"
)

type capturingDispatcher struct {
	events chan domain.InboundEvent
}

func newCapturingDispatcher() *capturingDispatcher {
	return &capturingDispatcher{events: make(chan domain.InboundEvent, 8)}
}

func (d *capturingDispatcher) Dispatch(ev domain.InboundEvent) {
	d.events <- ev
}

func (d *capturingDispatcher) wait(t *testing.T) domain.InboundEvent {
	t.Helper()
	select {
	case ev := <-d.events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event dispatched")
		return domain.InboundEvent{}
	}
}

func (d *capturingDispatcher) expectNone(t *testing.T) {
	t.Helper()
	select {
	case ev := <-d.events:
		t.Fatalf("unexpected dispatch: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

const testSecret = "shhh-secret"

func sign(secret string, ts int64, body []byte) (string, string) {
	timestamp := strconv.FormatInt(ts, 10)
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(body)
	return timestamp, "v0=" + hex.EncodeToString(mac.Sum(nil))
}

func postSigned(t *testing.T, url string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	timestamp, signature := sign(testSecret, time.Now().Unix(), body)
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", signature)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func newTestServer(t *testing.T, dispatcher Dispatcher, deduper store.EventDeduper) *httptest.Server {
	t.Helper()
	s := New(Config{
		Dispatcher:    dispatcher,
		Deduper:       deduper,
		SigningSecret: testSecret,
	})
	srv := httptest.NewServer(s.Router())
	t.Cleanup(srv.Close)
	return srv
}

func TestURLVerificationChallenge(t *testing.T) {
	d := newCapturingDispatcher()
	srv := newTestServer(t, d, nil)

	body := []byte(`{"type":"url_verification","challenge":"abc123"}`)
	resp := postSigned(t, srv.URL+"/slack/events", body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out map[string]string
	json.NewDecoder(resp.Body).Decode(&out)
	if out["challenge"] != "abc123" {
		t.Fatalf("expected challenge echo, got %v", out)
	}
	d.expectNone(t)
}

func TestRejectsBadSignature(t *testing.T) {
	d := newCapturingDispatcher()
	srv := newTestServer(t, d, nil)

	body := []byte(`{"type":"event_callback"}`)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", strconv.FormatInt(time.Now().Unix(), 10))
	req.Header.Set("X-Slack-Signature", "v0=deadbeef")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
	d.expectNone(t)
}

func TestRejectsStaleTimestamp(t *testing.T) {
	d := newCapturingDispatcher()
	srv := newTestServer(t, d, nil)

	body := []byte(`{"type":"url_verification","challenge":"x"}`)
	timestamp, signature := sign(testSecret, time.Now().Add(-10*time.Minute).Unix(), body)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/slack/events", bytes.NewReader(body))
	req.Header.Set("X-Slack-Request-Timestamp", timestamp)
	req.Header.Set("X-Slack-Signature", signature)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("replayed timestamp must be rejected, got %d", resp.StatusCode)
	}
}

func TestMessageEventDispatched(t *testing.T) {
	d := newCapturingDispatcher()
	srv := newTestServer(t, d, nil)

	body := []byte(`{
		"type": "event_callback",
		"event_id": "Ev1",
		"event": {
			"type": "message",
			"channel": "C42",
			"text": "hello bot",
			"thread_ts": "171.001",
			"files": [
				{"id":"F1","title":"doc.pdf","mimetype":"application/pdf","url_private_download":"https://files.example/doc"}
			]
		}
	}`)
	resp := postSigned(t, srv.URL+"/slack/events", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	ev := d.wait(t)
	if ev.Conversation != "C42" || ev.Text != "hello bot" || ev.ThreadRef != "171.001" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if len(ev.Files) != 1 || ev.Files[0].ID != "F1" || ev.Files[0].SourceURL != "https://files.example/doc" {
		t.Fatalf("unexpected files: %+v", ev.Files)
	}
}

func TestBotEventsIgnored(t *testing.T) {
	d := newCapturingDispatcher()
	srv := newTestServer(t, d, nil)

	body := []byte(`{
		"type": "event_callback",
		"event_id": "Ev2",
		"event": {"type": "message", "bot_id": "B99", "channel": "C42", "text": "my own reply"}
	}`)
	resp := postSigned(t, srv.URL+"/slack/events", body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 ack, got %d", resp.StatusCode)
	}
	d.expectNone(t)
}

func TestNonMessageEventsIgnored(t *testing.T) {
	d := newCapturingDispatcher()
	srv := newTestServer(t, d, nil)

	body := []byte(`{
		"type": "event_callback",
		"event_id": "Ev3",
		"event": {"type": "reaction_added", "channel": "C42"}
	}`)
	resp := postSigned(t, srv.URL+"/slack/events", body)
	resp.Body.Close()
	d.expectNone(t)
}

func TestRetriedDeliveriesDeduplicated(t *testing.T) {
	d := newCapturingDispatcher()
	srv := newTestServer(t, d, store.NewMemoryDeduper(time.Hour))

	body := []byte(`{
		"type": "event_callback",
		"event_id": "Ev4",
		"event": {"type": "message", "channel": "C42", "text": "once please"}
	}`)
	for i := 0; i < 3; i++ {
		resp := postSigned(t, srv.URL+"/slack/events", body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("delivery %d: expected 200, got %d", i, resp.StatusCode)
		}
	}
	d.wait(t)
	d.expectNone(t)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, newCapturingDispatcher(), nil)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
