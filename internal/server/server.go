package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/avhust/ai-slack-bot-on-cloudflare/internal/util"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/store"
)

const (
	maxBodyBytes     = 1 << 20
	signatureVersion = "v0"
	maxSignatureSkew = 5 * time.Minute
)

// Dispatcher routes inbound events to their conversation actors.
type Dispatcher interface {
	Dispatch(ev domain.InboundEvent)
}

// Config wires required dependencies for the HTTP server.
type Config struct {
	Dispatcher    Dispatcher
	Deduper       store.EventDeduper
	SigningSecret string
}

// Server exposes the webhook endpoint consumed by the messaging platform.
type Server struct {
	dispatcher    Dispatcher
	deduper       store.EventDeduper
	signingSecret string
	mux           *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		dispatcher:    cfg.Dispatcher,
		deduper:       cfg.Deduper,
		signingSecret: cfg.SigningSecret,
		mux:           http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(s.mux))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/slack/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// eventEnvelope is the outer payload of an events-API delivery.
type eventEnvelope struct {
	Type      string     `json:"type"`
	Challenge string     `json:"challenge"`
	EventID   string     `json:"event_id"`
	Event     innerEvent `json:"event"`
}

type innerEvent struct {
	Type     string      `json:"type"`
	BotID    string      `json:"bot_id"`
	Text     string      `json:"text"`
	Channel  string      `json:"channel"`
	ThreadTS string      `json:"thread_ts"`
	Files    []slackFile `json:"files"`
}

type slackFile struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Mimetype   string `json:"mimetype"`
	URLPrivate string `json:"url_private_download"`
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}
	if s.signingSecret != "" {
		if err := verifySignature(s.signingSecret, r.Header, body); err != nil {
			slog.Warn("webhook signature rejected", "err", err, "request_id", util.RequestIDFromRequest(r))
			writeError(w, http.StatusUnauthorized, "invalid signature")
			return
		}
	}

	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		writeError(w, http.StatusBadRequest, "parse payload")
		return
	}

	// Endpoint ownership handshake.
	if envelope.Type == "url_verification" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": envelope.Challenge})
		return
	}
	if envelope.Type != "event_callback" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	ev := envelope.Event
	// Our own posts come back as bot events; processing them would recurse.
	if ev.BotID != "" || (ev.Type != "message" && ev.Type != "app_mention") {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}
	if s.deduper != nil && envelope.EventID != "" {
		first, err := s.deduper.FirstDelivery(r.Context(), envelope.EventID)
		if err != nil {
			slog.Error("event dedup failed", "err", err, "event_id", envelope.EventID)
		} else if !first {
			writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
			return
		}
	}

	files := make([]domain.FileRef, 0, len(ev.Files))
	for _, f := range ev.Files {
		files = append(files, domain.FileRef{
			ID:        f.ID,
			Title:     f.Title,
			Mimetype:  f.Mimetype,
			SourceURL: f.URLPrivate,
		})
	}
	inbound := domain.InboundEvent{
		Conversation: ev.Channel,
		Text:         ev.Text,
		ThreadRef:    ev.ThreadTS,
		Files:        files,
	}

	// Ack immediately; the actor processes the event asynchronously.
	go s.dispatcher.Dispatch(inbound)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// verifySignature checks the platform's request signature: HMAC-SHA256 of
// "v0:<timestamp>:<body>" with the signing secret, compared in constant
// time, with a bounded timestamp skew against replays.
func verifySignature(secret string, header http.Header, body []byte) error {
	timestamp := header.Get("X-Slack-Request-Timestamp")
	signature := header.Get("X-Slack-Signature")
	if timestamp == "" || signature == "" {
		return fmt.Errorf("missing signature headers")
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return fmt.Errorf("parse timestamp: %w", err)
	}
	skew := time.Since(time.Unix(ts, 0))
	if math.Abs(skew.Seconds()) > maxSignatureSkew.Seconds() {
		return fmt.Errorf("timestamp outside allowed skew")
	}
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s:%s:", signatureVersion, timestamp)
	mac.Write(body)
	expected := signatureVersion + "=" + hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("signature mismatch")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
