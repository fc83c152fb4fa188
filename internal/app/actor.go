package app

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/ai"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
)

// imageTrigger marks an inbound message that should receive an illustration
// after the text reply. It is stripped before storage, retrieval, and
// generation.
const imageTrigger = "!image"

var mentionPattern = regexp.MustCompile(`<@[A-Za-z0-9]+>`)

// HandleEvent runs one inbound event through the conversation state
// machine. It is called from the conversation's actor goroutine, so all
// steps for one conversation are serialized.
func (a *App) HandleEvent(ctx context.Context, ev domain.InboundEvent) {
	logger := a.logger.With("conversation", ev.Conversation)

	// Attachment branch: files are ingested, never forwarded to generation.
	if len(ev.Files) > 0 {
		a.handleAttachments(ctx, ev)
		return
	}

	clean, wantsImage := cleanInbound(ev.Text)
	if clean == "" {
		return
	}

	count, err := a.store.CountTurnsByRole(ev.Conversation, domain.RoleAssistant)
	if err != nil {
		logger.Error("quota check failed", "err", err)
		a.post(ctx, ev, transportNotice)
		return
	}
	if count >= a.responseLimit {
		logger.Info("conversation quota reached", "count", count, "limit", a.responseLimit)
		a.post(ctx, ev, fmt.Sprintf(limitNotice, a.responseLimit))
		return
	}

	// The user's own input is always stored, even if generation fails later.
	if _, err := a.store.AppendTurn(ev.Conversation, domain.RoleUser, clean); err != nil {
		logger.Error("append user turn failed", "err", err)
		a.post(ctx, ev, transportNotice)
		return
	}

	history, err := a.store.RecentTurns(ev.Conversation, a.historyWindow)
	if err != nil {
		logger.Error("fetch history failed", "err", err)
		a.post(ctx, ev, transportNotice)
		return
	}

	grounding := a.retrieve(ctx, clean)
	system := buildSystemInstruction(grounding)

	reply, err := a.generateReply(ctx, system, history)
	if err != nil {
		var refusal *ai.RefusalError
		if errors.As(err, &refusal) {
			logger.Warn("generation refused", "reason", refusal.Reason)
			a.post(ctx, ev, fmt.Sprintf(refusalNotice, refusal.Reason))
		} else {
			logger.Error("generation failed", "err", err)
			a.post(ctx, ev, transportNotice)
		}
		return
	}

	if _, err := a.store.AppendTurn(ev.Conversation, domain.RoleAssistant, reply); err != nil {
		logger.Error("append assistant turn failed", "err", err)
		a.post(ctx, ev, transportNotice)
		return
	}
	a.post(ctx, ev, reply)

	if wantsImage {
		a.post(ctx, ev, imageStartNotice)
		if err := a.runImageWorkflow(ctx, ev, clean, reply); err != nil {
			// The text reply already went out; image failures only notify.
			logger.Warn("image workflow failed", "err", err)
			a.post(ctx, ev, fmt.Sprintf(imageFailNotice, imageFailureReason(err)))
		}
	}
}

func (a *App) handleAttachments(ctx context.Context, ev domain.InboundEvent) {
	logger := a.logger.With("conversation", ev.Conversation)
	for _, file := range ev.Files {
		if !strings.EqualFold(file.Mimetype, "application/pdf") {
			a.post(ctx, ev, fmt.Sprintf(ingestSkipNotice, file.Title))
			continue
		}
		count, err := a.ingestFile(ctx, ev.Conversation, file)
		if err != nil {
			// Per-file isolation: a failed file never aborts its siblings.
			logger.Error("ingestion failed", "file", file.Title, "err", err)
			a.post(ctx, ev, fmt.Sprintf(ingestFailNotice, file.Title, err))
			continue
		}
		logger.Info("file ingested", "file", file.Title, "chunks", count)
		a.post(ctx, ev, fmt.Sprintf(ingestedNotice, file.Title, count))
	}
}

func (a *App) post(ctx context.Context, ev domain.InboundEvent, text string) {
	if err := a.messenger.PostMessage(ctx, ev.Conversation, text, ev.ThreadRef); err != nil {
		a.logger.Error("post message failed", "conversation", ev.Conversation, "err", err)
	}
}

// cleanInbound strips platform mention tokens and the image trigger, and
// reports whether the trigger was present.
func cleanInbound(text string) (string, bool) {
	wantsImage := strings.Contains(text, imageTrigger)
	text = strings.ReplaceAll(text, imageTrigger, "")
	text = mentionPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text), wantsImage
}

func buildSystemInstruction(grounding string) string {
	return strategyContext +
		"\n\n=== RETRIEVED KNOWLEDGE ===\n" + grounding +
		"\n\n" + systemInstructions
}
