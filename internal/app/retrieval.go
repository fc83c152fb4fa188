package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
)

// retrieve embeds the query, fetches the nearest chunks, and renders them
// into a grounding block. Retrieval never fails the request: any error or
// empty match set degrades to the explicit no-context marker so generation
// proceeds ungrounded.
func (a *App) retrieve(ctx context.Context, query string) string {
	vec, err := a.embedder.EmbedText(ctx, query, "RETRIEVAL_QUERY")
	if err != nil {
		a.logger.Warn("query embedding failed", "err", err)
		return noContextMarker
	}
	matches, err := a.store.SearchChunks(vec, a.topK)
	if err != nil {
		a.logger.Warn("chunk search failed", "err", err)
		return noContextMarker
	}
	return renderGrounding(matches)
}

// renderGrounding formats matches in the order returned by the index
// (similarity-descending).
func renderGrounding(matches []domain.ChunkMatch) string {
	if len(matches) == 0 {
		return noContextMarker
	}
	blocks := make([]string, len(matches))
	for i, match := range matches {
		blocks[i] = fmt.Sprintf("SOURCE: %s\nCONTENT: %s", match.Source, match.Content)
	}
	return strings.Join(blocks, "\n\n")
}
