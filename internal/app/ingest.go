package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/avhust/ai-slack-bot-on-cloudflare/internal/util"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/ai"
	"github.com/avhust/ai-slack-bot-on-cloudflare/pkg/domain"
)

var pdfMagic = []byte("%PDF-")

// ingestFile runs the full pipeline for one attachment: download, validate,
// extract, chunk, embed in batches, upsert. It returns the number of chunks
// written to the vector index.
func (a *App) ingestFile(ctx context.Context, conv string, file domain.FileRef) (int, error) {
	logger := a.logger.With("conversation", conv, "file", file.Title, "trace_id", util.NewID())

	data, err := a.downloadFile(ctx, file.SourceURL)
	if err != nil {
		return 0, err
	}

	// The signature check runs before parsing: an auth redirect served as
	// an HTML login page fails here with the observed header instead of a
	// confusing parse error.
	if len(data) < len(pdfMagic) || !bytes.Equal(data[:len(pdfMagic)], pdfMagic) {
		header := data
		if len(header) > len(pdfMagic) {
			header = header[:len(pdfMagic)]
		}
		return 0, &FormatError{Header: header}
	}

	if a.archiver != nil {
		key := fmt.Sprintf("conversations/%s/%s-%s", conv, file.ID, file.Title)
		if err := a.archiver.Archive(ctx, key, data, "application/pdf"); err != nil {
			// Archival is best-effort; the pipeline continues.
			logger.Warn("archive failed", "key", key, "err", err)
		}
	}

	text, err := a.extract(data)
	if err != nil {
		return 0, &ExtractionError{Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return 0, ErrEmptyContent
	}

	parts := chunkText(text, a.chunkSize, a.chunkOverlap)
	chunks := make([]domain.DocumentChunk, len(parts))
	for i, part := range parts {
		chunks[i] = domain.DocumentChunk{
			// Deterministic IDs make re-ingestion overwrite, not duplicate.
			ID:          fmt.Sprintf("%s-%d", file.ID, i),
			FileID:      file.ID,
			Seq:         i,
			SourceTitle: file.Title,
			Content:     part,
		}
	}
	if err := a.embedAndUpsert(ctx, chunks); err != nil {
		return 0, err
	}
	logger.Info("chunks indexed", "count", len(chunks))
	return len(chunks), nil
}

func (a *App) downloadFile(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	if a.fileToken != "" {
		req.Header.Set("Authorization", "Bearer "+a.fileToken)
	}
	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &DownloadError{URL: url, Status: resp.StatusCode}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &DownloadError{URL: url, Err: err}
	}
	return data, nil
}

// embedAndUpsert batches chunks, embeds each batch, and upserts it.
// Batching bounds peak request size to the embedding provider; the worker
// limit bounds provider load (1 keeps batches strictly sequential).
func (a *App) embedAndUpsert(ctx context.Context, chunks []domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batchSize := a.embedBatchSize
	batches := make([][]domain.DocumentChunk, 0, (len(chunks)/batchSize)+1)
	for i := 0; i < len(chunks); i += batchSize {
		end := i + batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batches = append(batches, chunks[i:end])
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.embedConcurrency)
	for _, batch := range batches {
		b := batch
		g.Go(func() error {
			return a.processBatch(gctx, b)
		})
	}
	return g.Wait()
}

func (a *App) processBatch(ctx context.Context, batch []domain.DocumentChunk) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Content
	}
	var embeddings [][]float32
	if batcher, ok := a.embedder.(ai.BatchEmbedder); ok {
		out, err := batcher.EmbedTexts(ctx, texts, "RETRIEVAL_DOCUMENT")
		if err != nil {
			return fmt.Errorf("embed batch: %w", err)
		}
		embeddings = out
	} else {
		embeddings = make([][]float32, len(texts))
		for i, text := range texts {
			vec, err := a.embedder.EmbedText(ctx, text, "RETRIEVAL_DOCUMENT")
			if err != nil {
				return fmt.Errorf("embed chunk: %w", err)
			}
			embeddings[i] = vec
		}
	}
	if len(embeddings) != len(batch) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(embeddings), len(batch))
	}
	for i := range batch {
		batch[i].Embedding = embeddings[i]
	}
	if err := a.store.UpsertChunks(batch); err != nil {
		return fmt.Errorf("upsert chunks: %w", err)
	}
	return nil
}

// chunkText splits text into overlapping chunks: each chunk is size runes
// long except possibly the last, and consecutive chunks share overlap
// runes, so start_{i+1} = start_i + (size - overlap). Concatenating the
// first size-overlap runes of every chunk reconstructs the input.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := size - overlap
	if step <= 0 {
		step = size
	}
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// extractPDFText pulls the plain-text layer out of a PDF payload.
// Individual unreadable pages are skipped; a document where every page
// fails comes back empty and is rejected by the caller.
func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
