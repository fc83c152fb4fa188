package slack

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultBaseURL = "https://slack.com/api"

// Upload protocol stages, used to tag phase failures so an operator can
// tell which of the three upload phases failed.
const (
	StageGetUploadURL = "get-upload-url"
	StageTransfer     = "transfer"
	StageComplete     = "complete"
)

// UploadStageError wraps a failure in one phase of the external upload
// protocol.
type UploadStageError struct {
	Stage string
	Err   error
}

func (e *UploadStageError) Error() string {
	return fmt.Sprintf("upload %s: %v", e.Stage, e.Err)
}

func (e *UploadStageError) Unwrap() error {
	return e.Err
}

// StageName reports which upload phase failed.
func (e *UploadStageError) StageName() string {
	return e.Stage
}

// Client calls the Slack Web API.
type Client struct {
	api  *resty.Client
	bare *resty.Client
}

// NewClient constructs a client authenticated with the bot token. baseURL
// is the API root; pass "" for the production endpoint.
func NewClient(baseURL, token string) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	return &Client{
		api: resty.New().
			SetBaseURL(baseURL).
			SetAuthToken(token).
			SetTimeout(30 * time.Second),
		// Phase-two uploads go to a one-time URL where the URL itself is
		// the credential; no auth header may be attached.
		bare: resty.New().SetTimeout(60 * time.Second),
	}
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type uploadURLResponse struct {
	apiResponse
	UploadURL string `json:"upload_url"`
	FileID    string `json:"file_id"`
}

// PostMessage posts text into a conversation, threaded when threadTS is
// non-empty.
func (c *Client) PostMessage(ctx context.Context, channel, text, threadTS string) error {
	payload := map[string]string{
		"channel": channel,
		"text":    text,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	var result apiResponse
	resp, err := c.api.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/chat.postMessage")
	if err != nil {
		return fmt.Errorf("post message: %w", err)
	}
	return checkAPI(resp, result)
}

// UploadFile shares a binary file into a conversation using the three-phase
// external upload protocol. Each phase failure aborts the remaining phases
// and is tagged with its stage.
func (c *Client) UploadFile(ctx context.Context, channel, threadTS, filename, title string, data []byte) error {
	// Phase a: request a one-time upload target for the exact byte length.
	var target uploadURLResponse
	resp, err := c.api.R().
		SetContext(ctx).
		SetQueryParam("filename", filename).
		SetQueryParam("length", strconv.Itoa(len(data))).
		SetResult(&target).
		Get("/files.getUploadURLExternal")
	if err != nil {
		return &UploadStageError{Stage: StageGetUploadURL, Err: err}
	}
	if err := checkAPI(resp, target.apiResponse); err != nil {
		return &UploadStageError{Stage: StageGetUploadURL, Err: err}
	}
	if target.UploadURL == "" || target.FileID == "" {
		return &UploadStageError{Stage: StageGetUploadURL, Err: fmt.Errorf("missing upload_url or file_id")}
	}

	// Phase b: transfer the raw bytes to the one-time URL.
	transferResp, err := c.bare.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(data).
		Post(target.UploadURL)
	if err != nil {
		return &UploadStageError{Stage: StageTransfer, Err: err}
	}
	if transferResp.IsError() {
		return &UploadStageError{Stage: StageTransfer, Err: fmt.Errorf("status %s", transferResp.Status())}
	}

	// Phase c: finalize and share the file into the conversation.
	payload := map[string]any{
		"files":      []map[string]string{{"id": target.FileID, "title": title}},
		"channel_id": channel,
	}
	if threadTS != "" {
		payload["thread_ts"] = threadTS
	}
	var result apiResponse
	completeResp, err := c.api.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&result).
		Post("/files.completeUploadExternal")
	if err != nil {
		return &UploadStageError{Stage: StageComplete, Err: err}
	}
	if err := checkAPI(completeResp, result); err != nil {
		return &UploadStageError{Stage: StageComplete, Err: err}
	}
	return nil
}

func checkAPI(resp *resty.Response, result apiResponse) error {
	if resp.IsError() {
		return fmt.Errorf("slack api status %s", resp.Status())
	}
	if !result.OK {
		if result.Error != "" {
			return fmt.Errorf("slack api error: %s", result.Error)
		}
		return fmt.Errorf("slack api returned ok=false")
	}
	return nil
}
