// Package market adapts the marketplace jobs API (createTask/recordInfo) to
// the provider contract. The marketplace hosts many models behind one
// endpoint pair; the model string selects the backend. Durations travel as
// bare numbers here, unlike the catalog's "5s" encoding, and results come
// back as a JSON string embedded in the record payload. Both quirks stay
// inside this package.
package market

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vidforge/server/internal/infra"
	"vidforge/server/internal/providers"
)

// ErrMissingAPIKey indicates the client was configured without credentials.
var ErrMissingAPIKey = errors.New("market: api key is required")

// Options configures the marketplace client.
type Options struct {
	APIKey         string
	BaseURL        string
	UploadPath     string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the marketplace job endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	uploadPath string
	httpClient *http.Client
	logger     *infra.Logger
}

type createTaskRequest struct {
	Model string    `json:"model"`
	Input taskInput `json:"input"`
}

type taskInput struct {
	Prompt         string   `json:"prompt,omitempty"`
	NegativePrompt string   `json:"negative_prompt,omitempty"`
	ImageURLs      []string `json:"image_urls,omitempty"`
	VideoURLs      []string `json:"video_urls,omitempty"`
	ContinueTaskID string   `json:"continue_task_id,omitempty"`
	Duration       string   `json:"duration,omitempty"`
	Resolution     string   `json:"resolution,omitempty"`
	AspectRatio    string   `json:"aspect_ratio,omitempty"`
	Seed           *int     `json:"seed,omitempty"`
}

type createTaskResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

type recordInfoResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID     string `json:"taskId"`
		State      string `json:"state"`
		ResultJSON string `json:"resultJson"`
		FailCode   string `json:"failCode"`
		FailMsg    string `json:"failMsg"`
	} `json:"data"`
}

type resultPayload struct {
	ResultURLs []string `json:"resultUrls"`
}

type uploadRequest struct {
	Base64Data string `json:"base64Data"`
	UploadPath string `json:"uploadPath"`
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
	Data    struct {
		DownloadURL string `json:"downloadUrl"`
	} `json:"data"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) (*Client, error) {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.kie.ai/api/v1"
	}
	uploadPath := strings.TrimSpace(opts.UploadPath)
	if uploadPath == "" {
		uploadPath = "user-uploads"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		uploadPath: uploadPath,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c.apiKey != ""
}

// Submit creates a marketplace task and returns its id.
func (c *Client) Submit(ctx context.Context, req providers.SubmitRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	payload := createTaskRequest{
		Model: req.Model,
		Input: taskInput{
			Prompt:         strings.TrimSpace(req.Prompt),
			NegativePrompt: strings.TrimSpace(req.NegativePrompt),
			ImageURLs:      req.ImageURLs,
			VideoURLs:      req.VideoURLs,
			ContinueTaskID: req.ContinueTaskID,
			Duration:       translateDuration(req.Duration),
			Resolution:     req.Resolution,
			AspectRatio:    req.AspectRatio,
		},
	}
	if req.Seed > 0 {
		payload.Input.Seed = &req.Seed
	}

	var decoded createTaskResponse
	if err := c.postJSON(ctx, c.baseURL+"/jobs/createTask", payload, &decoded); err != nil {
		return "", err
	}
	if decoded.Code != 200 {
		return "", &providers.Error{Message: decoded.Msg, Code: fmt.Sprint(decoded.Code)}
	}
	taskID := strings.TrimSpace(decoded.Data.TaskID)
	if taskID == "" {
		return "", providers.Errorf("market: task created without an id")
	}
	c.logger.Debug().Str("model", req.Model).Str("task_id", taskID).Msg("market: task submitted")
	return taskID, nil
}

// CheckStatus fetches the task record and unpacks the embedded result JSON.
func (c *Client) CheckStatus(ctx context.Context, taskID string) (providers.TaskStatus, error) {
	if !c.HasCredentials() {
		return providers.TaskStatus{}, ErrMissingAPIKey
	}
	endpoint := c.baseURL + "/jobs/recordInfo?taskId=" + url.QueryEscape(taskID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return providers.TaskStatus{}, fmt.Errorf("market: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	var decoded recordInfoResponse
	if err := c.do(httpReq, &decoded); err != nil {
		return providers.TaskStatus{}, err
	}
	if decoded.Code != 200 {
		return providers.TaskStatus{}, &providers.Error{Message: decoded.Msg, Code: fmt.Sprint(decoded.Code)}
	}

	status := providers.TaskStatus{State: translateState(decoded.Data.State)}
	switch status.State {
	case providers.TaskSuccess:
		if raw := strings.TrimSpace(decoded.Data.ResultJSON); raw != "" {
			var result resultPayload
			if err := json.Unmarshal([]byte(raw), &result); err != nil {
				return providers.TaskStatus{}, fmt.Errorf("market: decode result payload: %w", err)
			}
			status.ResultURLs = result.ResultURLs
		}
	case providers.TaskFailed:
		status.ErrorMessage = decoded.Data.FailMsg
		if status.ErrorMessage == "" {
			status.ErrorMessage = "task failed"
		}
	}
	return status, nil
}

// UploadAsset pushes raw bytes through the shared base64 upload endpoint.
func (c *Client) UploadAsset(ctx context.Context, data []byte, mime string) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	if len(data) == 0 {
		return "", providers.Errorf("market: upload payload is empty")
	}
	payload := uploadRequest{
		Base64Data: fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data)),
		UploadPath: c.uploadPath,
	}
	var decoded uploadResponse
	if err := c.postJSON(ctx, c.baseURL+"/file-base64-upload", payload, &decoded); err != nil {
		return "", err
	}
	if !decoded.Success || strings.TrimSpace(decoded.Data.DownloadURL) == "" {
		msg := decoded.Msg
		if msg == "" {
			msg = "upload rejected"
		}
		return "", &providers.Error{Message: msg, Code: fmt.Sprint(decoded.Code)}
	}
	return decoded.Data.DownloadURL, nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("market: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("market: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(httpReq, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("market: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("market: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Msg != "" {
			return &providers.Error{Message: detail.Msg, Code: fmt.Sprint(detail.Code)}
		}
		return providers.Errorf("market: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("market: decode response: %w", err)
	}
	return nil
}

// translateDuration strips the catalog's unit suffix; the marketplace wants
// bare seconds ("6s" becomes "6", "15" passes through).
func translateDuration(d string) string {
	return strings.TrimSuffix(strings.TrimSpace(d), "s")
}

func translateState(state string) providers.TaskState {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "waiting":
		return providers.TaskPending
	case "queuing", "generating":
		return providers.TaskProcessing
	case "success":
		return providers.TaskSuccess
	case "fail", "failed":
		return providers.TaskFailed
	default:
		return providers.TaskProcessing
	}
}

var _ providers.Adapter = (*Client)(nil)
