// Package veoapi adapts the hosted Veo task API to the provider contract.
// The service accepts pre-hosted image inputs only, so raw assets go through
// its base64 upload endpoint first.
package veoapi

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"vidforge/server/internal/infra"
	"vidforge/server/internal/providers"
)

// ErrMissingAPIKey indicates the client was configured without credentials.
var ErrMissingAPIKey = errors.New("veoapi: api key is required")

// Options configures the Veo API client.
type Options struct {
	APIKey         string
	BaseURL        string
	UploadPath     string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client performs HTTP calls against the Veo task endpoints.
type Client struct {
	apiKey     string
	baseURL    string
	uploadPath string
	httpClient *http.Client
	logger     *infra.Logger
}

type generateRequest struct {
	Prompt            string   `json:"prompt"`
	Model             string   `json:"model"`
	GenerationType    string   `json:"generationType"`
	AspectRatio       string   `json:"aspectRatio,omitempty"`
	EnableTranslation bool     `json:"enableTranslation"`
	ImageURLs         []string `json:"imageUrls,omitempty"`
	Seeds             *int     `json:"seeds,omitempty"`
	Watermark         string   `json:"watermark,omitempty"`
}

type generateResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID string `json:"taskId"`
	} `json:"data"`
}

type taskResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data struct {
		TaskID       string   `json:"taskId"`
		Status       string   `json:"status"`
		ResultURLs   []string `json:"resultUrls"`
		ErrorMessage string   `json:"errorMessage"`
	} `json:"data"`
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

// Submit starts a generation task and returns the provider task id. A non-200
// application code is a failure even on HTTP 200.
func (c *Client) Submit(ctx context.Context, req providers.SubmitRequest) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	payload := generateRequest{
		Prompt:            strings.TrimSpace(req.Prompt),
		Model:             req.Model,
		GenerationType:    generationType(req),
		AspectRatio:       req.AspectRatio,
		EnableTranslation: req.EnableTranslation,
		ImageURLs:         req.ImageURLs,
		Watermark:         strings.TrimSpace(req.Watermark),
	}
	if req.Seed > 0 {
		payload.Seeds = &req.Seed
	}

	var decoded generateResponse
	if err := c.postJSON(ctx, c.baseURL+"/veo/generate", payload, &decoded); err != nil {
		return "", err
	}
	if decoded.Code != 200 {
		return "", &providers.Error{Message: decoded.Msg, Code: fmt.Sprint(decoded.Code)}
	}
	taskID := strings.TrimSpace(decoded.Data.TaskID)
	if taskID == "" {
		return "", providers.Errorf("veoapi: submit accepted without a task id")
	}
	c.logger.Debug().Str("model", req.Model).Str("task_id", taskID).Msg("veoapi: task submitted")
	return taskID, nil
}

// CheckStatus fetches the current state of a task.
func (c *Client) CheckStatus(ctx context.Context, taskID string) (providers.TaskStatus, error) {
	if !c.HasCredentials() {
		return providers.TaskStatus{}, ErrMissingAPIKey
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/veo/task/"+taskID, nil)
	if err != nil {
		return providers.TaskStatus{}, fmt.Errorf("veoapi: build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	var decoded taskResponse
	if err := c.do(httpReq, &decoded); err != nil {
		return providers.TaskStatus{}, err
	}
	if decoded.Code != 200 {
		return providers.TaskStatus{}, &providers.Error{Message: decoded.Msg, Code: fmt.Sprint(decoded.Code)}
	}
	return providers.TaskStatus{
		State:        translateStatus(decoded.Data.Status),
		ResultURLs:   decoded.Data.ResultURLs,
		ErrorMessage: decoded.Data.ErrorMessage,
	}, nil
}

// UploadAsset pushes raw bytes through the base64 upload endpoint and returns
// the hosted URL. success=false or a missing downloadUrl is a failure
// regardless of HTTP status.
func (c *Client) UploadAsset(ctx context.Context, data []byte, mime string) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	if len(data) == 0 {
		return "", providers.Errorf("veoapi: upload payload is empty")
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
		return fmt.Errorf("veoapi: encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("veoapi: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(httpReq, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("veoapi: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("veoapi: read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		var detail struct {
			Code int    `json:"code"`
			Msg  string `json:"msg"`
		}
		if err := json.Unmarshal(raw, &detail); err == nil && detail.Msg != "" {
			return &providers.Error{Message: detail.Msg, Code: fmt.Sprint(detail.Code)}
		}
		return providers.Errorf("veoapi: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("veoapi: decode response: %w", err)
	}
	return nil
}

func generationType(req providers.SubmitRequest) string {
	if len(req.ImageURLs) > 0 {
		return "REFERENCE_TO_VIDEO"
	}
	return "TEXT_TO_VIDEO"
}

func translateStatus(status string) providers.TaskState {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "pending", "waiting", "queued":
		return providers.TaskPending
	case "processing", "generating", "running":
		return providers.TaskProcessing
	case "success", "succeeded", "completed":
		return providers.TaskSuccess
	case "failed", "fail", "error":
		return providers.TaskFailed
	default:
		// Unknown states keep the poller waiting rather than guessing a
		// terminal outcome.
		return providers.TaskProcessing
	}
}

var _ providers.Adapter = (*Client)(nil)
