package orchestrator

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vidforge/server/internal/domain"
)

// Materializer fetches a finished artifact from the provider's URL and
// re-encodes it into an embeddable form. It never retries: a failed download
// after a successful generation must not re-trigger billing, so retries
// belong to the caller.
type Materializer struct {
	httpClient *http.Client
}

// NewMaterializer constructs a materializer; a nil client gets a default with
// a generous timeout for large artifacts.
func NewMaterializer(client *http.Client) *Materializer {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	return &Materializer{httpClient: client}
}

// FetchArtifact downloads the artifact and returns its bytes and MIME type.
// A non-success HTTP status yields a download failure.
func (m *Materializer) FetchArtifact(ctx context.Context, resultURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
	if err != nil {
		return nil, "", domain.Failuref(domain.FailureDownload, "invalid artifact url: %v", err)
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, "", domain.Failuref(domain.FailureDownload, "fetch artifact: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", domain.Failuref(domain.FailureDownload, "artifact fetch returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", domain.Failuref(domain.FailureDownload, "read artifact: %v", err)
	}
	mime := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if mime == "" {
		mime = "application/octet-stream"
	}
	return data, mime, nil
}

// DataURL encodes artifact bytes into a base64 data URL for storage and
// transport.
func DataURL(data []byte, mime string) string {
	return fmt.Sprintf("data:%s;base64,%s", mime, base64.StdEncoding.EncodeToString(data))
}
