// Package camdb implements the HTTP client for the remote CamDB API.
package camdb

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/matchmove/camdb/internal/domain"
)

const (
	// DefaultBaseURL is the public CamDB endpoint.
	DefaultBaseURL = "https://camdb.matchmovemachine.com"

	defaultTimeout = 30 * time.Second
	userAgent      = "camdb-go/1.0"

	// Cap on response bytes kept for diagnostics on error statuses.
	errorBodyLimit = 4096
)

// Client implements domain.CatalogClient against the CamDB HTTP API.
// Each call makes exactly one attempt; failures are reported, not
// retried.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a CamDB API client. An empty baseURL selects the
// public endpoint; a non-positive timeout selects the default.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// FetchCameras retrieves the full camera list.
func (c *Client) FetchCameras(ctx context.Context) ([]domain.Camera, error) {
	body, err := c.doRequest(ctx, "cameras", "/cameras/")
	if err != nil {
		return nil, err
	}

	var dtos []cameraDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		c.logger.Error("camera payload parse error", "error", err, "bodyLen", len(body))
		return nil, &domain.FetchError{Kind: domain.FetchBadPayload, Op: "cameras", Err: err}
	}
	return mapCameras(dtos), nil
}

// FetchSensorModes retrieves the sensor modes for one camera. The API
// has served the list bare, wrapped in an envelope, and as a single
// object; all shapes are accepted.
func (c *Client) FetchSensorModes(ctx context.Context, cameraID int64) ([]domain.SensorMode, error) {
	path := fmt.Sprintf("/cameras/%d/sensors/", cameraID)
	body, err := c.doRequest(ctx, "sensors", path)
	if err != nil {
		return nil, err
	}

	dtos, err := decodeSensorPayload(body)
	if err != nil {
		c.logger.Error("sensor payload parse error", "error", err, "cameraID", cameraID, "bodyLen", len(body))
		return nil, &domain.FetchError{Kind: domain.FetchBadPayload, Op: "sensors", Err: err}
	}
	return mapSensorModes(cameraID, dtos), nil
}

// doRequest performs a GET against the API, requesting compressed
// transport and transparently decoding gzip or deflate bodies.
func (c *Client) doRequest(ctx context.Context, op, path string) ([]byte, error) {
	reqURL := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, text/plain, */*")
	// Setting Accept-Encoding explicitly disables Go's transparent
	// decompression, so the Content-Encoding switch below is ours.
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("camdb request", "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("camdb request failed", "url", reqURL, "error", err)
		return nil, &domain.FetchError{Kind: domain.FetchUnreachable, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		c.logger.Error("camdb request error", "url", reqURL, "status", resp.StatusCode, "body", string(snippet))
		return nil, &domain.FetchError{
			Kind:   domain.FetchHTTPStatus,
			Op:     op,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status code: %d", resp.StatusCode),
		}
	}

	var reader io.Reader = resp.Body
	switch strings.ToLower(resp.Header.Get("Content-Encoding")) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &domain.FetchError{Kind: domain.FetchBadPayload, Op: op, Err: err}
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, &domain.FetchError{Kind: domain.FetchBadPayload, Op: op, Err: err}
		}
		defer zr.Close()
		reader = zr
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &domain.FetchError{Kind: domain.FetchBadPayload, Op: op, Err: err}
	}
	return body, nil
}
