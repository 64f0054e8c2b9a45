package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gulautos/storefront-backend/pkg/config"
	"github.com/gulautos/storefront-backend/pkg/logger"
)

const (
	googleEndpoint = "https://storage.googleapis.com"
	pingTimeout    = 5 * time.Second
)

// ErrObjectNotFound is returned when the object does not exist in the bucket.
var ErrObjectNotFound = errors.New("gcs object not found")

// Client talks to the Cloud Storage JSON API for a single bucket.
type Client struct {
	httpClient    *http.Client
	bucket        string
	endpoint      string
	publicBaseURL string
	tokens        tokenProvider
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// NewClient builds a client and verifies the bucket is reachable. A non-Google
// endpoint (an emulator) is used without credentials.
func NewClient(ctx context.Context, cfg config.GCSConfig, gcp config.GCPConfig, logg *logger.Logger) (*Client, error) {
	if cfg.BucketName == "" {
		return nil, errors.New("gcs bucket name is required")
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		endpoint = googleEndpoint
	}

	var tokens tokenProvider
	var err error
	switch {
	case endpoint != googleEndpoint:
		tokens = anonymousTokens{}
	case gcp.CredentialsJSON != "":
		tokens, err = serviceAccountTokens(httpClient, []byte(gcp.CredentialsJSON))
	case gcp.ApplicationCredentials != "":
		raw, readErr := os.ReadFile(gcp.ApplicationCredentials)
		if readErr != nil {
			return nil, fmt.Errorf("reading credentials file: %w", readErr)
		}
		tokens, err = serviceAccountTokens(httpClient, raw)
	default:
		tokens = metadataTokens()
	}
	if err != nil {
		return nil, err
	}

	client := newClient(httpClient, cfg.BucketName, endpoint, cfg.PublicBaseURL, tokens)
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("gcs health check failed: %w", err)
	}
	if logg != nil {
		logg.Info(logg.WithField(ctx, "bucket", cfg.BucketName), "gcs client initialized")
	}
	return client, nil
}

func newClient(httpClient *http.Client, bucket, endpoint, publicBaseURL string, tokens tokenProvider) *Client {
	publicBaseURL = strings.TrimRight(publicBaseURL, "/")
	if publicBaseURL == "" {
		publicBaseURL = endpoint
	}
	return &Client{
		httpClient:    httpClient,
		bucket:        bucket,
		endpoint:      endpoint,
		publicBaseURL: publicBaseURL,
		tokens:        tokens,
	}
}

func (c *Client) Bucket() string {
	return c.bucket
}

// PublicURL returns the browser-facing URL of an object.
func (c *Client) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", c.publicBaseURL, c.bucket, escapeObjectPath(key))
}

// Upload writes body to key with the given content type.
func (c *Client) Upload(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("object key is required")
	}
	u := fmt.Sprintf("%s/upload/storage/v1/b/%s/o?uploadType=media&name=%s",
		c.endpoint, url.PathEscape(c.bucket), url.QueryEscape(key))

	req, err := c.newRequest(ctx, http.MethodPost, u, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if size >= 0 {
		req.ContentLength = size
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return responseError("upload", resp)
	}
	return nil
}

// Delete removes key from the bucket. A missing object yields ErrObjectNotFound.
func (c *Client) Delete(ctx context.Context, key string) error {
	u := fmt.Sprintf("%s/storage/v1/b/%s/o/%s", c.endpoint, url.PathEscape(c.bucket), url.PathEscape(key))

	req, err := c.newRequest(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrObjectNotFound
	default:
		return responseError("delete", resp)
	}
}

// Ping lists at most one object to check credentials and bucket access.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.tokens == nil {
		return errors.New("gcs client not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	u := fmt.Sprintf("%s/storage/v1/b/%s/o?maxResults=1", c.endpoint, url.PathEscape(c.bucket))
	req, err := c.newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return responseError("object check", resp)
	}
	return nil
}

func (c *Client) Close() error {
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, u string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func responseError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("gcs %s failed: %s: %s", op, resp.Status, apiErr.Error.Message)
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return fmt.Errorf("gcs %s failed: %s: %s", op, resp.Status, msg)
	}
	return fmt.Errorf("gcs %s failed: %s", op, resp.Status)
}

func escapeObjectPath(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
