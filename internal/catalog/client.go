package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/feedvault/feedvault/internal/model"
)

// Client reads the transport.data.gouv.fr dataset catalog and fetches the
// files its entries point at.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// noRedirect keeps Location headers visible on HEAD probes.
	noRedirect *http.Client
}

// NewClient creates a catalog client for the given base URL.
func NewClient(baseURL string) *Client {
	timeout := 60 * time.Second
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		noRedirect: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// ListResources fetches every dataset and yields its resources as normalized
// (dataset, resource) pairs. Entries without a retrievable URL or a title are
// dropped here so the core never sees them. Any failure is fatal for the
// caller's run: nothing downstream is meaningful without the catalog.
func (c *Client) ListResources(ctx context.Context) ([]model.Resource, error) {
	response, err := c.doRequest(ctx, "GET", "/api/datasets", map[string]string{
		"Accept": "application/json",
	})
	if err != nil {
		return nil, c.toClientError(err, "failed to fetch dataset catalog")
	}
	defer response.Body.Close()

	if response.StatusCode != 200 {
		return nil, c.toClientError(
			&apiError{StatusCode: response.StatusCode, Message: "catalog request failed"},
			"failed to fetch dataset catalog",
		)
	}

	var datasets []datasetJSON
	if err := json.NewDecoder(response.Body).Decode(&datasets); err != nil {
		return nil, c.toClientError(err, "failed to decode dataset catalog")
	}

	var resources []model.Resource
	for _, d := range datasets {
		ds, err := d.dataset()
		if err != nil {
			return nil, c.toClientError(err, "invalid dataset entry")
		}
		for _, r := range d.Resources {
			if r.URL == "" || r.Title == "" {
				continue
			}
			resources = append(resources, r.toModel(ds))
		}
	}

	slog.DebugContext(ctx, "catalog listed", "datasets", len(datasets), "resources", len(resources))
	return resources, nil
}

// Download fetches the resource bytes, following redirects. The caller must
// close the returned body.
func (c *Client) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != 200 {
		resp.Body.Close()
		return nil, &apiError{StatusCode: resp.StatusCode, Message: "failed to download resource"}
	}

	return resp.Body, nil
}

// Head probes a resource URL, following at most one Location redirect the way
// mirrors publish signed URLs. The result is diagnostic only, never
// authoritative for freshness.
func (c *Client) Head(ctx context.Context, url string) (http.Header, error) {
	resp, err := c.head(ctx, url)
	if err != nil {
		return nil, err
	}
	if location := resp.Header.Get("Location"); location != "" {
		resp, err = c.head(ctx, location)
		if err != nil {
			return nil, err
		}
	}
	return resp.Header, nil
}

func (c *Client) head(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "HEAD", url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.noRedirect.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}

func (c *Client) doRequest(ctx context.Context, method, path string, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	return c.httpClient.Do(req)
}

// toClientError wraps an internal error into a ClientError for external
// consumers.
func (c *Client) toClientError(err error, context string) error {
	if err == nil {
		return nil
	}
	return &ClientError{
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}
