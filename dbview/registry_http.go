package dbview

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// CustomColumnList is the registry's list envelope.
type CustomColumnList struct {
	Count   int               `json:"count"`
	Results []CustomColumnDef `json:"results"`
}

// HTTPRegistry talks to the custom column endpoints of a dbview service.
type HTTPRegistry struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPRegistry returns a registry client rooted at baseURL.
func NewHTTPRegistry(baseURL string) *HTTPRegistry {
	return &HTTPRegistry{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *HTTPRegistry) endpoint(stateKey string) string {
	return fmt.Sprintf("%s/api/custom-columns/%s", strings.TrimRight(r.BaseURL, "/"), url.PathEscape(stateKey))
}

func (r *HTTPRegistry) client() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

func (r *HTTPRegistry) List(ctx context.Context, stateKey string) ([]CustomColumnDef, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint(stateKey), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client().Do(req)
	if err != nil {
		return nil, fmt.Errorf("list custom columns: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("list custom columns: unexpected status %d", resp.StatusCode)
	}

	var list CustomColumnList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("decode custom columns: %w", err)
	}
	return list.Results, nil
}

func (r *HTTPRegistry) Create(ctx context.Context, stateKey string, col NewColumn) error {
	body, err := json.Marshal(col)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint(stateKey), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client().Do(req)
	if err != nil {
		return fmt.Errorf("create custom column: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("create custom column: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
