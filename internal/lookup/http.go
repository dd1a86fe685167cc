// SPDX-License-Identifier: MIT
package lookup

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBody caps the response read for one key.
const maxBody = 4096

// HTTP answers GET {BaseURL}/{key} with the address as the plain text body.
type HTTP struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTP returns an HTTP lookup with its own client timeout.
func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	return &HTTP{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: timeout},
	}
}

func (h *HTTP) Get(ctx context.Context, key string) (string, error) {
	target := h.BaseURL + "/" + url.PathEscape(key)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", target, err)
	}

	resp, err := h.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting %s: %w", target, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("requesting %s: unexpected status %s", target, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", target, err)
	}
	return normalize(string(body))
}
