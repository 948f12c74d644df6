// Package statuscheck supplies poller status checks backed by HTTP GETs
// against a job's status URL.
package statuscheck

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/SmitUplenchwar2687/jobpacer/internal/poller"
)

// maxErrorBody caps how much of a non-2xx body is kept on HTTPError.
const maxErrorBody = 4 << 10

// HTTPError is returned for a non-2xx status response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("status check returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("status check returned HTTP %d: %s", e.StatusCode, e.Body)
}

// New returns a StatusCheck that GETs statusURL with header and decodes the
// body as a JSON object. A nil client uses http.DefaultClient.
func New(client *http.Client, statusURL string, header http.Header) poller.StatusCheck {
	if client == nil {
		client = http.DefaultClient
	}
	header = header.Clone()

	return func(ctx context.Context) (poller.StatusResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return nil, fmt.Errorf("building status request: %w", err)
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}

		var out poller.StatusResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return nil, fmt.Errorf("decoding status response: %w", err)
		}
		if out == nil {
			return nil, errors.New("decoding status response: not a JSON object")
		}
		return out, nil
	}
}

// StatusURL extracts the status link from an "operation accepted" response:
// _links.status.href when present, otherwise _links.self.href.
func StatusURL(accepted map[string]any) (string, error) {
	links, ok := accepted["_links"].(map[string]any)
	if !ok {
		return "", errors.New("accepted response has no _links")
	}
	for _, rel := range []string{"status", "self"} {
		if href := linkHref(links, rel); href != "" {
			return href, nil
		}
	}
	return "", errors.New("accepted response has no _links.status.href or _links.self.href")
}

func linkHref(links map[string]any, rel string) string {
	link, ok := links[rel].(map[string]any)
	if !ok {
		return ""
	}
	href, _ := link["href"].(string)
	return href
}

// BearerHeader builds the authorization headers the status endpoints expect.
// Empty values are omitted.
func BearerHeader(token, apiKey string) http.Header {
	h := make(http.Header)
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	if apiKey != "" {
		h.Set("x-api-key", apiKey)
	}
	return h
}
