package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 * 1024

// PostJSON sends payload as a JSON POST and returns the body of a 2xx
// response; the caller must close it. Non-2xx responses become a
// *TransportError carrying the status. Network failures become a
// *TransportError with StatusCode zero, except context errors which are
// returned unchanged.
func PostJSON(ctx context.Context, client *http.Client, id ID, url string, header http.Header, payload any) (io.ReadCloser, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", id, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", id, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	return do(ctx, client, id, req)
}

// Get issues a GET to url and discards a successful body. It is the
// probe primitive behind the connection tester.
func Get(ctx context.Context, client *http.Client, id ID, url string, header http.Header) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", id, err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	body, err := do(ctx, client, id, req)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrorBody))
	return body.Close()
}

func do(ctx context.Context, client *http.Client, id ID, req *http.Request) (io.ReadCloser, error) {
	resp, err := client.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = RedactURL(ue.URL)
		}
		return nil, mapConnectionError(ctx, id, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer func() { _ = resp.Body.Close() }()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, NewStatusError(id, resp.StatusCode, errorMessage(raw))
	}
	return resp.Body, nil
}

// mapConnectionError maps network-level errors to a TransportError.
// Context errors pass through unchanged.
func mapConnectionError(ctx context.Context, id ID, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return NewNetworkError(id, err)
}

// errorMessage extracts a human-readable message from an error body.
// OpenAI and Gemini nest it under error.message; Ollama uses a bare
// error string. Anything else is returned verbatim.
func errorMessage(body []byte) []byte {
	var nested struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &nested) == nil && nested.Error.Message != "" {
		return []byte(nested.Error.Message)
	}
	var flat struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &flat) == nil && flat.Error != "" {
		return []byte(flat.Error)
	}
	return bytes.TrimSpace(body)
}

// secretParams are query parameters whose values are credentials.
var secretParams = []string{"key", "api_key", "access_token", "token"}

// RedactURL masks credential-bearing query parameters so that a URL can
// appear in errors and logs.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.RawQuery == "" {
		return raw
	}
	q := u.Query()
	changed := false
	for _, name := range secretParams {
		if q.Has(name) {
			q.Set(name, "REDACTED")
			changed = true
		}
	}
	if !changed {
		return raw
	}
	u.RawQuery = q.Encode()
	return u.String()
}
