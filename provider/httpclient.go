package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

type httpClient struct {
	client  *http.Client
	name    string
	retries int
	backoff time.Duration
}

func newHTTPClient(name string, timeout time.Duration, retries int) *httpClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &httpClient{
		client:  &http.Client{Timeout: timeout},
		name:    name,
		retries: retries,
		backoff: 300 * time.Millisecond,
	}
}

// doJSON posts a JSON body and decodes a JSON response, retrying only failures
// the taxonomy marks retryable (timeouts, 429, 5xx) with exponential backoff.
func (c *httpClient) doJSON(ctx context.Context, method, url string, headers map[string]string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return newError(KindAPI, c.name, err)
	}

	var lastErr *Error
	tries := c.retries + 1
	for attempt := 0; attempt < tries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(payload))
		if err != nil {
			return newError(KindAPI, c.name, err)
		}
		req.Header.Set("Content-Type", "application/json")
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = classify(c.name, err)
		} else {
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				defer resp.Body.Close()
				if out == nil {
					return nil
				}
				if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
					return newError(KindAPI, c.name, err)
				}
				return nil
			}
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			lastErr = statusError(c.name, resp.StatusCode, resp.Status+": "+string(b))
		}

		if !lastErr.Retryable() || attempt == tries-1 {
			break
		}
		select {
		case <-time.After(c.backoff * time.Duration(1<<attempt)):
		case <-ctx.Done():
			return classify(c.name, ctx.Err())
		}
	}
	return lastErr
}
