// Package remoteaudit forwards published changes to an HTTP webhook.
package remoteaudit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vshulcz/dslbridge/internal/domain"
	"github.com/vshulcz/dslbridge/internal/misc"
	"github.com/vshulcz/dslbridge/internal/services/events"
)

// Client posts change records to a remote endpoint. With a key set every
// body is signed in the HashSHA256 header.
type Client struct {
	hc       *http.Client
	bufs     *misc.BufferPool
	endpoint string
	key      string
}

// New validates the endpoint URL and returns a Client that POSTs changes there.
func New(rawURL, key string, hc *http.Client) (*Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("audit url is empty")
	}
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, fmt.Errorf("invalid audit url: %w", err)
	}
	if hc == nil {
		hc = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{endpoint: rawURL, key: key, hc: hc, bufs: misc.NewBufferPool()}, nil
}

// Notify posts the change carried by res. Polls that published nothing are skipped.
func (c *Client) Notify(ctx context.Context, res domain.PollResult) (retErr error) {
	if c == nil {
		return nil
	}
	change, ok := events.ChangeFrom(ctx, res)
	if !ok {
		return nil
	}
	buf := c.bufs.Get()
	defer c.bufs.Put(buf)
	if err := json.NewEncoder(buf).Encode(change); err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}

	var sig string
	if c.key != "" {
		sig = misc.SignHMAC(buf.Bytes(), c.key)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, buf)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sig != "" {
		req.Header.Set(misc.HeaderSignature, sig)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("audit post: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && retErr == nil {
			retErr = fmt.Errorf("close audit response: %w", cerr)
		}
	}()
	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return fmt.Errorf("drain audit response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("audit post status %d", resp.StatusCode)
	}
	return nil
}
