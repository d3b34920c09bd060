package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"lora-monitor/internal/processor"
)

// Client forwards accepted records to an HTTP endpoint. It implements
// processor.Sink; results without a record are ignored.
type Client struct {
	URL           string
	Method        string
	Timeout       time.Duration
	AuthType      string
	AuthToken     string
	AuthHeaderKey string
	Logger        zerolog.Logger
	HTTPClient    *http.Client
}

func (c Client) Emit(ctx context.Context, r processor.Result) error {
	if r.Record == nil {
		return nil
	}
	return c.Post(ctx, r.Record)
}

func (c Client) Post(ctx context.Context, rec *processor.Record) error {
	method := strings.ToUpper(strings.TrimSpace(c.Method))
	if method == "" {
		method = http.MethodPost
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch strings.ToLower(c.AuthType) {
	case "bearer":
		if c.AuthToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.AuthToken)
		}
	case "header":
		h := c.AuthHeaderKey
		if h == "" {
			h = "X-API-Key"
		}
		if c.AuthToken != "" {
			req.Header.Set(h, c.AuthToken)
		}
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: c.Timeout}
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bb, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook http %d: %s", resp.StatusCode, strings.TrimSpace(string(bb)))
	}
	c.Logger.Debug().Str("url", c.URL).Str("dev_addr", rec.DevAddr).Uint16("fcnt", rec.FCnt).Msg("record forwarded")
	return nil
}
