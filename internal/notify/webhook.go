package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type WebhookSink struct {
	URL  string
	HTTP *http.Client
}

func (s *WebhookSink) Send(ctx context.Context, ev Event) error {
	if s == nil || s.URL == "" {
		return fmt.Errorf("missing webhook url")
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	client := s.HTTP
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook http status %s", http.StatusText(resp.StatusCode))
	}
	return nil
}
