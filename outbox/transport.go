package outbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"claimflow/apperr"
)

// HTTPTransport posts the JSON payload to the URL routed for the message topic.
// Topics without a route are dropped with a debug log.
type HTTPTransport struct {
	client       *http.Client
	routes       map[string]string
	sourceSystem string
	log          logrus.FieldLogger
}

func NewHTTPTransport(client *http.Client, routes map[string]string, sourceSystem string, log logrus.FieldLogger) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &HTTPTransport{client: client, routes: routes, sourceSystem: sourceSystem, log: log}
}

func (t *HTTPTransport) Deliver(ctx context.Context, msg Message) error {
	url := t.routes[msg.Topic]
	if url == "" {
		t.log.WithFields(logrus.Fields{"topic": msg.Topic, "message_id": msg.ID}).Debug("no route for topic; dropping message")
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(msg.Payload))
	if err != nil {
		return fmt.Errorf("outbox: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Message-Id", msg.ID)
	req.Header.Set("X-Message-Topic", msg.Topic)
	if t.sourceSystem != "" {
		req.Header.Set("X-Source-System", t.sourceSystem)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return apperr.Wrap(apperr.ErrUpstreamNotification, "outbox: post "+msg.Topic, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apperr.New(apperr.ErrUpstreamNotification, fmt.Sprintf("outbox: %s answered %d", url, resp.StatusCode))
	}
	return nil
}
