// Package notify delivers best-effort cache refresh signals to the
// downstream application after a store write.
//
// Notifications are fire-and-forget with a bounded timeout: a slow or
// failed notification must never stall the coordinator's queue draining.
// Failures are logged and swallowed; there is no retry.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"time"
)

// DefaultTimeout bounds how long a single notification may take.
const DefaultTimeout = 10 * time.Second

// Notifier signals the downstream application that a cached entity needs
// refreshing. Implementations must not block the caller.
type Notifier interface {
	// Notify schedules a refresh signal for the entity. It returns
	// immediately; delivery happens in the background.
	Notify(kind, identity string)
}

// refreshPayload is the wire body posted to the refresh endpoint.
type refreshPayload struct {
	Kind     string `json:"kind"`
	Identity string `json:"identity"`
}

// httpNotifier implements Notifier with an HTTP POST per signal.
type httpNotifier struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
	logger   *log.Logger
}

// NewHTTP creates a Notifier posting to endpoint. A zero timeout selects
// DefaultTimeout. If logger is nil, a default logger writing to stderr is
// used.
func NewHTTP(endpoint string, timeout time.Duration, logger *log.Logger) Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.New(os.Stderr, "[notify] ", log.LstdFlags)
	}
	return &httpNotifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		timeout:  timeout,
		logger:   logger,
	}
}

// Notify implements Notifier.Notify.
func (n *httpNotifier) Notify(kind, identity string) {
	go n.deliver(kind, identity)
}

// deliver performs the bounded POST and swallows any failure.
func (n *httpNotifier) deliver(kind, identity string) {
	body, err := json.Marshal(refreshPayload{Kind: kind, Identity: identity})
	if err != nil {
		n.logger.Printf("WARNING: failed to marshal refresh signal: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		n.logger.Printf("WARNING: failed to build refresh request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Printf("WARNING: cache refresh for %s %s failed: %v", kind, identity, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		n.logger.Printf("WARNING: cache refresh for %s %s returned %s", kind, identity, resp.Status)
	}
}

// nopNotifier drops every signal. Used when no endpoint is configured.
type nopNotifier struct{}

// NewNop creates a Notifier that does nothing.
func NewNop() Notifier {
	return nopNotifier{}
}

// Notify implements Notifier.Notify.
func (nopNotifier) Notify(kind, identity string) {}
