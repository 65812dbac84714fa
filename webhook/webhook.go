package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/use-agent/dirscrape/pipeline"
)

// Event types.
const (
	EventRunCompleted = "run.completed"
	EventRunAborted   = "run.aborted"
)

// SignatureHeader carries "sha256=<hex>" of the body when a secret is set.
const SignatureHeader = "X-Dirscrape-Signature"

// Event is the payload sent to the webhook endpoint.
type Event struct {
	Type      string     `json:"type"`
	RunID     string     `json:"run_id"`
	Timestamp int64      `json:"timestamp"`
	Data      RunSummary `json:"data"`
}

// RunSummary is the part of a run report worth notifying about.
type RunSummary struct {
	Status     string  `json:"status"`
	Input      string  `json:"input"`
	Output     string  `json:"output,omitempty"`
	Total      int     `json:"total"`
	Merged     int     `json:"merged"`
	NoData     int     `json:"no_data"`
	Unmodified int     `json:"unmodified"`
	Skipped    int     `json:"skipped"`
	Columns    int     `json:"columns"`
	DurationS  float64 `json:"duration_s"`
	Error      string  `json:"error,omitempty"`
}

// NewRunEvent builds the notification for a finished run. Interrupted runs
// still wrote their output and count as completed.
func NewRunEvent(rep *pipeline.Report) *Event {
	typ := EventRunCompleted
	if rep.Status == pipeline.StatusAborted {
		typ = EventRunAborted
	}
	sum := RunSummary{
		Status:     string(rep.Status),
		Input:      rep.Input,
		Output:     rep.Output,
		Total:      rep.Progress.Total,
		Merged:     rep.Progress.Merged,
		NoData:     rep.Progress.NoData,
		Unmodified: rep.Progress.Unmodified,
		Skipped:    rep.Progress.Skipped,
		Columns:    len(rep.Columns),
		DurationS:  rep.Duration().Seconds(),
	}
	if rep.Err != nil {
		sum.Error = rep.Err.Error()
	}
	return &Event{Type: typ, RunID: rep.ID, Timestamp: rep.FinishedAt.Unix(), Data: sum}
}

// Notifier posts events to one endpoint.
type Notifier struct {
	url    string
	secret string
	client *http.Client
	delays []time.Duration
}

// NewNotifier creates a Notifier. Retries wait 1s then 5s.
func NewNotifier(url, secret string) *Notifier {
	return &Notifier{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: 10 * time.Second},
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second},
	}
}

// Deliver sends event once. The body is signed with HMAC-SHA256 if the
// secret is non-empty.
func (n *Notifier) Deliver(ctx context.Context, event *Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("webhook: marshal event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Dirscrape-Webhook/1.0")
	if n.secret != "" {
		req.Header.Set(SignatureHeader, "sha256="+Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: deliver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook: endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

// DeliverWithRetry sends event, retrying on failure, and blocks until it
// is delivered, retries are exhausted or ctx ends.
func (n *Notifier) DeliverWithRetry(ctx context.Context, event *Event) error {
	var err error
	for attempt, delay := range n.delays {
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}
		actx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err = n.Deliver(actx, event)
		cancel()
		if err == nil {
			slog.Info("webhook delivered", "url", n.url, "event", event.Type, "run_id", event.RunID, "attempt", attempt+1)
			return nil
		}
		slog.Warn("webhook delivery failed", "url", n.url, "event", event.Type, "attempt", attempt+1, "error", err)
	}
	slog.Error("webhook delivery exhausted all retries", "url", n.url, "event", event.Type, "run_id", event.RunID)
	return err
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
