package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"

	"github.com/use-agent/dirscrape/pipeline"
)

const hookURL = "https://hooks.example/run"

func testNotifier(secret string) *Notifier {
	n := NewNotifier(hookURL, secret)
	n.delays = []time.Duration{0, time.Millisecond, time.Millisecond}
	httpmock.ActivateNonDefault(n.client)
	return n
}

func sampleReport() *pipeline.Report {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &pipeline.Report{
		ID:         "abc123",
		Status:     pipeline.StatusCompleted,
		Input:      "in.csv",
		Output:     "in.csv",
		Written:    true,
		Progress:   pipeline.Progress{Total: 3, Done: 3, Merged: 2, Unmodified: 1},
		Columns:    []string{"a", "url"},
		StartedAt:  start,
		FinishedAt: start.Add(90 * time.Second),
	}
}

func TestDeliver_SignsBody(t *testing.T) {
	n := testNotifier("s3cret")
	defer httpmock.DeactivateAndReset()

	var got Event
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		body, _ := io.ReadAll(req.Body)
		if want := "sha256=" + Sign("s3cret", body); req.Header.Get(SignatureHeader) != want {
			t.Errorf("signature = %q, want %q", req.Header.Get(SignatureHeader), want)
		}
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		return httpmock.NewStringResponse(204, ""), nil
	})

	if err := n.Deliver(context.Background(), NewRunEvent(sampleReport())); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if got.Type != EventRunCompleted || got.RunID != "abc123" || got.Data.Merged != 2 || got.Data.DurationS != 90 {
		t.Errorf("event = %+v", got)
	}
}

func TestDeliver_NoSecretNoSignature(t *testing.T) {
	n := testNotifier("")
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(req *http.Request) (*http.Response, error) {
		if req.Header.Get(SignatureHeader) != "" {
			t.Error("unexpected signature header")
		}
		return httpmock.NewStringResponse(200, ""), nil
	})
	if err := n.Deliver(context.Background(), NewRunEvent(sampleReport())); err != nil {
		t.Fatal(err)
	}
}

func TestDeliverWithRetry_RecoversAfterFailures(t *testing.T) {
	n := testNotifier("")
	defer httpmock.DeactivateAndReset()
	calls := 0
	httpmock.RegisterResponder(http.MethodPost, hookURL, func(*http.Request) (*http.Response, error) {
		calls++
		if calls < 3 {
			return httpmock.NewStringResponse(503, ""), nil
		}
		return httpmock.NewStringResponse(200, ""), nil
	})

	if err := n.DeliverWithRetry(context.Background(), NewRunEvent(sampleReport())); err != nil {
		t.Fatalf("DeliverWithRetry: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDeliverWithRetry_Exhausted(t *testing.T) {
	n := testNotifier("")
	defer httpmock.DeactivateAndReset()
	httpmock.RegisterResponder(http.MethodPost, hookURL, httpmock.NewErrorResponder(errors.New("refused")))

	if err := n.DeliverWithRetry(context.Background(), NewRunEvent(sampleReport())); err == nil {
		t.Fatal("expected error after retries")
	}
	if c := httpmock.GetTotalCallCount(); c != 3 {
		t.Errorf("calls = %d, want 3", c)
	}
}

func TestNewRunEvent_Aborted(t *testing.T) {
	rep := sampleReport()
	rep.Status = pipeline.StatusAborted
	rep.Err = errors.New("column missing")
	ev := NewRunEvent(rep)
	if ev.Type != EventRunAborted || ev.Data.Error != "column missing" {
		t.Errorf("event = %+v", ev)
	}
}
