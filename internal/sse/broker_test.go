package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func drain(ch chan []byte, wait time.Duration) []string {
	var out []string
	deadline := time.After(wait)
	for {
		select {
		case msg := <-ch:
			out = append(out, string(msg))
		case <-deadline:
			return out
		}
	}
}

func count(msgs []string, eventType string) int {
	n := 0
	for _, m := range msgs {
		if strings.HasPrefix(m, "event: "+eventType+"\n") {
			n++
		}
	}
	return n
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestNewNodeChange(t *testing.T) {
	tests := []struct {
		in   string
		want NodeChange
	}{
		{"a.md", NodeChange{ID: "a", Path: "a.md", Scope: ""}},
		{"projects/web/b.md", NodeChange{ID: "b", Path: "projects/web/b.md", Scope: "projects/web"}},
		{`areas\c.md`, NodeChange{ID: "c", Path: "areas/c.md", Scope: "areas"}},
	}
	for _, tt := range tests {
		if got := NewNodeChange(tt.in); got != tt.want {
			t.Errorf("NewNodeChange(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestPublishChange_Payload(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange("created", "projects/a.md")

	msgs := drain(ch, 100*time.Millisecond)
	if count(msgs, EventNodeCreated) != 1 {
		t.Fatalf("messages = %q, want one %s", msgs, EventNodeCreated)
	}
	if !strings.Contains(msgs[0], `"id":"a"`) || !strings.Contains(msgs[0], `"scope":"projects"`) {
		t.Errorf("payload = %q", msgs[0])
	}
	if count(msgs, EventCorpusChanged) != 1 {
		t.Errorf("corpus.changed events = %d, want 1", count(msgs, EventCorpusChanged))
	}
}

func TestPublishChange_CorpusThrottleWithTrailingEvent(t *testing.T) {
	b := NewBroker(200 * time.Millisecond)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishChange("created", "a.md")
	b.PublishChange("updated", "b.md")
	b.PublishChange("deleted", "c.md")

	early := drain(ch, 50*time.Millisecond)
	if got := count(early, EventCorpusChanged); got != 1 {
		t.Fatalf("corpus.changed before throttle = %d, want 1", got)
	}
	if got := len(early) - 1; got != 3 {
		t.Errorf("node events = %d, want 3", got)
	}

	late := drain(ch, 400*time.Millisecond)
	if got := count(late, EventCorpusChanged); got != 1 {
		t.Errorf("trailing corpus.changed = %d, want 1", got)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.Publish(Event{Type: EventNodeUpdated, Data: NewNodeChange("x.md")})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "event: node.updated") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	for i := 0; i < clientBuffer+10; i++ {
		b.Publish(Event{Type: "test", Data: map[string]int{"i": i}})
	}
	time.Sleep(50 * time.Millisecond)
	if got := len(drain(ch, 100*time.Millisecond)); got != clientBuffer {
		t.Errorf("delivered %d, want %d", got, clientBuffer)
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100 * time.Millisecond)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	b.Publish(Event{Type: EventNodeUpdated, Data: NewNodeChange("x.md")})
	b.PublishChange("updated", "x.md")
}
