package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/splitlease/proposals/internal/models"
)

func testHub(t *testing.T) *Hub {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	h := NewHub(log)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)

	return h
}

func subscriber(h *Hub, proposalID string) *Client {
	return &Client{hub: h, log: h.log, send: make(chan []byte, 8), ProposalID: proposalID}
}

func waitForSubscribers(t *testing.T, h *Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", h.ClientCount(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func event(id string, rev int64) models.Event {
	return models.Event{
		Type:       models.EventStatusChanged,
		ProposalID: id,
		Status:     models.StatusHostReview,
		Revision:   rev,
	}
}

func decode(t *testing.T, data []byte) Frame {
	t.Helper()

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}

	return f
}

func TestHub_PublishReachesOnlyTheProposalRoom(t *testing.T) {
	h := testHub(t)

	a, b := subscriber(h, "p1"), subscriber(h, "p2")
	h.Register(a)
	h.Register(b)
	waitForSubscribers(t, h, 2)

	h.Publish(event("p1", 3))

	select {
	case data := <-a.send:
		f := decode(t, data)
		if f.Kind != FrameEvent || f.Event == nil || f.Event.Revision != 3 || f.Event.Status != models.StatusHostReview {
			t.Errorf("frame = %+v", f)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber of p1 got nothing")
	}

	select {
	case data := <-b.send:
		t.Fatalf("subscriber of p2 got %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DuplicateRevisionIsDropped(t *testing.T) {
	h := testHub(t)

	c := subscriber(h, "p1")
	h.Register(c)
	waitForSubscribers(t, h, 1)

	h.Publish(event("p1", 2))
	h.Publish(event("p1", 2))

	<-c.send
	select {
	case data := <-c.send:
		t.Fatalf("duplicate delivered: %s", data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_ReplayAfterRevision(t *testing.T) {
	h := testHub(t)

	for rev := int64(1); rev <= 4; rev++ {
		h.Publish(event("p1", rev))
	}

	c := subscriber(h, "p1")
	h.Replay(c, 2)

	if got := len(c.send); got != 2 {
		t.Fatalf("replayed = %d, want 2", got)
	}
	if f := decode(t, <-c.send); f.Event.Revision != 3 {
		t.Errorf("first replayed revision = %d, want 3", f.Event.Revision)
	}
}

func TestHub_ReplayGapSendsReset(t *testing.T) {
	h := testHub(t)

	h.Publish(event("p1", 7))

	c := subscriber(h, "p1")
	h.Replay(c, 2)

	if f := decode(t, <-c.send); f.Kind != FrameReset {
		t.Errorf("kind = %q, want reset", f.Kind)
	}
}

func TestHub_Unregister(t *testing.T) {
	h := testHub(t)

	c := subscriber(h, "p1")
	h.Register(c)
	waitForSubscribers(t, h, 1)

	h.Unregister(c)
	waitForSubscribers(t, h, 0)

	if _, ok := <-c.send; ok {
		t.Error("send queue still open after unregister")
	}
}

func TestHub_ShutdownNotifiesSubscribers(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	h := NewHub(log)
	go h.Run(context.Background())

	c := subscriber(h, "p1")
	h.Register(c)
	waitForSubscribers(t, h, 1)

	// Drain the queue from the test so the hub sees it flushed.
	frames := make(chan []byte, 2)
	go func() {
		for data := range c.send {
			frames <- data
		}
		close(frames)
	}()

	h.Shutdown()

	data, ok := <-frames
	if !ok {
		t.Fatal("no frame before close")
	}
	if f := decode(t, data); f.Kind != FrameShutdown {
		t.Fatalf("first frame = %+v", f)
	}
	if _, ok := <-frames; ok {
		t.Error("queue should be closed after shutdown")
	}
}
