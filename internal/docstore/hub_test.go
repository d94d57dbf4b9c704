package docstore

import (
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/desertthunder/pinx/internal/shared"
	tu "github.com/desertthunder/pinx/internal/testing"
)

func TestHub(t *testing.T) {
	newRunningHub := func(t *testing.T) *Hub {
		t.Helper()
		h := NewHub(NewTree(), shared.NewLogger(io.Discard))
		go h.Run()
		t.Cleanup(h.Close)
		return h
	}

	t.Run("slow client is dropped", func(t *testing.T) {
		h := newRunningHub(t)
		c := newClient(h, nil, "u1", []string{"owners", "u1"})
		if !h.registerClient(c) {
			t.Fatal("expected client to register")
		}

		// nothing drains send, so the buffer fills and the client is cut off
		for range sendBuffer + 1 {
			h.Notify([]string{"owners", "u1"})
		}

		tu.Eventually(t, 2*time.Second, func() bool { return h.Clients() == 0 }, "slow client still registered")

		select {
		case <-c.done:
		default:
			t.Fatal("expected dropped client to be signalled")
		}
	})

	t.Run("dropped client refuses pongs", func(t *testing.T) {
		h := newRunningHub(t)
		c := newClient(h, nil, "u1", []string{"owners", "u1"})
		if !h.registerClient(c) {
			t.Fatal("expected client to register")
		}
		h.Close()

		<-c.done
		pong, _ := json.Marshal(Message{Type: MessagePong})
		for range sendBuffer * 2 {
			if c.queue(pong) {
				t.Fatal("expected queue to refuse after drop")
			}
		}
	})

	t.Run("queue reports a full buffer", func(t *testing.T) {
		h := NewHub(NewTree(), shared.NewLogger(io.Discard))
		c := newClient(h, nil, "u1", []string{"owners", "u1"})
		for range sendBuffer {
			if !c.queue([]byte(`{}`)) {
				t.Fatal("expected queue to accept while there is room")
			}
		}
		if c.queue([]byte(`{}`)) {
			t.Error("expected queue to refuse when full")
		}
	})
}
