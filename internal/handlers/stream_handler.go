package handlers

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/posts"
	"github.com/ahmetcoskunkizilkaya/postboard/internal/session"
	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

const heartbeatInterval = 15 * time.Second

// StreamHandler pushes the post list to browsers as server-sent events, one "posts"
// event per store update.
type StreamHandler struct {
	sess *session.Session

	mu   sync.Mutex
	done chan struct{}
}

func NewStreamHandler(sess *session.Session) *StreamHandler {
	return &StreamHandler{sess: sess, done: make(chan struct{})}
}

// Close ends every open stream.
func (h *StreamHandler) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	latest := newLatest()
	unsubscribe := h.sess.Posts.Subscribe(latest.offer)
	latest.offer(h.sess.Posts.State())

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()
		heartbeat := time.NewTicker(heartbeatInterval)
		defer heartbeat.Stop()

		for {
			select {
			case st := <-latest.c:
				if err := writeEvent(w, "posts", st); err != nil {
					slog.Debug("post stream closed", "error", err)
					return
				}
			case <-heartbeat.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-h.done:
				return
			}
		}
	}))
	return nil
}

// latest keeps only the newest undelivered state so a slow client skips ahead
// instead of blocking the store.
type latest struct {
	mu sync.Mutex
	c  chan posts.State
}

func newLatest() *latest {
	return &latest{c: make(chan posts.State, 1)}
}

func (l *latest) offer(st posts.State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	select {
	case <-l.c:
	default:
	}
	l.c <- st
}

func writeEvent(w *bufio.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
