package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ahmetcoskunkizilkaya/postboard/internal/models"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const batchSize = 50

// PGHandler is an slog.Handler that batches ERROR+ logs to PostgreSQL.
type PGHandler struct {
	state *pgState
	attrs []slog.Attr
}

type pgState struct {
	write  func([]models.SystemLog) error
	mu     sync.Mutex
	buffer []models.SystemLog
	ticker *time.Ticker
	done   chan struct{}
	exited chan struct{}
	once   sync.Once
}

func NewPGHandler(db *gorm.DB) *PGHandler {
	return newPGHandler(func(batch []models.SystemLog) error {
		return db.CreateInBatches(batch, batchSize).Error
	}, 5*time.Second)
}

func newPGHandler(write func([]models.SystemLog) error, interval time.Duration) *PGHandler {
	st := &pgState{
		write:  write,
		buffer: make([]models.SystemLog, 0, batchSize),
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go st.flushLoop()
	return &PGHandler{state: st}
}

func (st *pgState) flushLoop() {
	defer close(st.exited)
	for {
		select {
		case <-st.ticker.C:
			st.flush()
		case <-st.done:
			st.flush()
			return
		}
	}
}

func (st *pgState) flush() {
	st.mu.Lock()
	if len(st.buffer) == 0 {
		st.mu.Unlock()
		return
	}
	batch := st.buffer
	st.buffer = make([]models.SystemLog, 0, batchSize)
	st.mu.Unlock()

	if err := st.write(batch); err != nil {
		// logged below ERROR so the failure does not loop back into this handler
		slog.Warn("failed to flush system logs to DB", "error", err, "count", len(batch))
	}
}

// Stop ends the background loop and returns after the final flush.
func (h *PGHandler) Stop() {
	h.state.once.Do(func() {
		h.state.ticker.Stop()
		close(h.state.done)
	})
	<-h.state.exited
}

// Enabled only handles ERROR and above.
func (h *PGHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelError
}

func (h *PGHandler) Handle(_ context.Context, record slog.Record) error {
	entry := models.SystemLog{
		ID:        uuid.New(),
		Timestamp: record.Time,
		Level:     record.Level.String(),
		Message:   record.Message,
	}

	extra := make(map[string]interface{})
	apply := func(a slog.Attr) bool {
		switch a.Key {
		case "uid":
			s := a.Value.String()
			entry.UID = &s
		case "post_id":
			entry.PostID = a.Value.String()
		case "action":
			entry.Action = a.Value.String()
		case "error":
			entry.Error = a.Value.String()
		default:
			extra[a.Key] = a.Value.Any()
		}
		return true
	}
	for _, a := range h.attrs {
		apply(a)
	}
	record.Attrs(apply)

	if len(extra) > 0 {
		if b, err := json.Marshal(extra); err == nil {
			entry.Extra = datatypes.JSON(b)
		}
	}

	st := h.state
	st.mu.Lock()
	st.buffer = append(st.buffer, entry)
	needFlush := len(st.buffer) >= batchSize
	st.mu.Unlock()

	if needFlush {
		go st.flush()
	}
	return nil
}

func (h *PGHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &PGHandler{state: h.state, attrs: merged}
}

// WithGroup is a no-op; grouped attrs land in Extra under their own keys.
func (h *PGHandler) WithGroup(name string) slog.Handler {
	return h
}
