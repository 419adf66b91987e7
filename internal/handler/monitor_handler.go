package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/response"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

// MonitorReader is the dashboard data the handler serves.
type MonitorReader interface {
	Snapshot(ctx context.Context) *model.MonitorSnapshot
	ListViolations(ctx context.Context, page, perPage int) ([]model.ViolationLogEntry, *response.Pagination, error)
	ListSubmissions(ctx context.Context, page, perPage int) ([]model.SubmissionLogEntry, *response.Pagination, error)
}

// Feed delivers raw monitor events until ctx ends or stop is called.
type Feed interface {
	Listen(ctx context.Context) (events <-chan string, stop func(), err error)
}

// RedisFeed relays the Redis monitor channel.
type RedisFeed struct {
	rdb *redis.Client
}

func NewRedisFeed(rdb *redis.Client) *RedisFeed {
	return &RedisFeed{rdb: rdb}
}

func (f *RedisFeed) Listen(ctx context.Context) (<-chan string, func(), error) {
	pubsub := f.rdb.Subscribe(ctx, config.CacheKey.MonitorChannel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, err
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range pubsub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, func() { _ = pubsub.Close() }, nil
}

type MonitorHandler struct {
	monitor MonitorReader
	feed    Feed
	log     zerolog.Logger
}

func NewMonitorHandler(monitor MonitorReader, feed Feed, log zerolog.Logger) *MonitorHandler {
	return &MonitorHandler{
		monitor: monitor,
		feed:    feed,
		log:     log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorSSE godoc
// GET /api/v1/proctor/monitor
// Streams a snapshot, then every violation and submission as it happens.
func (h *MonitorHandler) MonitorSSE(c *gin.Context) {
	reqCtx := c.Request.Context()

	events, stop, err := h.feed.Listen(reqCtx)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to subscribe to monitor channel")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrInternal)
		return
	}
	defer stop()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	h.sendSnapshot(c, reqCtx, "snapshot")

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Only refresh once something has happened since the last frame.
	dirty := false
	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	h.log.Info().Msg("Proctor attached to live monitor SSE")

	for {
		select {
		case <-reqCtx.Done():
			h.log.Info().Msg("Proctor disconnected from live monitor SSE")
			return

		case payload, ok := <-events:
			if !ok {
				return
			}
			// Forward raw JSON, it is already a model.MonitorEvent.
			writeSSEData(c, []byte(payload))
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			h.sendSnapshot(c, reqCtx, "refresh")
			dirty = false

		case <-keepAliveTicker.C:
			writeSSEData(c, pingPayload)
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, parent context.Context, kind string) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	c.SSEvent("message", map[string]interface{}{
		"type": kind,
		"data": h.monitor.Snapshot(ctx),
	})
	c.Writer.Flush()
}

func writeSSEData(c *gin.Context, data []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(data)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}

// GetSnapshot godoc
// GET /api/v1/proctor/stats
func (h *MonitorHandler) GetSnapshot(c *gin.Context) {
	response.Success(c, http.StatusOK, h.monitor.Snapshot(c.Request.Context()))
}

// ListViolations godoc
// GET /api/v1/proctor/violations?page=&per_page=
func (h *MonitorHandler) ListViolations(c *gin.Context) {
	page, perPage := pageParams(c)
	items, pagination, err := h.monitor.ListViolations(c.Request.Context(), page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list violations")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"violations": items}, pagination)
}

// ListSubmissions godoc
// GET /api/v1/proctor/submissions?page=&per_page=
func (h *MonitorHandler) ListSubmissions(c *gin.Context) {
	page, perPage := pageParams(c)
	items, pagination, err := h.monitor.ListSubmissions(c.Request.Context(), page, perPage)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list submissions")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.SuccessWithPagination(c, http.StatusOK, gin.H{"submissions": items}, pagination)
}

// pageParams reads page/per_page; the service clamps bad values.
func pageParams(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "10"))
	return page, perPage
}
