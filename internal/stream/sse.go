// Package stream serves live satellite positions as Server-Sent Events.
//
// GET /api/v1/stream/position/{norad_id}?lat=&lon=&interval= opens a stream
// that first sends a metadata message describing the element set, then one
// position message per interval:
//
//	data: {"type":"metadata","norad_id":25544,"name":"ISS (ZARYA)","tle_epoch":"...","catalog_age_seconds":1800}
//
//	data: {"type":"position","norad_id":25544,"position":{"time":"...","eci_km":{...},"geodetic":{...},"look":{...}}}
//
// The element set is looked up again on every tick, so a catalog refresh
// takes effect on open streams. Keepalive comments (":") are sent when no
// position has been written for KeepaliveInterval.
package stream

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/star/skypass/internal/httputil"
	"github.com/star/skypass/internal/metrics"
	"github.com/star/skypass/internal/propagation"
	"github.com/star/skypass/internal/tle"
	"github.com/star/skypass/internal/transform"
)

// Config limits the streams.
type Config struct {
	MaxConcurrentPerIP int
	MaxTotal           int // 0 means 1000
	KeepaliveInterval  time.Duration
	TrustProxy         bool
}

// Handler serves position streams.
type Handler struct {
	prop    *propagation.Propagator
	store   *tle.Store
	config  Config
	limiter *limiter
	logger  *slog.Logger
	now     func() time.Time
}

// NewHandler creates a stream handler reading element sets through prop.
func NewHandler(prop *propagation.Propagator, store *tle.Store, config Config, logger *slog.Logger) *Handler {
	if config.MaxTotal <= 0 {
		config.MaxTotal = 1000
	}
	return &Handler{
		prop:    prop,
		store:   store,
		config:  config,
		limiter: newLimiter(config.MaxConcurrentPerIP, config.MaxTotal),
		logger:  logger,
		now:     time.Now,
	}
}

// Message types.
const (
	typeMetadata = "metadata"
	typePosition = "position"
	typeError    = "error"
)

type metadataMessage struct {
	Type       string    `json:"type"`
	NORADID    int       `json:"norad_id"`
	Name       string    `json:"name"`
	TLEEpoch   time.Time `json:"tle_epoch"`
	CatalogAge int       `json:"catalog_age_seconds"`
}

type positionMessage struct {
	Type     string               `json:"type"`
	NORADID  int                  `json:"norad_id"`
	Position propagation.Position `json:"position"`
}

type errorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// HandlePosition serves GET /api/v1/stream/position/{norad_id}.
func (h *Handler) HandlePosition(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("norad_id"))
	if err != nil || id <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "norad_id must be a positive integer")
		return
	}
	q := r.URL.Query()
	interval, err := httputil.IntParam(q, "interval", 1, 1, 60)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	lat, lon, hasObs, err := httputil.ObserverParams(q)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var obs *transform.Observer
	if hasObs {
		o := transform.NewObserver(lat, lon)
		obs = &o
	}

	entry, _, err := h.prop.Model(id)
	switch {
	case errors.Is(err, propagation.ErrNoCatalog):
		httputil.WriteError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, tle.ErrNotFound):
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	case err != nil:
		httputil.WriteError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if !h.limiter.acquire(ip) {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded", "remote_ip", ip, "current_count", h.limiter.count(ip))
		w.Header().Set("Retry-After", "30")
		httputil.WriteError(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}

	metrics.IncStreamsActive()
	started := time.Now()
	h.logger.Info("stream connected", "remote_ip", ip, "norad_id", id, "interval", interval, "observer", hasObs)
	defer func() {
		h.limiter.release(ip)
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"remote_ip", ip,
			"norad_id", id,
			"duration_seconds", int(time.Since(started).Seconds()),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}
	c := &client{w: w, flusher: flusher, rc: rc, logger: h.logger}

	// Jittered reconnect delay spreads clients out after a restart.
	if err := c.sendRetry(3000 + rand.IntN(4000)); err != nil {
		return
	}

	meta := metadataMessage{Type: typeMetadata, NORADID: id, Name: entry.Name, TLEEpoch: entry.Epoch}
	if cat := h.store.Get(); cat != nil {
		meta.CatalogAge = int(h.now().Sub(cat.FetchedAt).Seconds())
	}
	if err := c.sendJSON(meta); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error (metadata)", "remote_ip", ip, "error", err)
		return
	}

	if !h.sendPosition(c, id, obs) {
		return
	}

	ticker := time.NewTicker(time.Duration(interval) * time.Second)
	defer ticker.Stop()
	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !h.sendPosition(c, id, obs) {
				return
			}
			keepalive.Reset(h.config.KeepaliveInterval)
		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				metrics.IncStreamErrors("send_error")
				h.logger.Warn("stream keepalive error", "remote_ip", ip, "error", err)
				return
			}
		}
	}
}

// sendPosition writes the current position. It returns false when the
// stream should end: the satellite left the catalog, the model failed or the
// client went away.
func (h *Handler) sendPosition(c *client, id int, obs *transform.Observer) bool {
	_, model, err := h.prop.Model(id)
	if err != nil {
		metrics.IncStreamErrors("lookup")
		c.sendJSON(errorMessage{Type: typeError, Error: err.Error()})
		return false
	}
	pos, err := propagation.PositionAt(model, h.now(), obs)
	if err != nil {
		metrics.IncStreamErrors("propagation")
		c.sendJSON(errorMessage{Type: typeError, Error: fmt.Sprintf("propagating %d: %v", id, err)})
		return false
	}
	if err := c.sendJSON(positionMessage{Type: typePosition, NORADID: id, Position: pos}); err != nil {
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", "norad_id", id, "error", err)
		return false
	}
	return true
}
