package stream

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/star/skypass/internal/metrics"
)

const writeTimeout = 30 * time.Second

// client writes SSE frames to one connection.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	logger  *slog.Logger
}

func (c *client) write(frame string) (int, error) {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	n, err := fmt.Fprint(c.w, frame)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	return n, nil
}

// sendJSON writes v as one "data:" event.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	n, err := c.write("data: " + string(data) + "\n\n")
	if err != nil {
		return err
	}
	metrics.RecordStreamMessage(n)
	return nil
}

func (c *client) sendRetry(ms int) error {
	n, err := c.write(fmt.Sprintf("retry: %d\n\n", ms))
	metrics.AddStreamBytes(n)
	return err
}

// sendKeepalive writes an SSE comment.
func (c *client) sendKeepalive() error {
	n, err := c.write(":\n\n")
	metrics.AddStreamBytes(n)
	return err
}

// limiter caps concurrent streams per client address and in total.
type limiter struct {
	mu       sync.Mutex
	byIP     map[string]int
	total    int
	maxPerIP int
	maxTotal int
}

func newLimiter(maxPerIP, maxTotal int) *limiter {
	return &limiter{byIP: make(map[string]int), maxPerIP: maxPerIP, maxTotal: maxTotal}
}

func (l *limiter) acquire(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.total >= l.maxTotal || l.byIP[ip] >= l.maxPerIP {
		return false
	}
	l.byIP[ip]++
	l.total++
	return true
}

func (l *limiter) release(ip string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total--
	if l.byIP[ip]--; l.byIP[ip] <= 0 {
		delete(l.byIP, ip)
	}
}

func (l *limiter) count(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.byIP[ip]
}
