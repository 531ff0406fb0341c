// Package idempotency deduplicates repeated form submissions. A client sends
// the same Idempotency-Key header when it retries a POST; the first response
// with a 2xx status is remembered and replayed for every repeat until it
// expires. Concurrent repeats wait for the first one instead of running again.
package idempotency

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Header carries the client's idempotency key
const Header = "Idempotency-Key"

// ReplayedHeader marks a response served from the inbox
const ReplayedHeader = "Idempotent-Replayed"

// InboxConfig holds configuration for the inbox
type InboxConfig struct {
	// TTL is how long a finished response is replayed
	TTL time.Duration
	// MaxEntries bounds memory; the oldest entries are evicted first
	MaxEntries int
}

// DefaultInboxConfig returns defaults sized for one ward's form traffic
func DefaultInboxConfig() InboxConfig {
	return InboxConfig{
		TTL:        10 * time.Minute,
		MaxEntries: 10000,
	}
}

// Response is a finished response kept for replay
type Response struct {
	Status      int
	ContentType string
	Body        []byte
	FinishedAt  time.Time
}

// Inbox remembers finished responses by key
type Inbox struct {
	config InboxConfig
	logger *zap.Logger
	now    func() time.Time

	inflight singleflight.Group

	mu      sync.Mutex
	entries map[string]*Response
	order   []string
}

// NewInbox creates an inbox
func NewInbox(cfg InboxConfig, logger *zap.Logger) *Inbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultInboxConfig().TTL
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultInboxConfig().MaxEntries
	}
	return &Inbox{
		config:  cfg,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*Response),
	}
}

// Key scopes a client key to the caller and route so two clients reusing the
// same key do not collide
func Key(client, method, path, key string) string {
	sum := sha256.Sum256([]byte(client + "\x00" + method + "\x00" + path + "\x00" + key))
	return hex.EncodeToString(sum[:16])
}

// Get returns a finished, unexpired response
func (i *Inbox) Get(key string) (*Response, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	resp, ok := i.entries[key]
	if !ok {
		return nil, false
	}
	if i.now().Sub(resp.FinishedAt) > i.config.TTL {
		delete(i.entries, key)
		return nil, false
	}
	return resp, true
}

func (i *Inbox) markFinished(key string, resp *Response) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if _, exists := i.entries[key]; !exists {
		i.order = append(i.order, key)
	}
	i.entries[key] = resp
	for len(i.entries) > i.config.MaxEntries && len(i.order) > 0 {
		delete(i.entries, i.order[0])
		i.order = i.order[1:]
	}
}

// Len returns the number of remembered responses
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.entries)
}

// Process runs fn once per key. A finished response is replayed; a failed
// one is not remembered so the client can retry.
func (i *Inbox) Process(key string, fn func() *Response) (resp *Response, replayed bool) {
	if resp, ok := i.Get(key); ok {
		return resp, true
	}
	ran := false
	v, _, _ := i.inflight.Do(key, func() (interface{}, error) {
		if resp, ok := i.Get(key); ok {
			return resp, nil
		}
		ran = true
		resp := fn()
		if resp.Status >= 200 && resp.Status < 300 {
			resp.FinishedAt = i.now()
			i.markFinished(key, resp)
		}
		return resp, nil
	})
	return v.(*Response), !ran
}

// ClientFunc extracts the authenticated client from a request
type ClientFunc func(r *http.Request) string

// Middleware applies the inbox to POST requests carrying an Idempotency-Key
func (i *Inbox) Middleware(client ClientFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(Header)
			if r.Method != http.MethodPost || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}
			caller := ""
			if client != nil {
				caller = client(r)
			}
			key := Key(caller, r.Method, r.URL.Path, clientKey)

			resp, replayed := i.Process(key, func() *Response {
				buf := &bufferedWriter{header: make(http.Header), status: http.StatusOK}
				next.ServeHTTP(buf, r)
				return &Response{
					Status:      buf.status,
					ContentType: buf.header.Get("Content-Type"),
					Body:        buf.body.Bytes(),
				}
			})

			span := trace.SpanFromContext(r.Context())
			span.SetAttributes(attribute.Bool("idempotent.replayed", replayed))
			if replayed {
				i.logger.Info("replaying idempotent response",
					zap.String("path", r.URL.Path),
					zap.Int("status", resp.Status))
				w.Header().Set(ReplayedHeader, "true")
			}
			if resp.ContentType != "" {
				w.Header().Set("Content-Type", resp.ContentType)
			}
			w.WriteHeader(resp.Status)
			_, _ = w.Write(resp.Body)
		})
	}
}

// bufferedWriter captures a response so it can be stored and shared
type bufferedWriter struct {
	header      http.Header
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (b *bufferedWriter) Header() http.Header { return b.header }

func (b *bufferedWriter) WriteHeader(code int) {
	if !b.wroteHeader {
		b.status = code
		b.wroteHeader = true
	}
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	b.wroteHeader = true
	return b.body.Write(p)
}
