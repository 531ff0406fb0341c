package idempotency

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func counting(status int) (http.Handler, *int32) {
	var calls int32
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte{'{', '"', 'n', '"', ':', byte('0' + n), '}'})
	}), &calls
}

func send(h http.Handler, method, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, "/patients/P1/vitals", nil)
	if key != "" {
		req.Header.Set(Header, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareReplaysFinishedResponse(t *testing.T) {
	next, calls := counting(http.StatusCreated)
	h := NewInbox(DefaultInboxConfig(), nil).Middleware(nil)(next)

	first := send(h, http.MethodPost, "k1")
	second := send(h, http.MethodPost, "k1")

	if *calls != 1 {
		t.Fatalf("handler ran %d times", *calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != first.Body.String() {
		t.Fatalf("replay = %d %s", second.Code, second.Body.String())
	}
	if second.Header().Get(ReplayedHeader) != "true" || first.Header().Get(ReplayedHeader) != "" {
		t.Fatal("replayed header set on the wrong response")
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("content type = %q", second.Header().Get("Content-Type"))
	}

	send(h, http.MethodPost, "k2")
	if *calls != 2 {
		t.Fatal("a different key should run the handler")
	}
}

func TestMiddlewarePassesThrough(t *testing.T) {
	next, calls := counting(http.StatusOK)
	h := NewInbox(DefaultInboxConfig(), nil).Middleware(nil)(next)

	send(h, http.MethodPost, "")
	send(h, http.MethodPost, "")
	send(h, http.MethodGet, "k1")
	send(h, http.MethodGet, "k1")
	if *calls != 4 {
		t.Fatalf("handler ran %d times, want 4", *calls)
	}
}

func TestFailedResponseIsNotRemembered(t *testing.T) {
	next, calls := counting(http.StatusBadGateway)
	inbox := NewInbox(DefaultInboxConfig(), nil)
	h := inbox.Middleware(nil)(next)

	send(h, http.MethodPost, "k1")
	rec := send(h, http.MethodPost, "k1")
	if *calls != 2 || rec.Header().Get(ReplayedHeader) != "" {
		t.Fatalf("calls = %d, replayed = %q", *calls, rec.Header().Get(ReplayedHeader))
	}
	if inbox.Len() != 0 {
		t.Fatalf("inbox holds %d entries", inbox.Len())
	}
}

func TestKeysAreScopedToClient(t *testing.T) {
	next, calls := counting(http.StatusCreated)
	client := "a"
	h := NewInbox(DefaultInboxConfig(), nil).Middleware(func(*http.Request) string { return client })(next)

	send(h, http.MethodPost, "k1")
	client = "b"
	send(h, http.MethodPost, "k1")
	if *calls != 2 {
		t.Fatalf("handler ran %d times, want 2", *calls)
	}
}

func TestExpiredEntriesRunAgain(t *testing.T) {
	next, calls := counting(http.StatusCreated)
	inbox := NewInbox(InboxConfig{TTL: time.Minute}, nil)
	clock := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	inbox.now = func() time.Time { return clock }
	h := inbox.Middleware(nil)(next)

	send(h, http.MethodPost, "k1")
	clock = clock.Add(2 * time.Minute)
	send(h, http.MethodPost, "k1")
	if *calls != 2 {
		t.Fatalf("handler ran %d times, want 2", *calls)
	}
}

func TestEvictsOldestBeyondCapacity(t *testing.T) {
	inbox := NewInbox(InboxConfig{TTL: time.Hour, MaxEntries: 2}, nil)
	ok := func() *Response { return &Response{Status: http.StatusCreated} }

	inbox.Process("a", ok)
	inbox.Process("b", ok)
	inbox.Process("c", ok)

	if inbox.Len() != 2 {
		t.Fatalf("len = %d", inbox.Len())
	}
	if _, found := inbox.Get("a"); found {
		t.Fatal("oldest entry should be evicted")
	}
}

func TestConcurrentDuplicatesRunOnce(t *testing.T) {
	inbox := NewInbox(DefaultInboxConfig(), nil)
	release := make(chan struct{})
	var calls int32

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inbox.Process("k", func() *Response {
				atomic.AddInt32(&calls, 1)
				<-release
				return &Response{Status: http.StatusCreated}
			})
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("ran %d times", calls)
	}
}
