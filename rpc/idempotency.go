package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"lukechampine.com/blake3"

	"hgigs/crypto"
	"hgigs/services/eventlog"
)

const (
	idempotencyHeader = "Idempotency-Key"
	replayHeader      = "Idempotent-Replay"
	maxIdempotencyKey = 128
	maxRequestBytes   = 1 << 20
)

// IdempotencyStore persists the first response observed for a caller's key.
type IdempotencyStore interface {
	LookupIdempotency(ctx context.Context, caller, key string) (eventlog.IdempotencyKey, error)
	SaveIdempotency(ctx context.Context, record eventlog.IdempotencyKey) error
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// idempotency replays stored responses for repeated Idempotency-Key headers
// and refuses keys reused with a different request body. Only successful
// responses are stored; a rejected request leaves the key free so the same
// call can be retried once the condition clears.
type idempotency struct {
	store  IdempotencyStore
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*keyLock
}

func newIdempotency(store IdempotencyStore, logger *slog.Logger) *idempotency {
	return &idempotency{store: store, logger: logger, locks: make(map[string]*keyLock)}
}

func (i *idempotency) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
		if i == nil || i.store == nil || key == "" || r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}
		if len(key) > maxIdempotencyKey {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "idempotency key too long")
			return
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_INPUT", "unable to read request body")
			return
		}
		if len(body) > maxRequestBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "INVALID_INPUT", "request body too large")
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))

		caller := ""
		if principal, ok := CallerFrom(r.Context()); ok {
			caller = crypto.FromRaw(principal).String()
		}
		fingerprint := requestFingerprint(r.Method, r.URL.Path, body)

		release := i.lock(caller + "|" + key)
		defer release()

		stored, err := i.store.LookupIdempotency(r.Context(), caller, key)
		switch {
		case err == nil:
			if stored.Fingerprint != fingerprint {
				writeError(w, http.StatusConflict, "IDEMPOTENCY_CONFLICT", "idempotency key reused with a different request")
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set(replayHeader, "true")
			w.WriteHeader(stored.Status)
			_, _ = io.WriteString(w, stored.Response)
			return
		case !errors.Is(err, eventlog.ErrNotFound):
			i.logger.Error("idempotency lookup failed", slog.String("requestId", RequestIDFrom(r.Context())), slog.Any("error", err))
			writeError(w, http.StatusInternalServerError, "INTERNAL", "idempotency store unavailable")
			return
		}

		recorder := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if recorder.status < http.StatusOK || recorder.status >= http.StatusMultipleChoices {
			return
		}
		record := eventlog.IdempotencyKey{
			Key:         key,
			Caller:      caller,
			RequestID:   requestIDOr(r.Context()),
			Fingerprint: fingerprint,
			Method:      r.Method,
			Path:        r.URL.Path,
			Status:      recorder.status,
			Response:    recorder.buf.String(),
		}
		if err := i.store.SaveIdempotency(r.Context(), record); err != nil {
			i.logger.Warn("idempotency save failed", slog.String("requestId", record.RequestID), slog.Any("error", err))
		}
	})
}

func (i *idempotency) lock(id string) func() {
	i.mu.Lock()
	entry, ok := i.locks[id]
	if !ok {
		entry = &keyLock{}
		i.locks[id] = entry
	}
	entry.refs++
	i.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		i.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(i.locks, id)
		}
		i.mu.Unlock()
	}
}

func requestFingerprint(method, path string, body []byte) string {
	h := blake3.New(32, nil)
	_, _ = h.Write([]byte(method))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(path))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func requestIDOr(ctx context.Context) string {
	if id := RequestIDFrom(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

// responseRecorder captures the response so it can be replayed.
type responseRecorder struct {
	http.ResponseWriter
	buf    bytes.Buffer
	status int
}

func (rr *responseRecorder) WriteHeader(status int) {
	rr.status = status
	rr.ResponseWriter.WriteHeader(status)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	rr.buf.Write(b)
	return rr.ResponseWriter.Write(b)
}
