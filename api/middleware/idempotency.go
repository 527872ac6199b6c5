package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/agromart/agromart-backend/api/responses"
	pkgerrors "github.com/agromart/agromart-backend/pkg/errors"
	"github.com/agromart/agromart-backend/pkg/logger"
	pkgredis "github.com/agromart/agromart-backend/pkg/redis"
)

const (
	idempotencyHeader    = "Idempotency-Key"
	replayedHeader       = "Idempotent-Replayed"
	maxIdempotencyKeyLen = 128
	pendingMarker        = "pending"

	defaultReplayTTL = 7 * 24 * time.Hour
	defaultLockTTL   = time.Minute
)

// storedResponse is what a replay writes back. Body is base64 in JSON.
type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

type idempotencyGate struct {
	store     pkgredis.IdempotencyStore
	replayTTL time.Duration
	lockTTL   time.Duration
	logg      *logger.Logger
}

// Idempotent requires an Idempotency-Key header and replays the first
// response for the same user, path and key. A different body under a used
// key, or a duplicate while the first request is still running, is rejected
// with IDEMPOTENCY_KEY_REUSED. 5xx responses are not stored.
func Idempotent(store pkgredis.IdempotencyStore, replayTTL, lockTTL time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if replayTTL <= 0 {
		replayTTL = defaultReplayTTL
	}
	if lockTTL <= 0 {
		lockTTL = defaultLockTTL
	}
	gate := &idempotencyGate{store: store, replayTTL: replayTTL, lockTTL: lockTTL, logg: logg}
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gate.serve(next, w, r)
		})
	}
}

func (g *idempotencyGate) serve(next http.Handler, w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if clientKey == "" || len(clientKey) > maxIdempotencyKeyLen {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required").
			WithDetails(map[string]any{"max_length": maxIdempotencyKeyLen}))
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	fingerprint := digest(string(bytes.TrimSpace(body)))
	key := g.store.IdempotencyKey(idempotencyScope(r), clientKey)

	acquired, err := g.store.SetNX(ctx, key, pendingMarker, g.lockTTL)
	if err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key"))
		return
	}
	if !acquired {
		g.replay(ctx, w, key, fingerprint)
		return
	}

	capture := &responseCapture{ResponseWriter: w}
	next.ServeHTTP(capture, r)
	g.settle(ctx, key, fingerprint, capture)
}

// settle stores the captured response, or frees the key after a server
// error so the client can retry with the same key.
func (g *idempotencyGate) settle(ctx context.Context, key, fingerprint string, capture *responseCapture) {
	ctx = context.WithoutCancel(ctx)
	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		if err := g.store.Del(ctx, key); err != nil {
			g.logFailure(ctx, "idempotency.release_failed", err)
		}
		return
	}

	payload, err := json.Marshal(storedResponse{
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
		Fingerprint: fingerprint,
	})
	if err != nil {
		g.logFailure(ctx, "idempotency.encode_failed", err)
		return
	}
	if err := g.store.Set(ctx, key, string(payload), g.replayTTL); err != nil {
		g.logFailure(ctx, "idempotency.persist_failed", err)
	}
}

func (g *idempotencyGate) replay(ctx context.Context, w http.ResponseWriter, key, fingerprint string) {
	raw, err := g.store.Get(ctx, key)
	switch {
	case errors.Is(err, pkgredis.Nil):
		raw = ""
	case err != nil:
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record"))
		return
	}
	if raw == "" || raw == pendingMarker {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "request with this idempotency key is still in progress"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, g.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if stored.Fingerprint != fingerprint {
		responses.WriteError(ctx, g.logg, w, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
		return
	}

	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

func (g *idempotencyGate) logFailure(ctx context.Context, msg string, err error) {
	if g.logg != nil {
		g.logg.Error(ctx, msg, err)
	}
}

// idempotencyScope binds a key to the caller and the concrete resource path
// so the same client key can be reused on a different order.
func idempotencyScope(r *http.Request) string {
	path := r.URL.Path
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + path
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func (c *responseCapture) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}
