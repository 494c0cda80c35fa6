package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"shopmunim-backend/internal/server/authctx"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyHeader = "Idempotency-Key"
	idempotencyPrefix    = "idempotency:v1:"
	inProgressMarker     = "__in_progress__"
)

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// Idempotency replays the stored response when an unsafe request repeats an
// Idempotency-Key. Requests without the header pass through. Keys are scoped
// to the signed-in user.
func Idempotency(cache *redis.Client, ttl time.Duration, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			key := r.Header.Get(idempotencyKeyHeader)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			scope := "anon"
			if u := authctx.FromContext(r.Context()); u != nil {
				scope = u.ID
			}
			cacheKey := idempotencyPrefix + scope + ":" + r.Method + ":" + r.URL.Path + ":" + key

			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()

			cached, err := cache.Get(ctx, cacheKey).Result()
			switch {
			case err == nil:
				if cached == inProgressMarker {
					writeErrorEnvelope(w, http.StatusConflict, "duplicate request currently processing")
					return
				}
				var stored storedResponse
				if err := json.Unmarshal([]byte(cached), &stored); err != nil {
					logger.Warn("failed to decode stored idempotent response", "key", key, "err", err)
					writeErrorEnvelope(w, http.StatusConflict, "duplicate request")
					return
				}
				if stored.ContentType != "" {
					w.Header().Set("Content-Type", stored.ContentType)
				}
				w.Header().Set("Idempotent-Replayed", "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write([]byte(stored.Body))
				return
			case !errors.Is(err, redis.Nil):
				logger.Error("idempotency lookup failed", "key", key, "err", err)
				writeErrorEnvelope(w, http.StatusInternalServerError, "idempotency store failure")
				return
			}

			reserved, err := cache.SetNX(ctx, cacheKey, inProgressMarker, ttl).Result()
			if err != nil {
				logger.Error("idempotency reservation failed", "key", key, "err", err)
				writeErrorEnvelope(w, http.StatusInternalServerError, "idempotency reservation failure")
				return
			}
			if !reserved {
				writeErrorEnvelope(w, http.StatusConflict, "duplicate request currently processing")
				return
			}

			// Release the reservation if the handler panics.
			defer func() {
				if rec := recover(); rec != nil {
					releaseCtx, releaseCancel := context.WithTimeout(context.Background(), 2*time.Second)
					if err := cache.Del(releaseCtx, cacheKey).Err(); err != nil {
						logger.Error("failed to release idempotency key", "key", key, "err", err)
					}
					releaseCancel()
					panic(rec)
				}
			}()

			var body bytes.Buffer
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			ww.Tee(&body)
			next.ServeHTTP(ww, r)

			persistCtx, persistCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer persistCancel()

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			// Server errors are not cached so the client can retry.
			if status >= 500 {
				cache.Del(persistCtx, cacheKey)
				return
			}
			payload, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: ww.Header().Get("Content-Type"),
				Body:        body.String(),
			})
			if err != nil {
				cache.Del(persistCtx, cacheKey)
				return
			}
			if err := cache.Set(persistCtx, cacheKey, payload, ttl).Err(); err != nil {
				logger.Error("failed to persist idempotent response", "key", key, "err", err)
				cache.Del(persistCtx, cacheKey)
			}
		})
	}
}
