package middleware

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	redisstore "trips/internal/redis"
)

const idempotencyHeader = "Idempotency-Key"

// cachedResponse stores the response for idempotent requests.
type cachedResponse struct {
	StatusCode  int             `json:"status_code"`
	Body        json.RawMessage `json:"body"`
	ContentType string          `json:"content_type"`
}

// responseWriter wraps gin.ResponseWriter to capture the response.
type responseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware returns middleware that replays cached responses for
// repeated mutation requests. The key is reserved before the handler runs, so
// two concurrent requests with the same key cannot both execute: the loser
// gets 409 and retries once the winner's response is cached.
func IdempotencyMiddleware(store redisstore.IdempotencyStoreInterface) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodPost && c.Request.Method != http.MethodPut && c.Request.Method != http.MethodPatch {
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()

		data, err := store.GetResponse(ctx, key)
		switch {
		case errors.Is(err, redisstore.ErrInFlight):
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in flight"})
			return
		case err != nil:
			// Cache unavailable; execute without the idempotency guarantee.
			c.Next()
			return
		case data != nil:
			replay(c, data)
			return
		}

		reserved, err := store.Reserve(ctx, key)
		if err != nil {
			c.Next()
			return
		}
		if !reserved {
			// Lost the race. The winner is either still executing or has
			// already cached its response.
			data, err := store.GetResponse(ctx, key)
			if err == nil && data != nil {
				replay(c, data)
				return
			}
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request with this idempotency key is in flight"})
			return
		}

		w := &responseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		status := c.Writer.Status()
		if status >= 200 && status < 500 {
			cached := cachedResponse{
				StatusCode:  status,
				Body:        w.body.Bytes(),
				ContentType: c.Writer.Header().Get("Content-Type"),
			}
			if encoded, err := json.Marshal(cached); err == nil {
				_ = store.SetResponse(ctx, key, encoded)
				return
			}
		}
		// Server errors are not cached; release the reservation so the
		// caller can retry.
		_ = store.Release(ctx, key)
	}
}

func replay(c *gin.Context, data []byte) {
	var cached cachedResponse
	if err := json.Unmarshal(data, &cached); err != nil {
		c.Next()
		return
	}
	contentType := cached.ContentType
	if contentType == "" {
		contentType = "application/json"
	}
	c.Data(cached.StatusCode, contentType, cached.Body)
	c.Abort()
}
