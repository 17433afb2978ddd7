package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyTTL    = 24 * time.Hour

	// pendingMarker holds a reserved key while its first request runs.
	pendingMarker  = "pending"
	reservationTTL = time.Minute
)

// errInFlight is returned when a key is reserved but has no response yet.
var errInFlight = errors.New("idempotent request in flight")

// storedResponse is the replayable result of a request.
type storedResponse struct {
	StatusCode  int    `json:"status_code"`
	Body        []byte `json:"body"`
	ContentType string `json:"content_type,omitempty"`
}

// capturingWriter copies the response body while passing it through.
type capturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key on POST, PUT and PATCH. The key is reserved before the
// handler runs, so a concurrent duplicate gets 409 instead of executing
// twice. With a nil client every request passes through.
func IdempotencyMiddleware(redisClient *redis.Client) gin.HandlerFunc {
	if redisClient == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return idempotency(redisClient)
}

func idempotency(store redis.Cmdable) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(idempotencyHeader)
		if key == "" {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		storeKey := "idempotency:" + c.Request.Method + ":" + c.FullPath() + ":" + key

		reserved, err := store.SetNX(ctx, storeKey, pendingMarker, reservationTTL).Result()
		if err != nil {
			log.Printf("[idempotency] reserve %s failed, proceeding without: %v", storeKey, err)
			c.Next()
			return
		}

		if !reserved {
			stored, err := loadResponse(ctx, store, storeKey)
			switch {
			case errors.Is(err, errInFlight):
				c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "a request with this idempotency key is in progress"})
			case err != nil:
				// Reservation vanished or Redis failed between calls.
				c.Next()
			default:
				contentType := stored.ContentType
				if contentType == "" {
					contentType = "application/json"
				}
				c.Data(stored.StatusCode, contentType, stored.Body)
				c.Abort()
			}
			return
		}

		w := &capturingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = w

		c.Next()

		// Detached so a cancelled client still settles the reservation.
		settleCtx := context.WithoutCancel(ctx)
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Del(settleCtx, storeKey).Err(); err != nil {
				log.Printf("[idempotency] release %s failed: %v", storeKey, err)
			}
			return
		}

		data, err := json.Marshal(storedResponse{
			StatusCode:  status,
			Body:        w.body.Bytes(),
			ContentType: c.Writer.Header().Get("Content-Type"),
		})
		if err == nil {
			err = store.Set(settleCtx, storeKey, data, idempotencyTTL).Err()
		}
		if err != nil {
			log.Printf("[idempotency] store %s failed: %v", storeKey, err)
		}
	}
}

func loadResponse(ctx context.Context, store redis.Cmdable, key string) (*storedResponse, error) {
	data, err := store.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	if string(data) == pendingMarker {
		return nil, errInFlight
	}
	var stored storedResponse
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}
