package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/bitfantasy/nimo-scm/internal/cache"
	"github.com/gin-gonic/gin"
)

const (
	IdempotencyHeader = "Idempotency-Key"
	ReplayedHeader    = "Idempotent-Replayed"
)

type idempotentEntry struct {
	Pending     bool   `json:"pending"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency 写操作幂等：相同 Idempotency-Key 重放首次响应，不再执行
// 需挂在 JWTAuth 之后，键按用户隔离；5xx 响应不缓存，允许重试
func Idempotency(store cache.Store, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		if key == "" || c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		scoped := "idem:" + c.GetString("user_id") + ":" + c.Request.Method + ":" + c.Request.URL.Path + ":" + key

		if raw, found, err := store.Get(ctx, scoped); err == nil && found {
			var entry idempotentEntry
			if json.Unmarshal(raw, &entry) == nil {
				if entry.Pending {
					c.AbortWithStatusJSON(http.StatusConflict, gin.H{
						"code":    40903,
						"message": "相同幂等键的请求正在处理",
						"kind":    "CONFLICT",
					})
					return
				}
				c.Header(ReplayedHeader, "true")
				c.Data(entry.Status, entry.ContentType, entry.Body)
				c.Abort()
				return
			}
		}

		pending, _ := json.Marshal(idempotentEntry{Pending: true})
		acquired, err := store.SetNX(ctx, scoped, pending, ttl)
		if err != nil {
			log.Printf("[SCM] idempotency store unavailable: %v", err)
			c.Next()
			return
		}
		if !acquired {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"code":    40903,
				"message": "相同幂等键的请求正在处理",
				"kind":    "CONFLICT",
			})
			return
		}

		// 未保存响应（5xx、处理器 panic、写缓存失败）时释放占位，允许重试
		saved := false
		defer func() {
			if !saved {
				store.Del(context.WithoutCancel(ctx), scoped)
			}
		}()

		writer := &captureWriter{ResponseWriter: c.Writer}
		c.Writer = writer
		c.Next()

		status := writer.Status()
		if status >= http.StatusInternalServerError {
			return
		}
		done, _ := json.Marshal(idempotentEntry{
			Status:      status,
			ContentType: writer.Header().Get("Content-Type"),
			Body:        writer.body.Bytes(),
		})
		if err := store.Set(ctx, scoped, done, ttl); err != nil {
			log.Printf("[SCM] save idempotent response: %v", err)
			return
		}
		saved = true
	}
}
