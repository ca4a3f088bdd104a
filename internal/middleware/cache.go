package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/library-reservation/internal/config"
	"github.com/iliyamo/library-reservation/internal/metrics"
)

// cacheStore is the subset of Redis the response cache needs.
type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	Purge(ctx context.Context, prefix string) error
}

type redisStore struct{ rdb *redis.Client }

func (s redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.rdb.Get(ctx, key).Bytes()
}

func (s redisStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return s.rdb.SetEx(ctx, key, val, ttl).Err()
}

func (s redisStore) Purge(ctx context.Context, prefix string) error {
	iter := s.rdb.Scan(ctx, 0, prefix+":*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

// captureWriter copies the response body (up to limit bytes) while
// forwarding it to the client.
type captureWriter struct {
	http.ResponseWriter
	status    int
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit > 0 && cw.buf.Len()+len(b) > cw.limit {
		cw.truncated = true
	} else {
		cw.buf.Write(b)
	}
	return cw.ResponseWriter.Write(b)
}

func cacheKeyFrom(cfg config.CacheConfig, c echo.Context) string {
	r := c.Request()
	var tail string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		tail = "route:" + c.Path()
	case "method_route_query":
		tail = "method:" + r.Method + ":route:" + c.Path() + ":q:" + r.URL.RawQuery
	default: // route_query
		tail = "route:" + c.Path() + ":q:" + r.URL.RawQuery
	}
	sum := sha1.Sum([]byte(tail))
	return fmt.Sprintf("%s:%x", cfg.Prefix, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdr, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdr)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdr)))
	copy(out[8:], hdr)
	copy(out[8+len(hdr):], body)
	return out, nil
}

func decodePayload(bs []byte) (int, http.Header, []byte, bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status := int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	hdr := make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &hdr); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, hdr, bs[8+hlen:], true
}

// NewRedisCache caches successful responses of the configured methods
// in Redis, headers included.  It is a pass-through when disabled or
// when Redis is unavailable.
func NewRedisCache(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	return responseCache(cfg, redisStore{rdb})
}

// NewCachePurge drops every cached response after a successful mutating
// request so catalog edits are visible immediately.
func NewCachePurge(cfg config.CacheConfig, rdb *redis.Client) echo.MiddlewareFunc {
	if !cfg.Enabled || rdb == nil {
		return passThrough
	}
	return cachePurge(cfg, redisStore{rdb})
}

func responseCache(cfg config.CacheConfig, store cacheStore) echo.MiddlewareFunc {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !cfg.Methods[strings.ToUpper(c.Request().Method)] {
				return next(c)
			}
			ctx := c.Request().Context()
			key := cacheKeyFrom(cfg, c)

			if bs, err := store.Get(ctx, key); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					metrics.CacheLookups.WithLabelValues("hit").Inc()
					for k, vals := range hdr {
						if strings.EqualFold(k, "Content-Length") {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					_, err := c.Response().Write(body)
					return err
				}
			}
			metrics.CacheLookups.WithLabelValues("miss").Inc()

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: cfg.MaxBodyBytes}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")
			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || cw.truncated {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes())
			if err != nil {
				return nil
			}
			if err := store.Set(context.WithoutCancel(ctx), key, payload, ttl); err != nil {
				slog.Warn("response cache write failed", "key", key, "error", err)
			}
			return nil
		}
	}
}

func cachePurge(cfg config.CacheConfig, store cacheStore) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				return err
			}
			if cfg.Methods[c.Request().Method] {
				return nil
			}
			if st := c.Response().Status; st >= 200 && st < 300 {
				if err := store.Purge(context.WithoutCancel(c.Request().Context()), cfg.Prefix); err != nil {
					slog.Warn("response cache purge failed", "prefix", cfg.Prefix, "error", err)
				}
			}
			return nil
		}
	}
}
