package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/closetapp/closet-sync/internal/logging"
	"github.com/closetapp/closet-sync/internal/server/ratelimit"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	identityKey  contextKey = "identity"
)

// Identity is the authenticated caller, as carried by the bearer token.
// The account equals the user id; all storage is namespaced by it.
type Identity struct {
	UserID   string
	Username string
}

type tokenClaims struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// RequestID assigns every request an id, honoring one supplied by the caller.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := context.WithValue(r.Context(), requestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetRequestID retrieves the request id from context.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// NewAuthMiddleware verifies the HS256 bearer token and stashes the caller
// identity in the request context. Token issuance happens elsewhere; this
// service only verifies.
func NewAuthMiddleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				writeAPIError(w, Unauthorized(""))
				return
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims := &tokenClaims{}
			_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || claims.UserID == "" {
				writeAPIError(w, Unauthorized("Invalid or expired token"))
				return
			}

			ctx := context.WithValue(r.Context(), identityKey,
				Identity{UserID: claims.UserID, Username: claims.Username})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CallerIdentity retrieves the authenticated identity from context.
func CallerIdentity(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

// NewRateLimitMiddleware caps one operation class per account.
func NewRateLimitMiddleware(limiter ratelimit.Limiter, class string, limit int, window time.Duration, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}
			id, ok := CallerIdentity(r.Context())
			if !ok {
				writeAPIError(w, Unauthorized(""))
				return
			}

			d, err := limiter.Allow(r.Context(), class+":"+id.UserID, limit, window)
			if err != nil {
				// a broken limiter backend must not take sync down with it
				log.Warn(r.Context(), "rate limiter unavailable, allowing request",
					"class", class, "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !d.Allowed {
				seconds := int64(d.RetryAfter / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				writeRateLimited(w, class, seconds)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// statusWriter records the status code for the request log.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// NewLoggingMiddleware logs one line per request.
func NewLoggingMiddleware(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info(r.Context(), "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", sw.status,
				"duration", time.Since(start),
				"requestId", GetRequestID(r.Context()))
		})
	}
}

// NewRecoveryMiddleware turns handler panics into 500 responses.
func NewRecoveryMiddleware(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error(r.Context(), "handler panic",
						"panic", rec, "path", r.URL.Path,
						"requestId", GetRequestID(r.Context()))
					writeAPIError(w, Internal(""))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
