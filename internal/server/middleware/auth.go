package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/enisar25/SocialApp/internal/chat"
	"github.com/enisar25/SocialApp/internal/metrics"
)

// NewAuthMiddleware gates every connection attempt on the bearer credential.
// The credential comes from the Authorization header, or from a ?token= query
// parameter for browser websocket clients that cannot set headers. Failures
// never reach the router: the request is refused here with 401.
//
// The handshake window bounds the whole authentication step, directory read
// included, so a stalled lookup cannot park an unauthenticated connection.
func NewAuthMiddleware(logger *slog.Logger, authenticator *chat.Authenticator, handshakeWindow time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta, ok := ReqMetadataFrom(r.Context())
			if !ok {
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			credential := bearerToken(r)
			ctx := r.Context()
			if handshakeWindow > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, handshakeWindow)
				defer cancel()
			}

			user, err := authenticator.Authenticate(ctx, credential)
			if err != nil {
				metrics.AuthFailures.Inc()
				logger.Warn("connection refused: authentication failed",
					slog.String("ip", reqMeta.IP),
					slog.Any("error", err),
				)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			reqMeta.User = user
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
