package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/andreasstove999/bnpl-storefront/internal/model"
)

const HeaderSessionID = "X-Session-Id"

type ctxKey string

const (
	ctxCorrelationID ctxKey = "correlation_id"
	ctxSessionID     ctxKey = "session_id"
)

// RequireSessionForMeRoutes enforces X-Session-Id on all /me/* routes and stores it in context.
func RequireSessionForMeRoutes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/me" || strings.HasPrefix(path, "/me/") {
			sid := strings.TrimSpace(r.Header.Get(HeaderSessionID))
			if sid == "" {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(model.ErrorResponse{
					Error:         "missing required header: " + HeaderSessionID,
					CorrelationID: GetCorrelationID(r.Context()),
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
			return
		}

		// Optional outside /me so anonymous catalog calls can still decorate.
		if sid := strings.TrimSpace(r.Header.Get(HeaderSessionID)); sid != "" {
			r = r.WithContext(WithSessionID(r.Context(), sid))
		}
		next.ServeHTTP(w, r)
	})
}

func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, ctxSessionID, sid)
}

func GetSessionID(ctx context.Context) string {
	if v := ctx.Value(ctxSessionID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
