package sandbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/alexjbarnes/ampwidgets/internal/graph"
	"github.com/segmentio/ksuid"
)

type contextKey int

const ctxToken contextKey = iota

// requestToken returns the validated token from the context.
func requestToken(ctx context.Context) *TokenInfo {
	ti, _ := ctx.Value(ctxToken).(*TokenInfo)
	return ti
}

// requireToken validates the Bearer token. Missing, unknown and expired
// tokens all get the provider's OAuthException 190 body with a 200
// status, the way the widgets expect to see it.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))

		ti := s.store.ValidateToken(raw)
		if ti == nil {
			s.logger.Debug("sandbox: rejected token",
				slog.String("path", r.URL.Path),
				slog.Bool("present", raw != ""),
			)
			writeGraphError(w, http.StatusOK, "OAuthException", 190, "Error validating access token: Session has expired or is invalid.")

			return
		}

		ctx := context.WithValue(r.Context(), ctxToken, ti)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeGraphError(w http.ResponseWriter, status int, errType string, code int, message string) {
	writeJSON(w, status, graph.ErrorBody{Error: graph.ErrorDetail{
		Message:   message,
		Type:      errType,
		Code:      code,
		FBTraceID: ksuid.New().String(),
	}})
}
