package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"

	"github.com/neoncad/engine/internal/api/types"
	appErr "github.com/neoncad/engine/pkg/errors"
	"github.com/neoncad/engine/pkg/logger"
)

// Recovery logs panics and answers 500 with the error envelope.
func Recovery(log *zap.Logger) func(http.Handler) http.Handler {
	log = logger.OrNop(log).Named("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				log.Error("panic recovered",
					zap.String("id", GetRequestID(r.Context())),
					zap.Any("panic", rec),
					zap.ByteString("stack", debug.Stack()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(types.APIResponse{
					Error: &types.APIError{Code: string(appErr.CodeInternal), Message: "internal error"},
					Meta:  &types.Meta{RequestID: GetRequestID(r.Context())},
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
