package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/andreasstove999/bnpl-storefront/internal/model"
)

// Recover turns panics into a 500 carrying an ErrorReport. The stack is
// always logged and only returned to the client when exposeStack is set.
func Recover(logger *zap.Logger, exposeStack bool) func(http.Handler) http.Handler {
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
				stack := debug.Stack()
				cid := GetCorrelationID(r.Context())

				var clientStack []byte
				if exposeStack {
					clientStack = stack
				}
				report := model.NewErrorReport("internal server error", cid, clientStack, time.Now())

				logger.Error("panic recovered",
					zap.String("panic", fmt.Sprint(rec)),
					zap.String("report_id", report.ID.String()),
					zap.String("correlation_id", cid),
					zap.ByteString("stack", stack),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(report)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
