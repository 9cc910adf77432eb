package ratelimit

import (
	"log/slog"
	"net/http"
	"time"

	"vault-gateway/middleware/ratelimit/application"
	"vault-gateway/middleware/ratelimit/infra"
)

type ConcurrencyOptions struct {
	Max            int
	RejectStatus   int
	AcquireTimeout time.Duration
	ErrorWriter    ErrorWriter
	Logger         *slog.Logger
}

// ConcurrencyMiddleware limita requests em voo. Deve ficar dentro de
// Middleware para que o 503 também leve os headers de cota.
func ConcurrencyMiddleware(opts ConcurrencyOptions) func(next http.Handler) http.Handler {
	if opts.Max <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusServiceUnavailable
	}
	if opts.ErrorWriter == nil {
		opts.ErrorWriter = defaultErrorWriter
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	svc := application.ConcurrencyService{
		Pool:           infra.NewChanPool(opts.Max),
		AcquireTimeout: opts.AcquireTimeout,
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			release, err := svc.Acquire(r.Context())
			if err != nil {
				opts.Logger.Debug("concurrency slot unavailable", slog.Any("error", err))
				opts.ErrorWriter(w, r, opts.RejectStatus, err)
				return
			}
			defer release()

			next.ServeHTTP(w, r)
		})
	}
}
