package ratelimit

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"vault-gateway/middleware/auth"
	"vault-gateway/middleware/ratelimit/application"
	"vault-gateway/middleware/ratelimit/domain"

	"golang.org/x/time/rate"
)

// Headers presentes em toda resposta que passa pelo middleware.
const (
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderRetryAfter = "X-RateLimit-Retry-After"
	HeaderLimit      = "X-RateLimit-Limit"
)

// ErrRateLimited é o erro entregue ao ErrorWriter quando a cota acabou.
var ErrRateLimited = errors.New("rate limit exceeded")

// IdentityFunc extrai a identidade do chamador. Erro vira 401.
type IdentityFunc func(r *http.Request) (domain.Key, error)

// ErrorWriter escreve a resposta de erro; os headers de cota já estão setados.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, err error)

type Options struct {
	Store domain.LimiterStore
	// Now é o relógio das janelas; nil usa time.Now.
	Now   func() time.Time
	Stats domain.StatsStore

	IdentityFn     IdentityFunc
	IdentityHeader string

	RejectStatus   int
	AddLimitHeader bool
	ErrorWriter    ErrorWriter

	Logger *slog.Logger
	// RejectLogEvery limita os logs de rejeição (um por intervalo).
	RejectLogEvery time.Duration
}

func defaultErrorWriter(w http.ResponseWriter, _ *http.Request, status int, _ error) {
	http.Error(w, http.StatusText(status), status)
}

// Middleware aplica, nesta ordem: identidade, cota e headers.
//
// Sem identidade responde 401 sem tocar na cota. Com identidade consome uma
// vaga; se bloqueado responde RejectStatus (429), senão segue para next com a
// identidade no contexto (auth.IdentityFrom).
func Middleware(opts Options) func(next http.Handler) http.Handler {
	if opts.RejectStatus == 0 {
		opts.RejectStatus = http.StatusTooManyRequests
	}
	if opts.IdentityFn == nil {
		opts.IdentityFn = auth.Extractor{Header: opts.IdentityHeader}.FromRequest
	}
	if opts.ErrorWriter == nil {
		opts.ErrorWriter = defaultErrorWriter
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RejectLogEvery <= 0 {
		opts.RejectLogEvery = time.Second
	}

	svc := application.Service{
		Store: opts.Store,
		Now:   opts.Now,
	}
	rejectLog := &rate.Sometimes{Interval: opts.RejectLogEvery}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, err := opts.IdentityFn(r)
			if err != nil {
				setHeaders(w, svc.Quota(), opts.AddLimitHeader)
				opts.ErrorWriter(w, r, http.StatusUnauthorized, err)
				return
			}

			dec := svc.Decide(key)
			setHeaders(w, dec, opts.AddLimitHeader)

			if opts.Stats != nil {
				ev := domain.StatsEvent{
					Key:       key,
					Allowed:   dec.Allowed,
					Remaining: dec.Remaining,
					Method:    r.Method,
					Path:      r.URL.Path,
					At:        time.Now(),
				}
				if err := opts.Stats.Record(r.Context(), ev); err != nil {
					opts.Logger.Debug("rate stats record failed", slog.Any("error", err))
				}
			}

			if !dec.Allowed {
				w.Header().Set("Retry-After", formatSeconds(dec.RetryAfter))
				rejectLog.Do(func() {
					opts.Logger.Warn("rate limit exceeded",
						slog.String("caller", key.Fingerprint()),
						slog.String("method", r.Method),
						slog.String("path", r.URL.Path),
						slog.Duration("retry_after", dec.RetryAfter),
					)
				})
				opts.ErrorWriter(w, r, opts.RejectStatus, ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), key)))
		})
	}
}

// setHeaders escreve a cota; retry-after é 0 em decisões admitidas.
func setHeaders(w http.ResponseWriter, dec domain.Decision, addLimit bool) {
	h := w.Header()
	h.Set(HeaderRemaining, formatInt(max(dec.Remaining, 0)))
	if dec.Allowed {
		h.Set(HeaderRetryAfter, "0")
	} else {
		h.Set(HeaderRetryAfter, formatSeconds(dec.RetryAfter))
	}
	if addLimit && dec.Limit > 0 {
		h.Set(HeaderLimit, formatInt(dec.Limit))
	}
}
