package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"vault-gateway/middleware/ratelimit"
	ratedomain "vault-gateway/middleware/ratelimit/domain"
	"vault-gateway/vault/domain"
)

// Vault é o caso de uso que as rotas chamam (vault/application.Service).
type Vault interface {
	Create(ctx context.Context, owner domain.Owner, payload []byte) (domain.Item, error)
	List(ctx context.Context, owner domain.Owner) ([]domain.Item, error)
	Update(ctx context.Context, owner domain.Owner, id string, payload []byte) (domain.Item, error)
	MaxPayloadBytes() int
}

type Config struct {
	Vault   Vault
	Limiter ratedomain.LimiterStore
	Stats   ratedomain.StatsStore
	// Now é o relógio das janelas de cota; nil usa time.Now.
	Now func() time.Time

	IdentityHeader string
	AddLimitHeader bool

	ConcurrencyMax     int
	ConcurrencyTimeout time.Duration

	Logger *slog.Logger
}

// New devolve o handler completo. Registry de cota e vault são os de cfg:
// nada aqui é global, cada chamada monta uma instância isolada.
func New(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handlers{vault: cfg.Vault, logger: logger}
	errw := h.writeError

	mux := http.NewServeMux()
	mux.HandleFunc("POST /vault", h.create)
	mux.HandleFunc("GET /vault/items", h.list)
	mux.HandleFunc("PUT /vault/items/{id}", h.update)

	var handler http.Handler = mux
	handler = ratelimit.ConcurrencyMiddleware(ratelimit.ConcurrencyOptions{
		Max:            cfg.ConcurrencyMax,
		RejectStatus:   http.StatusServiceUnavailable,
		AcquireTimeout: cfg.ConcurrencyTimeout,
		ErrorWriter:    errw,
		Logger:         logger,
	})(handler)
	handler = ratelimit.Middleware(ratelimit.Options{
		Store:          cfg.Limiter,
		Now:            cfg.Now,
		Stats:          cfg.Stats,
		IdentityHeader: cfg.IdentityHeader,
		RejectStatus:   http.StatusTooManyRequests,
		AddLimitHeader: cfg.AddLimitHeader,
		ErrorWriter:    errw,
		Logger:         logger,
	})(handler)
	handler = accessLog(logger, handler)
	return handler
}
