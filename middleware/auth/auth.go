package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"vault-gateway/middleware/ratelimit/domain"
)

// DefaultHeader é o header lido quando Extractor.Header está vazio.
const DefaultHeader = "Authorization"

// ErrUnauthorized indica credencial ausente ou em branco.
var ErrUnauthorized = errors.New("auth: missing or blank credential")

// esquemas reconhecidos, comparados sem diferenciar maiúsculas.
var schemes = []string{"bearer", "token"}

// Extract limpa o valor cru do header e devolve a identidade.
func Extract(header string) (domain.Key, error) {
	v := strings.TrimSpace(header)
	v = strings.TrimSpace(stripScheme(v))
	if v == "" {
		return "", ErrUnauthorized
	}
	return domain.Key(v), nil
}

func stripScheme(v string) string {
	for _, s := range schemes {
		if len(v) < len(s) || !strings.EqualFold(v[:len(s)], s) {
			continue
		}
		rest := v[len(s):]
		if rest == "" {
			// só o esquema, sem token
			return ""
		}
		if rest[0] == ' ' || rest[0] == '\t' {
			return rest
		}
	}
	return v
}

// Extractor lê a identidade de um request.
type Extractor struct {
	Header string
}

func (e Extractor) FromRequest(r *http.Request) (domain.Key, error) {
	h := e.Header
	if h == "" {
		h = DefaultHeader
	}
	return Extract(r.Header.Get(h))
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, key domain.Key) context.Context {
	return context.WithValue(ctx, ctxKey{}, key)
}

// IdentityFrom devolve a identidade gravada por WithIdentity.
func IdentityFrom(ctx context.Context) (domain.Key, bool) {
	k, ok := ctx.Value(ctxKey{}).(domain.Key)
	return k, ok && k != ""
}
