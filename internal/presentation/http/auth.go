package httppresentation

import (
	"context"
	"net/http"
	"strings"

	"github.com/Zhima-Mochi/ecomarket/internal/domain/access"
	"github.com/Zhima-Mochi/ecomarket/internal/observability"
	"github.com/Zhima-Mochi/ecomarket/internal/observability/logctx"
)

// Authenticator turns a bearer token into an actor.
type Authenticator interface {
	Authenticate(token string) (access.Actor, error)
}

type actorKey struct{}

func contextWithActor(ctx context.Context, a access.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// actorFrom returns the authenticated actor, or the zero (anonymous) actor.
func actorFrom(ctx context.Context) access.Actor {
	a, _ := ctx.Value(actorKey{}).(access.Actor)
	return a
}

// withActor resolves the Authorization header. Requests without one continue anonymously and the use case
// decides; a header that does not verify is rejected with 401.
func (h *Handler) withActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" || h.auth == nil {
			next.ServeHTTP(w, r)
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid authorization header", Kind: KindUnauthorized})
			return
		}
		actor, err := h.auth.Authenticate(token)
		if err != nil {
			logctx.FromOr(r.Context(), h.log).Warn("http_auth_rejected", observability.Err(err))
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid or expired token", Kind: KindUnauthorized})
			return
		}

		ctx, _ := logctx.Scope(contextWithActor(r.Context(), actor), h.log, observability.F("user_id", actor.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
