package auth

import (
	"errors"
	"net/http"

	"github.com/noah-isme/dealer-insights/internal/common"
	"github.com/noah-isme/dealer-insights/internal/obs"
)

// Middleware resolves bearer tokens into Credentials for downstream handlers.
type Middleware struct {
	Parser *Parser
}

// RequireAuth rejects requests without a usable dealer token.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Parser == nil {
			common.JSONError(w, http.StatusInternalServerError, "AUTH_NOT_CONFIGURED", "token parser not configured", nil)
			return
		}
		token := common.BearerToken(r)
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		creds, err := m.Parser.Parse(token)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				common.WriteAppError(w, appErr)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		ctx := WithCredentials(r.Context(), creds)
		ctx = common.WithDealerID(ctx, creds.DealerID)
		obs.Annotate(ctx, "dealer_id", creds.DealerID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
