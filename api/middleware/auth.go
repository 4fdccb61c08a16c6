package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/wacommerce-backend/api/responses"
	pkgAuth "github.com/angelmondragon/wacommerce-backend/pkg/auth"
	"github.com/angelmondragon/wacommerce-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
)

// MerchantAuth validates a bearer merchant token and stores the merchant id
// in the request context.
func MerchantAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseMerchantToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithMerchantID(r.Context(), claims.MerchantID)
			if logg != nil {
				ctx = logg.WithMerchantID(ctx, claims.MerchantID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
