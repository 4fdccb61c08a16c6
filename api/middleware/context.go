package middleware

import "context"

type contextKey string

const ctxMerchantID contextKey = "merchant_id"

// MerchantIDFromContext returns the authenticated merchant, or 0.
func MerchantIDFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(ctxMerchantID).(int64); ok {
		return v
	}
	return 0
}

// WithMerchantID injects the merchant identifier; tests use it to skip auth.
func WithMerchantID(ctx context.Context, merchantID int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxMerchantID, merchantID)
}
