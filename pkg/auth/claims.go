package auth

import "github.com/golang-jwt/jwt/v5"

// MerchantClaims is the payload of a merchant admin token.
type MerchantClaims struct {
	MerchantID int64 `json:"merchant_id"`
	jwt.RegisteredClaims
}
