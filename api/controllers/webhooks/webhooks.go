// Package webhooks exposes the inbound WhatsApp gateway endpoints.
package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/wacommerce-backend/api/responses"
	"github.com/angelmondragon/wacommerce-backend/internal/orchestrator"
	inbound "github.com/angelmondragon/wacommerce-backend/internal/webhooks"
	pkgerrors "github.com/angelmondragon/wacommerce-backend/pkg/errors"
	"github.com/angelmondragon/wacommerce-backend/pkg/logger"
)

const maxPayloadBytes = 1 << 20

// Dispatcher queues normalized messages for background processing.
type Dispatcher interface {
	Dispatch(ctx context.Context, msgs ...orchestrator.Inbound)
}

type parseFunc func([]byte) ([]orchestrator.Inbound, error)

// WAHA receives WAHA session events.
func WAHA(dispatcher Dispatcher, logg *logger.Logger) http.HandlerFunc {
	return receive(dispatcher, inbound.ParseWAHA, nil, logg)
}

// Cloud receives WhatsApp Cloud API events. When appSecret is set the
// X-Hub-Signature-256 header must match.
func Cloud(dispatcher Dispatcher, appSecret string, logg *logger.Logger) http.HandlerFunc {
	var verify func(*http.Request, []byte) error
	if appSecret != "" {
		verify = func(r *http.Request, payload []byte) error {
			if !validSignature(payload, appSecret, r.Header.Get("X-Hub-Signature-256")) {
				return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook signature")
			}
			return nil
		}
	}
	return receive(dispatcher, inbound.ParseCloud, verify, logg)
}

// CloudVerify answers the subscription handshake with hub.challenge.
func CloudVerify(verifyToken string, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if verifyToken == "" || q.Get("hub.mode") != "subscribe" ||
			!hmac.Equal([]byte(q.Get("hub.verify_token")), []byte(verifyToken)) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "verification failed"))
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, q.Get("hub.challenge"))
	}
}

func receive(dispatcher Dispatcher, parse parseFunc, verify func(*http.Request, []byte) error, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if dispatcher == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dispatcher unavailable"))
			return
		}
		payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}
		if verify != nil {
			if err := verify(r, payload); err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
		}
		msgs, err := parse(payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if len(msgs) > 0 {
			dispatcher.Dispatch(ctx, msgs...)
		}
		responses.WriteSuccess(w, map[string]int{"accepted": len(msgs)})
	}
}

func validSignature(payload []byte, secret, header string) bool {
	sig, ok := strings.CutPrefix(strings.TrimSpace(header), "sha256=")
	if !ok || sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(sig)))
}
