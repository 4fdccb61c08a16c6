// Package fields holds the heuristics that decide whether a free-text
// WhatsApp reply plausibly answers the question that was asked.
package fields

import (
	"strings"
	"unicode/utf8"
)

// Field names a value the conversation can solicit.
type Field string

const (
	Name             Field = "name"
	RecipientName    Field = "recipient_name"
	Address          Field = "address"
	RecipientAddress Field = "recipient_address"
	Phone            Field = "phone"
	RecipientPhone   Field = "recipient_phone"
	PaymentMethod    Field = "payment_method"
	Delivery         Field = "delivery_requested_raw"
	RecipientMode    Field = "recipient_mode"
	Default          Field = "default"
)

var known = map[Field]struct{}{
	Name: {}, RecipientName: {}, Address: {}, RecipientAddress: {}, Phone: {},
	RecipientPhone: {}, PaymentMethod: {}, Delivery: {}, RecipientMode: {}, Default: {},
}

// IsKnown reports whether f is one of the solicitable fields.
func (f Field) IsKnown() bool {
	_, ok := known[f]
	return ok
}

// QuestionKey is the loop guard key for the question soliciting f.
func (f Field) QuestionKey() string {
	return string(f) + "_question"
}

// Validate reports whether raw plausibly satisfies field. Unknown fields are
// treated like Default.
func Validate(field Field, raw string) bool {
	if IsAck(raw) {
		return false
	}
	switch field {
	case Name, RecipientName:
		return IsNameLike(raw)
	case Address, RecipientAddress:
		return IsAddressLike(raw)
	case Phone, RecipientPhone:
		return IsPhoneLike(raw)
	case PaymentMethod:
		_, ok := ParsePaymentMethod(raw)
		return ok
	case Delivery:
		return IsDeliveryLike(raw)
	default:
		return true
	}
}

// IsNameLike requires two characters, two of them letters.
func IsNameLike(raw string) bool {
	s := strings.TrimSpace(raw)
	return utf8.RuneCountInString(s) >= 2 && countLetters(s) >= 2
}

// IsPhoneLike requires at least eight digits once formatting is stripped.
func IsPhoneLike(raw string) bool {
	return len(DigitsOnly(raw)) >= 8
}

// IsAddressLike favors recall: any reasonably long text with letters, or a
// known neighborhood/street keyword.
func IsAddressLike(raw string) bool {
	s := strings.TrimSpace(raw)
	if utf8.RuneCountInString(s) >= 5 && countLetters(s) >= 3 {
		return true
	}
	n := Normalize(s)
	for _, place := range gazetteer {
		if containsPhrase(n, place) {
			return true
		}
	}
	return false
}
