package enums

import "fmt"

// PaymentMethod describes how a customer intends to settle an order.
type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodOrangeMoney PaymentMethod = "orange_money"
	PaymentMethodMTNMoMo     PaymentMethod = "mtn_momo"
	PaymentMethodMoovMoney   PaymentMethod = "moov_money"
	PaymentMethodWave        PaymentMethod = "wave"
	PaymentMethodMobileMoney PaymentMethod = "mobile_money"
	PaymentMethodCard        PaymentMethod = "card"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodCash,
	PaymentMethodOrangeMoney,
	PaymentMethodMTNMoMo,
	PaymentMethodMoovMoney,
	PaymentMethodWave,
	PaymentMethodMobileMoney,
	PaymentMethodCard,
}

var paymentMethodLabels = map[PaymentMethod]string{
	PaymentMethodCash:        "Espèces à la livraison",
	PaymentMethodOrangeMoney: "Orange Money",
	PaymentMethodMTNMoMo:     "MTN MoMo",
	PaymentMethodMoovMoney:   "Moov Money",
	PaymentMethodWave:        "Wave",
	PaymentMethodMobileMoney: "Mobile Money",
	PaymentMethodCard:        "Carte bancaire",
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string {
	return string(p)
}

// Label is the customer-facing French label.
func (p PaymentMethod) Label() string {
	if label, ok := paymentMethodLabels[p]; ok {
		return label
	}
	return string(p)
}

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool {
	for _, candidate := range validPaymentMethods {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	for _, candidate := range validPaymentMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment method %q", value)
}
