package fields

import "github.com/angelmondragon/wacommerce-backend/pkg/enums"

type paymentKeyword struct {
	phrase string
	method enums.PaymentMethod
}

// multi-word phrases first so "mtn momo" wins over "momo"
var paymentKeywords = []paymentKeyword{
	{"orange money", enums.PaymentMethodOrangeMoney},
	{"mtn momo", enums.PaymentMethodMTNMoMo},
	{"mtn money", enums.PaymentMethodMTNMoMo},
	{"mobile money", enums.PaymentMethodMobileMoney},
	{"moov money", enums.PaymentMethodMoovMoney},
	{"a la livraison", enums.PaymentMethodCash},
	{"carte bancaire", enums.PaymentMethodCard},
	{"cash", enums.PaymentMethodCash},
	{"espece", enums.PaymentMethodCash},
	{"especes", enums.PaymentMethodCash},
	{"liquide", enums.PaymentMethodCash},
	{"cod", enums.PaymentMethodCash},
	{"orange", enums.PaymentMethodOrangeMoney},
	{"om", enums.PaymentMethodOrangeMoney},
	{"momo", enums.PaymentMethodMTNMoMo},
	{"mtn", enums.PaymentMethodMTNMoMo},
	{"moov", enums.PaymentMethodMoovMoney},
	{"flooz", enums.PaymentMethodMoovMoney},
	{"wave", enums.PaymentMethodWave},
	{"carte", enums.PaymentMethodCard},
	{"card", enums.PaymentMethodCard},
	{"visa", enums.PaymentMethodCard},
	{"mastercard", enums.PaymentMethodCard},
	{"cb", enums.PaymentMethodCard},
}

// ParsePaymentMethod maps free text onto a canonical payment method.
func ParsePaymentMethod(raw string) (enums.PaymentMethod, bool) {
	if IsAck(raw) {
		return "", false
	}
	n := Normalize(raw)
	if method, err := enums.ParsePaymentMethod(n); err == nil {
		return method, true
	}
	for _, kw := range paymentKeywords {
		if containsPhrase(n, kw.phrase) {
			return kw.method, true
		}
	}
	return "", false
}
