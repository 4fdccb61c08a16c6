package orders

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/wacommerce-backend/internal/products"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
)

var statusLabels = map[enums.OrderStatus]string{
	enums.OrderStatusPending:    "en attente",
	enums.OrderStatusConfirmed:  "confirmée",
	enums.OrderStatusPreparing:  "en préparation",
	enums.OrderStatusInDelivery: "en cours de livraison",
	enums.OrderStatusDelivered:  "livrée",
	enums.OrderStatusCanceled:   "annulée",
}

// StatusLabel is the French label of a status.
func StatusLabel(status enums.OrderStatus) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return string(status)
}

// Describe renders an order for a WhatsApp message.
func Describe(order *models.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧾 Commande %s (%s)\n", order.Reference, StatusLabel(order.Status))
	for _, item := range order.Items {
		fmt.Fprintf(&b, "• %s x%d = %s %s\n", item.ProductName, item.Quantity, products.FormatAmount(item.TotalPrice), order.Currency)
	}
	fmt.Fprintf(&b, "Total : %s %s\n", products.FormatAmount(order.TotalAmount), order.Currency)
	fmt.Fprintf(&b, "Destinataire : %s (%s)\n", order.RecipientName, order.RecipientPhone)
	if order.DeliveryAddress != nil {
		fmt.Fprintf(&b, "Adresse : %s\n", *order.DeliveryAddress)
	}
	fmt.Fprintf(&b, "Livraison : %s", order.DeliveryRequestedRaw)
	if order.PaymentMethod != nil {
		fmt.Fprintf(&b, "\nPaiement : %s", order.PaymentMethod.Label())
	}
	return b.String()
}
