package conversation

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/wacommerce-backend/internal/cart"
	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/internal/products"
	"github.com/angelmondragon/wacommerce-backend/pkg/db/models"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
)

var questions = map[fields.Field]string{
	fields.RecipientMode:    "La commande est-elle pour vous ou pour une autre personne ?\n1️⃣ Pour moi\n2️⃣ Pour quelqu'un d'autre",
	fields.Name:             "Quel est votre nom complet ?",
	fields.Address:          "Quelle est votre adresse de livraison (commune, quartier, repère) ?",
	fields.Phone:            "Quel est votre numéro de téléphone ?",
	fields.RecipientName:    "Quel est le nom de la personne qui recevra la commande ?",
	fields.RecipientPhone:   "Quel est le numéro de téléphone du destinataire ?",
	fields.RecipientAddress: "Quelle est l'adresse de livraison du destinataire (commune, quartier, repère) ?",
	fields.PaymentMethod:    "Comment souhaitez-vous payer ? (Espèces, Orange Money, MTN MoMo, Moov Money, Wave ou carte)",
	fields.Delivery:         "Pour quand souhaitez-vous être livré ? (ex : demain 10h, 15 août, 31/12/2025 14h)",
}

var clarifications = map[fields.Field]string{
	fields.RecipientMode:    "Répondez 1 si la commande est pour vous, ou 2 si elle est pour quelqu'un d'autre.",
	fields.Name:             "Je n'ai pas bien saisi votre nom 🙏",
	fields.Address:          "Je n'ai pas bien saisi l'adresse 🙏 Indiquez la commune et le quartier.",
	fields.Phone:            "Ce numéro ne semble pas valide 🙏",
	fields.RecipientName:    "Je n'ai pas bien saisi le nom du destinataire 🙏",
	fields.RecipientPhone:   "Ce numéro ne semble pas valide 🙏 Il faut au moins 8 chiffres.",
	fields.RecipientAddress: "Je n'ai pas bien saisi l'adresse 🙏 Indiquez la commune et le quartier.",
	fields.PaymentMethod:    "Je n'ai pas reconnu ce moyen de paiement 🙏",
	fields.Delivery:         "Je n'ai pas compris la date de livraison 🙏",
}

const (
	msgGenericQuestion = "Pouvez-vous préciser votre demande ?"
	msgDeliveryPast    = "Cette date est déjà passée ⏰"
	msgCartEmpty       = "Votre panier est vide 🛒 Dites-moi quels produits vous souhaitez commander, ou tapez CATALOGUE pour voir nos produits."
	msgCanceled        = "Votre commande a été annulée ❌ Tapez CATALOGUE quand vous voulez pour recommencer."
	msgOptedOut        = "C'est noté, vous ne recevrez plus de messages. Envoyez START pour réactiver la conversation."
	msgOptedIn         = "Bon retour parmi nous 👋 Comment puis-je vous aider ?"
)

// Question returns the prompt soliciting f.
func Question(f fields.Field) string {
	if q, ok := questions[f]; ok {
		return q
	}
	return msgGenericQuestion
}

func clarification(f fields.Field) string {
	if c, ok := clarifications[f]; ok {
		return c
	}
	return "Je n'ai pas bien compris 🙏"
}

func handoffMessage(merchant *models.Merchant) string {
	name := "la boutique"
	if merchant != nil && merchant.Name != "" {
		name = merchant.Name
	}
	return fmt.Sprintf("Je vous mets en relation avec un conseiller de %s. Il vous répondra très vite 🙏", name)
}

type recipient struct {
	name    string
	phone   string
	address string
}

func recipientOf(customer *models.Customer, d Draft) recipient {
	if d.RecipientMode == enums.RecipientModeThirdParty {
		return recipient{name: d.RecipientName, phone: d.RecipientPhone, address: d.RecipientAddress}
	}
	return recipient{name: customer.DisplayName(), phone: customer.Phone, address: customer.AddressValue()}
}

func summaryMessage(view cart.View, customer *models.Customer, d Draft) string {
	r := recipientOf(customer, d)
	var b strings.Builder
	b.WriteString("📝 Récapitulatif de votre commande :\n")
	b.WriteString(view.Summary())
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "👤 Destinataire : %s (%s)\n", r.name, r.phone)
	if r.address != "" {
		fmt.Fprintf(&b, "📍 Adresse : %s\n", r.address)
	}
	fmt.Fprintf(&b, "💳 Paiement : %s\n", customer.PaymentMethodValue().Label())
	fmt.Fprintf(&b, "🚚 Livraison : %s\n\n", d.DeliveryRaw)
	b.WriteString("Répondez OUI pour confirmer ou ANNULER pour annuler.")
	return b.String()
}

func orderCreatedMessage(order *models.Order) string {
	return fmt.Sprintf(
		"✅ Commande %s confirmée !\nTotal : %s %s\nLivraison : %s\nMerci pour votre confiance 🙏",
		order.Reference, products.FormatAmount(order.TotalAmount), order.Currency, order.DeliveryRequestedRaw,
	)
}
