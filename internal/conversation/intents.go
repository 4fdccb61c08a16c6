package conversation

import (
	"strings"

	"github.com/angelmondragon/wacommerce-backend/internal/fields"
	"github.com/angelmondragon/wacommerce-backend/pkg/enums"
)

var (
	confirmPhrases = phraseSet("oui", "ok", "okay", "yes", "je confirme", "confirme", "confirmer", "confirmé",
		"valider", "je valide", "d'accord", "c'est bon", "cest bon", "oui je confirme", "👍", "✅")
	cancelPhrases = phraseSet("non", "annuler", "annule", "annulez", "j'annule", "cancel", "non merci",
		"laisse tomber", "laissez tomber")
	optOutPhrases  = phraseSet("stop", "desabonner", "se desabonner", "unsubscribe", "arret", "arreter")
	optInPhrases   = phraseSet("start", "reprendre", "reactiver", "subscribe")
	catalogPhrases = phraseSet("catalogue", "catalog", "pdf", "menu", "produits", "voir les produits", "voir le catalogue")
	listPhrases    = phraseSet("liste", "list", "liste des produits")

	selfPhrases  = phraseSet("1", "moi", "pour moi", "moi meme", "moi-meme", "self", "c'est pour moi", "cest pour moi", "1 pour moi")
	otherPhrases = phraseSet("2", "autre", "une autre personne", "quelqu'un d'autre", "pour quelqu'un d'autre",
		"pour une autre personne", "third_party", "2 pour quelqu'un d'autre", "un ami", "cadeau")
)

func phraseSet(phrases ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(phrases))
	for _, p := range phrases {
		out[fields.Normalize(p)] = struct{}{}
	}
	return out
}

func canonical(raw string) string {
	return strings.Trim(fields.Normalize(raw), " .!?,;:…\uFE0F")
}

func matches(set map[string]struct{}, raw string) bool {
	_, ok := set[canonical(raw)]
	return ok
}

// IsConfirm reports an explicit confirmation of the summary.
func IsConfirm(raw string) bool { return matches(confirmPhrases, raw) }

// IsCancel reports an explicit cancellation.
func IsCancel(raw string) bool { return matches(cancelPhrases, raw) }

// IsOptOut reports a request to stop receiving messages.
func IsOptOut(raw string) bool { return matches(optOutPhrases, raw) }

// IsOptIn reports a request to resume after an opt-out.
func IsOptIn(raw string) bool { return matches(optInPhrases, raw) }

// IsCatalogRequest reports a request for the catalog document.
func IsCatalogRequest(raw string) bool { return matches(catalogPhrases, raw) }

// IsListRequest reports a request for the plain-text product list.
func IsListRequest(raw string) bool { return matches(listPhrases, raw) }

// ParseRecipientMode interprets the answer to the "for whom" question.
func ParseRecipientMode(raw string) (enums.RecipientMode, bool) {
	switch {
	case matches(selfPhrases, raw):
		return enums.RecipientModeSelf, true
	case matches(otherPhrases, raw):
		return enums.RecipientModeThirdParty, true
	}
	return "", false
}
