package fields

import "regexp"

// Lexical date patterns, applied to Normalize'd text. The delivery parser
// reuses them so both agree on what counts as a date.
var (
	TodayRe       = regexp.MustCompile(`\b(aujourd'?hui|ce soir|ce midi|ce matin|cet apres-?midi|today|tonight)\b`)
	DayAfterRe    = regexp.MustCompile(`\bapres[- ]?demain\b|\bday after tomorrow\b`)
	TomorrowRe    = regexp.MustCompile(`\b(demain|tomorrow|dmain)\b`)
	InDaysRe      = regexp.MustCompile(`\b(?:dans|in)\s+(\d{1,2})\s*(?:jours?|j|days?)\b`)
	DayMonthRe    = regexp.MustCompile(`\b(\d{1,2})(?:er)?\s+(janvier|janv|fevrier|fevr|fev|mars|avril|avr|mai|juin|juillet|juil|aout|septembre|sept|octobre|oct|novembre|nov|decembre|dec)\b(?:\s+(\d{4})\b)?`)
	ISODateRe     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})(?:[ t]+(\d{1,2})(?:\s*(?::|h)\s*(\d{2})?)?)?`)
	SlashDateRe   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})(?:\s+(?:a\s+)?(\d{1,2})(?:\s*(?::|h)\s*(\d{2})?)?)?`)
	DashDateRe    = regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})(?:\s+(?:a\s+)?(\d{1,2})(?:\s*(?::|h)\s*(\d{2})?)?)?`)
	HourSuffixRe  = regexp.MustCompile(`\b(\d{1,2})\s*(?:heures?|h|:)\s*(\d{2})?\b`)
	deliveryLexes = []*regexp.Regexp{TodayRe, DayAfterRe, TomorrowRe, InDaysRe, DayMonthRe, ISODateRe, SlashDateRe, DashDateRe}
)

// IsDeliveryLike reports whether raw contains a recognizable date expression.
// It says nothing about whether the date is in the future.
func IsDeliveryLike(raw string) bool {
	n := Normalize(raw)
	if n == "" {
		return false
	}
	for _, re := range deliveryLexes {
		if re.MatchString(n) {
			return true
		}
	}
	return false
}
