package fields

import "strings"

var ackTokens = map[string]struct{}{
	"ok": {}, "okay": {}, "oki": {}, "okk": {}, "k": {}, "oui": {}, "ouii": {}, "ouais": {},
	"yes": {}, "yep": {}, "yeah": {}, "d'accord": {}, "daccord": {}, "d'acc": {}, "dac": {},
	"merci": {}, "merci beaucoup": {}, "ok merci": {}, "oui merci": {}, "c'est bon": {},
	"cest bon": {}, "parfait": {}, "super": {}, "bien": {}, "tres bien": {}, "ca marche": {},
	"entendu": {}, "compris": {}, "vu": {}, "thanks": {}, "thank you": {},
	"👍": {}, "👌": {}, "✅": {}, "🙏": {}, "🙂": {}, "😊": {}, "👍👍": {},
}

// trailing punctuation, emoji skin tones and the emoji variation selector
const ackTrim = " .!?,;:…\uFE0F\U0001F3FB\U0001F3FC\U0001F3FD\U0001F3FE\U0001F3FF"

var ackEmoji = map[rune]struct{}{'👍': {}, '👌': {}, '✅': {}, '🙏': {}, '🙂': {}, '😊': {}}

// longest entry in ackTokens, in words
const ackMaxWords = 2

// IsAck reports whether raw is empty or made only of acknowledgements such
// as "ok", "oui d'accord" or "ok merci 👍". Such input never counts as a
// field value.
func IsAck(raw string) bool {
	var b strings.Builder
	for _, r := range Normalize(raw) {
		switch {
		case r == '\uFE0F' || (r >= 0x1F3FB && r <= 0x1F3FF):
		case isAckEmoji(r):
			// "ok👍" splits into two words
			b.WriteRune(' ')
			b.WriteRune(r)
			b.WriteRune(' ')
		default:
			b.WriteRune(r)
		}
	}

	var words []string
	for _, w := range strings.Fields(b.String()) {
		if w = strings.Trim(w, ackTrim); w != "" {
			words = append(words, w)
		}
	}

next:
	for i := 0; i < len(words); {
		for size := min(ackMaxWords, len(words)-i); size > 0; size-- {
			if _, ok := ackTokens[strings.Join(words[i:i+size], " ")]; ok {
				i += size
				continue next
			}
		}
		if !emojiOnly(words[i]) {
			return false
		}
		i++
	}
	return true
}

func emojiOnly(w string) bool {
	for _, r := range w {
		if !isAckEmoji(r) {
			return false
		}
	}
	return true
}

func isAckEmoji(r rune) bool {
	_, ok := ackEmoji[r]
	return ok
}
