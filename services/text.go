package services

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ligatures = strings.NewReplacer(
		"ﬁ", "fi",
		"ﬂ", "fl",
		"ﬀ", "ff",
		"ﬃ", "ffi",
		"ﬄ", "ffl",
		"ﬆ", "st",
	)
	inlineSpace = regexp.MustCompile("[ \t\f\v\u00A0]+")
	nonSlug     = regexp.MustCompile(`[^a-z0-9]+`)
)

// normalizeUnicode ersetzt Ligaturen (typisch für Copy&Paste aus PDFs) und normalisiert auf NFC.
func normalizeUnicode(s string) string {
	s = ligatures.Replace(s)
	normalized, _, err := transform.String(norm.NFC, s)
	if err != nil {
		return s
	}
	return normalized
}

// collapseInline fasst Leerraum innerhalb einer Zeile zusammen und trimmt.
func collapseInline(s string) string {
	return strings.TrimSpace(inlineSpace.ReplaceAllString(s, " "))
}

// cleanText bereitet Freitext (Titel, einzeilige Felder) für die Speicherung auf.
func cleanText(s string) string {
	return collapseInline(normalizeUnicode(s))
}

// CountWords zählt Wörter: Aufteilung an Leerraum, leere Tokens werden verworfen.
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// CountChars zählt Zeichen (Runes), nicht Bytes.
func CountChars(s string) int {
	return len([]rune(s))
}

// slugify erzeugt einen URL-tauglichen Kurznamen ("Física 2025" -> "fisica-2025").
func slugify(s string) string {
	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err != nil {
		stripped = s
	}
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(stripped), "-"), "-")
}
