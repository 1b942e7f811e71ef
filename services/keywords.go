package services

import (
	"fmt"
	"strings"
)

// NormalizeKeywords bereinigt eine kommaseparierte Keyword-Liste.
// Einträge werden getrimmt, Leerraum zusammengefasst, leere Einträge verworfen und
// case-insensitiv dedupliziert (die erste Schreibweise bleibt). Die verworfenen
// Duplikate werden separat zurückgegeben; sie sind ein Hinweis, kein Fehler.
func NormalizeKeywords(raw string) (string, []string) {
	seen := map[string]bool{}
	var kept, duplicates []string
	for _, part := range strings.Split(raw, ",") {
		kw := cleanText(part)
		if kw == "" {
			continue
		}
		key := strings.ToLower(kw)
		if seen[key] {
			duplicates = append(duplicates, kw)
			continue
		}
		seen[key] = true
		kept = append(kept, kw)
	}
	return strings.Join(kept, ", "), duplicates
}

// SplitKeywords liefert die einzelnen Einträge einer (normalisierten) Liste.
func SplitKeywords(normalized string) []string {
	var out []string
	for _, part := range strings.Split(normalized, ",") {
		if kw := strings.TrimSpace(part); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

// ValidateKeywords prüft die Anzahl gegen die Event-Grenzen (0 = keine Grenze).
func ValidateKeywords(normalized string, min, max int) string {
	n := len(SplitKeywords(normalized))
	switch {
	case min > 0 && n < min:
		return fmt.Sprintf("at least %d keywords required", min)
	case max > 0 && n > max:
		return fmt.Sprintf("at most %d keywords allowed", max)
	}
	return ""
}
