package matching

import "strings"

// NormalizeText lower-cases, trims, and folds separator characters so
// free-text registry fields can be compared by substring containment.
// Underscores and hyphens become spaces and runs of whitespace collapse to a
// single space.
func NormalizeText(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", " ")
	s = strings.ReplaceAll(s, "-", " ")
	return strings.Join(strings.Fields(s), " ")
}

// ResolveState resolves a two-letter code or a full state name to its
// canonical record. Returns nil for unrecognized input; it never errors so
// the eliminators stay total.
func ResolveState(raw string) *State {
	token := NormalizeText(raw)
	if token == "" {
		return nil
	}
	if st, ok := stateByToken[token]; ok {
		return &st
	}
	return nil
}

// containsWholeWord reports whether phrase occurs in text on word boundaries.
// Both sides are normalized, so punctuation does not defeat the match.
func containsWholeWord(text, phrase string) bool {
	nt := NormalizeText(text)
	np := NormalizeText(phrase)
	if nt == "" || np == "" {
		return false
	}
	padded := " " + strings.NewReplacer(",", " ", ";", " ", ".", " ", "(", " ", ")", " ", "/", " ").Replace(nt) + " "
	padded = " " + strings.Join(strings.Fields(padded), " ") + " "
	return strings.Contains(padded, " "+np+" ")
}

// splitListField splits a comma- or semicolon-separated registry field into
// trimmed tokens, dropping empties.
func splitListField(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
