// Package sanitize turns untrusted names into filesystem-safe, length-bounded
// path components.
//
// Three flavours exist because the storage layout mixes three kinds of names:
//
//	Filename     uploaded file names        "My Plan (v2).PDF" -> "My_Plan_v2.PDF"
//	ProjectSlug  project folder suffix      "Tower A"          -> "tower-a"
//	Segment      phase and subfolder labels "Owner / ID"       -> "Owner ID"
//
// None of the outputs contain a path separator. Every function takes a byte
// budget; truncation cuts at that budget on a rune boundary and may land in
// the middle of a word. That is a tolerance for filesystem limits, not a
// guarantee that the result stays meaningful.
package sanitize

import (
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultNameBudget is the byte budget for sanitized filenames.
	DefaultNameBudget = 150

	// DefaultSlugBudget is the byte budget for project-name slugs.
	DefaultSlugBudget = 60

	// DefaultSegmentBudget is the byte budget for phase and subfolder labels.
	DefaultSegmentBudget = 120

	// DefaultFilename is used when nothing survives filename sanitization.
	DefaultFilename = "file"
)

// reservedSegmentChars are rejected by at least one common filesystem.
const reservedSegmentChars = `<>:"|?*`

// Filename sanitizes an uploaded file name.
//
// Rules applied:
//   - Backslashes become slashes and only the last element is kept
//   - Unicode letters (Arabic included), digits, '-', '_' and '.' are kept
//   - Whitespace becomes '_', everything else is dropped
//   - Runs of '-' and '_' collapse to a single '_', runs of '.' to one '.'
//   - Leading '.', '_' and '-' and trailing '.' are trimmed
//   - Result is cut to budget bytes, keeping the extension when it is short
//
// Returns DefaultFilename when nothing is left.
func Filename(name string, budget int) string {
	if budget <= 0 {
		budget = DefaultNameBudget
	}

	name = strings.ReplaceAll(name, `\`, "/")
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	var b strings.Builder
	b.Grow(len(name))
	var last rune
	for _, r := range name {
		switch {
		case unicode.IsSpace(r) || r == '-' || r == '_':
			r = '_'
		case r == '.':
		case unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r):
		default:
			continue
		}
		if (r == '_' || r == '.') && r == last {
			continue
		}
		b.WriteRune(r)
		last = r
	}

	cleaned := strings.TrimLeft(b.String(), "._-")
	cleaned = strings.TrimRight(cleaned, ".")
	if cleaned == "" {
		return truncateBytes(DefaultFilename, budget)
	}

	return truncateKeepExt(cleaned, budget)
}

// slugFolder strips combining marks after compatibility decomposition so
// "Café" slugs to "cafe". Chained transformers carry state, so each call
// builds its own.
func slugFolder() transform.Transformer {
	return transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// ProjectSlug builds the ASCII slug used in project folder names.
//
// Characters outside [a-z0-9_] after transliteration are dropped; whitespace
// and hyphens become a single '-'. A name written only in a non-Latin script
// yields an empty slug and callers fall back to the bare project ID.
//
// Examples:
//
//	"Tower A"          -> "tower-a"
//	"  Villa -- 12  "  -> "villa-12"
//	"Café Déjà"        -> "cafe-deja"
//	"برج"              -> ""
func ProjectSlug(name string, budget int) string {
	if budget <= 0 {
		budget = DefaultSlugBudget
	}

	folded, _, err := transform.String(slugFolder(), name)
	if err != nil {
		folded = name
	}
	folded = strings.ToLower(folded)

	var b strings.Builder
	b.Grow(len(folded))
	pendingDash := false
	for _, r := range folded {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			pendingDash = true
		}
	}

	slug := strings.Trim(b.String(), "-_")
	slug = truncateBytes(slug, budget)
	return strings.TrimRight(slug, "-_")
}

// Segment sanitizes a human-readable directory label such as a phase
// directory or a subfolder. Bilingual text and inner spaces survive;
// separators, control characters and reserved characters become spaces and
// whitespace runs collapse to one space.
func Segment(label string, budget int) string {
	if budget <= 0 {
		budget = DefaultSegmentBudget
	}

	mapped := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || unicode.IsControl(r) || strings.ContainsRune(reservedSegmentChars, r) {
			return ' '
		}
		return r
	}, label)

	seg := strings.Join(strings.Fields(mapped), " ")
	seg = strings.Trim(seg, " .")
	seg = truncateBytes(seg, budget)
	return strings.TrimRight(seg, " .")
}

// SplitSegments sanitizes a possibly multi-level subfolder ("a/b\c") into its
// non-empty segments.
func SplitSegments(subfolder string, budget int) []string {
	subfolder = strings.ReplaceAll(subfolder, `\`, "/")
	parts := strings.Split(subfolder, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if seg := Segment(p, budget); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// truncateKeepExt cuts s to budget bytes and keeps its extension when the
// extension is no longer than half the budget.
func truncateKeepExt(s string, budget int) string {
	if len(s) <= budget {
		return s
	}
	ext := path.Ext(s)
	if ext == "" || ext == s || len(ext) > budget/2 {
		return truncateBytes(s, budget)
	}
	base := truncateBytes(strings.TrimSuffix(s, ext), budget-len(ext))
	base = strings.TrimRight(base, ".")
	if base == "" {
		return truncateBytes(s, budget)
	}
	return base + ext
}

// truncateBytes returns the longest prefix of s that fits in n bytes without
// splitting a rune.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := 0
	for i := range s {
		if i > n {
			break
		}
		cut = i
	}
	return s[:cut]
}
