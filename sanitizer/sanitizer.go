// FILE: lixenwraith/seglog/sanitizer/sanitizer.go
// Package sanitizer provides a fluent and composable interface for cleaning
// log text before it reaches a file or terminal, using bitwise filter and
// transform flags.
package sanitizer

import (
	"encoding/hex"
	"strconv"
	"unicode"
	"unicode/utf8"
)

// Filter flags for character matching
const (
	FilterNonPrintable uint64 = 1 << iota // Matches runes not classified as printable by strconv.IsPrint
	FilterControl                         // Matches control characters (unicode.IsControl)
	FilterEscape                          // Matches the terminal escape introducer ESC (0x1b)
	FilterInvalidUTF8                     // Matches utf8.RuneError produced by invalid input bytes
)

// Transform flags for character transformation
const (
	TransformStrip     uint64 = 1 << iota // Removes the character
	TransformHexEncode                    // Encodes the character's UTF-8 bytes as "<XXYY>"
	TransformReplace                      // Replaces the character with U+FFFD
)

// PolicyPreset defines pre-configured sanitization policies
type PolicyPreset string

const (
	PolicyRaw     PolicyPreset = "raw"     // Passthrough
	PolicyTxt     PolicyPreset = "txt"     // Hex-encode unprintable runes in file lines, keeping line structure
	PolicyConsole PolicyPreset = "console" // Strip terminal escape sequences and control runes from console lines
)

// rule represents a single sanitization rule
type rule struct {
	filter    uint64
	transform uint64
}

// policyRules contains pre-configured rules for each policy
var policyRules = map[PolicyPreset][]rule{
	PolicyRaw: {},
	PolicyTxt: {
		{filter: FilterInvalidUTF8, transform: TransformReplace},
		{filter: FilterNonPrintable, transform: TransformHexEncode},
	},
	PolicyConsole: {
		{filter: FilterEscape | FilterControl, transform: TransformStrip},
	},
}

// filterCheckers is ordered so matching is deterministic
var filterCheckers = []struct {
	flag  uint64
	check func(rune) bool
}{
	{FilterInvalidUTF8, func(r rune) bool { return r == utf8.RuneError }},
	{FilterEscape, func(r rune) bool { return r == 0x1b }},
	{FilterControl, unicode.IsControl},
	{FilterNonPrintable, func(r rune) bool { return !strconv.IsPrint(r) }},
}

// lineRunes are never filtered, a log message keeps its line layout
var lineRunes = map[rune]bool{'\n': true, '\t': true}

// Sanitizer provides chainable text sanitization, not safe for concurrent use
type Sanitizer struct {
	rules []rule
	keep  map[rune]bool
	buf   []byte
}

// New creates a new Sanitizer instance that preserves newlines and tabs
func New() *Sanitizer {
	keep := make(map[rune]bool, len(lineRunes))
	for r := range lineRunes {
		keep[r] = true
	}
	return &Sanitizer{
		keep: keep,
		buf:  make([]byte, 0, 256),
	}
}

// ForPolicy is a shorthand for New().Policy(preset)
func ForPolicy(preset PolicyPreset) *Sanitizer {
	return New().Policy(preset)
}

// Rule adds a custom rule to the sanitizer (appended, earliest rule applies first)
func (s *Sanitizer) Rule(filter uint64, transform uint64) *Sanitizer {
	s.rules = append(s.rules, rule{filter: filter, transform: transform})
	return s
}

// Policy applies a pre-configured policy to the sanitizer (appended)
func (s *Sanitizer) Policy(preset PolicyPreset) *Sanitizer {
	if rules, ok := policyRules[preset]; ok {
		s.rules = append(s.rules, rules...)
	}
	return s
}

// Keep exempts runes from every rule
func (s *Sanitizer) Keep(runes ...rune) *Sanitizer {
	for _, r := range runes {
		s.keep[r] = true
	}
	return s
}

// Passthrough reports whether Sanitize is guaranteed to return its input unchanged
func (s *Sanitizer) Passthrough() bool {
	return len(s.rules) == 0
}

// Sanitize applies all configured rules to the input string
func (s *Sanitizer) Sanitize(data string) string {
	if s.Passthrough() {
		return data
	}

	s.buf = s.buf[:0]
	for _, r := range data {
		if s.keep[r] {
			s.buf = utf8.AppendRune(s.buf, r)
			continue
		}
		matched := false
		// First matching rule wins
		for _, rl := range s.rules {
			if matchesFilter(r, rl.filter) {
				applyTransform(&s.buf, r, rl.transform)
				matched = true
				break
			}
		}
		if !matched {
			s.buf = utf8.AppendRune(s.buf, r)
		}
	}

	return string(s.buf)
}

// matchesFilter checks if a rune matches any filter in the mask
func matchesFilter(r rune, filterMask uint64) bool {
	for _, fc := range filterCheckers {
		if filterMask&fc.flag != 0 && fc.check(r) {
			return true
		}
	}
	return false
}

// applyTransform applies the specified transform to the buffer
func applyTransform(buf *[]byte, r rune, transformMask uint64) {
	switch {
	case transformMask&TransformStrip != 0:
		// Drop

	case transformMask&TransformHexEncode != 0:
		var runeBytes [utf8.UTFMax]byte
		n := utf8.EncodeRune(runeBytes[:], r)
		*buf = append(*buf, '<')
		*buf = append(*buf, hex.EncodeToString(runeBytes[:n])...)
		*buf = append(*buf, '>')

	case transformMask&TransformReplace != 0:
		*buf = utf8.AppendRune(*buf, utf8.RuneError)

	default:
		*buf = utf8.AppendRune(*buf, r)
	}
}
