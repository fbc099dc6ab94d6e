package order

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Result is the outcome of parsing one message.
type Result struct {
	// Order holds every category that carried a usable quantity.
	Order Order
	// Mentioned lists categories whose keyword appeared without a usable quantity
	// and that did not get one elsewhere in the text.
	Mentioned []Category
}

// Attempted reports whether the text looked like an order even if nothing was usable.
func (r Result) Attempted() bool {
	return !r.Order.IsZero() || len(r.Mentioned) > 0
}

// Parser extracts orders from free text using a fixed keyword set.
//
// Grammar, per occurrence: keyword at a word boundary, optional whitespace, digits.
// The first occurrence of a keyword that carries digits wins; a keyword with no
// digits leaves the category at zero.
type Parser struct {
	menu     Menu
	keywords []string
}

// NewParser builds a parser for the menu. Longer keywords are tried first so
// overlapping names resolve to the most specific category.
func NewParser(menu Menu) *Parser {
	if len(menu) == 0 {
		menu = DefaultMenu()
	}
	keywords := make([]string, 0, len(menu))
	for _, c := range menu {
		keywords = append(keywords, string(c))
	}
	sort.SliceStable(keywords, func(i, j int) bool { return len(keywords[i]) > len(keywords[j]) })
	return &Parser{menu: menu, keywords: keywords}
}

// Menu returns the categories this parser recognizes.
func (p *Parser) Menu() Menu {
	return p.menu
}

// Parse scans text and never fails: unknown words are skipped.
func (p *Parser) Parse(text string) Result {
	text = strings.ToLower(strings.TrimSpace(text))
	found := make(Order, len(p.menu))
	taken := make(map[Category]struct{}, len(p.menu))
	mentioned := make(map[Category]struct{})

	for i := 0; i < len(text); {
		if !atWordStart(text, i) {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			continue
		}
		kw, ok := p.matchKeyword(text[i:])
		if !ok {
			_, size := utf8.DecodeRuneInString(text[i:])
			i += size
			continue
		}
		c := Category(kw)
		next := i + len(kw)
		qty, consumed, ok := readQuantity(text[next:])
		next += consumed
		if _, done := taken[c]; !done {
			if ok {
				found.Set(c, qty)
				taken[c] = struct{}{}
				delete(mentioned, c)
			} else {
				mentioned[c] = struct{}{}
			}
		}
		i = next
	}

	res := Result{Order: found}
	for _, c := range p.menu {
		if _, ok := mentioned[c]; ok {
			res.Mentioned = append(res.Mentioned, c)
		}
	}
	return res
}

// matchKeyword returns the keyword that prefixes s and ends at a word boundary.
func (p *Parser) matchKeyword(s string) (string, bool) {
	for _, kw := range p.keywords {
		if !strings.HasPrefix(s, kw) {
			continue
		}
		rest := s[len(kw):]
		if rest == "" {
			return kw, true
		}
		r, _ := utf8.DecodeRuneInString(rest)
		if unicode.IsLetter(r) {
			continue
		}
		return kw, true
	}
	return "", false
}

// readQuantity skips leading whitespace and reads a base-10 digit run.
// It reports the bytes consumed; when no digits follow only the whitespace is
// consumed. Runs above MaxQuantity are consumed but unusable.
func readQuantity(s string) (int64, int, bool) {
	i := 0
	for i < len(s) {
		r, size := utf8.DecodeRuneInString(s[i:])
		if !unicode.IsSpace(r) {
			break
		}
		i += size
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0, start, false
	}
	qty, err := strconv.ParseInt(s[start:i], 10, 64)
	if err != nil || qty > MaxQuantity {
		return 0, i, false
	}
	return qty, i, true
}

func atWordStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r)
}
