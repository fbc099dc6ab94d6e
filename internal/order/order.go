package order

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Category identifies an orderable item such as "half" or "chapati".
type Category string

// Default categories served by the tiffin service.
const (
	Half    Category = "half"
	Full    Category = "full"
	Chapati Category = "chapati"
)

// Title returns the display label used in replies, e.g. "Half".
func (c Category) Title() string {
	s := string(c)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}

// Menu is the ordered set of categories a poll accepts. Order matters for rendering.
type Menu []Category

// DefaultMenu returns the reference categories in display order.
func DefaultMenu() Menu {
	return Menu{Half, Full, Chapati}
}

// NewMenu normalizes names (trim, lower-case), drops empties and duplicates.
// An empty result falls back to DefaultMenu.
func NewMenu(names ...string) Menu {
	seen := make(map[Category]struct{}, len(names))
	menu := make(Menu, 0, len(names))
	for _, n := range names {
		c := Category(strings.ToLower(strings.TrimSpace(n)))
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		menu = append(menu, c)
	}
	if len(menu) == 0 {
		return DefaultMenu()
	}
	return menu
}

// Contains reports whether c is part of the menu.
func (m Menu) Contains(c Category) bool {
	for _, x := range m {
		if x == c {
			return true
		}
	}
	return false
}

// MaxQuantity is the largest quantity one participant may request per category.
const MaxQuantity int64 = 1_000_000

// Order maps categories to requested quantities. Missing categories read as zero.
type Order map[Category]int64

// Get returns the quantity for c, zero when absent.
func (o Order) Get(c Category) int64 {
	if o == nil {
		return 0
	}
	return o[c]
}

// Set stores qty for c. Zero removes the entry so IsZero stays cheap.
func (o Order) Set(c Category, qty int64) {
	if qty <= 0 {
		delete(o, c)
		return
	}
	o[c] = qty
}

// Add accumulates every quantity of other into o. Sums saturate at math.MaxInt64.
func (o Order) Add(other Order) {
	for c, qty := range other {
		if qty <= 0 {
			continue
		}
		if o[c] > math.MaxInt64-qty {
			o[c] = math.MaxInt64
			continue
		}
		o[c] += qty
	}
}

// Usable returns a copy holding only quantities in 1..MaxQuantity.
func (o Order) Usable() Order {
	out := make(Order, len(o))
	for c, qty := range o {
		if qty > 0 && qty <= MaxQuantity {
			out[c] = qty
		}
	}
	return out
}

// IsZero reports whether no category carries a positive quantity.
func (o Order) IsZero() bool {
	for _, qty := range o {
		if qty > 0 {
			return false
		}
	}
	return true
}

// Clone returns an independent copy.
func (o Order) Clone() Order {
	out := make(Order, len(o))
	for c, qty := range o {
		if qty > 0 {
			out[c] = qty
		}
	}
	return out
}

// Equal compares quantities category by category, treating absent as zero.
func (o Order) Equal(other Order) bool {
	for c, qty := range o {
		if other.Get(c) != qty {
			return false
		}
	}
	for c, qty := range other {
		if o.Get(c) != qty {
			return false
		}
	}
	return true
}
