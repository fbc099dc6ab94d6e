package order

import (
	"math"
	"testing"
)

func TestParseMixedCategories(t *testing.T) {
	p := NewParser(DefaultMenu())
	res := p.Parse("full 2 chapati 3")
	want := Order{Full: 2, Chapati: 3}
	if !res.Order.Equal(want) {
		t.Fatalf("order = %v, want %v", res.Order, want)
	}
	if res.Order.Get(Half) != 0 {
		t.Fatalf("half = %d, want 0", res.Order.Get(Half))
	}
	if len(res.Mentioned) != 0 {
		t.Fatalf("mentioned = %v, want none", res.Mentioned)
	}
}

func TestParseChatterIsZero(t *testing.T) {
	p := NewParser(DefaultMenu())
	res := p.Parse("just chatting")
	if !res.Order.IsZero() {
		t.Fatalf("expected zero order, got %v", res.Order)
	}
	if res.Attempted() {
		t.Fatal("chatter should not count as an attempted order")
	}
}

func TestParseSpacingCaseAndOrder(t *testing.T) {
	p := NewParser(DefaultMenu())
	cases := map[string]Order{
		"  CHAPATI3, Half   1 ": {Chapati: 3, Half: 1},
		"half2chapati4":         {Half: 2, Chapati: 4},
		"half 2, chapati 3":     {Half: 2, Chapati: 3},
		"full\t7":               {Full: 7},
	}
	for in, want := range cases {
		if got := p.Parse(in).Order; !got.Equal(want) {
			t.Fatalf("Parse(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestParseKeywordWithoutDigits(t *testing.T) {
	p := NewParser(DefaultMenu())
	res := p.Parse("half please, chapati 2")
	if got := res.Order.Get(Half); got != 0 {
		t.Fatalf("half = %d, want 0", got)
	}
	if got := res.Order.Get(Chapati); got != 2 {
		t.Fatalf("chapati = %d, want 2", got)
	}
	if len(res.Mentioned) != 1 || res.Mentioned[0] != Half {
		t.Fatalf("mentioned = %v, want [half]", res.Mentioned)
	}
	if !p.Parse("full").Attempted() {
		t.Fatal("bare keyword should count as attempted")
	}
}

func TestParseDuplicateKeywordFirstNumberWins(t *testing.T) {
	p := NewParser(DefaultMenu())
	if got := p.Parse("half x half 2 half 5").Order.Get(Half); got != 2 {
		t.Fatalf("half = %d, want 2", got)
	}
	res := p.Parse("half 0 half 4")
	if got := res.Order.Get(Half); got != 0 {
		t.Fatalf("half = %d, want explicit 0 to win", got)
	}
}

func TestParseWordBoundaries(t *testing.T) {
	p := NewParser(DefaultMenu())
	for _, in := range []string{"behalf 2", "halfway 3", "fullest 1"} {
		if res := p.Parse(in); !res.Order.IsZero() {
			t.Fatalf("Parse(%q) = %v, want zero", in, res.Order)
		}
	}
}

func TestParseNoNegativesOrDecimals(t *testing.T) {
	p := NewParser(DefaultMenu())
	if got := p.Parse("half -2").Order.Get(Half); got != 0 {
		t.Fatalf("negative parsed as %d", got)
	}
	if got := p.Parse("full 1.5").Order.Get(Full); got != 1 {
		t.Fatalf("decimal parsed as %d, want integer prefix 1", got)
	}
}

func TestParseOverflowIsAbsent(t *testing.T) {
	p := NewParser(DefaultMenu())
	res := p.Parse("half 99999999999999999999999")
	if !res.Order.IsZero() {
		t.Fatalf("overflow stored: %v", res.Order)
	}
	if len(res.Mentioned) != 1 {
		t.Fatalf("overflow should be reported as mentioned, got %v", res.Mentioned)
	}
	if got := p.Parse("full 1000000").Order.Get(Full); got != 1000000 {
		t.Fatalf("full = %d, want 1000000", got)
	}
	res = p.Parse("full 1000001 chapati 2")
	if res.Order.Get(Full) != 0 || res.Order.Get(Chapati) != 2 {
		t.Fatalf("quantity above cap stored: %v", res.Order)
	}
	if len(res.Mentioned) != 1 || res.Mentioned[0] != Full {
		t.Fatalf("mentioned = %v, want [full]", res.Mentioned)
	}
}

func TestAddSaturates(t *testing.T) {
	totals := Order{Half: math.MaxInt64}
	totals.Add(Order{Half: 1, Full: 2})
	if totals.Get(Half) != math.MaxInt64 || totals.Get(Full) != 2 {
		t.Fatalf("totals = %v", totals)
	}
}


func TestParseCustomMenuPrefersLongestKeyword(t *testing.T) {
	p := NewParser(NewMenu("roti", "roti special", " ROTI "))
	if len(p.Menu()) != 2 {
		t.Fatalf("menu = %v, want two entries", p.Menu())
	}
	res := p.Parse("roti special 2 roti 1")
	if got := res.Order.Get("roti special"); got != 2 {
		t.Fatalf("roti special = %d, want 2", got)
	}
	if got := res.Order.Get("roti"); got != 1 {
		t.Fatalf("roti = %d, want 1", got)
	}
}
