package fixedpoint

import (
	"errors"
	"math/big"
	"strings"
	"testing"
)

func mustFromHuman(t *testing.T, value string, scale uint8) Amount {
	t.Helper()
	a, err := FromHuman(value, scale)
	if err != nil {
		t.Fatalf("FromHuman(%q, %d) error: %v", value, scale, err)
	}
	return a
}

func TestFromHuman_Basic(t *testing.T) {
	cases := []struct {
		value string
		scale uint8
		raw   string
	}{
		{"1.5", 18, "1500000000000000000"},
		{"2500.0", 18, "2500000000000000000000"},
		{"0.5", 8, "50000000"},
		{"45000.0", 8, "4500000000000"},
		{"0", 6, "0"},
		{"1000", 12, "1000000000000000"},
		{"0.000001", 6, "1"},
	}
	for _, c := range cases {
		a := mustFromHuman(t, c.value, c.scale)
		if a.RawString() != c.raw {
			t.Fatalf("FromHuman(%q, %d) raw got=%s want=%s", c.value, c.scale, a.RawString(), c.raw)
		}
		if a.Scale() != c.scale {
			t.Fatalf("FromHuman(%q, %d) scale got=%d", c.value, c.scale, a.Scale())
		}
	}
}

func TestFromHuman_TruncatesBeyondScale(t *testing.T) {
	// Digits beyond the target scale are dropped toward zero, never rounded up.
	a := mustFromHuman(t, "1.999999", 2)
	if a.RawString() != "199" {
		t.Fatalf("truncation got=%s want=199", a.RawString())
	}
}

func TestFromHuman_Malformed(t *testing.T) {
	for _, value := range []string{"", "  ", "abc", "1.2.3", "-1", "-0.5", "1,5"} {
		_, err := FromHuman(value, 6)
		if err == nil {
			t.Fatalf("FromHuman(%q) expected error", value)
		}
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("FromHuman(%q) expected *ParseError, got %T: %v", value, err, err)
		}
		if !strings.Contains(err.Error(), value) && value != "" && value != "  " {
			t.Fatalf("error should carry the input %q: %v", value, err)
		}
	}
}

func TestFromRaw(t *testing.T) {
	a, err := FromRaw(big.NewInt(123456), 6)
	if err != nil {
		t.Fatalf("FromRaw error: %v", err)
	}
	if a.Human() != "0.123456" {
		t.Fatalf("Human got=%s want=0.123456", a.Human())
	}

	if _, err := FromRaw(big.NewInt(-1), 6); err == nil {
		t.Fatal("FromRaw negative expected error")
	}
	if _, err := FromRaw(nil, 6); err == nil {
		t.Fatal("FromRaw nil expected error")
	}
}

func TestRescale_RoundTripEqualPrecision(t *testing.T) {
	for _, c := range []struct {
		value string
		scale uint8
	}{
		{"1.5", 18}, {"0.000001", 6}, {"45000", 8}, {"0", 4},
	} {
		a := mustFromHuman(t, c.value, c.scale)
		b, err := a.Rescale(c.scale)
		if err != nil {
			t.Fatalf("Rescale same scale error: %v", err)
		}
		if !a.Equal(b) {
			t.Fatalf("round-trip at equal precision: %v != %v", a, b)
		}
	}
}

func TestRescale_UpThenDownIdempotent(t *testing.T) {
	// Going up never loses precision, so coming back down to the original
	// scale must restore the exact value.
	a := mustFromHuman(t, "1.999999", 6)
	up, err := a.Rescale(18)
	if err != nil {
		t.Fatalf("Rescale up error: %v", err)
	}
	down, err := up.Rescale(6)
	if err != nil {
		t.Fatalf("Rescale down error: %v", err)
	}
	if !a.Equal(down) {
		t.Fatalf("up-then-down: %v != %v", a, down)
	}
}

func TestRescale_TruncatesNotRounds(t *testing.T) {
	a := mustFromHuman(t, "1.999999", 6)
	b, err := a.Rescale(2)
	if err != nil {
		t.Fatalf("Rescale error: %v", err)
	}
	if b.RawString() != "199" {
		t.Fatalf("scale-down got=%s want=199 (1.99, never 2.00)", b.RawString())
	}
	if b.Human() != "1.99" {
		t.Fatalf("Human got=%s want=1.99", b.Human())
	}
}

func TestRescale_ZeroFloorIsSuccess(t *testing.T) {
	a := mustFromHuman(t, "0.0000001", 7)
	b, err := a.Rescale(2)
	if err != nil {
		t.Fatalf("extreme scale-down must succeed, got error: %v", err)
	}
	if !b.IsZero() {
		t.Fatalf("expected truncation to zero, got %s", b.RawString())
	}
}

func TestRescale_ZeroScalesUpToZero(t *testing.T) {
	a := Zero(2)
	b, err := a.Rescale(18)
	if err != nil {
		t.Fatalf("Rescale error: %v", err)
	}
	if !b.IsZero() || b.Scale() != 18 {
		t.Fatalf("zero scale-up got=%v", b)
	}
}

func TestRescale_OverflowCaughtNotWrapped(t *testing.T) {
	// Near-maximum magnitude scaled up by 18 orders of magnitude must fail
	// loudly instead of wrapping.
	nearMax := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	a, err := FromRaw(nearMax, 0)
	if err != nil {
		t.Fatalf("FromRaw near-max error: %v", err)
	}
	_, err = a.Rescale(18)
	if err == nil {
		t.Fatal("expected OverflowError")
	}
	var overflow *OverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("expected *OverflowError, got %T: %v", err, err)
	}
}

func TestNotional(t *testing.T) {
	// 1.5 × 2500 at pair scale 6 -> 3750 at scale 12.
	qty := mustFromHuman(t, "1.5", 6)
	price := mustFromHuman(t, "2500", 6)
	n, err := Notional(qty, price)
	if err != nil {
		t.Fatalf("Notional error: %v", err)
	}
	if n.Scale() != 12 {
		t.Fatalf("notional scale got=%d want=12", n.Scale())
	}
	if n.Human() != "3750" {
		t.Fatalf("notional got=%s want=3750", n.Human())
	}
}

func TestNotional_ScaleMismatch(t *testing.T) {
	qty := mustFromHuman(t, "1", 6)
	price := mustFromHuman(t, "1", 8)
	if _, err := Notional(qty, price); err == nil {
		t.Fatal("expected scale mismatch error")
	}
}

func TestNotional_SingleTruncation(t *testing.T) {
	// Multiplying in the pair domain first, then rescaling once, must not
	// compound truncation the way rescale-each-then-multiply would.
	qty := mustFromHuman(t, "0.15", 2)   // 15 @ scale 2
	price := mustFromHuman(t, "0.15", 2) // 15 @ scale 2
	n, err := Notional(qty, price)       // 225 @ scale 4 = 0.0225
	if err != nil {
		t.Fatalf("Notional error: %v", err)
	}
	out, err := n.Rescale(2)
	if err != nil {
		t.Fatalf("Rescale error: %v", err)
	}
	// Single truncation: 0.0225 -> 0.02. Rescaling operands to scale 1
	// first would have produced 0.1*0.1 = 0.01.
	if out.RawString() != "2" {
		t.Fatalf("single-truncation notional got=%s want=2", out.RawString())
	}
}

func TestHuman_Rendering(t *testing.T) {
	cases := []struct {
		raw   string
		scale uint8
		human string
	}{
		{"1500000000000000000", 18, "1.5"},
		{"2500000000000000000000", 18, "2500"},
		{"50000000", 8, "0.5"},
		{"0", 6, "0"},
		{"1", 18, "0.000000000000000001"},
	}
	for _, c := range cases {
		raw, ok := new(big.Int).SetString(c.raw, 10)
		if !ok {
			t.Fatalf("bad raw %s", c.raw)
		}
		a, err := FromRaw(raw, c.scale)
		if err != nil {
			t.Fatalf("FromRaw error: %v", err)
		}
		if a.Human() != c.human {
			t.Fatalf("Human(%s@%d) got=%s want=%s", c.raw, c.scale, a.Human(), c.human)
		}
	}
}

func TestEndToEnd_PairScaling(t *testing.T) {
	// ETH/USDC, pair_decimals=18
	qty := mustFromHuman(t, "1.5", 18)
	price := mustFromHuman(t, "2500.0", 18)
	if qty.RawString() != "1500000000000000000" {
		t.Fatalf("ETH/USDC quantity got=%s", qty.RawString())
	}
	if price.RawString() != "2500000000000000000000" {
		t.Fatalf("ETH/USDC price got=%s", price.RawString())
	}

	// BTC/USDT, pair_decimals=8
	qty = mustFromHuman(t, "0.5", 8)
	price = mustFromHuman(t, "45000.0", 8)
	if qty.RawString() != "50000000" {
		t.Fatalf("BTC/USDT quantity got=%s", qty.RawString())
	}
	if price.RawString() != "4500000000000" {
		t.Fatalf("BTC/USDT price got=%s", price.RawString())
	}
}

func TestFromRawString(t *testing.T) {
	a, err := FromRawString("1500000", 6)
	if err != nil {
		t.Fatalf("FromRawString error: %v", err)
	}
	if a.Human() != "1.5" {
		t.Errorf("Human = %s, want 1.5", a.Human())
	}

	for _, input := range []string{"", "abc", "1.5", "-1"} {
		if _, err := FromRawString(input, 6); err == nil {
			t.Errorf("FromRawString(%q) accepted malformed input", input)
		}
	}
}

func TestAdd(t *testing.T) {
	a := mustFromHuman(t, "1.5", 6)
	b := mustFromHuman(t, "2.25", 6)
	sum, err := a.Add(b)
	if err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if sum.Human() != "3.75" {
		t.Errorf("sum = %s, want 3.75", sum.Human())
	}

	c := mustFromHuman(t, "1", 8)
	if _, err := a.Add(c); err == nil {
		t.Error("Add accepted mismatched scales")
	}
}

func TestAdd_Overflow(t *testing.T) {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	a, err := FromRaw(max, 0)
	if err != nil {
		t.Fatalf("FromRaw error: %v", err)
	}
	one, _ := FromRaw(big.NewInt(1), 0)
	_, err = a.Add(one)
	var overflow *OverflowError
	if !errors.As(err, &overflow) {
		t.Fatalf("err = %v, want *OverflowError", err)
	}
}
