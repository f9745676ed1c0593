package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestDistanceAbs(t *testing.T) {
	o := NormalizedOrder{DistanceBps: d("-12.5")}
	if !o.DistanceAbs().Equal(d("12.5")) {
		t.Errorf("DistanceAbs() = %s, want 12.5", o.DistanceAbs())
	}
}

func TestMarketSummaryTotalNotional(t *testing.T) {
	s := MarketSummary{BidNotional: d("1000"), AskNotional: d("250.5")}
	if !s.TotalNotional().Equal(d("1250.5")) {
		t.Errorf("TotalNotional() = %s, want 1250.5", s.TotalNotional())
	}
}

func TestPositionSideLabel(t *testing.T) {
	cases := []struct {
		size string
		want string
	}{
		{"1.5", "LONG"},
		{"-3", "SHORT"},
		{"0", "LONG"},
	}
	for _, c := range cases {
		p := Position{Size: d(c.size)}
		if got := p.SideLabel(); got != c.want {
			t.Errorf("SideLabel(size=%s) = %s, want %s", c.size, got, c.want)
		}
	}
}

func TestPositionValue(t *testing.T) {
	p := Position{Size: d("-2"), EntryPrice: d("100.5")}
	if !p.Value().Equal(d("201")) {
		t.Errorf("Value() = %s, want 201", p.Value())
	}
}

func TestBalanceAvailable(t *testing.T) {
	b := Balance{Total: d("10"), Hold: d("2.5")}
	if !b.Available().Equal(d("7.5")) {
		t.Errorf("Available() = %s, want 7.5", b.Available())
	}
}
