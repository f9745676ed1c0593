package processor

import (
	"testing"

	"quotelens/models"
)

// ladderOrders is a two-level ladder on both sides of BTC at mid 100000.
func ladderOrders(t *testing.T) []models.NormalizedOrder {
	t.Helper()
	raw := []models.RawOrder{
		rawOrder("BTC", models.SideBid, "99999", "1", 1),
		rawOrder("BTC", models.SideBid, "99900", "2", 2),
		rawOrder("BTC", models.SideAsk, "100010", "1", 3),
		rawOrder("BTC", models.SideAsk, "100200", "2", 4),
	}
	result := Normalize(raw, models.MidPrices{"BTC": d("100000")})
	if len(result.Skipped) != 0 {
		t.Fatalf("unexpected skipped orders: %d", len(result.Skipped))
	}
	return result.Orders
}

func TestBuildTiersLadder(t *testing.T) {
	tiers := BuildTiers(ladderOrders(t), DefaultRatioThreshold)
	if len(tiers) != 4 {
		t.Fatalf("expected 4 tiers, got %d", len(tiers))
	}

	// Bids come first, levels count outward from mid.
	bid1, bid2 := tiers[0], tiers[1]
	if bid1.Side != models.SideBid || bid1.LevelIndex != 1 {
		t.Errorf("unexpected first tier: %+v", bid1)
	}
	if !bid1.DistanceLowBps.Equal(d("0.1")) || !bid1.DistanceHighBps.Equal(d("0.1")) {
		t.Errorf("unexpected bid tier 1 band: [%s, %s]", bid1.DistanceLowBps, bid1.DistanceHighBps)
	}
	if bid1.SizeMultiple.Valid {
		t.Errorf("first tier should have no size multiple")
	}
	if !bid2.TotalSize.Equal(d("2")) {
		t.Errorf("unexpected bid tier 2 size: %s", bid2.TotalSize)
	}
	if !bid2.SizeMultiple.Valid || !bid2.SizeMultiple.Decimal.Equal(d("2")) {
		t.Errorf("unexpected bid tier 2 size multiple: %+v", bid2.SizeMultiple)
	}

	ask1, ask2 := tiers[2], tiers[3]
	if ask1.Side != models.SideAsk || ask1.LevelIndex != 1 {
		t.Errorf("unexpected third tier: %+v", ask1)
	}
	if !ask2.DistanceLowBps.Equal(d("20")) {
		t.Errorf("unexpected ask tier 2 distance: %s", ask2.DistanceLowBps)
	}
	if !ask2.SizeMultiple.Valid || !ask2.SizeMultiple.Decimal.Equal(d("2")) {
		t.Errorf("unexpected ask tier 2 size multiple: %+v", ask2.SizeMultiple)
	}
}

func TestBuildTiersMergesClusteredLevels(t *testing.T) {
	// Distances 10 and 12 stay in one tier at threshold 1.5; 20 opens a new one.
	raw := []models.RawOrder{
		rawOrder("ETH", models.SideAsk, "3503.5", "1", 1),
		rawOrder("ETH", models.SideAsk, "3504.2", "1", 2),
		rawOrder("ETH", models.SideAsk, "3507", "3", 3),
	}
	result := Normalize(raw, models.MidPrices{"ETH": d("3500")})
	tiers := BuildTiers(result.Orders, DefaultRatioThreshold)

	if len(tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(tiers))
	}
	if tiers[0].OrderCount != 2 {
		t.Errorf("expected 2 orders in first tier, got %d", tiers[0].OrderCount)
	}
	if !tiers[0].DistanceLowBps.Equal(d("10")) || !tiers[0].DistanceHighBps.Equal(d("12")) {
		t.Errorf("unexpected first tier band: [%s, %s]", tiers[0].DistanceLowBps, tiers[0].DistanceHighBps)
	}
	if !tiers[1].SizeMultiple.Valid || !tiers[1].SizeMultiple.Decimal.Equal(d("1.5")) {
		t.Errorf("unexpected size multiple: %+v", tiers[1].SizeMultiple)
	}
}

func TestBuildTiersZeroOpeningDistance(t *testing.T) {
	// An order at mid opens a tier that no order away from mid can join.
	raw := []models.RawOrder{
		rawOrder("SOL", models.SideBid, "200", "1", 1),
		rawOrder("SOL", models.SideBid, "199.9", "1", 2),
	}
	result := Normalize(raw, models.MidPrices{"SOL": d("200")})
	tiers := BuildTiers(result.Orders, DefaultRatioThreshold)

	if len(tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(tiers))
	}
	if !tiers[0].DistanceLowBps.IsZero() {
		t.Errorf("expected zero-distance opening tier, got %s", tiers[0].DistanceLowBps)
	}
}

func TestBuildTiersDeterministicOrder(t *testing.T) {
	raw := []models.RawOrder{
		rawOrder("ETH", models.SideAsk, "3510", "1", 5),
		rawOrder("BTC", models.SideAsk, "100100", "1", 4),
		rawOrder("BTC", models.SideBid, "99900", "1", 3),
	}
	mids := models.MidPrices{"BTC": d("100000"), "ETH": d("3500")}
	result := Normalize(raw, mids)

	tiers := BuildTiers(result.Orders, DefaultRatioThreshold)
	if len(tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(tiers))
	}
	if tiers[0].Market != "BTC" || tiers[0].Side != models.SideBid {
		t.Errorf("unexpected first tier: %s/%s", tiers[0].Market, tiers[0].Side)
	}
	if tiers[1].Market != "BTC" || tiers[1].Side != models.SideAsk {
		t.Errorf("unexpected second tier: %s/%s", tiers[1].Market, tiers[1].Side)
	}
	if tiers[2].Market != "ETH" {
		t.Errorf("unexpected third tier market: %s", tiers[2].Market)
	}
}

func TestBuildTiersEmpty(t *testing.T) {
	if tiers := BuildTiers(nil, DefaultRatioThreshold); len(tiers) != 0 {
		t.Fatalf("expected no tiers, got %d", len(tiers))
	}
}
