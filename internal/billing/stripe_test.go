package billing

import "testing"

func testGateway() Gateway {
	return NewStripeGateway("sk_test_dummy", "whsec_dummy", PriceConfig{
		ProMonthlyPriceID:      "price_pro_monthly",
		BusinessMonthlyPriceID: "price_business_monthly",
	})
}

func TestTierForPriceID(t *testing.T) {
	g := testGateway()

	tests := []struct {
		priceID string
		want    string
	}{
		{"price_pro_monthly", "pro"},
		{"price_business_monthly", "business"},
		{"price_unknown", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := g.TierForPriceID(tt.priceID); got != tt.want {
			t.Errorf("TierForPriceID(%q) = %q, want %q", tt.priceID, got, tt.want)
		}
	}
}

func TestPriceIDForTier(t *testing.T) {
	g := testGateway()

	tests := []struct {
		tier string
		want string
	}{
		{"pro", "price_pro_monthly"},
		{"business", "price_business_monthly"},
		{"free", ""},
		{"enterprise", ""},
	}

	for _, tt := range tests {
		if got := g.PriceIDForTier(tt.tier); got != tt.want {
			t.Errorf("PriceIDForTier(%q) = %q, want %q", tt.tier, got, tt.want)
		}
	}
}

func TestUnconfiguredPricesAreUnpurchasable(t *testing.T) {
	g := NewStripeGateway("sk_test_dummy", "whsec_dummy", PriceConfig{})

	if got := g.PriceIDForTier("pro"); got != "" {
		t.Errorf("expected empty price ID without configuration, got %q", got)
	}
	if got := g.TierForPriceID("price_pro_monthly"); got != "" {
		t.Errorf("expected no tier mapping without configuration, got %q", got)
	}
}
