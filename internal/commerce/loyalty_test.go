package commerce

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
)

func TestPointsForAmounts(t *testing.T) {
	assert.Equal(t, int64(10), PointsForAmounts(100000, 0, 0))
	assert.Equal(t, int64(11), PointsForAmounts(100000, 15000, 0))
	assert.Equal(t, int64(9), PointsForAmounts(100000, 0, 1))
	assert.Equal(t, int64(0), PointsForAmounts(9999, 0, 0))
	assert.Equal(t, int64(0), PointsForAmounts(1000, 0, 5000))
}

func TestComputePointsEarnedTrustsStoredValue(t *testing.T) {
	stored := int64(3)
	order := domain.Order{Subtotal: 100000, PointsEarned: &stored}
	assert.Equal(t, int64(3), ComputePointsEarned(order))

	order.PointsEarned = nil
	assert.Equal(t, int64(10), ComputePointsEarned(order))
}

func TestGetTier(t *testing.T) {
	cases := []struct {
		total int64
		tier  domain.Tier
		next  *int64
	}{
		{total: 0, tier: domain.TierBronze, next: ptr(1000)},
		{total: 999, tier: domain.TierBronze, next: ptr(1)},
		{total: 1000, tier: domain.TierSilver, next: ptr(4000)},
		{total: 4999, tier: domain.TierSilver, next: ptr(1)},
		{total: 5000, tier: domain.TierGold, next: ptr(5000)},
		{total: 10000, tier: domain.TierPlatinum},
		{total: 50000, tier: domain.TierPlatinum},
	}
	for _, tc := range cases {
		status := GetTier(tc.total)
		assert.Equal(t, tc.tier, status.Tier, "total %d", tc.total)
		assert.Equal(t, tc.next, status.PointsToNext, "total %d", tc.total)
	}
}

func TestPointsToNextTier(t *testing.T) {
	assert.Equal(t, ptr(700), PointsToNextTier(domain.TierBronze, 300))
	assert.Equal(t, ptr(0), PointsToNextTier(domain.TierSilver, 9000))
	assert.Nil(t, PointsToNextTier(domain.TierPlatinum, 0))
	assert.Equal(t, ptr(1000), PointsToNextTier(domain.Tier("unknown"), 0))
}

func TestRedeemPoints(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ledger := domain.Loyalty{CurrentPoints: 50, TotalEarned: 50, Tier: domain.TierBronze}

	_, err := RedeemPoints(ledger, 51, EntryRef{OrderID: "ord_1", At: at})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientPoints))
	var insufficient *InsufficientPointsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, int64(50), insufficient.Have)
	assert.Equal(t, int64(51), insufficient.Need)
	assert.Contains(t, err.Error(), "have 50, need 51")

	updated, err := RedeemPoints(ledger, 50, EntryRef{ID: "lh_1", OrderID: "ord_1", At: at})
	require.NoError(t, err)
	assert.Equal(t, int64(0), updated.CurrentPoints)
	assert.Equal(t, int64(50), updated.TotalEarned)
	require.Len(t, updated.History, 1)
	assert.Equal(t, domain.LoyaltyEntry{ID: "lh_1", Type: domain.LoyaltyRedeemed, Points: 50, OrderID: "ord_1", Timestamp: at}, updated.History[0])
	assert.Empty(t, ledger.History)
}

func TestRedeemPointsIgnoresNonPositiveAmounts(t *testing.T) {
	ledger := domain.Loyalty{CurrentPoints: 5}
	updated, err := RedeemPoints(ledger, 0, EntryRef{})
	require.NoError(t, err)
	assert.Equal(t, ledger, updated)
}

func TestEarnPointsMaintainsInvariant(t *testing.T) {
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	ledger := domain.Loyalty{}

	ledger = EarnPoints(ledger, 800, EntryRef{OrderID: "ord_1", At: at})
	ledger, err := RedeemPoints(ledger, 300, EntryRef{OrderID: "ord_2", At: at})
	require.NoError(t, err)
	ledger = EarnPoints(ledger, 400, EntryRef{OrderID: "ord_3", At: at})
	ledger = EarnPoints(ledger, -20, EntryRef{OrderID: "ord_4", At: at})

	assert.Equal(t, int64(1200), ledger.TotalEarned)
	assert.Equal(t, int64(900), ledger.CurrentPoints)
	assert.Equal(t, ledger.TotalEarned-Redeemed(ledger), ledger.CurrentPoints)
	assert.Equal(t, domain.TierSilver, ledger.Tier)
	assert.Len(t, ledger.History, 3)
}

func TestRefundPointsCapsAtRedeemed(t *testing.T) {
	at := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	ledger := EarnPoints(domain.Loyalty{}, 500, EntryRef{OrderID: "ord_1", At: at})
	ledger, err := RedeemPoints(ledger, 200, EntryRef{OrderID: "ord_2", At: at})
	require.NoError(t, err)

	ledger = RefundPoints(ledger, 999, EntryRef{OrderID: "ord_2", At: at})

	assert.Equal(t, int64(500), ledger.CurrentPoints)
	assert.Equal(t, int64(500), ledger.TotalEarned)
	assert.Equal(t, int64(0), Redeemed(ledger))
	assert.Equal(t, domain.LoyaltyRefunded, ledger.History[2].Type)
	assert.Equal(t, int64(200), ledger.History[2].Points)

	again := RefundPoints(ledger, 50, EntryRef{OrderID: "ord_2", At: at})
	assert.Len(t, again.History, 3)
}

func TestReverseEarnedPoints(t *testing.T) {
	at := time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)
	ledger := EarnPoints(domain.Loyalty{}, 1200, EntryRef{OrderID: "ord_1", At: at})
	require.Equal(t, domain.TierSilver, ledger.Tier)
	ledger, err := RedeemPoints(ledger, 1000, EntryRef{OrderID: "ord_2", At: at})
	require.NoError(t, err)

	reversed := ReverseEarnedPoints(ledger, 300, EntryRef{OrderID: "ord_1", At: at})

	assert.Equal(t, int64(0), reversed.CurrentPoints, "spent points clamp the balance at zero")
	assert.Equal(t, int64(900), reversed.TotalEarned)
	assert.Equal(t, domain.TierBronze, reversed.Tier)
	assert.Equal(t, domain.LoyaltyReversed, reversed.History[2].Type)
	assert.Equal(t, int64(300), reversed.History[2].Points)
	assert.Len(t, ledger.History, 2)

	assert.Equal(t, reversed, ReverseEarnedPoints(reversed, 0, EntryRef{}))
}

func TestAppendLoyaltyHistoryDoesNotAlias(t *testing.T) {
	base := domain.Loyalty{History: make([]domain.LoyaltyEntry, 1, 4)}
	base.History[0] = domain.LoyaltyEntry{ID: "first"}

	a := AppendLoyaltyHistory(base, domain.LoyaltyEntry{ID: "a"})
	b := AppendLoyaltyHistory(base, domain.LoyaltyEntry{ID: "b"})

	assert.Equal(t, "a", a.History[1].ID)
	assert.Equal(t, "b", b.History[1].ID)
	assert.Len(t, base.History, 1)
	assert.Equal(t, "first", a.History[0].ID)
}

func ptr(v int64) *int64 {
	return &v
}
