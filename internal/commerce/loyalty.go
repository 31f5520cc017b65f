package commerce

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
)

// ErrInsufficientPoints is returned when a redemption exceeds the current balance.
var ErrInsufficientPoints = errors.New("loyalty: insufficient points")

// InsufficientPointsError carries the balance involved in a rejected redemption.
type InsufficientPointsError struct {
	Have int64
	Need int64
}

func (e *InsufficientPointsError) Error() string {
	return fmt.Sprintf("insufficient points: have %d, need %d", e.Have, e.Need)
}

// Is lets errors.Is match ErrInsufficientPoints.
func (e *InsufficientPointsError) Is(target error) bool {
	return target == ErrInsufficientPoints
}

var (
	earnRate  = decimal.New(10, -2)
	pointUnit = decimal.NewFromInt(1000)
)

type tierThreshold struct {
	tier domain.Tier
	min  int64
}

// ascending; platinum is terminal
var tierTable = []tierThreshold{
	{tier: domain.TierBronze, min: 0},
	{tier: domain.TierSilver, min: 1000},
	{tier: domain.TierGold, min: 5000},
	{tier: domain.TierPlatinum, min: 10000},
}

// TierStatus is the tier for a lifetime total plus the distance to the next tier.
type TierStatus struct {
	Tier         domain.Tier
	PointsToNext *int64
}

// PointsForAmounts is floor(max(0, subtotal + shipping − discount) × 10% / 1000).
func PointsForAmounts(subtotal, shippingFee, discount int64) int64 {
	payable := subtotal + shippingFee - discount
	if payable <= 0 {
		return 0
	}
	return decimal.NewFromInt(payable).Mul(earnRate).Div(pointUnit).Floor().IntPart()
}

// ComputePointsEarned returns the order's stored value when present; otherwise it derives the
// creation-time default from the order amounts.
func ComputePointsEarned(order domain.Order) int64 {
	if order.PointsEarned != nil {
		return NonNegative(*order.PointsEarned)
	}
	return PointsForAmounts(order.Subtotal, order.ShippingFee, order.Discount)
}

// TierFor returns the highest tier whose threshold does not exceed totalEarned.
func TierFor(totalEarned int64) domain.Tier {
	current := tierTable[0].tier
	for _, t := range tierTable {
		if totalEarned >= t.min {
			current = t.tier
		}
	}
	return current
}

// GetTier resolves the tier for totalEarned and how many more points reach the next one.
func GetTier(totalEarned int64) TierStatus {
	tier := TierFor(totalEarned)
	return TierStatus{Tier: tier, PointsToNext: PointsToNextTier(tier, totalEarned)}
}

// PointsToNextTier is max(0, nextThreshold − points), or nil at the terminal tier. Unknown
// tiers are treated as bronze.
func PointsToNextTier(tier domain.Tier, points int64) *int64 {
	idx := 0
	for i, t := range tierTable {
		if t.tier == tier {
			idx = i
			break
		}
	}
	if idx == len(tierTable)-1 {
		return nil
	}
	remaining := NonNegative(tierTable[idx+1].min - points)
	return &remaining
}

// TierThresholds exposes the fixed tier table for display.
func TierThresholds() map[domain.Tier]int64 {
	out := make(map[domain.Tier]int64, len(tierTable))
	for _, t := range tierTable {
		out[t.tier] = t.min
	}
	return out
}

// EntryRef identifies the ledger entry produced by an earn or redeem.
type EntryRef struct {
	ID      string
	OrderID string
	Reason  string
	At      time.Time
}

// AppendLoyaltyHistory returns a ledger whose history has entry appended. The input ledger's
// history is left untouched.
func AppendLoyaltyHistory(ledger domain.Loyalty, entry domain.LoyaltyEntry) domain.Loyalty {
	history := make([]domain.LoyaltyEntry, len(ledger.History), len(ledger.History)+1)
	copy(history, ledger.History)
	ledger.History = append(history, entry)
	return ledger
}

// EarnPoints credits points and records an earned entry. Non-positive amounts are a no-op.
func EarnPoints(ledger domain.Loyalty, points int64, ref EntryRef) domain.Loyalty {
	if points <= 0 {
		return ledger
	}
	ledger.CurrentPoints = NonNegative(ledger.CurrentPoints) + points
	ledger.TotalEarned = NonNegative(ledger.TotalEarned) + points
	ledger.Tier = TierFor(ledger.TotalEarned)
	return AppendLoyaltyHistory(ledger, domain.LoyaltyEntry{
		ID:        ref.ID,
		Type:      domain.LoyaltyEarned,
		Points:    points,
		OrderID:   ref.OrderID,
		Reason:    ref.Reason,
		Timestamp: ref.At,
	})
}

// RedeemPoints debits amount from the balance. It fails with *InsufficientPointsError
// (matching ErrInsufficientPoints) when amount exceeds CurrentPoints. Non-positive amounts
// are a no-op.
func RedeemPoints(ledger domain.Loyalty, amount int64, ref EntryRef) (domain.Loyalty, error) {
	if amount <= 0 {
		return ledger, nil
	}
	have := NonNegative(ledger.CurrentPoints)
	if amount > have {
		return ledger, &InsufficientPointsError{Have: have, Need: amount}
	}
	ledger.CurrentPoints = have - amount
	ledger.Tier = TierFor(ledger.TotalEarned)
	return AppendLoyaltyHistory(ledger, domain.LoyaltyEntry{
		ID:        ref.ID,
		Type:      domain.LoyaltyRedeemed,
		Points:    amount,
		OrderID:   ref.OrderID,
		Reason:    ref.Reason,
		Timestamp: ref.At,
	}), nil
}

// RefundPoints returns previously redeemed points to the balance without touching
// TotalEarned. The amount is capped at the net redeemed total so the balance can never exceed
// what was earned.
func RefundPoints(ledger domain.Loyalty, amount int64, ref EntryRef) domain.Loyalty {
	if amount > Redeemed(ledger) {
		amount = Redeemed(ledger)
	}
	if amount <= 0 {
		return ledger
	}
	ledger.CurrentPoints = NonNegative(ledger.CurrentPoints) + amount
	ledger.Tier = TierFor(ledger.TotalEarned)
	return AppendLoyaltyHistory(ledger, domain.LoyaltyEntry{
		ID:        ref.ID,
		Type:      domain.LoyaltyRefunded,
		Points:    amount,
		OrderID:   ref.OrderID,
		Reason:    ref.Reason,
		Timestamp: ref.At,
	})
}

// ReverseEarnedPoints takes back points credited for an order. TotalEarned drops by the
// reversed amount and the tier is recomputed. The balance is clamped at 0 when the points have
// already been spent. Non-positive amounts are a no-op.
func ReverseEarnedPoints(ledger domain.Loyalty, points int64, ref EntryRef) domain.Loyalty {
	points = min(points, NonNegative(ledger.TotalEarned))
	if points <= 0 {
		return ledger
	}
	ledger.CurrentPoints = NonNegative(NonNegative(ledger.CurrentPoints) - points)
	ledger.TotalEarned -= points
	ledger.Tier = TierFor(ledger.TotalEarned)
	return AppendLoyaltyHistory(ledger, domain.LoyaltyEntry{
		ID:        ref.ID,
		Type:      domain.LoyaltyReversed,
		Points:    points,
		OrderID:   ref.OrderID,
		Reason:    ref.Reason,
		Timestamp: ref.At,
	})
}

// Redeemed sums redeemed entries net of refunds.
func Redeemed(ledger domain.Loyalty) int64 {
	var total int64
	for _, entry := range ledger.History {
		switch entry.Type {
		case domain.LoyaltyRedeemed:
			total += entry.Points
		case domain.LoyaltyRefunded:
			total -= entry.Points
		}
	}
	return total
}
