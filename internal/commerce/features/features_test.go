package features

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/commerce"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
)

type economicsTestContext struct {
	order    domain.Order
	points   int64
	tier     commerce.TierStatus
	ledger   domain.Loyalty
	err      error
	explicit []domain.ShippingActivity
	timeline []domain.ShippingActivity
	second   []domain.ShippingActivity
}

func (c *economicsTestContext) reset() {
	*c = economicsTestContext{}
}

func (c *economicsTestContext) anOrderWithSubtotalShippingAndDiscount(subtotal, shipping, discount int) error {
	c.order.Subtotal = int64(subtotal)
	c.order.ShippingFee = int64(shipping)
	c.order.Discount = int64(discount)
	return nil
}

func (c *economicsTestContext) theOrderAlreadyRecordedPointsEarned(points int) error {
	stored := int64(points)
	c.order.PointsEarned = &stored
	return nil
}

func (c *economicsTestContext) iComputeThePointsEarned() error {
	c.points = commerce.ComputePointsEarned(c.order)
	return nil
}

func (c *economicsTestContext) thePointsEarnedAre(points int) error {
	if c.points != int64(points) {
		return fmt.Errorf("expected %d points, got %d", points, c.points)
	}
	return nil
}

func (c *economicsTestContext) iResolveTheTierForLifetimePoints(total int) error {
	c.tier = commerce.GetTier(int64(total))
	return nil
}

func (c *economicsTestContext) theTierIs(tier string) error {
	if string(c.tier.Tier) != tier {
		return fmt.Errorf("expected tier %q, got %q", tier, c.tier.Tier)
	}
	return nil
}

func (c *economicsTestContext) thereIsNoNextTier() error {
	if c.tier.PointsToNext != nil {
		return fmt.Errorf("expected no next tier, got %d points to go", *c.tier.PointsToNext)
	}
	return nil
}

func (c *economicsTestContext) aLedgerWithCurrentPoints(points int) error {
	c.ledger = domain.Loyalty{CurrentPoints: int64(points), TotalEarned: int64(points)}
	return nil
}

func (c *economicsTestContext) iRedeemPointsForOrder(points int, orderID string) error {
	updated, err := commerce.RedeemPoints(c.ledger, int64(points), commerce.EntryRef{OrderID: orderID, At: time.Unix(0, 0).UTC()})
	c.err = err
	if err == nil {
		c.ledger = updated
	}
	return nil
}

func (c *economicsTestContext) theRedemptionFailsWith(substring string) error {
	if c.err == nil {
		return errors.New("expected redemption to fail but it succeeded")
	}
	if !errors.Is(c.err, commerce.ErrInsufficientPoints) {
		return fmt.Errorf("expected ErrInsufficientPoints, got %v", c.err)
	}
	if !strings.Contains(strings.ToLower(c.err.Error()), strings.ToLower(substring)) {
		return fmt.Errorf("expected error message to contain %q, got %q", substring, c.err.Error())
	}
	return nil
}

func (c *economicsTestContext) theRedemptionSucceeds() error {
	if c.err != nil {
		return fmt.Errorf("expected success, got %v", c.err)
	}
	return nil
}

func (c *economicsTestContext) theLedgerHasCurrentPoints(points int) error {
	if c.ledger.CurrentPoints != int64(points) {
		return fmt.Errorf("expected %d current points, got %d", points, c.ledger.CurrentPoints)
	}
	return nil
}

func (c *economicsTestContext) theLastHistoryEntryIs(kind string, points int, orderID string) error {
	if len(c.ledger.History) == 0 {
		return errors.New("history is empty")
	}
	last := c.ledger.History[len(c.ledger.History)-1]
	if string(last.Type) != kind || last.Points != int64(points) || last.OrderID != orderID {
		return fmt.Errorf("unexpected last entry %+v", last)
	}
	return nil
}

func (c *economicsTestContext) anOrderPlacedOnWithStatus(placed, status string) error {
	at, err := time.Parse(time.RFC3339, placed)
	if err != nil {
		return err
	}
	c.order.CreatedAt = at
	c.order.Status = domain.OrderStatus(status)
	return nil
}

func (c *economicsTestContext) theOrderRecordedActivity(status, description string) error {
	c.explicit = append(c.explicit, domain.ShippingActivity{Status: status, Description: description, Completed: true})
	return nil
}

func (c *economicsTestContext) derive() []domain.ShippingActivity {
	return commerce.DeriveShippingTimeline(string(c.order.Status), c.order.CreatedAt, c.explicit)
}

func (c *economicsTestContext) iDeriveTheShippingTimeline() error {
	c.timeline = c.derive()
	return nil
}

func (c *economicsTestContext) iDeriveTheShippingTimelineTwice() error {
	c.timeline = c.derive()
	c.second = c.derive()
	return nil
}

func (c *economicsTestContext) theTimelineHasSteps(n int) error {
	if len(c.timeline) != n {
		return fmt.Errorf("expected %d steps, got %d", n, len(c.timeline))
	}
	return nil
}

func (c *economicsTestContext) theTimelineStepsAre(csv string) error {
	got := make([]string, 0, len(c.timeline))
	for _, step := range c.timeline {
		got = append(got, step.Status)
	}
	if strings.Join(got, ",") != csv {
		return fmt.Errorf("expected steps %q, got %q", csv, strings.Join(got, ","))
	}
	return nil
}

func (c *economicsTestContext) everyStepIsCompleted() error {
	for _, step := range c.timeline {
		if !step.Completed {
			return fmt.Errorf("step %q is not completed", step.Status)
		}
	}
	return nil
}

func (c *economicsTestContext) stepIsDated(n int, date string) error {
	if n < 1 || n > len(c.timeline) {
		return fmt.Errorf("no step %d in %d steps", n, len(c.timeline))
	}
	if got := c.timeline[n-1].Date; got != date {
		return fmt.Errorf("expected step %d dated %s, got %s", n, date, got)
	}
	return nil
}

func (c *economicsTestContext) bothTimelinesAreIdentical() error {
	if !reflect.DeepEqual(c.timeline, c.second) {
		return errors.New("timelines differ between calls")
	}
	return nil
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := &economicsTestContext{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	// loyalty
	ctx.Step(`^an order with subtotal (\d+), shipping (\d+) and discount (\d+)$`, tc.anOrderWithSubtotalShippingAndDiscount)
	ctx.Step(`^the order already recorded (\d+) points earned$`, tc.theOrderAlreadyRecordedPointsEarned)
	ctx.Step(`^I compute the points earned$`, tc.iComputeThePointsEarned)
	ctx.Step(`^the points earned are (\d+)$`, tc.thePointsEarnedAre)
	ctx.Step(`^I resolve the tier for (\d+) lifetime points$`, tc.iResolveTheTierForLifetimePoints)
	ctx.Step(`^the tier is "([^"]*)"$`, tc.theTierIs)
	ctx.Step(`^there is no next tier$`, tc.thereIsNoNextTier)
	ctx.Step(`^a ledger with (\d+) current points$`, tc.aLedgerWithCurrentPoints)
	ctx.Step(`^I redeem (\d+) points for order "([^"]*)"$`, tc.iRedeemPointsForOrder)
	ctx.Step(`^the redemption fails with "([^"]*)"$`, tc.theRedemptionFailsWith)
	ctx.Step(`^the redemption succeeds$`, tc.theRedemptionSucceeds)
	ctx.Step(`^the ledger has (\d+) current points$`, tc.theLedgerHasCurrentPoints)
	ctx.Step(`^the last history entry is a "([^"]*)" of (\d+) points for order "([^"]*)"$`, tc.theLastHistoryEntryIs)

	// timeline
	ctx.Step(`^an order placed on "([^"]*)" with status "([^"]*)"$`, tc.anOrderPlacedOnWithStatus)
	ctx.Step(`^the order recorded activity "([^"]*)" described as "([^"]*)"$`, tc.theOrderRecordedActivity)
	ctx.Step(`^I derive the shipping timeline$`, tc.iDeriveTheShippingTimeline)
	ctx.Step(`^I derive the shipping timeline twice$`, tc.iDeriveTheShippingTimelineTwice)
	ctx.Step(`^the timeline has (\d+) steps$`, tc.theTimelineHasSteps)
	ctx.Step(`^the timeline steps are "([^"]*)"$`, tc.theTimelineStepsAre)
	ctx.Step(`^every step is completed$`, tc.everyStepIsCompleted)
	ctx.Step(`^step (\d+) is dated "([^"]*)"$`, tc.stepIsDated)
	ctx.Step(`^both timelines are identical$`, tc.bothTimelinesAreIdentical)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"loyalty.feature", "timeline.feature"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
