package commerce

import (
	"time"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
)

const (
	timelineDateLayout = "2006-01-02"
	timelineTimeLayout = "15:04"
)

type timelineStep struct {
	status      domain.OrderStatus
	description string
}

var canonicalTimeline = []timelineStep{
	{status: domain.OrderStatusPending, description: "Order placed and awaiting confirmation"},
	{status: domain.OrderStatusProcessing, description: "Order confirmed and being prepared"},
	{status: domain.OrderStatusShipped, description: "Order handed to the carrier"},
	{status: domain.OrderStatusDelivered, description: "Order delivered"},
}

var (
	cancelledStep = timelineStep{status: domain.OrderStatusCancelled, description: "Order cancelled"}
	refundedStep  = timelineStep{status: domain.OrderStatusRefunded, description: "Payment refunded"}
)

// TimelineRank maps a raw status onto the canonical sequence. In-transit aliases rank as
// shipped; anything unrecognised ranks 0.
func TimelineRank(status string) int {
	parsed, ok := domain.ParseOrderStatus(status)
	if !ok {
		return 0
	}
	switch parsed {
	case domain.OrderStatusPending, domain.OrderStatusProcessing, domain.OrderStatusDelivered:
		return parsed.Presentation().Rank
	}
	if parsed.IsShippingStage() {
		return parsed.Presentation().Rank
	}
	return 0
}

// DeriveShippingTimeline returns explicit activity unchanged when present. Otherwise it
// renders the presumed history for status: every canonical step up to the status rank,
// completed, dated createdAt plus the step index in days. Cancelled orders show pending then
// cancelled; refunded orders show the full sequence then refunded.
func DeriveShippingTimeline(status string, createdAt time.Time, explicit []domain.ShippingActivity) []domain.ShippingActivity {
	if len(explicit) > 0 {
		out := make([]domain.ShippingActivity, len(explicit))
		copy(out, explicit)
		return out
	}

	parsed, known := domain.ParseOrderStatus(status)
	var steps []timelineStep
	switch {
	case known && parsed == domain.OrderStatusCancelled:
		steps = []timelineStep{canonicalTimeline[0], cancelledStep}
	case known && parsed == domain.OrderStatusRefunded:
		steps = append(append([]timelineStep{}, canonicalTimeline...), refundedStep)
	default:
		steps = canonicalTimeline[:TimelineRank(status)+1]
	}

	out := make([]domain.ShippingActivity, 0, len(steps))
	for i, step := range steps {
		at := createdAt.AddDate(0, 0, i)
		out = append(out, domain.ShippingActivity{
			Status:      string(step.status),
			Description: step.description,
			Date:        at.Format(timelineDateLayout),
			Time:        at.Format(timelineTimeLayout),
			Completed:   true,
		})
	}
	return out
}

// ActivityFor builds the explicit activity entry recorded when an admin changes status.
func ActivityFor(status domain.OrderStatus, note string, at time.Time) domain.ShippingActivity {
	description := note
	if description == "" {
		description = status.Presentation().Label
	}
	return domain.ShippingActivity{
		Status:      string(status),
		Description: description,
		Date:        at.Format(timelineDateLayout),
		Time:        at.Format(timelineTimeLayout),
		Completed:   true,
	}
}
