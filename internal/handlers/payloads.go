package handlers

import (
	"strings"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/commerce"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/services"
)

type variantOptionPayload struct {
	Label      string `json:"label"`
	PriceDelta int64  `json:"price_delta"`
}

type variantGroupPayload struct {
	Name    string                 `json:"name"`
	Options []variantOptionPayload `json:"options"`
}

type productPayload struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	Slug          string                `json:"slug,omitempty"`
	Description   string                `json:"description,omitempty"`
	CategoryID    string                `json:"category_id,omitempty"`
	BasePrice     int64                 `json:"base_price"`
	Currency      string                `json:"currency"`
	VariantGroups []variantGroupPayload `json:"variant_groups,omitempty"`
	Stock         *int                  `json:"stock,omitempty"`
	InStock       bool                  `json:"in_stock"`
	Status        string                `json:"status"`
	Images        []string              `json:"images,omitempty"`
	Tags          []string              `json:"tags,omitempty"`
	RatingAvg     float64               `json:"rating_avg"`
	RatingCount   int                   `json:"rating_count"`
	CreatedAt     string                `json:"created_at,omitempty"`
	UpdatedAt     string                `json:"updated_at,omitempty"`
}

func buildProductPayload(p domain.Product) productPayload {
	payload := productPayload{
		ID:          p.ID,
		Name:        p.Name,
		Slug:        p.Slug,
		Description: p.Description,
		CategoryID:  p.CategoryID,
		BasePrice:   p.BasePrice,
		Currency:    p.Currency,
		Stock:       p.Stock,
		InStock:     p.Stock == nil || *p.Stock > 0,
		Status:      string(p.Status),
		Images:      p.Images,
		Tags:        p.Tags,
		RatingAvg:   p.RatingAvg,
		RatingCount: p.RatingCount,
		CreatedAt:   formatTime(p.CreatedAt),
		UpdatedAt:   formatTime(p.UpdatedAt),
	}
	for _, group := range p.VariantGroups {
		g := variantGroupPayload{Name: group.Name, Options: make([]variantOptionPayload, 0, len(group.Options))}
		for _, opt := range group.Options {
			g.Options = append(g.Options, variantOptionPayload{Label: opt.Label, PriceDelta: opt.PriceDelta})
		}
		payload.VariantGroups = append(payload.VariantGroups, g)
	}
	return payload
}

func buildProductPayloads(products []domain.Product) []productPayload {
	out := make([]productPayload, 0, len(products))
	for _, p := range products {
		out = append(out, buildProductPayload(p))
	}
	return out
}

type categoryPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	SortOrder   int    `json:"sort_order"`
	Active      bool   `json:"active"`
}

func buildCategoryPayloads(categories []domain.Category) []categoryPayload {
	out := make([]categoryPayload, 0, len(categories))
	for _, c := range categories {
		out = append(out, buildCategoryPayload(c))
	}
	return out
}

func buildCategoryPayload(c domain.Category) categoryPayload {
	return categoryPayload{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		SortOrder:   c.SortOrder,
		Active:      c.Active,
	}
}

type variantChoicePayload struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Index int    `json:"index"`
}

func buildVariantChoices(choices []domain.VariantChoice) []variantChoicePayload {
	if len(choices) == 0 {
		return nil
	}
	out := make([]variantChoicePayload, 0, len(choices))
	for _, c := range choices {
		out = append(out, variantChoicePayload{Name: c.Name, Value: c.Value, Index: c.Index})
	}
	return out
}

type cartLinePayload struct {
	ID        string                 `json:"id"`
	ProductID string                 `json:"product_id"`
	Name      string                 `json:"name"`
	Image     string                 `json:"image,omitempty"`
	UnitPrice int64                  `json:"unit_price"`
	Quantity  int                    `json:"quantity"`
	LineTotal int64                  `json:"line_total"`
	Variants  []variantChoicePayload `json:"variants,omitempty"`
}

type estimatePayload struct {
	Subtotal    int64 `json:"subtotal"`
	ShippingFee int64 `json:"shipping_fee"`
	Discount    int64 `json:"discount"`
	Tax         int64 `json:"tax"`
	Total       int64 `json:"total"`
	ItemCount   int   `json:"item_count"`
}

type cartPayload struct {
	ID         string            `json:"id"`
	CustomerID string            `json:"customer_id,omitempty"`
	GuestID    string            `json:"guest_id,omitempty"`
	Currency   string            `json:"currency"`
	Lines      []cartLinePayload `json:"lines"`
	Estimate   estimatePayload   `json:"estimate"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

func buildCartPayload(view services.CartView) cartPayload {
	cart := view.Cart
	payload := cartPayload{
		ID:         cart.ID,
		CustomerID: cart.CustomerID,
		GuestID:    cart.GuestID,
		Currency:   cart.Currency,
		Lines:      make([]cartLinePayload, 0, len(cart.Lines)),
		Estimate: estimatePayload{
			Subtotal:    view.Estimate.Subtotal,
			ShippingFee: view.Estimate.ShippingFee,
			Discount:    view.Estimate.Discount,
			Tax:         view.Estimate.Tax,
			Total:       view.Estimate.Total,
			ItemCount:   view.Estimate.ItemCount,
		},
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
	for _, line := range cart.Lines {
		payload.Lines = append(payload.Lines, cartLinePayload{
			ID:        line.ID,
			ProductID: line.ProductID,
			Name:      line.Name,
			Image:     line.Image,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
			LineTotal: commerce.LineTotal(commerce.Line{UnitPrice: line.UnitPrice, Quantity: line.Quantity}),
			Variants:  buildVariantChoices(line.Variants),
		})
	}
	return payload
}

type statusPayload struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Color string `json:"color"`
}

type orderItemPayload struct {
	ProductID string                 `json:"product_id"`
	Name      string                 `json:"name"`
	Image     string                 `json:"image,omitempty"`
	UnitPrice int64                  `json:"unit_price"`
	Quantity  int                    `json:"quantity"`
	Variants  []variantChoicePayload `json:"variants,omitempty"`
}

type addressPayload struct {
	FullName   string `json:"full_name"`
	Phone      string `json:"phone"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	Ward       string `json:"ward,omitempty"`
	District   string `json:"district,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

func (a addressPayload) toDomain() domain.Address {
	return domain.Address{
		FullName:   strings.TrimSpace(a.FullName),
		Phone:      strings.TrimSpace(a.Phone),
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		Ward:       strings.TrimSpace(a.Ward),
		District:   strings.TrimSpace(a.District),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
}

type activityPayload struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Date        string `json:"date"`
	Time        string `json:"time"`
	Completed   bool   `json:"completed"`
}

func buildActivityPayloads(entries []domain.ShippingActivity) []activityPayload {
	out := make([]activityPayload, 0, len(entries))
	for _, e := range entries {
		out = append(out, activityPayload{
			Status:      e.Status,
			Description: e.Description,
			Date:        e.Date,
			Time:        e.Time,
			Completed:   e.Completed,
		})
	}
	return out
}

type orderPayload struct {
	ID              string             `json:"id"`
	DisplayCode     string             `json:"display_code"`
	CustomerID      string             `json:"customer_id"`
	CustomerEmail   string             `json:"customer_email,omitempty"`
	Items           []orderItemPayload `json:"items"`
	Currency        string             `json:"currency"`
	Subtotal        int64              `json:"subtotal"`
	ShippingFee     int64              `json:"shipping_fee"`
	Discount        int64              `json:"discount"`
	Tax             int64              `json:"tax"`
	Total           int64              `json:"total"`
	PaymentMethod   string             `json:"payment_method"`
	PaymentStatus   statusPayload      `json:"payment_status"`
	Status          statusPayload      `json:"status"`
	PointsEarned    int64              `json:"points_earned"`
	PointsUsed      int64              `json:"points_used"`
	ShippingAddress addressPayload     `json:"shipping_address"`
	Note            string             `json:"note,omitempty"`
	Activity        []activityPayload  `json:"activity,omitempty"`
	CreatedAt       string             `json:"created_at"`
	UpdatedAt       string             `json:"updated_at,omitempty"`
	CanceledAt      string             `json:"canceled_at,omitempty"`
	DeliveredAt     string             `json:"delivered_at,omitempty"`
}

type orderSummaryPayload struct {
	ID            string        `json:"id"`
	DisplayCode   string        `json:"display_code"`
	Status        statusPayload `json:"status"`
	PaymentStatus statusPayload `json:"payment_status"`
	Total         int64         `json:"total"`
	Currency      string        `json:"currency"`
	ItemCount     int           `json:"item_count"`
	CreatedAt     string        `json:"created_at"`
}

func orderStatusPayload(status domain.OrderStatus) statusPayload {
	p := status.Presentation()
	return statusPayload{Value: string(status), Label: p.Label, Color: p.Color}
}

func paymentStatusPayload(status domain.PaymentStatus) statusPayload {
	p := status.Presentation()
	return statusPayload{Value: string(status), Label: p.Label, Color: p.Color}
}

func buildOrderPayload(o domain.Order) orderPayload {
	payload := orderPayload{
		ID:            o.ID,
		DisplayCode:   domain.DisplayCode(o.ID),
		CustomerID:    o.CustomerID,
		CustomerEmail: o.CustomerEmail,
		Items:         make([]orderItemPayload, 0, len(o.Items)),
		Currency:      o.Currency,
		Subtotal:      o.Subtotal,
		ShippingFee:   o.ShippingFee,
		Discount:      o.Discount,
		Tax:           o.Tax,
		Total:         o.Total,
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: paymentStatusPayload(o.PaymentStatus),
		Status:        orderStatusPayload(o.Status),
		PointsEarned:  commerce.ComputePointsEarned(o),
		PointsUsed:    o.PointsUsed,
		ShippingAddress: addressPayload{
			FullName:   o.ShippingAddress.FullName,
			Phone:      o.ShippingAddress.Phone,
			Line1:      o.ShippingAddress.Line1,
			Line2:      o.ShippingAddress.Line2,
			Ward:       o.ShippingAddress.Ward,
			District:   o.ShippingAddress.District,
			City:       o.ShippingAddress.City,
			PostalCode: o.ShippingAddress.PostalCode,
			Country:    o.ShippingAddress.Country,
		},
		Note:        o.Note,
		CreatedAt:   formatTime(o.CreatedAt),
		UpdatedAt:   formatTime(o.UpdatedAt),
		CanceledAt:  formatTimePtr(o.CanceledAt),
		DeliveredAt: formatTimePtr(o.DeliveredAt),
	}
	if len(o.Activity) > 0 {
		payload.Activity = buildActivityPayloads(o.Activity)
	}
	for _, item := range o.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
			Variants:  buildVariantChoices(item.Variants),
		})
	}
	return payload
}

func buildOrderSummary(o domain.Order) orderSummaryPayload {
	count := 0
	for _, item := range o.Items {
		count += max(item.Quantity, 1)
	}
	return orderSummaryPayload{
		ID:            o.ID,
		DisplayCode:   domain.DisplayCode(o.ID),
		Status:        orderStatusPayload(o.Status),
		PaymentStatus: paymentStatusPayload(o.PaymentStatus),
		Total:         o.Total,
		Currency:      o.Currency,
		ItemCount:     count,
		CreatedAt:     formatTime(o.CreatedAt),
	}
}

type orderListResponse struct {
	Items         []orderSummaryPayload `json:"items"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

func buildOrderList(page domain.CursorPage[domain.Order]) orderListResponse {
	items := make([]orderSummaryPayload, 0, len(page.Items))
	for _, o := range page.Items {
		items = append(items, buildOrderSummary(o))
	}
	return orderListResponse{Items: items, NextPageToken: page.NextPageToken}
}

type loyaltyEntryPayload struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Points    int64  `json:"points"`
	OrderID   string `json:"order_id,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

type loyaltyPayload struct {
	CustomerID    string                `json:"customer_id"`
	CurrentPoints int64                 `json:"current_points"`
	TotalEarned   int64                 `json:"total_earned"`
	Tier          string                `json:"tier"`
	PointsToNext  *int64                `json:"points_to_next"`
	History       []loyaltyEntryPayload `json:"history"`
}

func buildLoyaltyPayload(s services.LoyaltySummary) loyaltyPayload {
	payload := loyaltyPayload{
		CustomerID:    s.CustomerID,
		CurrentPoints: s.CurrentPoints,
		TotalEarned:   s.TotalEarned,
		Tier:          string(s.Tier),
		PointsToNext:  s.PointsToNext,
		History:       make([]loyaltyEntryPayload, 0, len(s.History)),
	}
	for _, e := range s.History {
		payload.History = append(payload.History, loyaltyEntryPayload{
			ID:        e.ID,
			Type:      string(e.Type),
			Points:    e.Points,
			OrderID:   e.OrderID,
			Reason:    e.Reason,
			Timestamp: formatTime(e.Timestamp),
		})
	}
	return payload
}

type customerPayload struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	Name          string `json:"name"`
	Phone         string `json:"phone,omitempty"`
	Blocked       bool   `json:"blocked"`
	Tier          string `json:"tier"`
	CurrentPoints int64  `json:"current_points"`
	TotalEarned   int64  `json:"total_earned"`
	CreatedAt     string `json:"created_at,omitempty"`
}

func buildCustomerPayload(c domain.Customer) customerPayload {
	tier := c.Loyalty.Tier
	if tier == "" {
		tier = commerce.TierFor(c.Loyalty.TotalEarned)
	}
	return customerPayload{
		ID:            c.ID,
		Email:         c.Email,
		Name:          c.Name,
		Phone:         c.Phone,
		Blocked:       c.Blocked,
		Tier:          string(tier),
		CurrentPoints: c.Loyalty.CurrentPoints,
		TotalEarned:   c.Loyalty.TotalEarned,
		CreatedAt:     formatTime(c.CreatedAt),
	}
}

type reviewPayload struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	CustomerID   string `json:"customer_id,omitempty"`
	CustomerName string `json:"customer_name"`
	Rating       int    `json:"rating"`
	Comment      string `json:"comment,omitempty"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
}

func buildReviewPayload(r domain.Review, includeCustomer bool) reviewPayload {
	payload := reviewPayload{
		ID:           r.ID,
		ProductID:    r.ProductID,
		CustomerName: r.CustomerName,
		Rating:       r.Rating,
		Comment:      r.Comment,
		Status:       string(r.Status),
		CreatedAt:    formatTime(r.CreatedAt),
	}
	if includeCustomer {
		payload.CustomerID = r.CustomerID
	}
	return payload
}

type reviewListResponse struct {
	Items         []reviewPayload `json:"items"`
	NextPageToken string          `json:"next_page_token,omitempty"`
}

func buildReviewList(page domain.CursorPage[domain.Review], includeCustomer bool) reviewListResponse {
	items := make([]reviewPayload, 0, len(page.Items))
	for _, r := range page.Items {
		items = append(items, buildReviewPayload(r, includeCustomer))
	}
	return reviewListResponse{Items: items, NextPageToken: page.NextPageToken}
}
