package handlers

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/commerce"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/config"
)

const metaCacheControl = "public, max-age=300"

// MetaHandlers publish the reference data clients render with: status labels and colours,
// payment methods, shop pricing rules and loyalty tiers.
type MetaHandlers struct {
	shop        config.ShopConfig
	cardEnabled bool
}

// NewMetaHandlers constructs meta handlers. cardEnabled advertises card payments.
func NewMetaHandlers(shop config.ShopConfig, cardEnabled bool) *MetaHandlers {
	return &MetaHandlers{shop: shop, cardEnabled: cardEnabled}
}

// Routes registers /meta endpoints.
func (h *MetaHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/statuses", h.statuses)
	r.Get("/shop", h.shopInfo)
}

type statusMetaPayload struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Color    string `json:"color"`
	Rank     int    `json:"rank"`
	Terminal bool   `json:"terminal"`
}

type statusesResponse struct {
	OrderStatuses   []statusMetaPayload `json:"order_statuses"`
	PaymentStatuses []statusMetaPayload `json:"payment_statuses"`
	PaymentMethods  []string            `json:"payment_methods"`
}

func (h *MetaHandlers) statuses(w http.ResponseWriter, r *http.Request) {
	resp := statusesResponse{
		PaymentMethods: h.paymentMethods(),
	}
	for _, status := range domain.OrderStatuses() {
		p := status.Presentation()
		resp.OrderStatuses = append(resp.OrderStatuses, statusMetaPayload{
			Value:    string(status),
			Label:    p.Label,
			Color:    p.Color,
			Rank:     p.Rank,
			Terminal: p.Terminal,
		})
	}
	for _, status := range domain.PaymentStatuses() {
		p := status.Presentation()
		resp.PaymentStatuses = append(resp.PaymentStatuses, statusMetaPayload{
			Value:    string(status),
			Label:    p.Label,
			Color:    p.Color,
			Terminal: p.Terminal,
		})
	}
	w.Header().Set("Cache-Control", metaCacheControl)
	writeJSONResponse(w, http.StatusOK, resp)
}

type tierMetaPayload struct {
	Tier      string `json:"tier"`
	MinPoints int64  `json:"min_points"`
}

type shopMetaResponse struct {
	Currency         string            `json:"currency"`
	ShippingFee      int64             `json:"shipping_fee"`
	FreeShippingFrom int64             `json:"free_shipping_from"`
	PointValue       int64             `json:"point_value"`
	Tiers            []tierMetaPayload `json:"tiers"`
	PaymentMethods   []string          `json:"payment_methods"`
}

func (h *MetaHandlers) shopInfo(w http.ResponseWriter, r *http.Request) {
	resp := shopMetaResponse{
		Currency:         h.shop.Currency,
		ShippingFee:      h.shop.ShippingFee,
		FreeShippingFrom: h.shop.FreeShippingFrom,
		PointValue:       h.shop.PointValue,
		PaymentMethods:   h.paymentMethods(),
	}
	for tier, min := range commerce.TierThresholds() {
		resp.Tiers = append(resp.Tiers, tierMetaPayload{Tier: string(tier), MinPoints: min})
	}
	sort.Slice(resp.Tiers, func(i, j int) bool { return resp.Tiers[i].MinPoints < resp.Tiers[j].MinPoints })
	w.Header().Set("Cache-Control", metaCacheControl)
	writeJSONResponse(w, http.StatusOK, resp)
}

func (h *MetaHandlers) paymentMethods() []string {
	methods := []string{string(domain.PaymentMethodCOD), string(domain.PaymentMethodBankTransfer)}
	if h.cardEnabled {
		methods = append(methods, string(domain.PaymentMethodCard))
	}
	return methods
}
