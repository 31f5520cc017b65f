package domain

import "testing"

func TestParseOrderStatus(t *testing.T) {
	cases := []struct {
		raw  string
		want OrderStatus
		ok   bool
	}{
		{raw: "pending", want: OrderStatusPending, ok: true},
		{raw: " Processing ", want: OrderStatusProcessing, ok: true},
		{raw: "Ready_To_Pickup", want: OrderStatusReadyToPickup, ok: true},
		{raw: "readytopickup", want: OrderStatusReadyToPickup, ok: true},
		{raw: "out for delivery", want: OrderStatusOutForDelivery, ok: true},
		{raw: "canceled", want: OrderStatusCancelled, ok: true},
		{raw: "RETURNED", want: OrderStatusReturned, ok: true},
		{raw: "", want: OrderStatusPending, ok: false},
		{raw: "lost", want: OrderStatusPending, ok: false},
	}
	for _, tc := range cases {
		got, ok := ParseOrderStatus(tc.raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseOrderStatus(%q) = %q,%v want %q,%v", tc.raw, got, ok, tc.want, tc.ok)
		}
	}
}

func TestOrderStatusTableIsExhaustive(t *testing.T) {
	all := OrderStatuses()
	if len(all) != 10 {
		t.Fatalf("expected 10 statuses, got %d", len(all))
	}
	for _, status := range all {
		p := status.Presentation()
		if p.Label == "" || p.Color == "" {
			t.Fatalf("status %q missing presentation", status)
		}
	}
	if all[0] != OrderStatusPending {
		t.Fatalf("expected pending first, got %q", all[0])
	}
	if !all[len(all)-1].IsTerminal() {
		t.Fatalf("expected terminal statuses last, got %q", all[len(all)-1])
	}
}

func TestOrderStatusPresentationFallsBack(t *testing.T) {
	if got := OrderStatus("weird").Presentation(); got != OrderStatusPending.Presentation() {
		t.Fatalf("expected pending presentation, got %+v", got)
	}
	if OrderStatus("weird").Valid() {
		t.Fatalf("expected unknown status to be invalid")
	}
}

func TestParsePaymentStatusAndMethod(t *testing.T) {
	if s, ok := ParsePaymentStatus("paid"); !ok || s != PaymentStatusPaid {
		t.Fatalf("unexpected payment status %q %v", s, ok)
	}
	if s, ok := ParsePaymentStatus("chargeback"); ok || s != PaymentStatusPending {
		t.Fatalf("unexpected payment status %q %v", s, ok)
	}
	if m, ok := ParsePaymentMethod("Bank_Transfer"); !ok || m != PaymentMethodBankTransfer {
		t.Fatalf("unexpected payment method %q %v", m, ok)
	}
	if _, ok := ParsePaymentMethod("barter"); ok {
		t.Fatalf("expected barter to be rejected")
	}
	if s, ok := ParseProductStatus("published"); !ok || s != ProductStatusPublish {
		t.Fatalf("unexpected product status %q %v", s, ok)
	}
}

func TestDisplayCode(t *testing.T) {
	cases := map[string]string{
		"ord_01HV6Q3W9K3ZQ9T":      "#K3ZQ9T",
		"65f1c2ab9d3e4f0012ab34cd": "#AB34CD",
		"abc":                      "#ABC",
		"  ":                       "",
	}
	for id, want := range cases {
		if got := DisplayCode(id); got != want {
			t.Fatalf("DisplayCode(%q) = %q want %q", id, got, want)
		}
	}
	if !MatchesDisplayCode("ord_01HV6Q3W9K3ZQ9T", "k3zq9t") {
		t.Fatalf("expected display code match")
	}
	if MatchesDisplayCode("ord_01HV6Q3W9K3ZQ9T", "#") {
		t.Fatalf("expected empty query not to match")
	}
}
