package services

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/payments"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

type testRepoError struct {
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e testRepoError) Error() string {
	switch {
	case e.notFound:
		return "not found"
	case e.conflict:
		return "conflict"
	default:
		return "unavailable"
	}
}

func (e testRepoError) IsNotFound() bool    { return e.notFound }
func (e testRepoError) IsConflict() bool    { return e.conflict }
func (e testRepoError) IsUnavailable() bool { return e.unavailable }

var (
	errRepoNotFound    = testRepoError{notFound: true}
	errRepoConflict    = testRepoError{conflict: true}
	errRepoUnavailable = testRepoError{unavailable: true}
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func sequentialIDs(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return prefix + string(rune('A'+n-1))
	}
}

func intPtr(v int) *int { return &v }

type stubUnitOfWork struct {
	calls int
	runFn func(context.Context, func(context.Context) error) error
}

func (s *stubUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	s.calls++
	if s.runFn != nil {
		return s.runFn(ctx, fn)
	}
	return fn(ctx)
}

type memProducts struct {
	items   map[string]domain.Product
	saved   []domain.Product
	getErr  error
	saveErr error
	listFn  func(repositories.ProductFilter) (domain.CursorPage[domain.Product], error)
	counts  map[string]int64
}

func newMemProducts(products ...domain.Product) *memProducts {
	m := &memProducts{items: map[string]domain.Product{}}
	for _, p := range products {
		m.items[p.ID] = p
	}
	return m
}

func (m *memProducts) Get(_ context.Context, id string) (domain.Product, error) {
	if m.getErr != nil {
		return domain.Product{}, m.getErr
	}
	p, ok := m.items[id]
	if !ok {
		return domain.Product{}, errRepoNotFound
	}
	return p, nil
}

func (m *memProducts) List(_ context.Context, filter repositories.ProductFilter) (domain.CursorPage[domain.Product], error) {
	if m.listFn != nil {
		return m.listFn(filter)
	}
	var out []domain.Product
	for _, p := range m.items {
		if filter.Status != nil && p.Status != *filter.Status {
			continue
		}
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b domain.Product) int { return strings.Compare(a.ID, b.ID) })
	return domain.CursorPage[domain.Product]{Items: out}, nil
}

func (m *memProducts) Save(_ context.Context, p domain.Product) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.items[p.ID] = p
	m.saved = append(m.saved, p)
	return nil
}

func (m *memProducts) Delete(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return errRepoNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memProducts) CountByCategory(_ context.Context, categoryID string) (int64, error) {
	return m.counts[categoryID], nil
}

type memCategories struct {
	items map[string]domain.Category
}

func newMemCategories(categories ...domain.Category) *memCategories {
	m := &memCategories{items: map[string]domain.Category{}}
	for _, c := range categories {
		m.items[c.ID] = c
	}
	return m
}

func (m *memCategories) Get(_ context.Context, id string) (domain.Category, error) {
	c, ok := m.items[id]
	if !ok {
		return domain.Category{}, errRepoNotFound
	}
	return c, nil
}

func (m *memCategories) List(_ context.Context, includeInactive bool) ([]domain.Category, error) {
	var out []domain.Category
	for _, c := range m.items {
		if c.Active || includeInactive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memCategories) Save(_ context.Context, c domain.Category) error {
	m.items[c.ID] = c
	return nil
}

func (m *memCategories) Delete(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return errRepoNotFound
	}
	delete(m.items, id)
	return nil
}

type memCarts struct {
	items   map[string]domain.Cart
	deleted []string
	saveErr error
	staleFn func(time.Time, int) (int, error)
}

func newMemCarts() *memCarts {
	return &memCarts{items: map[string]domain.Cart{}}
}

func (m *memCarts) Get(_ context.Context, key string) (domain.Cart, error) {
	c, ok := m.items[key]
	if !ok {
		return domain.Cart{}, errRepoNotFound
	}
	c.Lines = slices.Clone(c.Lines)
	return c, nil
}

func (m *memCarts) Save(_ context.Context, key string, cart domain.Cart) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.items[key] = cart
	return nil
}

func (m *memCarts) Delete(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.items, key)
	return nil
}

func (m *memCarts) DeleteStaleGuests(_ context.Context, before time.Time, limit int) (int, error) {
	if m.staleFn != nil {
		return m.staleFn(before, limit)
	}
	return 0, nil
}

type memOrders struct {
	items     map[string]domain.Order
	inserted  []domain.Order
	updated   []domain.Order
	insertErr error
	lastList  repositories.OrderListFilter
}

func newMemOrders(orders ...domain.Order) *memOrders {
	m := &memOrders{items: map[string]domain.Order{}}
	for _, o := range orders {
		m.items[o.ID] = o
	}
	return m
}

func (m *memOrders) Insert(_ context.Context, o domain.Order) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, exists := m.items[o.ID]; exists {
		return errRepoConflict
	}
	m.items[o.ID] = o
	m.inserted = append(m.inserted, o)
	return nil
}

func (m *memOrders) Update(_ context.Context, o domain.Order) error {
	if _, ok := m.items[o.ID]; !ok {
		return errRepoNotFound
	}
	m.items[o.ID] = o
	m.updated = append(m.updated, o)
	return nil
}

func (m *memOrders) Get(_ context.Context, id string) (domain.Order, error) {
	o, ok := m.items[id]
	if !ok {
		return domain.Order{}, errRepoNotFound
	}
	return o, nil
}

func (m *memOrders) FindByPaymentIntent(_ context.Context, intentID string) (domain.Order, error) {
	for _, o := range m.items {
		if o.PaymentIntentID == intentID {
			return o, nil
		}
	}
	return domain.Order{}, errRepoNotFound
}

func (m *memOrders) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	m.lastList = filter
	var out []domain.Order
	for _, o := range m.items {
		if filter.CustomerID != "" && o.CustomerID != filter.CustomerID {
			continue
		}
		if filter.DisplayCode != "" && !domain.MatchesDisplayCode(o.ID, filter.DisplayCode) {
			continue
		}
		out = append(out, o)
	}
	slices.SortFunc(out, func(a, b domain.Order) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return domain.CursorPage[domain.Order]{Items: out}, nil
}

type memCustomers struct {
	items    map[string]domain.Customer
	saved    []domain.Customer
	getErr   error
	lastList repositories.CustomerListFilter
}

func newMemCustomers(customers ...domain.Customer) *memCustomers {
	m := &memCustomers{items: map[string]domain.Customer{}}
	for _, c := range customers {
		m.items[c.ID] = c
	}
	return m
}

func (m *memCustomers) Get(_ context.Context, id string) (domain.Customer, error) {
	if m.getErr != nil {
		return domain.Customer{}, m.getErr
	}
	c, ok := m.items[id]
	if !ok {
		return domain.Customer{}, errRepoNotFound
	}
	return c, nil
}

func (m *memCustomers) Save(_ context.Context, c domain.Customer) error {
	m.items[c.ID] = c
	m.saved = append(m.saved, c)
	return nil
}

func (m *memCustomers) List(_ context.Context, filter repositories.CustomerListFilter) (domain.CursorPage[domain.Customer], error) {
	m.lastList = filter
	var out []domain.Customer
	for _, c := range m.items {
		out = append(out, c)
	}
	return domain.CursorPage[domain.Customer]{Items: out}, nil
}

type memReviews struct {
	items map[string]domain.Review
}

func newMemReviews(reviews ...domain.Review) *memReviews {
	m := &memReviews{items: map[string]domain.Review{}}
	for _, r := range reviews {
		m.items[r.ID] = r
	}
	return m
}

func (m *memReviews) Insert(_ context.Context, r domain.Review) error {
	m.items[r.ID] = r
	return nil
}

func (m *memReviews) Update(_ context.Context, r domain.Review) error {
	if _, ok := m.items[r.ID]; !ok {
		return errRepoNotFound
	}
	m.items[r.ID] = r
	return nil
}

func (m *memReviews) Get(_ context.Context, id string) (domain.Review, error) {
	r, ok := m.items[id]
	if !ok {
		return domain.Review{}, errRepoNotFound
	}
	return r, nil
}

func (m *memReviews) Delete(_ context.Context, id string) error {
	if _, ok := m.items[id]; !ok {
		return errRepoNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memReviews) FindByProductAndCustomer(_ context.Context, productID, customerID string) (domain.Review, error) {
	for _, r := range m.items {
		if r.ProductID == productID && r.CustomerID == customerID {
			return r, nil
		}
	}
	return domain.Review{}, errRepoNotFound
}

func (m *memReviews) List(_ context.Context, filter repositories.ReviewListFilter) (domain.CursorPage[domain.Review], error) {
	var out []domain.Review
	for _, r := range m.items {
		if filter.ProductID != "" && r.ProductID != filter.ProductID {
			continue
		}
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b domain.Review) int { return strings.Compare(a.ID, b.ID) })
	return domain.CursorPage[domain.Review]{Items: out}, nil
}

func (m *memReviews) VisibleRatings(_ context.Context, productID string) ([]int, error) {
	var out []int
	for _, r := range m.items {
		if r.ProductID == productID && r.Status == domain.ReviewVisible {
			out = append(out, r.Rating)
		}
	}
	return out, nil
}

type memWishlists struct {
	items map[string]domain.Wishlist
}

func newMemWishlists() *memWishlists {
	return &memWishlists{items: map[string]domain.Wishlist{}}
}

func (m *memWishlists) Get(_ context.Context, id string) (domain.Wishlist, error) {
	w, ok := m.items[id]
	if !ok {
		return domain.Wishlist{}, errRepoNotFound
	}
	return w, nil
}

func (m *memWishlists) Save(_ context.Context, w domain.Wishlist) error {
	m.items[w.CustomerID] = w
	return nil
}

type captureOrderEvents struct {
	events []OrderEvent
	err    error
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) (string, error) {
	if c.err != nil {
		return "", c.err
	}
	c.events = append(c.events, event)
	return "msg-1", nil
}

func (c *captureOrderEvents) types() []string {
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

type fakePaymentProvider struct {
	sessionErr  error
	sessionReqs []payments.CheckoutSessionRequest
	lookup      payments.PaymentDetails
	lookupErr   error
	refunds     []payments.RefundRequest
	refundErr   error
	webhook     payments.WebhookEvent
	webhookErr  error
}

func (f *fakePaymentProvider) CreateCheckoutSession(_ context.Context, req payments.CheckoutSessionRequest) (payments.CheckoutSession, error) {
	f.sessionReqs = append(f.sessionReqs, req)
	if f.sessionErr != nil {
		return payments.CheckoutSession{}, f.sessionErr
	}
	return payments.CheckoutSession{ID: "cs_test_1", RedirectURL: "https://checkout.stripe.test/cs_test_1", IntentID: "pi_1"}, nil
}

func (f *fakePaymentProvider) LookupPayment(_ context.Context, intentID string) (payments.PaymentDetails, error) {
	if f.lookupErr != nil {
		return payments.PaymentDetails{}, f.lookupErr
	}
	details := f.lookup
	if details.IntentID == "" {
		details.IntentID = intentID
	}
	return details, nil
}

func (f *fakePaymentProvider) Refund(_ context.Context, req payments.RefundRequest) (payments.PaymentDetails, error) {
	f.refunds = append(f.refunds, req)
	if f.refundErr != nil {
		return payments.PaymentDetails{}, f.refundErr
	}
	return payments.PaymentDetails{IntentID: req.IntentID, Status: payments.StatusRefunded}, nil
}

func (f *fakePaymentProvider) ParseWebhook(_ []byte, _ string) (payments.WebhookEvent, error) {
	if f.webhookErr != nil {
		return payments.WebhookEvent{}, f.webhookErr
	}
	return f.webhook, nil
}

var errBoom = errors.New("boom")
