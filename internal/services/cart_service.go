package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/commerce"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/domain"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/platform/payload"
	"github.com/Katie-217/Web-E-Commerce-Coffee-Shop-sub001/internal/repositories"
)

const maxCartLines = 50

var (
	// ErrCartInvalidInput indicates the caller supplied invalid input.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartUnavailable indicates the cart store failed.
	ErrCartUnavailable = errors.New("cart: unavailable")
	// ErrCartLineNotFound indicates the line id is not in the cart.
	ErrCartLineNotFound = errors.New("cart: line not found")
	// ErrCartProductUnavailable indicates the product is unpublished, missing or sold out.
	ErrCartProductUnavailable = errors.New("cart: product unavailable")
	// ErrCartConflict indicates a concurrent modification prevented the update.
	ErrCartConflict = errors.New("cart: conflict")
)

// CartServiceDeps wires the repository and pricing dependencies for cart operations.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Tx       repositories.UnitOfWork
	// Shipping returns the shipping fee for a subtotal.
	Shipping        func(subtotal int64) int64
	DefaultCurrency string
	Clock           func() time.Time
	Logger          Logger
	IDGenerator     func() string
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	tx       repositories.UnitOfWork
	shipping func(int64) int64
	currency string
	now      func() time.Time
	logger   Logger
	newID    func() string
}

var _ CartService = (*cartService)(nil)

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errors.New("cart service: cart repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("cart service: product repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	shipping := deps.Shipping
	if shipping == nil {
		shipping = func(int64) int64 { return 0 }
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.DefaultCurrency))
	if currency == "" {
		currency = "VND"
	}
	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		tx:       deps.Tx,
		shipping: shipping,
		currency: currency,
		now:      func() time.Time { return clock().UTC() },
		logger:   logger,
		newID:    idGen,
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, session Session) (CartView, error) {
	key := session.CartKey()
	if key == "" {
		return CartView{}, ErrSessionRequired
	}
	cart, err := s.load(ctx, key, session)
	if err != nil {
		return CartView{}, err
	}
	return s.view(cart), nil
}

// AddItem snapshots the product name and unit price into a line. Adding the same product and
// variant again increases the quantity of the existing line.
func (s *cartService) AddItem(ctx context.Context, session Session, cmd AddCartItemCommand) (CartView, error) {
	key := session.CartKey()
	if key == "" {
		return CartView{}, ErrSessionRequired
	}
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return CartView{}, fmt.Errorf("%w: product_id is required", ErrCartInvalidInput)
	}

	var cart Cart
	err := runInTx(ctx, s.tx, func(ctx context.Context) error {
		current, err := s.load(ctx, key, session)
		if err != nil {
			return err
		}
		product, err := s.availableProduct(ctx, productID)
		if err != nil {
			return err
		}
		line := s.newLine(product, cmd.VariantIndex, cmd.Selection, cmd.Quantity)
		current, err = s.mergeLine(current, line, product.Stock)
		if err != nil {
			return err
		}
		if err := s.save(ctx, key, &current); err != nil {
			return err
		}
		cart = current
		return nil
	})
	if err != nil {
		return CartView{}, s.mapError(ctx, "cart.add_failed", err)
	}
	s.logger(ctx, "cart.item_added", map[string]any{"cartKey": key, "productId": productID})
	return s.view(cart), nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, session Session, lineID string, quantity int) (CartView, error) {
	key := session.CartKey()
	if key == "" {
		return CartView{}, ErrSessionRequired
	}
	lineID = strings.TrimSpace(lineID)
	if lineID == "" {
		return CartView{}, ErrCartInvalidInput
	}

	var cart Cart
	err := runInTx(ctx, s.tx, func(ctx context.Context) error {
		current, err := s.load(ctx, key, session)
		if err != nil {
			return err
		}
		idx := lineIndex(current.Lines, lineID)
		if idx < 0 {
			return ErrCartLineNotFound
		}
		var stock *int
		if product, err := s.products.Get(ctx, current.Lines[idx].ProductID); err == nil {
			stock = product.Stock
		} else if !isRepoNotFound(err) {
			return err
		}
		current.Lines[idx].Quantity = commerce.ClampQuantity(quantity, stock)
		current.Lines[idx].UpdatedAt = s.now()
		if err := s.save(ctx, key, &current); err != nil {
			return err
		}
		cart = current
		return nil
	})
	if err != nil {
		return CartView{}, s.mapError(ctx, "cart.update_failed", err)
	}
	return s.view(cart), nil
}

func (s *cartService) RemoveItem(ctx context.Context, session Session, lineID string) (CartView, error) {
	key := session.CartKey()
	if key == "" {
		return CartView{}, ErrSessionRequired
	}
	lineID = strings.TrimSpace(lineID)

	var cart Cart
	err := runInTx(ctx, s.tx, func(ctx context.Context) error {
		current, err := s.load(ctx, key, session)
		if err != nil {
			return err
		}
		idx := lineIndex(current.Lines, lineID)
		if idx < 0 {
			return ErrCartLineNotFound
		}
		current.Lines = append(current.Lines[:idx:idx], current.Lines[idx+1:]...)
		if err := s.save(ctx, key, &current); err != nil {
			return err
		}
		cart = current
		return nil
	})
	if err != nil {
		return CartView{}, s.mapError(ctx, "cart.remove_failed", err)
	}
	return s.view(cart), nil
}

func (s *cartService) Clear(ctx context.Context, session Session) error {
	key := session.CartKey()
	if key == "" {
		return ErrSessionRequired
	}
	if err := s.carts.Delete(ctx, key); err != nil && !isRepoNotFound(err) {
		return s.mapError(ctx, "cart.clear_failed", err)
	}
	return nil
}

// MergeGuestCart folds the guest cart into the signed-in customer's cart and deletes it.
// Lines for the same product and variant add their quantities, re-clamped to current stock.
// Lines whose product is no longer available are dropped.
func (s *cartService) MergeGuestCart(ctx context.Context, session Session, guestID string) (CartView, error) {
	if session.IsGuest() {
		return CartView{}, ErrSessionRequired
	}
	guestKey := GuestCartKey(sanitizeGuestID(guestID))
	if guestKey == "" {
		return CartView{}, fmt.Errorf("%w: guest session id is required", ErrCartInvalidInput)
	}
	key := session.CartKey()

	var cart Cart
	merged := 0
	err := runInTx(ctx, s.tx, func(ctx context.Context) error {
		merged = 0
		current, err := s.load(ctx, key, session)
		if err != nil {
			return err
		}
		guest, err := s.carts.Get(ctx, guestKey)
		if err != nil {
			if isRepoNotFound(err) {
				cart = current
				return nil
			}
			return err
		}
		products := make(map[string]Product, len(guest.Lines))
		for _, line := range guest.Lines {
			if _, seen := products[line.ProductID]; seen {
				continue
			}
			if product, err := s.availableProduct(ctx, line.ProductID); err == nil {
				products[line.ProductID] = product
			} else if !errors.Is(err, ErrCartProductUnavailable) {
				return err
			}
		}
		for _, line := range guest.Lines {
			product, ok := products[line.ProductID]
			if !ok {
				continue
			}
			line.ID = s.newID()
			if current, err = s.mergeLine(current, line, product.Stock); err != nil {
				return err
			}
			merged++
		}
		if err := s.save(ctx, key, &current); err != nil {
			return err
		}
		if err := s.carts.Delete(ctx, guestKey); err != nil && !isRepoNotFound(err) {
			return err
		}
		cart = current
		return nil
	})
	if err != nil {
		return CartView{}, s.mapError(ctx, "cart.merge_failed", err)
	}
	s.logger(ctx, "cart.guest_merged", map[string]any{"cartKey": key, "guestCart": guestKey, "lines": merged})
	return s.view(cart), nil
}

// MergeLines adds a client-held cart (any of the accepted payload shapes) into the session
// cart. Unknown or unavailable products are skipped.
func (s *cartService) MergeLines(ctx context.Context, session Session, raw []byte) (CartView, error) {
	key := session.CartKey()
	if key == "" {
		return CartView{}, ErrSessionRequired
	}
	inputs, err := payload.CartLines(raw)
	if err != nil {
		return CartView{}, fmt.Errorf("%w: %v", ErrCartInvalidInput, err)
	}

	var cart Cart
	err = runInTx(ctx, s.tx, func(ctx context.Context) error {
		current, err := s.load(ctx, key, session)
		if err != nil {
			return err
		}
		type resolved struct {
			input   payload.CartLineInput
			product Product
		}
		lines := make([]resolved, 0, len(inputs))
		for _, input := range inputs {
			product, err := s.availableProduct(ctx, input.ProductID)
			if errors.Is(err, ErrCartProductUnavailable) {
				continue
			}
			if err != nil {
				return err
			}
			lines = append(lines, resolved{input: input, product: product})
		}
		for _, r := range lines {
			selection := selectionFromLabels(r.product, r.input.VariantLabels)
			line := s.newLine(r.product, r.input.VariantIndex, selection, r.input.Quantity)
			if current, err = s.mergeLine(current, line, r.product.Stock); err != nil {
				return err
			}
		}
		if err := s.save(ctx, key, &current); err != nil {
			return err
		}
		cart = current
		return nil
	})
	if err != nil {
		return CartView{}, s.mapError(ctx, "cart.merge_lines_failed", err)
	}
	return s.view(cart), nil
}

func (s *cartService) load(ctx context.Context, key string, session Session) (Cart, error) {
	cart, err := s.carts.Get(ctx, key)
	if err != nil {
		if !isRepoNotFound(err) {
			return Cart{}, err
		}
		now := s.now()
		cart = Cart{CreatedAt: now, UpdatedAt: now}
	}
	cart.ID = key
	if session.IsGuest() {
		cart.GuestID = session.GuestID
	} else {
		cart.CustomerID = session.CustomerID
		cart.GuestID = ""
	}
	if cart.Currency == "" {
		cart.Currency = s.currency
	}
	return cart, nil
}

func (s *cartService) save(ctx context.Context, key string, cart *Cart) error {
	cart.UpdatedAt = s.now()
	return s.carts.Save(ctx, key, *cart)
}

func (s *cartService) availableProduct(ctx context.Context, productID string) (Product, error) {
	product, err := s.products.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		if isRepoNotFound(err) {
			return Product{}, ErrCartProductUnavailable
		}
		return Product{}, err
	}
	if product.Status != domain.ProductStatusPublish {
		return Product{}, ErrCartProductUnavailable
	}
	if product.Stock != nil && *product.Stock <= 0 {
		return Product{}, ErrCartProductUnavailable
	}
	return product, nil
}

// newLine prices a line. With an explicit selection every variant group contributes; otherwise
// variantIndex picks an option of the primary group only.
func (s *cartService) newLine(product Product, variantIndex int, selection map[string]int, quantity int) CartLine {
	now := s.now()
	line := CartLine{
		ID:        s.newID(),
		ProductID: product.ID,
		Name:      product.Name,
		Quantity:  quantity,
		AddedAt:   now,
		UpdatedAt: now,
	}
	if len(product.Images) > 0 {
		line.Image = product.Images[0]
	}
	if len(selection) > 0 {
		line.UnitPrice = commerce.ComputeUnitPriceForSelection(product, selection)
		line.Variants = commerce.VariantChoices(product, selection)
		return line
	}
	line.UnitPrice = commerce.ComputeUnitPrice(product, variantIndex)
	if group, ok := commerce.PrimaryVariantGroup(product); ok && len(group.Options) > 0 {
		idx := commerce.ResolveVariantIndex(group, variantIndex)
		line.Variants = []domain.VariantChoice{{Name: group.Name, Value: group.Options[idx].Label, Index: idx}}
	}
	return line
}

func (s *cartService) mergeLine(cart Cart, line CartLine, stock *int) (Cart, error) {
	lines := append([]CartLine(nil), cart.Lines...)
	for i := range lines {
		if sameLine(lines[i], line) {
			lines[i].Quantity = commerce.ClampQuantity(lines[i].Quantity+max(line.Quantity, 1), stock)
			lines[i].UpdatedAt = line.UpdatedAt
			cart.Lines = lines
			return cart, nil
		}
	}
	if len(lines) >= maxCartLines {
		return cart, fmt.Errorf("%w: cart holds at most %d lines", ErrCartInvalidInput, maxCartLines)
	}
	line.Quantity = commerce.ClampQuantity(line.Quantity, stock)
	cart.Lines = append(lines, line)
	return cart, nil
}

func (s *cartService) view(cart Cart) CartView {
	return CartView{Cart: cart, Estimate: s.estimate(cart.Lines, 0)}
}

func (s *cartService) estimate(lines []CartLine, discount int64) CartEstimate {
	priced := commerce.CartLines(lines)
	subtotal := commerce.ComputeOrderTotals(priced, 0, 0, 0).Subtotal
	var shipping int64
	if len(lines) > 0 {
		shipping = s.shipping(subtotal)
	}
	totals := commerce.ComputeOrderTotals(priced, shipping, discount, 0)
	count := 0
	for _, line := range lines {
		count += max(line.Quantity, 1)
	}
	return CartEstimate{
		Subtotal:    totals.Subtotal,
		ShippingFee: totals.ShippingFee,
		Discount:    totals.Discount,
		Tax:         totals.Tax,
		Total:       totals.Total,
		ItemCount:   count,
	}
}

func (s *cartService) mapError(ctx context.Context, event string, err error) error {
	switch {
	case errors.Is(err, ErrCartInvalidInput),
		errors.Is(err, ErrCartLineNotFound),
		errors.Is(err, ErrCartProductUnavailable),
		errors.Is(err, ErrSessionRequired):
		return err
	case isRepoConflict(err):
		return ErrCartConflict
	}
	s.logger(ctx, event, map[string]any{"error": err.Error()})
	return fmt.Errorf("%w: %v", ErrCartUnavailable, err)
}

func lineIndex(lines []CartLine, lineID string) int {
	for i, line := range lines {
		if line.ID == lineID {
			return i
		}
	}
	return -1
}

func sameLine(a, b CartLine) bool {
	if a.ProductID != b.ProductID || len(a.Variants) != len(b.Variants) {
		return false
	}
	for i := range a.Variants {
		if !strings.EqualFold(a.Variants[i].Name, b.Variants[i].Name) || a.Variants[i].Index != b.Variants[i].Index {
			return false
		}
	}
	return true
}

// selectionFromLabels maps option labels sent by older clients onto option indexes.
func selectionFromLabels(product Product, labels map[string]string) map[string]int {
	if len(labels) == 0 {
		return nil
	}
	selection := make(map[string]int, len(labels))
	for _, group := range product.VariantGroups {
		label, ok := labels[strings.ToLower(group.Name)]
		if !ok {
			continue
		}
		for i, opt := range group.Options {
			if strings.EqualFold(opt.Label, strings.TrimSpace(label)) {
				selection[group.Name] = i
				break
			}
		}
	}
	if len(selection) == 0 {
		return nil
	}
	return selection
}
