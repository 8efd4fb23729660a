package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sitesmith/api/internal/store"
	"sitesmith/api/internal/util"
)

type Exit string

const (
	ExitSaveForLater Exit = "save_for_later"
	ExitCheckoutNow  Exit = "checkout_now"
)

var (
	ErrCouponNotFound = errors.New("coupon not found")
	ErrCouponInactive = errors.New("coupon is not active")
)

// Handoff carries what the payment step needs. Its amount and order id must
// match the persisted order exactly.
type Handoff struct {
	OrderID  string  `json:"orderId"`
	Amount   int64   `json:"amount"`
	Currency string  `json:"currency"`
	Contact  Contact `json:"contact"`
}

type OrderStore interface {
	InsertOrder(ctx context.Context, order store.Order) error
	GetCoupon(ctx context.Context, code string) (store.Coupon, error)
}

type Service struct {
	store    OrderStore
	currency string
}

func NewService(st OrderStore, currency string) *Service {
	return &Service{store: st, currency: currency}
}

// Price applies a coupon to a base price. Inactive or unknown codes are
// errors; the price never goes below zero.
func Price(base int64, coupon store.Coupon) int64 {
	var total int64
	switch coupon.Type {
	case store.CouponTypePercentage:
		total = base - base*coupon.Value/100
	case store.CouponTypeFlat:
		total = base - coupon.Value
	default:
		total = base
	}
	if total < 0 {
		total = 0
	}
	return total
}

// Quote resolves a coupon code against a base price.
func (s *Service) Quote(ctx context.Context, base int64, code string) (int64, store.Coupon, error) {
	coupon, err := s.store.GetCoupon(ctx, code)
	if err != nil {
		return base, store.Coupon{}, ErrCouponNotFound
	}
	if !coupon.IsActive {
		return base, store.Coupon{}, ErrCouponInactive
	}
	return Price(base, coupon), coupon, nil
}

// Submit finishes the wizard. Both exits persist the order; only
// checkout_now produces a handoff for the payment client. Orders saved for
// later get status Pending, orders headed to payment get Pending Payment.
func (s *Service) Submit(ctx context.Context, w *Wizard, exit Exit, couponCode string) (store.Order, *Handoff, error) {
	if !w.Done() {
		return store.Order{}, nil, ErrNotFinished
	}
	contact, ok := w.Contact()
	if !ok {
		return store.Order{}, nil, ErrContactRequired
	}

	price := w.Plan().BasePrice
	appliedCoupon := ""
	if code := strings.TrimSpace(couponCode); code != "" {
		discounted, coupon, err := s.Quote(ctx, price, code)
		if err != nil {
			return store.Order{}, nil, fmt.Errorf("apply coupon: %w", err)
		}
		price = discounted
		appliedCoupon = coupon.Code
	}

	status := store.OrderStatusPending
	if exit == ExitCheckoutNow {
		status = store.OrderStatusPendingPayment
	}

	order := store.Order{
		ID:               util.NewID("ord"),
		ContactName:      contact.Name,
		ContactEmail:     contact.Email,
		ContactPhone:     contact.Phone,
		SelectedTemplate: w.Template(),
		Plan:             w.Plan().Name,
		EstimatedPrice:   price,
		Status:           status,
		AppliedCoupon:    appliedCoupon,
		Answers:          w.Answers(),
	}
	if err := s.store.InsertOrder(ctx, order); err != nil {
		return store.Order{}, nil, fmt.Errorf("persist order: %w", err)
	}

	if exit != ExitCheckoutNow {
		return order, nil, nil
	}
	return order, &Handoff{
		OrderID:  order.ID,
		Amount:   order.EstimatedPrice,
		Currency: s.currency,
		Contact:  contact,
	}, nil
}
