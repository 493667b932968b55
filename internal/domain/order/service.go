package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/plantshop/internal/domain/apperr"
	"github.com/xenking/plantshop/internal/domain/user"
)

// maxPlaceAttempts bounds retries after a tracking-number collision.
const maxPlaceAttempts = 5

// PlaceRequest holds the checkout details of an order.
type PlaceRequest struct {
	DeliveryAddress string
	PaymentMethod   string
}

// Service encapsulates order placement and lifecycle business logic.
type Service struct {
	orders    Repository
	tracking  *TrackingGenerator
	publisher Publisher
	cache     Cache
	now       func() time.Time

	tracer        trace.Tracer
	placed        metric.Int64Counter
	statusChanged metric.Int64Counter
}

// Option configures a Service.
type Option func(*serviceOptions)

type serviceOptions struct {
	publisher Publisher
	cache     Cache
	tracing   trace.TracerProvider
	metrics   metric.MeterProvider
	tracking  *TrackingGenerator
}

// WithPublisher announces placed orders and status changes through p.
func WithPublisher(p Publisher) Option {
	return func(o *serviceOptions) { o.publisher = p }
}

// WithCache serves tracking lookups through c.
func WithCache(c Cache) Option {
	return func(o *serviceOptions) { o.cache = c }
}

// WithTracerProvider sets the provider for order engine spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *serviceOptions) { o.tracing = tp }
}

// WithMeterProvider sets the provider for order engine counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *serviceOptions) { o.metrics = mp }
}

// WithTrackingGenerator replaces the tracking number generator.
func WithTrackingGenerator(g *TrackingGenerator) Option {
	return func(o *serviceOptions) { o.tracking = g }
}

// NewService creates an order Service backed by orders.
func NewService(orders Repository, opts ...Option) *Service {
	o := serviceOptions{
		publisher: nopPublisher{},
		cache:     nopCache{},
		tracing:   tracenoop.NewTracerProvider(),
		metrics:   metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.tracking == nil {
		o.tracking = NewTrackingGenerator()
	}

	const scope = "github.com/xenking/plantshop/internal/domain/order"
	meter := o.metrics.Meter(scope)
	placed, err := meter.Int64Counter("shop.orders.placed",
		metric.WithDescription("Orders created from carts"))
	if err != nil {
		otel.Handle(err)
	}
	statusChanged, err := meter.Int64Counter("shop.orders.status_changed",
		metric.WithDescription("Order status transitions"))
	if err != nil {
		otel.Handle(err)
	}

	return &Service{
		orders:        orders,
		tracking:      o.tracking,
		publisher:     o.publisher,
		cache:         o.cache,
		now:           time.Now,
		tracer:        o.tracing.Tracer(scope),
		placed:        placed,
		statusChanged: statusChanged,
	}
}

// Place converts the actor's cart into an order. Reading the cart, writing
// the order and clearing the cart happen in one unit of work: a concurrent
// Place for the same user either finds the cart already empty or runs
// entirely before or after this one.
func (s *Service) Place(ctx context.Context, actor Actor, req PlaceRequest) (_ *Order, rerr error) {
	if actor == nil || actor.Subject() == "" {
		return nil, ErrUnauthenticated
	}
	address := strings.TrimSpace(req.DeliveryAddress)
	payment := strings.TrimSpace(req.PaymentMethod)
	if address == "" || payment == "" {
		return nil, ErrDetailsRequired
	}

	ctx, span := s.tracer.Start(ctx, "order.Place",
		trace.WithAttributes(attribute.String("user.id", actor.Subject())))
	defer func() { endSpan(span, rerr) }()

	lg := zctx.From(ctx)
	var (
		placed *Order
		err    error
	)
	for attempt := 1; ; attempt++ {
		placed, err = s.placeOnce(ctx, actor.Subject(), address, payment)
		if err == nil {
			break
		}
		if errors.Is(err, ErrTrackingConflict) && attempt < maxPlaceAttempts {
			lg.Warn("Tracking number collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		switch {
		case errors.Is(err, ErrEmptyCart):
			return nil, ErrEmptyCart
		case errors.Is(err, user.ErrNotFound):
			// Token outlived its user.
			return nil, ErrUnauthenticated
		default:
			return nil, apperr.Persistence(err, "order-create-failed")
		}
	}

	span.SetAttributes(attribute.String("order.id", placed.ID))
	s.placed.Add(ctx, 1)
	lg.Info("Order placed",
		zap.String("order_id", placed.ID),
		zap.String("user_id", placed.UserID),
		zap.String("tracking_number", placed.TrackingNumber),
		zap.Stringer("total", placed.Total),
		zap.Int("lines", len(placed.Items)),
	)

	if err := s.publisher.OrderPlaced(ctx, placed); err != nil {
		lg.Warn("Publish order placed", zap.String("order_id", placed.ID), zap.Error(err))
	}
	return placed, nil
}

func (s *Service) placeOnce(ctx context.Context, userID, address, payment string) (*Order, error) {
	var placed *Order
	err := s.orders.WithinTx(ctx, func(ctx context.Context, tx Tx) error {
		customer, err := tx.LockCustomer(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "lock customer")
		}

		lines, err := tx.CartLines(ctx, userID)
		if err != nil {
			return errors.Wrap(err, "load cart")
		}
		if len(lines) == 0 {
			return ErrEmptyCart
		}

		// Prices are the ones read above: later catalog edits never reach
		// the stored total or lines.
		o := &Order{
			ID:              uuid.NewString(),
			UserID:          customer.ID,
			UserEmail:       customer.Email,
			UserName:        customer.Name,
			Items:           make([]Line, 0, len(lines)),
			Status:          StatusProcessing,
			CreatedAt:       s.now().UTC(),
			DeliveryAddress: address,
			PaymentMethod:   payment,
			TrackingNumber:  s.tracking.Next(),
		}
		total := decimal.Zero
		for _, l := range lines {
			o.Items = append(o.Items, Line{
				ID:        uuid.NewString(),
				ProductID: l.ProductID,
				Name:      l.Name,
				Price:     l.Price,
				Quantity:  l.Quantity,
				Image:     l.Image,
			})
			total = total.Add(l.Subtotal())
		}
		o.Total = total

		if err := tx.Insert(ctx, o); err != nil {
			return errors.Wrap(err, "insert order")
		}
		if _, err := tx.ClearCart(ctx, userID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		placed = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// List returns every order for the admin, and the actor's own orders for
// anyone else.
func (s *Service) List(ctx context.Context, actor Actor) ([]Order, error) {
	if actor == nil || actor.Subject() == "" {
		return nil, ErrUnauthenticated
	}
	owner := actor.Subject()
	if actor.IsAdmin() {
		owner = ""
	}
	orders, err := s.orders.List(ctx, owner)
	if err != nil {
		return nil, apperr.Persistence(err, "orders-fetch-failed")
	}
	return orders, nil
}

// ListOwn returns the actor's own orders regardless of role.
func (s *Service) ListOwn(ctx context.Context, actor Actor) ([]Order, error) {
	if actor == nil || actor.Subject() == "" {
		return nil, ErrUnauthenticated
	}
	orders, err := s.orders.List(ctx, actor.Subject())
	if err != nil {
		return nil, apperr.Persistence(err, "my-orders-fetch-failed")
	}
	return orders, nil
}

// UpdateStatus moves an order to the status named by raw. Only the admin may
// call it. An unknown status or a forbidden transition leaves the order
// untouched.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, orderID, raw string) (_ *Order, rerr error) {
	if actor == nil || actor.Subject() == "" {
		return nil, ErrUnauthenticated
	}
	if !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	next, err := ParseStatus(raw)
	if err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "order.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", orderID),
		attribute.String("order.status", string(next)),
	))
	defer func() { endSpan(span, rerr) }()

	var prev Status
	updated, err := s.orders.UpdateStatus(ctx, orderID, func(current *Order) (Status, error) {
		prev = current.Status
		if !CanTransition(current.Status, next) {
			return "", ErrInvalidTransition
		}
		return next, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		return nil, ErrNotFound
	case errors.Is(err, ErrInvalidTransition):
		return nil, ErrInvalidTransition
	default:
		return nil, apperr.Persistence(err, "order-status-update-failed")
	}
	if prev == next {
		return updated, nil
	}

	lg := zctx.From(ctx)
	s.statusChanged.Add(ctx, 1, metric.WithAttributes(attribute.String("status", string(next))))
	lg.Info("Order status changed",
		zap.String("order_id", updated.ID),
		zap.String("from", string(prev)),
		zap.String("to", string(next)),
	)
	if err := s.cache.Set(ctx, updated); err != nil {
		lg.Warn("Refresh tracking cache", zap.String("order_id", updated.ID), zap.Error(err))
		if err := s.cache.Delete(ctx, updated.TrackingNumber); err != nil {
			lg.Warn("Invalidate tracking cache", zap.String("order_id", updated.ID), zap.Error(err))
		}
	}
	if err := s.publisher.StatusChanged(ctx, updated, prev); err != nil {
		lg.Warn("Publish status change", zap.String("order_id", updated.ID), zap.Error(err))
	}
	return updated, nil
}

// Track returns the order with the given tracking number if the actor owns
// it or is the admin. Other callers get ErrNotFound.
func (s *Service) Track(ctx context.Context, actor Actor, trackingNumber string) (*Order, error) {
	if actor == nil || actor.Subject() == "" {
		return nil, ErrUnauthenticated
	}
	lg := zctx.From(ctx)

	o, err := s.cache.Get(ctx, trackingNumber)
	if err != nil {
		lg.Warn("Read tracking cache", zap.String("tracking_number", trackingNumber), zap.Error(err))
		o = nil
	}
	if o == nil {
		o, err = s.orders.GetByTracking(ctx, trackingNumber)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, apperr.Persistence(err, "order-track-failed")
		}
		if err := s.cache.Add(ctx, o); err != nil {
			lg.Warn("Fill tracking cache", zap.String("tracking_number", trackingNumber), zap.Error(err))
		}
	}

	if !actor.IsAdmin() && o.UserID != actor.Subject() {
		return nil, ErrNotFound
	}
	return o, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperr.ReasonOf(err, "internal-error"))
	}
	span.End()
}

type nopPublisher struct{}

func (nopPublisher) OrderPlaced(context.Context, *Order) error           { return nil }
func (nopPublisher) StatusChanged(context.Context, *Order, Status) error { return nil }

type nopCache struct{}

func (nopCache) Get(context.Context, string) (*Order, error) { return nil, nil }
func (nopCache) Add(context.Context, *Order) error           { return nil }
func (nopCache) Set(context.Context, *Order) error           { return nil }
func (nopCache) Delete(context.Context, string) error        { return nil }
