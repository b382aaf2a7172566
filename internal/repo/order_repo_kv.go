package repo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"go-kv-commerce/internal/apperr"
	"go-kv-commerce/internal/core/kv"
	"go-kv-commerce/internal/domain"
	"go-kv-commerce/internal/perf"
	"go-kv-commerce/internal/query"
	"go-kv-commerce/internal/response"
	"go-kv-commerce/pkg/utils"
)

const orderCollection = "orders"

var orderUpdatable = map[string]struct{}{
	"status": {}, "paymentInfo": {}, "shippingAddress": {}, "billingAddress": {},
}

type OrderRepo struct {
	gw  *kv.Gateway
	log *zap.Logger
	mon *perf.Monitor
	env response.Builder
}

var _ domain.OrderRepository = (*OrderRepo)(nil)

func NewOrderRepo(gw *kv.Gateway, log *zap.Logger, mon *perf.Monitor, env response.Builder) *OrderRepo {
	return &OrderRepo{gw: gw, log: log, mon: mon, env: env}
}

func (r *OrderRepo) fail(op string, err error, ctx map[string]string) response.Envelope {
	r.log.Error("order repo operation failed", zap.String("op", op), zap.Error(err))
	return r.env.Fail(op, err, ctx)
}

func (r *OrderRepo) Create(ctx context.Context, in domain.CreateOrderInput) response.Envelope {
	const op = "order.create"
	done := track(r.mon, op)

	var fields []string
	if strings.TrimSpace(in.UserID) == "" {
		fields = append(fields, "userId is required")
	}
	if len(in.Items) == 0 {
		fields = append(fields, "items must not be empty")
	}
	for i, it := range in.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			fields = append(fields, fmt.Sprintf("items[%d].productId is required", i))
		}
		if it.Quantity <= 0 {
			fields = append(fields, fmt.Sprintf("items[%d].quantity must be positive", i))
		}
		if it.Price < 0 {
			fields = append(fields, fmt.Sprintf("items[%d].price cannot be negative", i))
		}
	}
	if in.Total < 0 {
		fields = append(fields, "total cannot be negative")
	}
	if len(fields) > 0 {
		done(false)
		return r.env.Fail(op, apperr.Validation(fields...), nil)
	}

	var subtotal float64
	for _, it := range in.Items {
		subtotal += it.Price * float64(it.Quantity)
	}
	total := in.Total
	if total == 0 {
		total = subtotal
	}

	now := time.Now().UTC()
	o := domain.Order{
		ID:              utils.NewID(),
		UserID:          in.UserID,
		Items:           in.Items,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		PaymentInfo:     in.PaymentInfo,
		Subtotal:        subtotal,
		Total:           total,
		Status:          domain.OrderStatusPending,
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := save(ctx, r.gw, orderCollection, o.ID, o); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": o.ID})
	}

	done(true)
	r.log.Info("order created",
		zap.String("id", o.ID), zap.String("userId", o.UserID), zap.Float64("total", o.Total))
	return r.env.OK(op, o)
}

func (r *OrderRepo) GetByID(ctx context.Context, id string) response.Envelope {
	const op = "order.getById"
	done := track(r.mon, op)

	if strings.TrimSpace(id) == "" {
		done(false)
		return r.env.Fail(op, apperr.Validation("id is required"), nil)
	}
	o, err := loadOne[domain.Order](ctx, r.gw, orderCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	done(true)
	if o == nil {
		return r.env.OK(op, nil)
	}
	return r.env.OK(op, o)
}

func (r *OrderRepo) List(ctx context.Context, f domain.OrderFilters, opts domain.ListOptions) response.Envelope {
	const op = "order.list"
	done := track(r.mon, op)

	orders, err := loadAll[domain.Order](ctx, r.gw, r.log, orderCollection)
	if err != nil {
		done(false)
		return r.fail(op, err, nil)
	}

	preds := []query.Predicate[domain.Order]{}
	if !opts.IncludeInactive {
		preds = append(preds, func(o domain.Order) bool { return o.IsActive })
	}
	if f.UserID != "" {
		preds = append(preds, func(o domain.Order) bool { return o.UserID == f.UserID })
	}
	if f.Status != "" {
		preds = append(preds, func(o domain.Order) bool { return o.Status == f.Status })
	}
	orders = query.Filter(orders, preds...)

	query.SortStable(orders, orderComparator(opts.SortField), sortOrder(opts.SortOrder))

	done(true)
	return r.env.OK(op, query.Paginate(orders, defaultPage(opts.Page), defaultLimit(opts.Limit)))
}

func orderComparator(field string) func(a, b domain.Order) int {
	switch field {
	case "total":
		return func(a, b domain.Order) int { return query.CompareFloats(a.Total, b.Total) }
	case "subtotal":
		return func(a, b domain.Order) int { return query.CompareFloats(a.Subtotal, b.Subtotal) }
	case "status":
		return func(a, b domain.Order) int { return query.CompareStrings(string(a.Status), string(b.Status)) }
	case "updatedAt":
		return func(a, b domain.Order) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	default:
		return func(a, b domain.Order) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}

func (r *OrderRepo) Update(ctx context.Context, id string, patch map[string]any) response.Envelope {
	const op = "order.update"
	done := track(r.mon, op)

	o, err := loadOne[domain.Order](ctx, r.gw, orderCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	if o == nil {
		done(false)
		return r.env.Fail(op, apperr.NotFound("order"), map[string]string{"id": id})
	}

	applied := 0
	var fields []string
	for k, v := range patch {
		if _, ok := orderUpdatable[k]; !ok {
			continue
		}
		switch k {
		case "status":
			if s, ok := asString(v); ok && domain.OrderStatus(s).Valid() {
				o.Status = domain.OrderStatus(s)
				applied++
			} else {
				fields = append(fields, "status must be one of pending/processing/shipped/delivered/cancelled/refunded")
			}
		case "paymentInfo":
			var pi domain.PaymentInfo
			if decodeInto(v, &pi) {
				o.PaymentInfo = pi
				applied++
			} else {
				fields = append(fields, "paymentInfo is malformed")
			}
		case "shippingAddress":
			var a domain.Address
			if decodeInto(v, &a) {
				o.ShippingAddress = a
				applied++
			} else {
				fields = append(fields, "shippingAddress is malformed")
			}
		case "billingAddress":
			var a domain.Address
			if decodeInto(v, &a) {
				o.BillingAddress = a
				applied++
			} else {
				fields = append(fields, "billingAddress is malformed")
			}
		}
	}
	if len(fields) > 0 {
		done(false)
		return r.env.Fail(op, apperr.Validation(fields...), map[string]string{"id": id})
	}
	if applied == 0 {
		done(false)
		return r.env.Fail(op, apperr.Validation("no updatable fields in patch"), map[string]string{"id": id})
	}

	o.UpdatedAt = time.Now().UTC()
	if err := save(ctx, r.gw, orderCollection, id, *o); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	done(true)
	return r.env.OK(op, o)
}

// UpdateStatus moves an order to any valid status. Transitions are
// deliberately unconstrained; there is no state machine here.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus) response.Envelope {
	const op = "order.updateStatus"
	done := track(r.mon, op)

	if !status.Valid() {
		done(false)
		return r.env.Fail(op, apperr.Validation("status must be one of pending/processing/shipped/delivered/cancelled/refunded"), map[string]string{"id": id})
	}

	o, err := loadOne[domain.Order](ctx, r.gw, orderCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	if o == nil {
		done(false)
		return r.env.Fail(op, apperr.NotFound("order"), map[string]string{"id": id})
	}

	o.Status = status
	o.UpdatedAt = time.Now().UTC()
	if err := save(ctx, r.gw, orderCollection, id, *o); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	done(true)
	r.log.Info("order status updated", zap.String("id", id), zap.String("status", string(status)))
	return r.env.OK(op, o)
}

func (r *OrderRepo) SoftDelete(ctx context.Context, id string) response.Envelope {
	const op = "order.softDelete"
	done := track(r.mon, op)

	o, err := loadOne[domain.Order](ctx, r.gw, orderCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	if o == nil {
		done(false)
		return r.env.Fail(op, apperr.NotFound("order"), map[string]string{"id": id})
	}

	now := time.Now().UTC()
	o.IsActive = false
	o.DeletedAt = &now
	o.UpdatedAt = now
	if err := save(ctx, r.gw, orderCollection, id, *o); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	done(true)
	r.log.Info("order soft-deleted", zap.String("id", id))
	return r.env.OK(op, o)
}

func (r *OrderRepo) HardDelete(ctx context.Context, id string) response.Envelope {
	const op = "order.hardDelete"
	done := track(r.mon, op)

	existed, err := remove(ctx, r.gw, orderCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	if !existed {
		done(false)
		return r.env.Fail(op, apperr.NotFound("order"), map[string]string{"id": id})
	}
	done(true)
	r.log.Warn("order hard-deleted, irreversible", zap.String("id", id))
	return r.env.OK(op, map[string]any{"deleted": true})
}

// Statistics reduces over active orders. Cancelled and refunded orders are
// excluded from revenue but still counted per status.
func (r *OrderRepo) Statistics(ctx context.Context) response.Envelope {
	const op = "order.statistics"
	done := track(r.mon, op)

	orders, err := loadAll[domain.Order](ctx, r.gw, r.log, orderCollection)
	if err != nil {
		done(false)
		return r.fail(op, err, nil)
	}

	active := query.Filter(orders, func(o domain.Order) bool { return o.IsActive })
	revenueOrders := query.Filter(active, func(o domain.Order) bool {
		return o.Status != domain.OrderStatusCancelled && o.Status != domain.OrderStatusRefunded
	})

	done(true)
	return r.env.OK(op, domain.OrderStats{
		Total:             len(active),
		TotalRevenue:      query.Sum(revenueOrders, func(o domain.Order) float64 { return o.Total }),
		AverageOrderValue: query.Mean(revenueOrders, func(o domain.Order) float64 { return o.Total }),
		ByStatus:          query.CountBy(active, func(o domain.Order) domain.OrderStatus { return o.Status }),
	})
}
