package repo

import (
	"context"
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

const productCollection = "products"

var productUpdatable = map[string]struct{}{
	"name": {}, "description": {}, "price": {}, "category": {},
	"images": {}, "inventory": {}, "isActive": {},
}

type ProductRepo struct {
	gw  *kv.Gateway
	log *zap.Logger
	mon *perf.Monitor
	env response.Builder
}

var _ domain.ProductRepository = (*ProductRepo)(nil)

func NewProductRepo(gw *kv.Gateway, log *zap.Logger, mon *perf.Monitor, env response.Builder) *ProductRepo {
	return &ProductRepo{gw: gw, log: log, mon: mon, env: env}
}

func (r *ProductRepo) fail(op string, err error, ctx map[string]string) response.Envelope {
	r.log.Error("product repo operation failed", zap.String("op", op), zap.Error(err))
	return r.env.Fail(op, err, ctx)
}

func (r *ProductRepo) Create(ctx context.Context, in domain.CreateProductInput) response.Envelope {
	const op = "product.create"
	done := track(r.mon, op)

	var fields []string
	if strings.TrimSpace(in.Name) == "" {
		fields = append(fields, "name is required")
	}
	if in.Price < 0 {
		fields = append(fields, "price cannot be negative")
	}
	if in.Inventory < 0 {
		fields = append(fields, "inventory cannot be negative")
	}
	if len(fields) > 0 {
		done(false)
		return r.env.Fail(op, apperr.Validation(fields...), nil)
	}

	now := time.Now().UTC()
	p := domain.Product{
		ID:          utils.NewID(),
		Name:        strings.TrimSpace(in.Name),
		Description: in.Description,
		Price:       in.Price,
		Category:    in.Category,
		Images:      in.Images,
		Inventory:   in.Inventory,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := save(ctx, r.gw, productCollection, p.ID, p); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": p.ID})
	}

	done(true)
	r.log.Info("product created", zap.String("id", p.ID), zap.String("name", p.Name))
	return r.env.OK(op, p)
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) response.Envelope {
	const op = "product.getById"
	done := track(r.mon, op)

	if strings.TrimSpace(id) == "" {
		done(false)
		return r.env.Fail(op, apperr.Validation("id is required"), nil)
	}
	p, err := loadOne[domain.Product](ctx, r.gw, productCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	done(true)
	if p == nil {
		return r.env.OK(op, nil)
	}
	return r.env.OK(op, p)
}

func (r *ProductRepo) List(ctx context.Context, f domain.ProductFilters, opts domain.ListOptions) response.Envelope {
	const op = "product.list"
	done := track(r.mon, op)

	products, err := loadAll[domain.Product](ctx, r.gw, r.log, productCollection)
	if err != nil {
		done(false)
		return r.fail(op, err, nil)
	}

	preds := []query.Predicate[domain.Product]{}
	if !opts.IncludeInactive {
		preds = append(preds, func(p domain.Product) bool { return p.IsActive })
	}
	if f.Category != "" {
		preds = append(preds, func(p domain.Product) bool { return p.Category == f.Category })
	}
	if f.MinPrice != nil {
		preds = append(preds, func(p domain.Product) bool { return p.Price >= *f.MinPrice })
	}
	if f.MaxPrice != nil {
		preds = append(preds, func(p domain.Product) bool { return p.Price <= *f.MaxPrice })
	}
	if f.MinRating != nil {
		preds = append(preds, func(p domain.Product) bool { return p.AverageRating >= *f.MinRating })
	}
	if f.InStock {
		preds = append(preds, func(p domain.Product) bool { return p.Inventory > 0 })
	}
	if f.Search != "" {
		preds = append(preds, func(p domain.Product) bool {
			return query.ContainsFold(p.Name, f.Search) || query.ContainsFold(p.Description, f.Search)
		})
	}
	products = query.Filter(products, preds...)

	query.SortStable(products, productComparator(opts.SortField), sortOrder(opts.SortOrder))

	done(true)
	return r.env.OK(op, query.Paginate(products, defaultPage(opts.Page), defaultLimit(opts.Limit)))
}

func productComparator(field string) func(a, b domain.Product) int {
	switch field {
	case "name":
		return func(a, b domain.Product) int { return query.CompareStrings(a.Name, b.Name) }
	case "price":
		return func(a, b domain.Product) int { return query.CompareFloats(a.Price, b.Price) }
	case "category":
		return func(a, b domain.Product) int { return query.CompareStrings(a.Category, b.Category) }
	case "averageRating":
		return func(a, b domain.Product) int { return query.CompareFloats(a.AverageRating, b.AverageRating) }
	case "inventory":
		return func(a, b domain.Product) int { return query.CompareFloats(float64(a.Inventory), float64(b.Inventory)) }
	case "updatedAt":
		return func(a, b domain.Product) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	default:
		return func(a, b domain.Product) int { return a.CreatedAt.Compare(b.CreatedAt) }
	}
}

func (r *ProductRepo) Update(ctx context.Context, id string, patch map[string]any) response.Envelope {
	const op = "product.update"
	done := track(r.mon, op)

	p, err := loadOne[domain.Product](ctx, r.gw, productCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	if p == nil {
		done(false)
		return r.env.Fail(op, apperr.NotFound("product"), map[string]string{"id": id})
	}

	applied := 0
	var fields []string
	for k, v := range patch {
		if _, ok := productUpdatable[k]; !ok {
			continue
		}
		switch k {
		case "name":
			if s, ok := asString(v); ok && strings.TrimSpace(s) != "" {
				p.Name = strings.TrimSpace(s)
				applied++
			} else {
				fields = append(fields, "name must be a non-empty string")
			}
		case "description":
			if s, ok := asString(v); ok {
				p.Description = s
				applied++
			} else {
				fields = append(fields, "description must be a string")
			}
		case "price":
			if n, ok := asFloat(v); ok && n >= 0 {
				p.Price = n
				applied++
			} else {
				fields = append(fields, "price must be a non-negative number")
			}
		case "category":
			if s, ok := asString(v); ok {
				p.Category = s
				applied++
			} else {
				fields = append(fields, "category must be a string")
			}
		case "images":
			var imgs []string
			if decodeInto(v, &imgs) {
				p.Images = imgs
				applied++
			} else {
				fields = append(fields, "images must be a list of strings")
			}
		case "inventory":
			if n, ok := asInt(v); ok && n >= 0 {
				p.Inventory = n
				applied++
			} else {
				fields = append(fields, "inventory must be a non-negative integer")
			}
		case "isActive":
			if b, ok := asBool(v); ok {
				p.IsActive = b
				if b {
					p.DeletedAt = nil
				}
				applied++
			} else {
				fields = append(fields, "isActive must be a boolean")
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

	p.UpdatedAt = time.Now().UTC()
	if err := save(ctx, r.gw, productCollection, id, *p); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	done(true)
	return r.env.OK(op, p)
}

func (r *ProductRepo) SoftDelete(ctx context.Context, id string) response.Envelope {
	const op = "product.softDelete"
	done := track(r.mon, op)

	p, err := loadOne[domain.Product](ctx, r.gw, productCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	if p == nil {
		done(false)
		return r.env.Fail(op, apperr.NotFound("product"), map[string]string{"id": id})
	}

	now := time.Now().UTC()
	p.IsActive = false
	p.DeletedAt = &now
	p.UpdatedAt = now
	if err := save(ctx, r.gw, productCollection, id, *p); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	done(true)
	r.log.Info("product soft-deleted", zap.String("id", id))
	return r.env.OK(op, p)
}

func (r *ProductRepo) HardDelete(ctx context.Context, id string) response.Envelope {
	const op = "product.hardDelete"
	done := track(r.mon, op)

	existed, err := remove(ctx, r.gw, productCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	if !existed {
		done(false)
		return r.env.Fail(op, apperr.NotFound("product"), map[string]string{"id": id})
	}
	done(true)
	r.log.Warn("product hard-deleted, irreversible", zap.String("id", id))
	return r.env.OK(op, map[string]any{"deleted": true})
}

func (r *ProductRepo) Statistics(ctx context.Context) response.Envelope {
	const op = "product.statistics"
	done := track(r.mon, op)

	products, err := loadAll[domain.Product](ctx, r.gw, r.log, productCollection)
	if err != nil {
		done(false)
		return r.fail(op, err, nil)
	}

	active := query.Filter(products, func(p domain.Product) bool { return p.IsActive })

	done(true)
	return r.env.OK(op, domain.ProductStats{
		Total:          len(active),
		AveragePrice:   query.Mean(active, func(p domain.Product) float64 { return p.Price }),
		TotalInventory: int(query.Sum(active, func(p domain.Product) float64 { return float64(p.Inventory) })),
		ByCategory:     query.CountBy(active, func(p domain.Product) string { return p.Category }),
	})
}

// AddReview upserts the user's review; a second submission replaces the
// first. Rating aggregates are recomputed from the full review set.
func (r *ProductRepo) AddReview(ctx context.Context, id, userID string, rating int, comment string) response.Envelope {
	const op = "product.addReview"
	done := track(r.mon, op)

	var fields []string
	if strings.TrimSpace(userID) == "" {
		fields = append(fields, "userId is required")
	}
	if rating < 1 || rating > 5 {
		fields = append(fields, "rating must be between 1 and 5")
	}
	if len(fields) > 0 {
		done(false)
		return r.env.Fail(op, apperr.Validation(fields...), map[string]string{"id": id})
	}

	p, err := loadOne[domain.Product](ctx, r.gw, productCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	if p == nil {
		done(false)
		return r.env.Fail(op, apperr.NotFound("product"), map[string]string{"id": id})
	}

	if p.Reviews == nil {
		p.Reviews = make(map[string]domain.Review)
	}
	p.Reviews[userID] = domain.Review{
		UserID:    userID,
		Rating:    rating,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}
	recomputeRating(p)

	p.UpdatedAt = time.Now().UTC()
	if err := save(ctx, r.gw, productCollection, id, *p); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	done(true)
	return r.env.OK(op, p)
}

func (r *ProductRepo) RemoveReview(ctx context.Context, id, userID string) response.Envelope {
	const op = "product.removeReview"
	done := track(r.mon, op)

	p, err := loadOne[domain.Product](ctx, r.gw, productCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	if p == nil {
		done(false)
		return r.env.Fail(op, apperr.NotFound("product"), map[string]string{"id": id})
	}
	if _, ok := p.Reviews[userID]; !ok {
		done(false)
		return r.env.Fail(op, apperr.NotFound("review"), map[string]string{"id": id})
	}

	delete(p.Reviews, userID)
	recomputeRating(p)

	p.UpdatedAt = time.Now().UTC()
	if err := save(ctx, r.gw, productCollection, id, *p); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	done(true)
	return r.env.OK(op, p)
}

func recomputeRating(p *domain.Product) {
	p.ReviewCount = len(p.Reviews)
	if p.ReviewCount == 0 {
		p.AverageRating = 0
		return
	}
	var sum float64
	for _, rev := range p.Reviews {
		sum += float64(rev.Rating)
	}
	p.AverageRating = query.Round1(sum / float64(p.ReviewCount))
}

// AdjustInventory applies a signed stock delta; the result may not go
// negative.
func (r *ProductRepo) AdjustInventory(ctx context.Context, id string, delta int) response.Envelope {
	const op = "product.adjustInventory"
	done := track(r.mon, op)

	p, err := loadOne[domain.Product](ctx, r.gw, productCollection, id)
	if err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	if p == nil {
		done(false)
		return r.env.Fail(op, apperr.NotFound("product"), map[string]string{"id": id})
	}

	next := p.Inventory + delta
	if next < 0 {
		done(false)
		return r.env.Fail(op, apperr.Validation("inventory cannot go negative"), map[string]string{"id": id})
	}
	p.Inventory = next
	p.UpdatedAt = time.Now().UTC()
	if err := save(ctx, r.gw, productCollection, id, *p); err != nil {
		done(false)
		return r.fail(op, err, map[string]string{"id": id})
	}
	done(true)
	return r.env.OK(op, p)
}
