package domain

import (
	"context"
	"time"

	"go-kv-commerce/internal/response"
)

// Review is one user's review of a product. At most one per (product, user);
// a later submission replaces the earlier one.
type Review struct {
	UserID    string    `json:"userId"`
	Rating    int       `json:"rating"` // 1..5
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Product struct {
	ID            string            `json:"id"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Price         float64           `json:"price"`
	Category      string            `json:"category"`
	Images        []string          `json:"images,omitempty"`
	Inventory     int               `json:"inventory"`
	Reviews       map[string]Review `json:"reviews,omitempty"` // keyed by user
	AverageRating float64           `json:"averageRating"`
	ReviewCount   int               `json:"reviewCount"`
	IsActive      bool              `json:"isActive"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	DeletedAt     *time.Time        `json:"deletedAt,omitempty"`
}

type CreateProductInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	Category    string   `json:"category"`
	Images      []string `json:"images"`
	Inventory   int      `json:"inventory"`
}

type ProductFilters struct {
	Category  string
	MinPrice  *float64
	MaxPrice  *float64
	Search    string // substring over name/description
	MinRating *float64
	InStock   bool
}

type ProductStats struct {
	Total          int            `json:"total"`
	AveragePrice   float64        `json:"averagePrice"`
	TotalInventory int            `json:"totalInventory"`
	ByCategory     map[string]int `json:"byCategory"`
}

type ProductRepository interface {
	Create(ctx context.Context, in CreateProductInput) response.Envelope
	GetByID(ctx context.Context, id string) response.Envelope
	List(ctx context.Context, f ProductFilters, opts ListOptions) response.Envelope
	Update(ctx context.Context, id string, patch map[string]any) response.Envelope
	SoftDelete(ctx context.Context, id string) response.Envelope
	HardDelete(ctx context.Context, id string) response.Envelope
	Statistics(ctx context.Context) response.Envelope
	AddReview(ctx context.Context, id, userID string, rating int, comment string) response.Envelope
	RemoveReview(ctx context.Context, id, userID string) response.Envelope
	AdjustInventory(ctx context.Context, id string, delta int) response.Envelope
}
