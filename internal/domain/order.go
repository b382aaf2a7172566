package domain

import (
	"context"
	"time"

	"go-kv-commerce/internal/response"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

type OrderItem struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
	Image     string  `json:"image,omitempty"`
}

type Address struct {
	FullName   string `json:"fullName"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type PaymentInfo struct {
	Method        string `json:"method"`
	TransactionID string `json:"transactionId,omitempty"`
	Status        string `json:"status"`
}

type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"userId"`
	Items           []OrderItem `json:"items"`
	ShippingAddress Address     `json:"shippingAddress"`
	BillingAddress  Address     `json:"billingAddress"`
	PaymentInfo     PaymentInfo `json:"paymentInfo"`
	Subtotal        float64     `json:"subtotal"`
	Total           float64     `json:"total"`
	Status          OrderStatus `json:"status"`
	IsActive        bool        `json:"isActive"`
	CreatedAt       time.Time   `json:"createdAt"`
	UpdatedAt       time.Time   `json:"updatedAt"`
	DeletedAt       *time.Time  `json:"deletedAt,omitempty"`
}

type CreateOrderInput struct {
	UserID          string      `json:"userId"`
	Items           []OrderItem `json:"items"`
	ShippingAddress Address     `json:"shippingAddress"`
	BillingAddress  Address     `json:"billingAddress"`
	PaymentInfo     PaymentInfo `json:"paymentInfo"`
	Total           float64     `json:"total"` // 0 means "use subtotal"
}

type OrderFilters struct {
	UserID string
	Status OrderStatus
}

type OrderStats struct {
	Total             int                 `json:"total"`
	TotalRevenue      float64             `json:"totalRevenue"`
	AverageOrderValue float64             `json:"averageOrderValue"`
	ByStatus          map[OrderStatus]int `json:"byStatus"`
}

type OrderRepository interface {
	Create(ctx context.Context, in CreateOrderInput) response.Envelope
	GetByID(ctx context.Context, id string) response.Envelope
	List(ctx context.Context, f OrderFilters, opts ListOptions) response.Envelope
	Update(ctx context.Context, id string, patch map[string]any) response.Envelope
	UpdateStatus(ctx context.Context, id string, status OrderStatus) response.Envelope
	SoftDelete(ctx context.Context, id string) response.Envelope
	HardDelete(ctx context.Context, id string) response.Envelope
	Statistics(ctx context.Context) response.Envelope
}
