package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// User is a customer or admin account. Users are never hard deleted.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Email        string    `bun:"email,notnull,unique" json:"email"`
	PasswordHash string    `bun:"password_hash,notnull" json:"-"`
	Name         string    `bun:"name,notnull" json:"name"`
	Phone        string    `bun:"phone" json:"phone"`
	Role         Role      `bun:"role,notnull" json:"role"`
	Address      string    `bun:"address" json:"address,omitempty"`
	City         string    `bun:"city" json:"city,omitempty"`
	PostalCode   string    `bun:"postal_code" json:"postalCode,omitempty"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt    time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// Category groups products. The slug is unique and used in catalog URLs.
type Category struct {
	bun.BaseModel `bun:"table:categories,alias:c"`

	ID          uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Slug        string    `bun:"slug,notnull,unique" json:"slug"`
	Description string    `bun:"description" json:"description,omitempty"`
	Icon        string    `bun:"icon" json:"icon,omitempty"`
	Status      Lifecycle `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// Product is a catalog entry. Stock never goes below zero; inactive products are
// soft deleted and hidden from the storefront.
type Product struct {
	bun.BaseModel `bun:"table:products,alias:p"`

	ID          uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	Description string    `bun:"description" json:"description"`
	Price       Money     `bun:"price,type:decimal(12,2),notnull" json:"price"`
	ImageURL    string    `bun:"image_url" json:"imageUrl,omitempty"`
	Stock       int       `bun:"stock,notnull" json:"stock"`
	CategoryID  uuid.UUID `bun:"category_id,type:uuid,notnull" json:"categoryId"`
	Category    *Category `bun:"rel:belongs-to,join:category_id=id" json:"category,omitempty"`
	Status      Lifecycle `bun:"status,notnull" json:"status"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

func (p *Product) InStock() bool { return p.Stock > 0 }

// Order is a cash-on-delivery order. Total is computed server side from the item
// snapshots and never taken from the client.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID            uuid.UUID   `bun:"id,pk,type:uuid" json:"id"`
	UserID        *uuid.UUID  `bun:"user_id,type:uuid" json:"userId,omitempty"`
	CustomerName  string      `bun:"customer_name,notnull" json:"customerName"`
	CustomerPhone string      `bun:"customer_phone,notnull" json:"customerPhone"`
	CustomerEmail string      `bun:"customer_email" json:"customerEmail,omitempty"`
	Address       string      `bun:"address,notnull" json:"address"`
	City          string      `bun:"city,notnull" json:"city"`
	PostalCode    string      `bun:"postal_code" json:"postalCode,omitempty"`
	Notes         string      `bun:"notes" json:"notes,omitempty"`
	Total         Money       `bun:"total,type:decimal(12,2),notnull" json:"total"`
	Status        OrderStatus `bun:"status,notnull" json:"status"`
	PaymentMethod string      `bun:"payment_method,notnull" json:"paymentMethod"`
	Items         []OrderItem `bun:"rel:has-many,join:id=order_id" json:"items"`
	CreatedAt     time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt     time.Time   `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// PaymentCashOnDelivery is the only payment method.
const PaymentCashOnDelivery = "cod"

// OrderItem snapshots the product name and price at purchase time.
type OrderItem struct {
	bun.BaseModel `bun:"table:order_items,alias:oi"`

	ID           uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	OrderID      uuid.UUID `bun:"order_id,type:uuid,notnull" json:"orderId"`
	ProductID    uuid.UUID `bun:"product_id,type:uuid,notnull" json:"productId"`
	ProductName  string    `bun:"product_name,notnull" json:"productName"`
	ProductPrice Money     `bun:"product_price,type:decimal(12,2),notnull" json:"productPrice"`
	Quantity     int       `bun:"quantity,notnull" json:"quantity"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}

func (i OrderItem) Subtotal() Money { return i.ProductPrice.Mul(i.Quantity) }

// Wishlist marks a product as a user's favourite. (user_id, product_id) is unique.
type Wishlist struct {
	bun.BaseModel `bun:"table:wishlists,alias:w"`

	ID        uuid.UUID `bun:"id,pk,type:uuid" json:"id"`
	UserID    uuid.UUID `bun:"user_id,type:uuid,notnull,unique:wishlists_user_product" json:"userId"`
	ProductID uuid.UUID `bun:"product_id,type:uuid,notnull,unique:wishlists_user_product" json:"productId"`
	Product   *Product  `bun:"rel:belongs-to,join:product_id=id" json:"product,omitempty"`
	CreatedAt time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"createdAt"`
}
