package domain

import (
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

// Limits on order composition.
const (
	MaxOrderLines       = 100
	MaxLineQuantity     = 1000
	DefaultPageSize     = 20
	MaxPageSize         = 100
	LowStockThreshold   = 5
	DefaultTopProducts  = 10
	MaxTopProducts      = 50
	DefaultAnalyticsAge = 365 * 24 * time.Hour
)

var phonePattern = regexp.MustCompile(`^\+?[0-9][0-9 \-]{5,18}[0-9]$`)

var notNilUUID = validation.By(func(value any) error {
	if id, ok := value.(uuid.UUID); ok && id == uuid.Nil {
		return validation.NewError("validation_required", "cannot be blank")
	}
	return nil
})

var positiveMoney = validation.By(func(value any) error {
	switch m := value.(type) {
	case Money:
		if !m.IsPositive() {
			return validation.NewError("validation_min", "must be greater than 0")
		}
	case *Money:
		if m != nil && !m.IsPositive() {
			return validation.NewError("validation_min", "must be greater than 0")
		}
	}
	return nil
})

// OrderLine is one requested product and quantity.
type OrderLine struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
}

func (l OrderLine) Validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.ProductID, notNilUUID),
		validation.Field(&l.Quantity, validation.Required, validation.Min(1), validation.Max(MaxLineQuantity)),
	)
}

// PlaceOrderInput is what checkout accepts. There is deliberately no total field.
type PlaceOrderInput struct {
	CustomerName  string      `json:"customerName"`
	CustomerPhone string      `json:"customerPhone"`
	CustomerEmail string      `json:"customerEmail"`
	Address       string      `json:"address"`
	City          string      `json:"city"`
	PostalCode    string      `json:"postalCode"`
	Notes         string      `json:"notes"`
	Items         []OrderLine `json:"items"`
	UserID        *uuid.UUID  `json:"-"`
}

func (in PlaceOrderInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CustomerName, validation.Required, validation.Length(2, 120)),
		validation.Field(&in.CustomerPhone, validation.Required, validation.Match(phonePattern).Error("must be a valid phone number")),
		validation.Field(&in.CustomerEmail, is.EmailFormat),
		validation.Field(&in.Address, validation.Required, validation.Length(5, 300)),
		validation.Field(&in.City, validation.Required, validation.Length(2, 80)),
		validation.Field(&in.PostalCode, validation.Length(0, 20)),
		validation.Field(&in.Notes, validation.Length(0, 1000)),
		validation.Field(&in.Items, validation.Required, validation.Length(1, MaxOrderLines)),
	)
}

// Normalize trims free text fields.
func (in *PlaceOrderInput) Normalize() {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = NormalizePhone(in.CustomerPhone)
	in.CustomerEmail = strings.ToLower(strings.TrimSpace(in.CustomerEmail))
	in.Address = strings.TrimSpace(in.Address)
	in.City = strings.TrimSpace(in.City)
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.Notes = strings.TrimSpace(in.Notes)
}

// MergedLines sums quantities of repeated product ids, keeping first-seen order.
func (in PlaceOrderInput) MergedLines() []OrderLine {
	index := make(map[uuid.UUID]int, len(in.Items))
	merged := make([]OrderLine, 0, len(in.Items))
	for _, line := range in.Items {
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

// NormalizePhone strips spaces and dashes so lookups by phone match.
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
}

// ProductInput creates a product.
type ProductInput struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       Money     `json:"price"`
	ImageURL    string    `json:"imageUrl"`
	Stock       int       `json:"stock"`
	CategoryID  uuid.UUID `json:"categoryId"`
}

func (in ProductInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Length(0, 5000)),
		validation.Field(&in.Price, positiveMoney),
		validation.Field(&in.ImageURL, validation.Length(0, 500)),
		validation.Field(&in.Stock, validation.Min(0)),
		validation.Field(&in.CategoryID, notNilUUID),
	)
}

// ProductPatch updates a product partially; nil fields are left unchanged.
type ProductPatch struct {
	Name        *string    `json:"name"`
	Description *string    `json:"description"`
	Price       *Money     `json:"price"`
	ImageURL    *string    `json:"imageUrl"`
	Stock       *int       `json:"stock"`
	CategoryID  *uuid.UUID `json:"categoryId"`
}

func (in ProductPatch) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&in.Description, validation.Length(0, 5000)),
		validation.Field(&in.Price, positiveMoney),
		validation.Field(&in.ImageURL, validation.Length(0, 500)),
		validation.Field(&in.Stock, validation.Min(0)),
		validation.Field(&in.CategoryID, notNilUUID),
	)
}

// Apply copies the set fields onto p.
func (in ProductPatch) Apply(p *Product) {
	if in.Name != nil {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.ImageURL != nil {
		p.ImageURL = *in.ImageURL
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.CategoryID != nil {
		p.CategoryID = *in.CategoryID
	}
}

// Columns lists the product columns the set fields map to.
func (in ProductPatch) Columns() []string {
	var cols []string
	if in.Name != nil {
		cols = append(cols, "name")
	}
	if in.Description != nil {
		cols = append(cols, "description")
	}
	if in.Price != nil {
		cols = append(cols, "price")
	}
	if in.ImageURL != nil {
		cols = append(cols, "image_url")
	}
	if in.Stock != nil {
		cols = append(cols, "stock")
	}
	if in.CategoryID != nil {
		cols = append(cols, "category_id")
	}
	return cols
}

// CategoryInput creates or replaces a category. An empty slug is derived from the name.
type CategoryInput struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Active      *bool  `json:"isActive"`
}

func (in CategoryInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&in.Slug, validation.Length(0, 120), validation.Match(slugPattern).Error("must contain lower-case letters, digits and dashes")),
		validation.Field(&in.Description, validation.Length(0, 1000)),
		validation.Field(&in.Icon, validation.Length(0, 200)),
	)
}

// RegisterInput creates a customer account.
type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Phone    string `json:"phone"`
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required, validation.Length(8, 128)),
		validation.Field(&in.Name, validation.Required, validation.Length(2, 120)),
		validation.Field(&in.Phone, validation.Match(phonePattern).Error("must be a valid phone number")),
	)
}

// LoginInput authenticates a user.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in LoginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Email, validation.Required, is.EmailFormat),
		validation.Field(&in.Password, validation.Required),
	)
}

// ProfileInput updates the caller's own profile; nil fields are left unchanged.
type ProfileInput struct {
	Name       *string `json:"name"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
	City       *string `json:"city"`
	PostalCode *string `json:"postalCode"`
}

func (in ProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.NilOrNotEmpty, validation.Length(2, 120)),
		validation.Field(&in.Phone, validation.Match(phonePattern).Error("must be a valid phone number")),
		validation.Field(&in.Address, validation.Length(0, 300)),
		validation.Field(&in.City, validation.Length(0, 80)),
		validation.Field(&in.PostalCode, validation.Length(0, 20)),
	)
}

// Apply copies the set fields onto u.
func (in ProfileInput) Apply(u *User) {
	if in.Name != nil {
		u.Name = strings.TrimSpace(*in.Name)
	}
	if in.Phone != nil {
		u.Phone = NormalizePhone(*in.Phone)
	}
	if in.Address != nil {
		u.Address = strings.TrimSpace(*in.Address)
	}
	if in.City != nil {
		u.City = strings.TrimSpace(*in.City)
	}
	if in.PostalCode != nil {
		u.PostalCode = strings.TrimSpace(*in.PostalCode)
	}
}
