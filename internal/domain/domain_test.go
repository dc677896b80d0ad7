package domain

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoneyArithmeticAndJSON(t *testing.T) {
	price := MustMoney("850")
	total := price.Mul(2)
	assert.Equal(t, "1700.00", total.String())

	data, err := json.Marshal(struct {
		Total Money `json:"total"`
	}{total})
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":"1700.00"}`, string(data))

	var decoded struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.5","b":3}`), &decoded))
	assert.Equal(t, "12.50", decoded.A.String())
	assert.Equal(t, "3.00", decoded.B.String())

	assert.Equal(t, "0.33", MustMoney("1").Div(3).String())
	assert.True(t, MustMoney("0").Div(0).IsZero())
}

func TestMoneyScan(t *testing.T) {
	tests := []struct {
		name string
		src  any
		want string
	}{
		{"nil", nil, "0.00"},
		{"int", int64(42), "42.00"},
		{"float", 19.999, "20.00"},
		{"bytes", []byte("7.10"), "7.10"},
		{"string", "1700", "1700.00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Money
			require.NoError(t, m.Scan(tt.src))
			assert.Equal(t, tt.want, m.String())
		})
	}

	var m Money
	assert.Error(t, m.Scan(true))
	assert.Error(t, m.Scan("abc"))
}

func TestOrderStatusTransitions(t *testing.T) {
	allowed := map[OrderStatus][]OrderStatus{
		OrderPending:   {OrderConfirmed, OrderCancelled},
		OrderConfirmed: {OrderDelivered},
	}
	for _, from := range OrderStatuses() {
		for _, to := range OrderStatuses() {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			assert.Equalf(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
	assert.True(t, OrderDelivered.Terminal())
	assert.True(t, OrderCancelled.Terminal())
	assert.False(t, OrderPending.Terminal())
	assert.False(t, OrderCancelled.CountsTowardsRevenue())

	s, ok := ParseOrderStatus(" Confirmed ")
	assert.True(t, ok)
	assert.Equal(t, OrderConfirmed, s)
	_, ok = ParseOrderStatus("shipped")
	assert.False(t, ok)
}

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Wood & Bamboo Crafts": "wood-bamboo-crafts",
		"  Pottery  ":          "pottery",
		"Brass--Work 2":        "brass-work-2",
		"!!!":                  "",
	}
	for in, want := range tests {
		assert.Equal(t, want, Slugify(in), in)
		if want != "" {
			assert.True(t, ValidSlug(want))
		}
	}
	assert.False(t, ValidSlug("Bad Slug"))
}

func validOrder() PlaceOrderInput {
	return PlaceOrderInput{
		CustomerName:  "Asha Devi",
		CustomerPhone: "+91 98765-43210",
		Address:       "12 Temple Road",
		City:          "Jaipur",
		Items:         []OrderLine{{ProductID: uuid.New(), Quantity: 2}},
	}
}

func TestPlaceOrderInputValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PlaceOrderInput)
		field  string
	}{
		{"valid", func(*PlaceOrderInput) {}, ""},
		{"missing name", func(in *PlaceOrderInput) { in.CustomerName = "" }, "customerName"},
		{"bad phone", func(in *PlaceOrderInput) { in.CustomerPhone = "call me" }, "customerPhone"},
		{"bad email", func(in *PlaceOrderInput) { in.CustomerEmail = "nope" }, "customerEmail"},
		{"no items", func(in *PlaceOrderInput) { in.Items = nil }, "items"},
		{"zero quantity", func(in *PlaceOrderInput) { in.Items[0].Quantity = 0 }, "items.0.quantity"},
		{"huge quantity", func(in *PlaceOrderInput) { in.Items[0].Quantity = MaxLineQuantity + 1 }, "items.0.quantity"},
		{"nil product", func(in *PlaceOrderInput) { in.Items[0].ProductID = uuid.Nil }, "items.0.productId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validOrder()
			tt.mutate(&in)
			err := FromValidation(in.Validate())
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var gerr *goerrors.Error
			require.True(t, errors.As(err, &gerr))
			assert.Equal(t, goerrors.CategoryValidation, gerr.Category)
			assert.Contains(t, gerr.ValidationMap(), tt.field)
		})
	}
}

func TestMergedLines(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	in := PlaceOrderInput{Items: []OrderLine{{a, 1}, {b, 2}, {a, 3}}}
	merged := in.MergedLines()
	require.Len(t, merged, 2)
	assert.Equal(t, OrderLine{a, 4}, merged[0])
	assert.Equal(t, OrderLine{b, 2}, merged[1])
}

func TestProductInputValidate(t *testing.T) {
	in := ProductInput{Name: "Clay Pot", Price: MustMoney("0"), CategoryID: uuid.New()}
	err := in.Validate()
	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Contains(t, verrs, "price")

	in.Price = MustMoney("120")
	assert.NoError(t, in.Validate())

	neg := -1
	assert.Error(t, ProductPatch{Stock: &neg}.Validate())
}

func TestProductPatchColumns(t *testing.T) {
	price := MustMoney("900")
	assert.Equal(t, []string{"price"}, ProductPatch{Price: &price}.Columns())
	assert.Empty(t, ProductPatch{}.Columns())

	stock, name := 3, "Clay Pot"
	assert.Equal(t, []string{"name", "stock"}, ProductPatch{Name: &name, Stock: &stock}.Columns())
}

func TestErrorConstructors(t *testing.T) {
	nf := NotFound("product", "abc")
	assert.True(t, IsNotFound(nf))
	var gerr *goerrors.Error
	require.True(t, errors.As(nf, &gerr))
	assert.Equal(t, http.StatusNotFound, gerr.Code)
	assert.Equal(t, "PRODUCT_NOT_FOUND", gerr.TextCode)

	assert.True(t, HasCategory(InvalidTransition(OrderDelivered, OrderPending), goerrors.CategoryConflict))
	assert.True(t, HasCategory(ErrForbidden, goerrors.CategoryAuthz))

	p := &Product{ID: uuid.New(), Name: "Vase"}
	rej := &OrderRejection{Problems: []LineProblem{StockShort(p, 3, 1), ProductMissing(uuid.Nil, 1)}}
	assert.Contains(t, rej.Error(), "insufficient stock for Vase: requested 3, available 1")
	assert.Equal(t, ReasonInsufficientStock, rej.Problems[0].Reason)
}
