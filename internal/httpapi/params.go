package httpapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/kalakari/storefront/internal/domain"
	"github.com/kalakari/storefront/internal/store"
)

const dateLayout = "2006-01-02"

func uuidParam(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, domain.Invalid("invalid id", map[string]string{name: "must be a UUID"})
	}
	return id, nil
}

// decode parses a JSON body into dst.
func decode(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return domain.Invalid("malformed request body", map[string]string{"body": err.Error()})
	}
	return nil
}

func intQuery(c *fiber.Ctx, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.Invalid("invalid query", map[string]string{name: "must be an integer"})
	}
	return n, nil
}

func boolQuery(c *fiber.Ctx, name string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, domain.Invalid("invalid query", map[string]string{name: "must be true or false"})
	}
	return b, nil
}

func pagination(c *fiber.Ctx) (store.Pagination, error) {
	page, err := intQuery(c, "page")
	if err != nil {
		return store.Pagination{}, err
	}
	limit, err := intQuery(c, "limit")
	if err != nil {
		return store.Pagination{}, err
	}
	return store.Pagination{Page: page, Limit: limit}.Normalize(), nil
}

// productFilter reads the listing query. Admin listings include inactive products
// unless includeInactive=false.
func productFilter(c *fiber.Ctx, admin bool) (store.ProductFilter, error) {
	page, err := pagination(c)
	if err != nil {
		return store.ProductFilter{}, err
	}
	inStock, err := boolQuery(c, "inStock", false)
	if err != nil {
		return store.ProductFilter{}, err
	}
	filter := store.ProductFilter{
		Category:   c.Query("category"),
		InStock:    inStock,
		Search:     c.Query("search"),
		SortBy:     c.Query("sortBy"),
		Pagination: page,
	}
	if admin {
		if filter.IncludeInactive, err = boolQuery(c, "includeInactive", true); err != nil {
			return store.ProductFilter{}, err
		}
	}
	return filter, nil
}

// analyticsRange reads from and to. Both accept RFC 3339 timestamps or plain dates;
// a plain date for to includes that whole day. Missing bounds are left zero for the
// store to default.
func analyticsRange(c *fiber.Ctx) (store.Range, error) {
	var r store.Range
	var err error
	if r.From, err = timeQuery(c, "from", false); err != nil {
		return store.Range{}, err
	}
	if r.To, err = timeQuery(c, "to", true); err != nil {
		return store.Range{}, err
	}
	return r, nil
}

func timeQuery(c *fiber.Ctx, name string, endOfDay bool) (time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, domain.Invalid("invalid query", map[string]string{name: "must be a date (YYYY-MM-DD) or an RFC 3339 timestamp"})
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1)
	}
	return t, nil
}

func intervalQuery(c *fiber.Ctx) (store.Interval, error) {
	interval, ok := store.ParseInterval(strings.ToLower(strings.TrimSpace(c.Query("interval"))))
	if !ok {
		return "", domain.Invalid("invalid query", map[string]string{"interval": "must be one of day, week, month"})
	}
	return interval, nil
}
