package repositorycache

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
)

type cacheTagsContextKey struct{}

// WithCacheTags attaches cache tags to the context. Reads made with the context are
// registered under the tags; writes made with it invalidate them.
func WithCacheTags(ctx context.Context, tags ...string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(tags) == 0 {
		return ctx
	}

	combined := dedupeStrings(append(cacheTagsFromContext(ctx), tags...))
	if len(combined) == 0 {
		return ctx
	}
	return context.WithValue(ctx, cacheTagsContextKey{}, combined)
}

func cacheTagsFromContext(ctx context.Context) []string {
	if ctx == nil {
		return nil
	}
	if tags, ok := ctx.Value(cacheTagsContextKey{}).([]string); ok {
		return append([]string(nil), tags...)
	}
	return nil
}

// TagIndex maps a tag to the cache keys read under it. It is safe for concurrent use.
type TagIndex struct {
	tags *xsync.MapOf[string, *xsync.MapOf[string, struct{}]]
}

func NewTagIndex() *TagIndex {
	return &TagIndex{tags: xsync.NewMapOf[string, *xsync.MapOf[string, struct{}]]()}
}

// Register records key under every tag.
func (idx *TagIndex) Register(key string, tags ...string) {
	for _, tag := range tags {
		keys, _ := idx.tags.LoadOrCompute(tag, func() *xsync.MapOf[string, struct{}] {
			return xsync.NewMapOf[string, struct{}]()
		})
		keys.Store(key, struct{}{})
	}
}

// Take removes the tags and returns the distinct keys they referenced.
func (idx *TagIndex) Take(tags ...string) []string {
	var out []string
	for _, tag := range tags {
		keys, ok := idx.tags.LoadAndDelete(tag)
		if !ok {
			continue
		}
		keys.Range(func(key string, _ struct{}) bool {
			out = append(out, key)
			return true
		})
	}
	return dedupeStrings(out)
}

// Len returns the number of tracked tags.
func (idx *TagIndex) Len() int {
	return idx.tags.Size()
}

func dedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
