package provider

import (
	"sync"

	"github.com/cornelk/hashmap"
	"github.com/srg/previewsim/internal/invoke"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Entry produces the payload for one API given its real parameters
type Entry func(args []any) invoke.Result

// Catalog is a static table of mock payloads keyed by API name.
// Lookups are lock-free; registration order is kept for listing.
type Catalog struct {
	entries *hashmap.Map[string, Entry]

	orderMu sync.Mutex
	order   *orderedmap.OrderedMap[string, struct{}]
}

// NewCatalog creates an empty catalog
func NewCatalog() *Catalog {
	return &Catalog{
		entries: hashmap.New[string, Entry](),
		order:   orderedmap.New[string, struct{}](),
	}
}

// Register sets the entry for api, replacing any previous one
func (c *Catalog) Register(api string, fn Entry) *Catalog {
	if fn == nil {
		return c
	}
	c.entries.Set(api, fn)

	c.orderMu.Lock()
	c.order.Set(api, struct{}{})
	c.orderMu.Unlock()
	return c
}

// Value registers a constant success payload
func (c *Catalog) Value(api string, value any) *Catalog {
	return c.Register(api, func([]any) invoke.Result {
		return invoke.Success(value)
	})
}

// Fail registers a constant failure
func (c *Catalog) Fail(api string, err error) *Catalog {
	return c.Register(api, func([]any) invoke.Result {
		return invoke.Failure(err)
	})
}

// Remove deletes api from the catalog
func (c *Catalog) Remove(api string) bool {
	removed := c.entries.Del(api)

	c.orderMu.Lock()
	c.order.Delete(api)
	c.orderMu.Unlock()
	return removed
}

// Produce implements Provider
func (c *Catalog) Produce(api string, args []any) invoke.Result {
	fn, ok := c.entries.Get(api)
	if !ok {
		return invoke.Failure(unknown(api))
	}
	return fn(args)
}

// Has reports whether api is registered
func (c *Catalog) Has(api string) bool {
	_, ok := c.entries.Get(api)
	return ok
}

// APIs returns registered API names in registration order
func (c *Catalog) APIs() []string {
	c.orderMu.Lock()
	defer c.orderMu.Unlock()

	apis := make([]string, 0, c.order.Len())
	for pair := c.order.Oldest(); pair != nil; pair = pair.Next() {
		apis = append(apis, pair.Key)
	}
	return apis
}

// Len returns the number of registered APIs
func (c *Catalog) Len() int {
	return c.entries.Len()
}
