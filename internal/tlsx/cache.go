package tlsx

import "crypto/x509"

// DefaultCacheSize is the default maximum number of contexts in a Cache.
const DefaultCacheSize = 64

// Cache maps CA bundle paths to contexts, so that we parse each
// bundle once. When the cache is full, adding a new context discards
// all the existing entries.
//
// A Cache is owned by a single reactor and is not goroutine safe.
type Cache struct {
	// MaxEntries is the maximum number of entries. When zero or
	// negative, we use DefaultCacheSize.
	MaxEntries int

	// BuiltinCertPool returns the pool to use when the CA bundle path
	// is empty. When nil, an empty path fails with missing_ca_bundle_path.
	BuiltinCertPool func() (*x509.CertPool, error)

	entries map[string]*Context
}

// NewCache returns a new Cache using DefaultCacheSize entries that
// relies on the system pool as the built-in CA bundle.
func NewCache() *Cache {
	return &Cache{
		MaxEntries:      DefaultCacheSize,
		BuiltinCertPool: x509.SystemCertPool,
	}
}

// Get returns the context for caPath, creating it if needed. We do
// not cache errors, so a later call retries loading the bundle.
func (c *Cache) Get(caPath string) (*Context, error) {
	if ctx, found := c.entries[caPath]; found {
		return ctx, nil
	}
	ctx, err := NewContext(caPath, c.BuiltinCertPool)
	if err != nil {
		return nil, err
	}
	if c.entries == nil || len(c.entries) >= c.maxEntries() {
		c.entries = make(map[string]*Context)
	}
	c.entries[caPath] = ctx
	return ctx, nil
}

// Size returns the number of cached contexts.
func (c *Cache) Size() int {
	return len(c.entries)
}

func (c *Cache) maxEntries() int {
	if c.MaxEntries > 0 {
		return c.MaxEntries
	}
	return DefaultCacheSize
}
