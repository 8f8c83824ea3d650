package store

// Option keys consumed by the promotion system. KeyActive and
// KeyActiveNetwork are the host's own ground truth of independently toggled
// extensions and are read-only from this system's perspective;
// KeyPromotedCache is owned exclusively by the cache store.
const (
	KeyActive        = "active_extensions"
	KeyActiveNetwork = "active_extensions_network"
	KeyPromotedCache = "promoted_extensions_cache"
)
