package config

// Default configuration values.
const (
	DefaultDatabase        = "relstore.db"
	DefaultHTTPAddr        = ":8080"
	DefaultSerializerDepth = 1
)

func defaults() map[string]any {
	return map[string]any{
		"database":         DefaultDatabase,
		"http_addr":        DefaultHTTPAddr,
		"strict_default":   true,
		"serializer_depth": DefaultSerializerDepth,
		"index_refresh":    false,
		"verbose":          false,
	}
}
