// Package config loads relstore configuration: store location, HTTP
// address, query defaults, and declarative model definitions. It is
// decoupled from CLI concerns so the server and tools can share it.
package config

// Config is the full relstore configuration.
type Config struct {
	// Database is the SQLite database path, or ":memory:".
	Database string `koanf:"database"`

	// HTTPAddr is the listen address of the HTTP API.
	HTTPAddr string `koanf:"http_addr"`

	// StrictDefault controls whether collection queries validate field
	// names by default.
	StrictDefault bool `koanf:"strict_default"`

	// SerializerDepth is the default relationship embedding depth for
	// models that do not declare one.
	SerializerDepth int `koanf:"serializer_depth"`

	// IndexRefresh forces an index refresh after every sync push.
	IndexRefresh bool `koanf:"index_refresh"`

	// Verbose enables debug logging.
	Verbose bool `koanf:"verbose"`

	// Models are the declarative model definitions.
	Models []ModelDecl `koanf:"models"`
}

// ModelDecl declares one model in the config file.
type ModelDecl struct {
	Name          string      `koanf:"name"`
	Table         string      `koanf:"table"`
	NestingDepth  int         `koanf:"nesting_depth"`
	Fields        []FieldDecl `koanf:"fields"`
	Relationships []RelDecl   `koanf:"relationships"`
}

// FieldDecl declares one column field.
type FieldDecl struct {
	Name       string `koanf:"name"`
	Type       string `koanf:"type"` // string, int, float, bool, time, list, map
	Nullable   bool   `koanf:"nullable"`
	Unique     bool   `koanf:"unique"`
	PrimaryKey bool   `koanf:"primary_key"`
	Default    any    `koanf:"default"`
}

// RelDecl declares one relationship.
type RelDecl struct {
	Name       string `koanf:"name"`
	Target     string `koanf:"target"`
	ToMany     bool   `koanf:"to_many"`
	ForeignKey string `koanf:"foreign_key"`
	Nested     bool   `koanf:"nested"`
	Backref    string `koanf:"backref"`
}
