package storage

// StorageConfig selects and parametrises the delegation store backend.
type StorageConfig struct {
	Mode     string                `yaml:"mode" mapstructure:"mode"` // "local", "postgres", "memory"
	Local    LocalStorageConfig    `yaml:"local" mapstructure:"local"`
	Postgres PostgresStorageConfig `yaml:"postgres" mapstructure:"postgres"`
}

// LocalStorageConfig configures the embedded SQLite backend.
type LocalStorageConfig struct {
	DatabasePath string `yaml:"database_path" mapstructure:"database_path"`
}

// PostgresStorageConfig configures the PostgreSQL backend. DSN wins when set;
// otherwise it is assembled from the discrete fields.
type PostgresStorageConfig struct {
	DSN      string `yaml:"dsn" mapstructure:"dsn"`
	URL      string `yaml:"url" mapstructure:"url"`
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}
