package mongo

import "time"

// Config represents the configuration for the database.
type Config struct {
	ConnectionURL     string        `env:"MONGODB_URL,required"`                                  // ConnectionURL is the URL of the database.
	Database          string        `env:"MONGODB_DATABASE" envDefault:"billing"`                 // Database holds the event archive.
	ArchiveCollection string        `env:"MONGODB_ARCHIVE_COLLECTION" envDefault:"domain_events"` // ArchiveCollection stores every published envelope.
	ConnectTimeout    time.Duration `env:"MONGODB_CONNECT_TIMEOUT" envDefault:"10s"`              // ConnectTimeout is the timeout for connecting to the database.
	MaxPoolSize       uint64        `env:"MONGODB_MAX_POOL_SIZE" envDefault:"20"`                 // MaxPoolSize is the maximum number of connections in the pool.
	MinPoolSize       uint64        `env:"MONGODB_MIN_POOL_SIZE" envDefault:"1"`                  // MinPoolSize is the minimum number of connections in the pool.
	MaxConnIdleTime   time.Duration `env:"MONGODB_MAX_CONN_IDLE_TIME" envDefault:"300s"`          // MaxConnIdleTime is how long an idle connection is kept.
	RetryWrites       bool          `env:"MONGODB_RETRY_WRITES" envDefault:"true"`                // RetryWrites specifies whether to retry write operations.
	RetryReads        bool          `env:"MONGODB_RETRY_READS" envDefault:"true"`                 // RetryReads specifies whether to retry read operations.
	RetryAttempts     int           `env:"MONGODB_RETRY_ATTEMPTS" envDefault:"3"`                 // RetryAttempts is the number of connection attempts.
	RetryInterval     time.Duration `env:"MONGODB_RETRY_INTERVAL" envDefault:"5s"`                // RetryInterval is the pause between attempts.
}
