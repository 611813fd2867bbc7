package main

import (
	"time"

	"github.com/missionlab/payment-service/pkg/httpserver"
	"github.com/missionlab/payment-service/pkg/logger"
	"github.com/missionlab/payment-service/svc/billing"
)

// Store and bus drivers.
const (
	driverMemory   = "memory"
	driverPostgres = "postgres"
	driverRedis    = "redis"
)

// Identity resolvers.
const (
	resolverHash  = "hash"
	resolverTable = "table"
)

type appConfig struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"billingd"`

	StoreDriver    string `env:"STORE_DRIVER" envDefault:"memory"`    // memory | postgres
	BusDriver      string `env:"BUS_DRIVER" envDefault:"memory"`      // memory | redis
	ArchiveEvents  bool   `env:"EVENT_ARCHIVE_ENABLED"`               // copy every published event to MongoDB
	PaddleEnabled  bool   `env:"PADDLE_ENABLED"`                      // requires PADDLE_API_KEY and PADDLE_WEBHOOK_SECRET
	SyncPlanPrices bool   `env:"PADDLE_SYNC_PLANS" envDefault:"true"` // create provider products for plans without refs

	IdentityResolver string `env:"IDENTITY_RESOLVER" envDefault:"hash"` // hash | table

	Currency            string `env:"BILLING_CURRENCY" envDefault:"USD"`
	PlanCatalogPath     string `env:"PLAN_CATALOG_PATH"`
	LowBalanceThreshold int    `env:"TICKET_LOW_BALANCE_THRESHOLD" envDefault:"0"`

	RefillSweepInterval time.Duration `env:"REFILL_SWEEP_INTERVAL" envDefault:"15m"`
	ExpirySweepInterval time.Duration `env:"EXPIRY_SWEEP_INTERVAL" envDefault:"1h"`
	ExpiringNoticeHour  int           `env:"EXPIRING_NOTICE_HOUR" envDefault:"9"`
	ExpiringNoticeDays  int           `env:"EXPIRING_NOTICE_DAYS" envDefault:"3"`
	JobTimeout          time.Duration `env:"JOB_TIMEOUT" envDefault:"5m"`

	IdempotencyTTL   time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"72h"`
	IdempotencySize  int           `env:"IDEMPOTENCY_MEMORY_SIZE" envDefault:"10000"`
	ReadinessTimeout time.Duration `env:"READINESS_TIMEOUT" envDefault:"2s"`

	Log    logger.Config
	Topics billing.Topics
	HTTP   httpserver.Config
}
