package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	PubSub       PubSubConfig
	BigQuery     BigQueryConfig
	Upload       UploadConfig
	Pipeline     PipelineConfig
	Rasterizer   RasterizerConfig
	Extraction   ExtractionConfig
	Sweeper      SweeperConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(cfg.FeatureFlags.UseSQLite); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Pipeline.FailurePolicy {
	case FailurePolicyMarkFailed, FailurePolicyKeepProcessing:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvPipelineFailurePolicy, FailurePolicyMarkFailed, FailurePolicyKeepProcessing)
	}
	switch c.Pipeline.Dispatch {
	case DispatchLocal:
	case DispatchPubSub:
		missing := []string{}
		if strings.TrimSpace(c.PubSub.ExtractionTopic) == "" {
			missing = append(missing, EnvPubSubExtractionTopic)
		}
		if strings.TrimSpace(c.PubSub.ExtractionSubscription) == "" {
			missing = append(missing, EnvPubSubExtractionSub)
		}
		if len(missing) > 0 {
			return fmt.Errorf("pubsub dispatch requires %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("%s must be %q or %q", EnvPipelineDispatch, DispatchLocal, DispatchPubSub)
	}
	switch c.Rasterizer.Engine {
	case RasterEngineFitz, RasterEnginePdftoppm:
	default:
		return fmt.Errorf("%s must be %q or %q", EnvRasterizerEngine, RasterEngineFitz, RasterEnginePdftoppm)
	}
	return nil
}

type AppConfig struct {
	Env          string   `envconfig:"TESTHUB_APP_ENV" required:"true"`
	Port         string   `envconfig:"TESTHUB_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"TESTHUB_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"TESTHUB_LOG_WARN_STACK" default:"false"`
	CORSOrigins  []string `envconfig:"TESTHUB_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"TESTHUB_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"TESTHUB_DB_DSN"`
	Driver string `envconfig:"TESTHUB_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"TESTHUB_DB_HOST"`
	LegacyPort     int    `envconfig:"TESTHUB_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"TESTHUB_DB_USER"`
	LegacyPassword string `envconfig:"TESTHUB_DB_PASSWORD"`
	LegacyName     string `envconfig:"TESTHUB_DB_NAME"`
	LegacySSLMode  string `envconfig:"TESTHUB_DB_SSLMODE" default:"disable"`

	SQLitePath string `envconfig:"TESTHUB_SQLITE_PATH" default:"testhub.db"`

	MaxOpenConns    int           `envconfig:"TESTHUB_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"TESTHUB_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"TESTHUB_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TESTHUB_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"TESTHUB_REDIS_URL" required:"true"`
	Address      string        `envconfig:"TESTHUB_REDIS_ADDR"`
	Password     string        `envconfig:"TESTHUB_REDIS_PASSWORD"`
	DB           int           `envconfig:"TESTHUB_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TESTHUB_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TESTHUB_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TESTHUB_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TESTHUB_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TESTHUB_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"TESTHUB_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"TESTHUB_AUTO_MIGRATE" default:"false"`
	ExportRuns  bool `envconfig:"TESTHUB_FEATURE_EXPORT_RUNS" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"TESTHUB_GCP_PROJECT_ID" required:"true"`
	Location               string `envconfig:"TESTHUB_GCP_LOCATION" default:"us-central1"`
	CredentialsJSON        string `envconfig:"TESTHUB_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TESTHUB_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	ExtractionTopic        string `envconfig:"TESTHUB_PUBSUB_EXTRACTION_TOPIC"`
	ExtractionSubscription string `envconfig:"TESTHUB_PUBSUB_EXTRACTION_SUBSCRIPTION"`
	MaxOutstanding         int    `envconfig:"TESTHUB_PUBSUB_MAX_OUTSTANDING" default:"8"`
}

type BigQueryConfig struct {
	Dataset   string `envconfig:"TESTHUB_BIGQUERY_DATASET" default:"testhub"`
	RunsTable string `envconfig:"TESTHUB_BIGQUERY_RUNS_TABLE" default:"extraction_runs"`
}

type UploadConfig struct {
	MaxUploadMB int `envconfig:"TESTHUB_MAX_UPLOAD_MB" default:"50"`
}

// MaxBytes returns the upload ceiling in bytes.
func (u UploadConfig) MaxBytes() int64 {
	if u.MaxUploadMB <= 0 {
		return 50 << 20
	}
	return int64(u.MaxUploadMB) << 20
}

type PipelineConfig struct {
	Dispatch          string        `envconfig:"TESTHUB_PIPELINE_DISPATCH" default:"local"`
	Workers           int           `envconfig:"TESTHUB_PIPELINE_WORKERS" default:"4"`
	QueueSize         int           `envconfig:"TESTHUB_PIPELINE_QUEUE_SIZE" default:"256"`
	RunTimeout        time.Duration `envconfig:"TESTHUB_PIPELINE_RUN_TIMEOUT" default:"15m"`
	PageTimeout       time.Duration `envconfig:"TESTHUB_PIPELINE_PAGE_TIMEOUT" default:"2m"`
	FailurePolicy     string        `envconfig:"TESTHUB_PIPELINE_FAILURE_POLICY" default:"mark_failed"`
	PartialStatus     bool          `envconfig:"TESTHUB_PIPELINE_PARTIAL_STATUS" default:"false"`
	PersistPageImages bool          `envconfig:"TESTHUB_PIPELINE_PERSIST_PAGE_IMAGES" default:"true"`
	RunLockTTL        time.Duration `envconfig:"TESTHUB_PIPELINE_RUN_LOCK_TTL" default:"30m"`
	ShutdownTimeout   time.Duration `envconfig:"TESTHUB_PIPELINE_SHUTDOWN_TIMEOUT" default:"30s"`
}

// MarkFailed reports whether aborted runs move the PDF to the failed state.
// Set TESTHUB_PIPELINE_FAILURE_POLICY=keep_processing to leave them in processing.
func (p PipelineConfig) MarkFailed() bool {
	return p.FailurePolicy != FailurePolicyKeepProcessing
}

type RasterizerConfig struct {
	Engine       string `envconfig:"TESTHUB_RASTERIZER_ENGINE" default:"fitz"`
	DPI          int    `envconfig:"TESTHUB_RASTERIZER_DPI" default:"150"`
	MaxPages     int    `envconfig:"TESTHUB_RASTERIZER_MAX_PAGES" default:"0"`
	PdftoppmPath string `envconfig:"TESTHUB_RASTERIZER_PDFTOPPM_PATH" default:"pdftoppm"`
}

type ExtractionConfig struct {
	Model       string  `envconfig:"TESTHUB_EXTRACTION_MODEL" default:"gemini-1.5-flash-8b"`
	Temperature float32 `envconfig:"TESTHUB_EXTRACTION_TEMPERATURE" default:"1"`
}

type SweeperConfig struct {
	Interval     time.Duration `envconfig:"TESTHUB_SWEEPER_INTERVAL" default:"1m"`
	RequeueAfter time.Duration `envconfig:"TESTHUB_SWEEPER_REQUEUE_AFTER" default:"5m"`
	RunningGrace time.Duration `envconfig:"TESTHUB_SWEEPER_RUNNING_GRACE" default:"5m"`
	BatchSize    int           `envconfig:"TESTHUB_SWEEPER_BATCH_SIZE" default:"50"`
	LockTTL      time.Duration `envconfig:"TESTHUB_SWEEPER_LOCK_TTL" default:"10m"`
}

func (db *DBConfig) ensureDSN(useSQLite bool) error {
	if useSQLite {
		db.Driver = DriverSQLite
		if db.DSN == "" {
			db.DSN = db.SQLitePath
		}
		return nil
	}
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
