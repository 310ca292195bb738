package config

const EnvPrefix = "TESTHUB"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

const (
	DispatchLocal  = "local"
	DispatchPubSub = "pubsub"
)

// Failure policies for runs that abort before their page loop completes.
// FailurePolicyMarkFailed (the default) moves the PDF to failed.
// FailurePolicyKeepProcessing leaves it in processing with no finalized_at,
// which is the legacy full-failure behavior.
const (
	FailurePolicyMarkFailed     = "mark_failed"
	FailurePolicyKeepProcessing = "keep_processing"
)

const (
	RasterEngineFitz     = "fitz"
	RasterEnginePdftoppm = "pdftoppm"
)

const (
	EnvAppEnv   = "TESTHUB_APP_ENV"
	EnvPort     = "TESTHUB_APP_PORT"
	EnvLogLevel = "TESTHUB_LOG_LEVEL"

	EnvDBDSN  = "TESTHUB_DB_DSN"
	EnvDBHost = "TESTHUB_DB_HOST"
	EnvDBUser = "TESTHUB_DB_USER"
	EnvDBName = "TESTHUB_DB_NAME"

	EnvRedisURL     = "TESTHUB_REDIS_URL"
	EnvUseSQLite    = "TESTHUB_USE_SQLITE"
	EnvGCPProjectID = "TESTHUB_GCP_PROJECT_ID"

	EnvPubSubExtractionTopic = "TESTHUB_PUBSUB_EXTRACTION_TOPIC"
	EnvPubSubExtractionSub   = "TESTHUB_PUBSUB_EXTRACTION_SUBSCRIPTION"

	EnvPipelineDispatch      = "TESTHUB_PIPELINE_DISPATCH"
	EnvPipelineFailurePolicy = "TESTHUB_PIPELINE_FAILURE_POLICY"
	EnvPipelinePartialStatus = "TESTHUB_PIPELINE_PARTIAL_STATUS"
	EnvPipelineRunTimeout    = "TESTHUB_PIPELINE_RUN_TIMEOUT"
	EnvRasterizerEngine      = "TESTHUB_RASTERIZER_ENGINE"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
