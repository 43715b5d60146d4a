// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	NEURONOTE_HOST="0.0.0.0"
//	NEURONOTE_PORT="8080"
//	NEURONOTE_HEALTH_PORT="9090"
//	NEURONOTE_CORS_ORIGINS="*"
//	NEURONOTE_MAX_BODY_BYTES="1048576"
//
// Manifest settings:
//
//	NEURONOTE_MANIFEST_SOURCE="file"  # file, s3
//	NEURONOTE_MANIFEST_PATH="plugins.json"
//	NEURONOTE_MANIFEST_WATCH="true"
//	NEURONOTE_S3_BUCKET="plugin-manifests"
//	NEURONOTE_S3_KEY="plugins.json"
//	NEURONOTE_CACHE_TTL="5s"
//
// Usage settings:
//
//	NEURONOTE_USAGE_BACKEND="redis"  # memory, redis, postgres, sqlite
//	NEURONOTE_REDIS_URL="redis://localhost:6379/0"
//	NEURONOTE_SQL_DSN="postgres://localhost/neuronote?sslmode=disable"
//
// Trace settings:
//
//	NEURONOTE_TRACE_DIR="logs/orchestration_traces"
//	NEURONOTE_TRACE_RETENTION_DAYS="90"
//	NEURONOTE_TRACE_CLEANUP_SCHEDULE="@daily"
//
// Query settings:
//
//	NEURONOTE_QUERY_BACKEND_URL="http://localhost:8000/orchestrator/process"
//	NEURONOTE_QUERY_RETRY_MAX="3"
//
// Observability settings:
//
//	NEURONOTE_LOG_LEVEL="info"
//	NEURONOTE_LOG_FORMAT="json"  # json, text
//	NEURONOTE_METRICS_ENABLED="true"
//	NEURONOTE_OTEL_ENABLED="false"
//	NEURONOTE_OTEL_ENDPOINT="localhost:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatalf("Failed to load config: %v", err)
//	}
//
// # Related Packages
//
//   - pkg/catalog: Manifest source settings
//   - pkg/usage: Usage backend settings
//   - pkg/observability: Logging and tracing settings
package config
