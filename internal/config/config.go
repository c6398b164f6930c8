// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DefaultSystemPrompt is the dispatch agent prompt used when SYSTEM_PROMPT is unset.
const DefaultSystemPrompt = "As a specialist, please identify relevant support cases based on the query " +
	"and gather additional case information from the knowledge base."

// Env holds the configuration values for the application. It is built once
// in main and handed to each component; nothing reads the environment later.
type Env struct {
	Region   string `validate:"required"`
	Bucket   string
	LogLevel string `validate:"oneof=debug info warn error"`

	// Collector
	HomeAccountID    string  `validate:"omitempty,numeric,len=12"`
	LookbackDays     int     `validate:"gte=1,lte=365"`
	CrossAccountRole string  `validate:"required"`
	SupportAPIRPS    float64 `validate:"gt=0"`

	// Query path
	AthenaDatabase  string `validate:"required"`
	AthenaOutputS3  string `validate:"omitempty,startswith=s3://"`
	AthenaWorkGroup string
	ModelID         string
	SystemPrompt    string

	// Knowledge base
	KnowledgeBaseID       string
	KnowledgeBaseSecretID string

	// Run history table; empty disables recording.
	RunsTable string
}

// MustLoad reads the environment variables and returns an Env struct.
func MustLoad() Env {
	e, err := Load()
	if err != nil {
		panic(err)
	}
	return e
}

// Load reads the environment variables and validates the result.
func Load() (Env, error) {
	days, err := strconv.Atoi(get("LOOKBACK_DAYS", "30"))
	if err != nil {
		return Env{}, fmt.Errorf("LOOKBACK_DAYS: %w", err)
	}
	rps, err := strconv.ParseFloat(get("SUPPORT_API_RPS", "2"), 64)
	if err != nil {
		return Env{}, fmt.Errorf("SUPPORT_API_RPS: %w", err)
	}
	e := Env{
		Region:                get("AWS_REGION", "us-east-1"),
		Bucket:                get("S3_BUCKET_NAME", ""),
		LogLevel:              strings.ToLower(get("LOG_LEVEL", "info")),
		HomeAccountID:         get("HOME_ACCOUNT_ID", ""),
		LookbackDays:          days,
		CrossAccountRole:      get("CROSS_ACCOUNT_ROLE_NAME", "OrganizationAccountAccessRole"),
		SupportAPIRPS:         rps,
		AthenaDatabase:        get("ATHENA_DATABASE", "optira_database"),
		AthenaOutputS3:        get("ATHENA_OUTPUT_S3", ""),
		AthenaWorkGroup:       get("ATHENA_WORKGROUP", ""),
		ModelID:               get("BEDROCK_MODEL_ID", ""),
		SystemPrompt:          get("SYSTEM_PROMPT", DefaultSystemPrompt),
		KnowledgeBaseID:       get("KNOWLEDGEBASE_ID", ""),
		KnowledgeBaseSecretID: get("KNOWLEDGEBASE_SECRET_ID", "optira/knowledge-base-id"),
		RunsTable:             get("RUNS_TABLE", ""),
	}
	if err := e.Validate(); err != nil {
		return Env{}, err
	}
	return e, nil
}

// Validate checks field constraints declared on Env.
func (e Env) Validate() error {
	if err := validator.New().Struct(e); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// RequireBucket fails when no bucket is configured.
func (e Env) RequireBucket() error {
	if e.Bucket == "" {
		return fmt.Errorf("missing env S3_BUCKET_NAME")
	}
	return nil
}

// RequireQuery fails when the query path is missing an Athena output
// location or a model id.
func (e Env) RequireQuery() error {
	if e.AthenaOutputS3 == "" {
		return fmt.Errorf("missing env ATHENA_OUTPUT_S3")
	}
	if e.ModelID == "" {
		return fmt.Errorf("missing env BEDROCK_MODEL_ID")
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog.Level.
func (e Env) SlogLevel() slog.Level {
	switch e.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// get returns the value of the environment variable k or def if not set.
func get(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
