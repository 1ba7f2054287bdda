package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Laisky/zap"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/utils"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Authorizer   string            `json:"authorizer"`
	AuditBus     string            `json:"audit_bus"`
	ObjectStore  string            `json:"object_store"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

func (r *HealthCheckResult) fail(component, message string, err error) {
	r.Status = "unhealthy"
	r.Details[component+"_error"] = err.Error()
	if r.ErrorMessage == "" {
		r.ErrorMessage = fmt.Sprintf("%s: %v", message, err)
	} else {
		r.ErrorMessage += fmt.Sprintf("; %s: %v", message, err)
	}
}

// HealthCheck checks the database and every configured remote dependency.
// rdb may be nil outside production.
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB, rdb *redis.Client, log *zap.Logger) HealthCheckResult {
	result := HealthCheckResult{
		Status:      "healthy",
		Authorizer:  "disabled",
		AuditBus:    "disabled",
		ObjectStore: "local",
		Details:     make(map[string]string),
	}

	sqlDB, err := db.DB()
	if err != nil {
		result.Database = "error"
		result.fail("database", "Database connection error", err)
		log.Warn("health check failed, database connection", zap.Error(err))
	} else if err := sqlDB.PingContext(ctx); err != nil {
		result.Database = "unreachable"
		result.fail("database", "Database ping failed", err)
		log.Warn("health check failed, database ping", zap.Error(err))
	} else {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase
	}

	if cfg.AuthzURL != "" {
		if err := utils.PingAuthorizer(ctx, cfg.AuthzURL); err != nil {
			result.Authorizer = "unreachable"
			result.fail("authorizer", "Authorizer ping failed", err)
			log.Warn("health check failed, authorizer ping", zap.Error(err))
		} else {
			result.Authorizer = "ok"
			result.Details["authorizer_url"] = cfg.AuthzURL
		}
	}

	if rdb != nil {
		pctx, cancel := context.WithTimeout(ctx, 1500*time.Millisecond)
		defer cancel()
		if err := rdb.Ping(pctx).Err(); err != nil {
			result.AuditBus = "unreachable"
			result.fail("audit_bus", "Audit bus ping failed", err)
			log.Warn("health check failed, audit bus ping", zap.Error(err))
		} else {
			result.AuditBus = "ok"
			result.Details["audit_stream"] = cfg.AuditStream
		}
	}

	if cfg.S3Endpoint != "" {
		if err := utils.PingObjectStore(ctx, cfg.S3Endpoint); err != nil {
			result.ObjectStore = "unreachable"
			result.fail("object_store", "Object store ping failed", err)
			log.Warn("health check failed, object store ping", zap.Error(err))
		} else {
			result.ObjectStore = "ok"
			result.Details["s3_bucket"] = cfg.S3Bucket
		}
	}

	if result.Status == "healthy" {
		log.Debug("health check passed")
	}
	return result
}
