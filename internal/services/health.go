package services

import (
	"context"
	"fmt"
	"log"

	"github.com/localnerve/jam-build-cmdb/internal/config"
	"github.com/localnerve/jam-build-cmdb/internal/utils"
	"gorm.io/gorm"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Status       string            `json:"status"`
	Database     string            `json:"database"`
	Authorizer   string            `json:"authorizer"`
	Details      map[string]string `json:"details,omitempty"`
	ErrorMessage string            `json:"error,omitempty"`
}

// Probe is an additional named dependency check
type Probe struct {
	Name  string
	Check func(ctx context.Context) error
}

func (r *HealthCheckResult) fail(what string, err error) {
	r.Status = "unhealthy"
	msg := fmt.Sprintf("%s failed: %v", what, err)
	if r.ErrorMessage == "" {
		r.ErrorMessage = msg
	} else {
		r.ErrorMessage += "; " + msg
	}
	log.Printf("Health check failed - %s: %v", what, err)
}

// HealthCheck checks the database, the Authorizer and any extra probes
func HealthCheck(ctx context.Context, cfg *config.Config, db *gorm.DB, probes ...Probe) HealthCheckResult {
	result := HealthCheckResult{
		Status:  "healthy",
		Details: make(map[string]string),
	}

	// Check database connectivity
	sqlDB, err := db.DB()
	if err != nil {
		result.Database = "error"
		result.Details["database_error"] = err.Error()
		result.fail("Database connection", err)
	} else if err := sqlDB.PingContext(ctx); err != nil {
		result.Database = "unreachable"
		result.Details["database_ping_error"] = err.Error()
		result.fail("Database ping", err)
	} else {
		result.Database = "ok"
		result.Details["database_type"] = cfg.DBType
		result.Details["database_name"] = cfg.DBDatabase
		result.Details["cascade_mode"] = cfg.CascadeMode
	}

	// Check Authorizer connectivity
	if err := utils.PingAuthorizer(ctx, cfg.AuthzURL); err != nil {
		result.Authorizer = "unreachable"
		result.Details["authorizer_error"] = err.Error()
		result.fail("Authorizer ping", err)
	} else {
		result.Authorizer = "ok"
		result.Details["authorizer_url"] = cfg.AuthzURL
	}

	for _, p := range probes {
		if err := p.Check(ctx); err != nil {
			result.Details[p.Name] = err.Error()
			result.fail(p.Name, err)
			continue
		}
		result.Details[p.Name] = "ok"
	}

	if result.Status == "healthy" {
		log.Println("Health check passed - all systems operational")
	}

	return result
}

// BlobProbe checks that the blob directory accepts writes
func BlobProbe(blobs interface{ Writable() error }) Probe {
	return Probe{Name: "blob_dir", Check: func(context.Context) error {
		return blobs.Writable()
	}}
}

// SearchProbe checks the search index connection
func SearchProbe(index interface {
	Ping(ctx context.Context) error
}) Probe {
	return Probe{Name: "search_index", Check: index.Ping}
}
