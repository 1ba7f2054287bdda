package handlers

import (
	"github.com/Laisky/zap"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/orca-tagsdb/internal/config"
	"github.com/localnerve/orca-tagsdb/internal/middleware"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/services"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps is everything the routes need. Audit may be nil to serve without auditing.
type Deps struct {
	Config    *config.Config
	DB        *gorm.DB
	Log       *zap.Logger
	Audit     *services.AuditEngine
	Store     services.ObjectStore
	Watermark services.Watermarker
	Redis     *redis.Client
}

// Register mounts the API under /api
func Register(app *fiber.App, d Deps) {
	health := &HealthHandler{Config: d.Config, DB: d.DB, Redis: d.Redis, Log: d.Log}
	hierarchy := &HierarchyHandler{DB: d.DB}
	tagService := services.NewTagService(d.DB, d.Log)
	dbrTags := &TagHandler{Service: tagService, Scope: models.ScopeDatabaseRelease}
	reTags := &TagHandler{Service: tagService, Scope: models.ScopeReportingEffort}
	lists := &DistributionListHandler{Service: services.NewDistributionListService(d.DB, d.Log)}
	outputs := &OutputHandler{
		Outputs:   services.NewOutputService(d.Config, d.DB, d.Store, d.Log),
		Downloads: services.NewDownloadService(d.Config, d.DB, d.Store, d.Watermark, d.Log),
	}
	reporting := &ReportingHandler{Service: services.NewReportingService(d.DB, d.Log)}

	audit := func(entity string, ids middleware.IDResolver) fiber.Handler {
		return middleware.Audit(d.Audit, entity, ids)
	}
	tagID := middleware.ParamID("tagId")

	api := app.Group("/api")
	api.Use(middleware.VersionMiddleware())
	api.Use(middleware.RequestID())
	api.Get("/health", health.Health)

	v1 := api.Group("/v1", middleware.Principal(d.Config, d.DB, d.Log))

	v1.Get("/users/me", hierarchy.Me)
	v1.Post("/compounds", hierarchy.CreateCompound)
	v1.Get("/compounds", hierarchy.ListCompounds)
	v1.Post("/studies", hierarchy.CreateStudy)
	v1.Get("/studies", hierarchy.ListStudies)
	v1.Post("/dbrs", hierarchy.CreateDatabaseRelease)
	v1.Get("/dbrs", hierarchy.ListDatabaseReleases)
	v1.Post("/res", hierarchy.CreateReportingEffort)
	v1.Get("/res", hierarchy.ListReportingEfforts)

	for prefix, h := range map[string]*TagHandler{"/dbrs/:parentId/tags": dbrTags, "/res/:parentId/tags": reTags} {
		tags := v1.Group(prefix)
		tags.Post("/", audit(services.EntityTag, nil), h.Create)
		tags.Get("/", h.List)
		tags.Get("/:tagId", h.Get)
		tags.Put("/:tagId", audit(services.EntityTag, tagID), h.Update)
		tags.Delete("/:tagId", audit(services.EntityTag, tagID), h.Delete)
		tags.Post("/:tagId/records", audit(services.EntityTag, tagID), h.AddRecords)
		tags.Delete("/:tagId/records", audit(services.EntityTag, tagID), h.RemoveRecords)
		tags.Post("/:tagId/users", audit(services.EntityTag, tagID), h.AddUsers)
		tags.Delete("/:tagId/users", audit(services.EntityTag, tagID), h.RemoveUsers)
	}

	listID := middleware.ParamID("id")
	v1.Post("/distribution-lists", audit(services.EntityDistributionList, nil), lists.Create)
	v1.Get("/distribution-lists", lists.List)
	v1.Get("/distribution-lists/:id", lists.Get)
	v1.Put("/distribution-lists/:id", audit(services.EntityDistributionList, listID), lists.Update)
	v1.Delete("/distribution-lists/:id", audit(services.EntityDistributionList, listID), lists.Delete)

	v1.Post("/output-details/sync", audit(services.EntityTag, middleware.BodyIDs("tag_id")), outputs.Sync)
	v1.Post("/output-details/download", audit(services.EntityOutputDetail, nil), outputs.Download)
	v1.Post("/output-details", audit(services.EntityOutputDetail, nil), outputs.Create)
	v1.Get("/output-details", outputs.List)
	v1.Delete("/output-details", audit(services.EntityOutputDetail, middleware.BodyIDs("ids")), outputs.BulkDelete)
	v1.Get("/output-details/:id", outputs.Get)
	v1.Post("/output-details/:id/versions", audit(services.EntityOutputDetail, middleware.ParamID("id")), outputs.Promote)

	v1.Get("/shared-folder-metrics/export", reporting.ExportSharedMetrics)
	v1.Get("/shared-folder-metrics", reporting.SharedMetrics)
	v1.Get("/audit-logs", reporting.AuditLogs)
}
