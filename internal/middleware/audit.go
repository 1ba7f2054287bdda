package middleware

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/services"
	"github.com/localnerve/orca-tagsdb/internal/types"
)

const localDownloaded = "downloadedFiles"

// IDResolver names the rows a mutating request targets, before it runs
type IDResolver func(c *fiber.Ctx) []uint

// ParamID reads one id from a route parameter
func ParamID(name string) IDResolver {
	return func(c *fiber.Ctx) []uint {
		id, err := c.ParamsInt(name)
		if err != nil || id <= 0 {
			return nil
		}
		return []uint{uint(id)}
	}
}

// BodyIDs reads ids from a JSON body field holding one id or a list of them
func BodyIDs(field string) IDResolver {
	return func(c *fiber.Ctx) []uint {
		var body map[string]json.RawMessage
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return nil
		}
		raw, ok := body[field]
		if !ok {
			return nil
		}
		var ids types.FlexList[types.FlexID]
		if err := json.Unmarshal(raw, &ids); err != nil {
			return nil
		}
		return types.IDs(ids)
	}
}

// SetDownloaded hands the served files of a download to the audit middleware
func SetDownloaded(c *fiber.Ctx, files []services.DownloadedFile) {
	c.Locals(localDownloaded, files)
}

func auditMeta(c *fiber.Ctx, action string) services.AuditMeta {
	p := PrincipalFrom(c)
	return services.AuditMeta{
		RequestID: RequestIDFrom(c),
		UserName:  p.Username,
		ProgramID: p.ProgramID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
}

// createdID reads the id of a newly created row from the JSON response
func createdID(c *fiber.Ctx) uint {
	var body struct {
		ID types.FlexID `json:"id"`
	}
	if err := json.Unmarshal(c.Response().Body(), &body); err != nil {
		return 0
	}
	return body.ID.Uint()
}

// Audit snapshots the targeted entity rows around a successful mutation and emits the diff.
// Reads and failed requests are not audited, and audit problems never change the response.
func Audit(engine *services.AuditEngine, entity string, ids IDResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		action := services.ClassifyAction(c.Method(), c.Path())
		if action == "" || engine == nil {
			return c.Next()
		}
		meta := auditMeta(c, action)
		ctx := c.UserContext()

		var capture *services.AuditCapture
		if action != models.ActionDownload {
			var targets []uint
			if ids != nil {
				targets = ids(c)
			}
			capture = engine.Begin(ctx, meta, entity, targets)
		}

		if err := c.Next(); err != nil {
			return err
		}
		if c.Response().StatusCode() >= fiber.StatusBadRequest {
			return nil
		}

		if capture == nil {
			if files, ok := c.Locals(localDownloaded).([]services.DownloadedFile); ok {
				engine.RecordDownload(ctx, meta, files)
			}
			return nil
		}

		var created uint
		if action == models.ActionCreate {
			created = createdID(c)
		}
		capture.Commit(ctx, created)
		return nil
	}
}
