package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/orca-tagsdb/internal/middleware"
	"github.com/localnerve/orca-tagsdb/internal/services"
)

// OutputHandler serves output ingestion, versions, sync, bulk delete and download
type OutputHandler struct {
	Outputs   *services.OutputService
	Downloads *services.DownloadService
}

// Create handles POST /api/v1/output-details
// @Summary Ingest an output with its first version
// @Tags Outputs
// @Accept json
// @Produce json
// @Param body body services.OutputCreate true "Output"
// @Success 201 {object} models.OutputDetail
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /v1/output-details [post]
func (h *OutputHandler) Create(c *fiber.Ctx) error {
	var in services.OutputCreate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	output, err := h.Outputs.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(output)
}

// List handles GET /api/v1/output-details
// @Summary List outputs with their latest version
// @Description Reviewers only see outputs reachable through their tags.
// @Tags Outputs
// @Produce json
// @Param compound_id query int false "Compound id"
// @Param study_id query int false "Study id"
// @Param database_release_id query int false "Database release id"
// @Param reporting_effort_id query int false "Reporting effort id"
// @Param identifier query string false "Identifier"
// @Param source_name query string false "Source name"
// @Success 200 {array} models.OutputDetail
// @Router /v1/output-details [get]
func (h *OutputHandler) List(c *fiber.Ctx) error {
	var f services.OutputFilter
	var err error
	if f.CompoundID, err = queryID(c, "compound_id"); err != nil {
		return err
	}
	if f.StudyID, err = queryID(c, "study_id"); err != nil {
		return err
	}
	if f.DatabaseReleaseID, err = queryID(c, "database_release_id"); err != nil {
		return err
	}
	if f.ReportingEffortID, err = queryID(c, "reporting_effort_id"); err != nil {
		return err
	}
	f.Identifier = c.Query("identifier")
	f.SourceName = c.Query("source_name")

	outputs, err := h.Outputs.List(middleware.PrincipalFrom(c), f)
	if err != nil {
		return err
	}
	return c.JSON(outputs)
}

// Get handles GET /api/v1/output-details/:id
// @Summary Get an output with every version
// @Tags Outputs
// @Produce json
// @Param id path int true "Output id"
// @Success 200 {object} models.OutputDetail
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /v1/output-details/{id} [get]
func (h *OutputHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	output, err := h.Outputs.Get(middleware.PrincipalFrom(c), id)
	if err != nil {
		return err
	}
	return c.JSON(output)
}

// Promote handles POST /api/v1/output-details/:id/versions
// @Summary Promote a new latest version
// @Description The new version starts untagged; tags are copied onto it with the sync route.
// @Tags Outputs
// @Accept json
// @Produce json
// @Param id path int true "Output id"
// @Param body body services.VersionCreate true "Version"
// @Success 201 {object} models.OutputDetailVersion
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /v1/output-details/{id}/versions [post]
func (h *OutputHandler) Promote(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.VersionCreate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	version, err := h.Outputs.Promote(c.UserContext(), id, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(version)
}

// Sync handles POST /api/v1/output-details/sync
// @Summary Copy a tag onto the latest versions
// @Tags Outputs
// @Accept json
// @Produce json
// @Param body body services.SyncRequest true "Tag and optional outputs"
// @Success 200 {object} services.SyncResult
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /v1/output-details/sync [post]
func (h *OutputHandler) Sync(c *fiber.Ctx) error {
	var in services.SyncRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := h.Outputs.Sync(c.UserContext(), middleware.PrincipalFrom(c), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// BulkDelete handles DELETE /api/v1/output-details
// @Summary Delete outputs with their versions
// @Description Tags left on no version are deleted with their user list links.
// @Tags Outputs
// @Accept json
// @Produce json
// @Param body body services.BulkDeleteRequest true "Output ids"
// @Success 200 {object} services.BulkDeleteResult
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /v1/output-details [delete]
func (h *OutputHandler) BulkDelete(c *fiber.Ctx) error {
	var in services.BulkDeleteRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := h.Outputs.BulkDelete(c.UserContext(), middleware.PrincipalFrom(c), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// Download handles POST /api/v1/output-details/download
// @Summary Build a zip of output files
// @Description Returns a presigned link to the archive. Reviewers may only download files their tags reach.
// @Tags Outputs
// @Accept json
// @Produce json
// @Param body body services.DownloadRequest true "File ids and optional tag"
// @Success 200 {object} services.DownloadResult
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /v1/output-details/download [post]
func (h *OutputHandler) Download(c *fiber.Ctx) error {
	var in services.DownloadRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := h.Downloads.Download(c.UserContext(), middleware.PrincipalFrom(c), in)
	if err != nil {
		return err
	}
	middleware.SetDownloaded(c, res.Served)
	return c.JSON(res)
}
