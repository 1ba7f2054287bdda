package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/orca-tagsdb/internal/middleware"
	"github.com/localnerve/orca-tagsdb/internal/models"
	"github.com/localnerve/orca-tagsdb/internal/services"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"gorm.io/gorm"
)

// HierarchyHandler serves the compound, study, database release and reporting effort routes
type HierarchyHandler struct {
	DB *gorm.DB
}

type compoundCreate struct {
	Name   string `json:"name"`
	Source string `json:"source"`
}

type childCreate struct {
	Name     string       `json:"name"`
	ParentID types.FlexID `json:"parent_id"`
}

// MeResponse is the resolved caller
type MeResponse struct {
	Username  string `json:"username"`
	Role      string `json:"role"`
	ProgramID string `json:"program_id,omitempty"`
}

// CreateCompound handles POST /api/v1/compounds
// @Summary Create a compound
// @Tags Hierarchy
// @Accept json
// @Produce json
// @Param body body compoundCreate true "Compound name and source (PROD, PREPROD, DOCS)"
// @Success 201 {object} models.Compound
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /v1/compounds [post]
func (h *HierarchyHandler) CreateCompound(c *fiber.Ctx) error {
	var in compoundCreate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	compound, err := services.CreateCompound(h.DB, in.Name, in.Source)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(compound)
}

// ListCompounds handles GET /api/v1/compounds
// @Summary List compounds
// @Tags Hierarchy
// @Produce json
// @Success 200 {array} models.Compound
// @Router /v1/compounds [get]
func (h *HierarchyHandler) ListCompounds(c *fiber.Ctx) error {
	rows, err := services.ListChildren[models.Compound](h.DB, "source_id", 0)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// CreateStudy handles POST /api/v1/studies
// @Summary Create a study under a compound
// @Tags Hierarchy
// @Accept json
// @Produce json
// @Param body body childCreate true "Study name and compound id as parent_id"
// @Success 201 {object} models.Study
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /v1/studies [post]
func (h *HierarchyHandler) CreateStudy(c *fiber.Ctx) error {
	var in childCreate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	study, err := services.CreateStudy(h.DB, in.Name, in.ParentID.Uint())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(study)
}

// ListStudies handles GET /api/v1/studies?compound_id=
// @Summary List studies
// @Tags Hierarchy
// @Produce json
// @Param compound_id query int false "Compound id"
// @Success 200 {array} models.Study
// @Router /v1/studies [get]
func (h *HierarchyHandler) ListStudies(c *fiber.Ctx) error {
	parent, err := queryID(c, "compound_id")
	if err != nil {
		return err
	}
	rows, err := services.ListChildren[models.Study](h.DB, "compound_id", parent)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// CreateDatabaseRelease handles POST /api/v1/dbrs
// @Summary Create a database release under a study
// @Tags Hierarchy
// @Accept json
// @Produce json
// @Param body body childCreate true "Release name and study id as parent_id"
// @Success 201 {object} models.DatabaseRelease
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /v1/dbrs [post]
func (h *HierarchyHandler) CreateDatabaseRelease(c *fiber.Ctx) error {
	var in childCreate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	dbr, err := services.CreateDatabaseRelease(h.DB, in.Name, in.ParentID.Uint())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dbr)
}

// ListDatabaseReleases handles GET /api/v1/dbrs?study_id=
// @Summary List database releases
// @Tags Hierarchy
// @Produce json
// @Param study_id query int false "Study id"
// @Success 200 {array} models.DatabaseRelease
// @Router /v1/dbrs [get]
func (h *HierarchyHandler) ListDatabaseReleases(c *fiber.Ctx) error {
	parent, err := queryID(c, "study_id")
	if err != nil {
		return err
	}
	rows, err := services.ListChildren[models.DatabaseRelease](h.DB, "study_id", parent)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// CreateReportingEffort handles POST /api/v1/res
// @Summary Create a reporting effort under a database release
// @Tags Hierarchy
// @Accept json
// @Produce json
// @Param body body childCreate true "Effort name and database release id as parent_id"
// @Success 201 {object} models.ReportingEffort
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /v1/res [post]
func (h *HierarchyHandler) CreateReportingEffort(c *fiber.Ctx) error {
	var in childCreate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	re, err := services.CreateReportingEffort(h.DB, in.Name, in.ParentID.Uint())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(re)
}

// ListReportingEfforts handles GET /api/v1/res?database_release_id=
// @Summary List reporting efforts
// @Tags Hierarchy
// @Produce json
// @Param database_release_id query int false "Database release id"
// @Success 200 {array} models.ReportingEffort
// @Router /v1/res [get]
func (h *HierarchyHandler) ListReportingEfforts(c *fiber.Ctx) error {
	parent, err := queryID(c, "database_release_id")
	if err != nil {
		return err
	}
	rows, err := services.ListChildren[models.ReportingEffort](h.DB, "database_release_id", parent)
	if err != nil {
		return err
	}
	return c.JSON(rows)
}

// Me handles GET /api/v1/users/me
// @Summary Resolved caller and local role
// @Tags Users
// @Produce json
// @Success 200 {object} MeResponse
// @Router /v1/users/me [get]
func (h *HierarchyHandler) Me(c *fiber.Ctx) error {
	p := middleware.PrincipalFrom(c)
	return c.JSON(MeResponse{Username: p.Username, Role: p.Role, ProgramID: p.ProgramID})
}
