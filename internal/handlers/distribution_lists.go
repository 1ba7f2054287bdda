package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/orca-tagsdb/internal/middleware"
	"github.com/localnerve/orca-tagsdb/internal/services"
)

type DistributionListHandler struct {
	Service *services.DistributionListService
}

// Create handles POST /api/v1/distribution-lists
// @Summary Create a user list
// @Description The caller becomes a co-owner.
// @Tags DistributionLists
// @Accept json
// @Produce json
// @Param body body services.DistributionListCreate true "User list"
// @Success 201 {object} models.DistributionList
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /v1/distribution-lists [post]
func (h *DistributionListHandler) Create(c *fiber.Ctx) error {
	var in services.DistributionListCreate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	dl, err := h.Service.Create(middleware.PrincipalFrom(c), in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dl)
}

// List handles GET /api/v1/distribution-lists
// @Summary List user lists
// @Tags DistributionLists
// @Produce json
// @Param compound_id query int false "Compound id"
// @Param study_id query int false "Study id"
// @Param database_release_id query int false "Database release id"
// @Param name query string false "Name contains"
// @Success 200 {array} models.DistributionList
// @Router /v1/distribution-lists [get]
func (h *DistributionListHandler) List(c *fiber.Ctx) error {
	var f services.DistributionListFilter
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
	f.Name = c.Query("name")

	lists, err := h.Service.List(f)
	if err != nil {
		return err
	}
	return c.JSON(lists)
}

// Get handles GET /api/v1/distribution-lists/:id
// @Summary Get a user list
// @Tags DistributionLists
// @Produce json
// @Param id path int true "User list id"
// @Success 200 {object} models.DistributionList
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /v1/distribution-lists/{id} [get]
func (h *DistributionListHandler) Get(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	dl, err := h.Service.Get(id)
	if err != nil {
		return err
	}
	return c.JSON(dl)
}

// Update handles PUT /api/v1/distribution-lists/:id
// @Summary Update a user list
// @Description Only the creator or a co-owner may change a list.
// @Tags DistributionLists
// @Accept json
// @Produce json
// @Param id path int true "User list id"
// @Param body body services.DistributionListUpdate true "Fields to change"
// @Success 200 {object} models.DistributionList
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /v1/distribution-lists/{id} [put]
func (h *DistributionListHandler) Update(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var in services.DistributionListUpdate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	dl, err := h.Service.Update(middleware.PrincipalFrom(c), id, in)
	if err != nil {
		return err
	}
	return c.JSON(dl)
}

// Delete handles DELETE /api/v1/distribution-lists/:id
// @Summary Delete a user list
// @Tags DistributionLists
// @Produce json
// @Param id path int true "User list id"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Router /v1/distribution-lists/{id} [delete]
func (h *DistributionListHandler) Delete(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if err := h.Service.Delete(middleware.PrincipalFrom(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "User List deleted", "ok": true, "id": id})
}
