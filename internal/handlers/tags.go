package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/orca-tagsdb/internal/middleware"
	"github.com/localnerve/orca-tagsdb/internal/services"
)

// TagHandler serves the tag routes of one scope: database release or reporting effort
type TagHandler struct {
	Service *services.TagService
	Scope   string
}

type usersRequest struct {
	Usernames string `json:"usernames"`
}

func (h *TagHandler) path(c *fiber.Ctx) (parentID, tagID uint, err error) {
	if parentID, err = paramID(c, "parentId"); err != nil {
		return 0, 0, err
	}
	if c.Params("tagId") == "" {
		return parentID, 0, nil
	}
	tagID, err = paramID(c, "tagId")
	return parentID, tagID, err
}

// usernames reads the comma separated names from the body, or the query string when the body has none
func usernames(c *fiber.Ctx) (string, error) {
	var in usersRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &in); err != nil {
			return "", err
		}
	}
	if in.Usernames == "" {
		in.Usernames = c.Query("usernames")
	}
	return in.Usernames, nil
}

// Create handles POST /api/v1/{dbrs|res}/:parentId/tags
// @Summary Create a tag
// @Description Creates a tag on the latest version of each output. Reviewers are refused.
// @Tags Tags
// @Accept json
// @Produce json
// @Param parentId path int true "Database release or reporting effort id"
// @Param body body services.TagCreate true "Tag"
// @Success 201 {object} services.TagResponse
// @Failure 400 {object} utils.ErrorResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /v1/dbrs/{parentId}/tags [post]
// @Router /v1/res/{parentId}/tags [post]
func (h *TagHandler) Create(c *fiber.Ctx) error {
	parentID, _, err := h.path(c)
	if err != nil {
		return err
	}
	var in services.TagCreate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	tag, err := h.Service.Create(middleware.PrincipalFrom(c), h.Scope, parentID, in)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(tag)
}

// List handles GET /api/v1/{dbrs|res}/:parentId/tags
// @Summary List the tags of a parent
// @Tags Tags
// @Produce json
// @Param parentId path int true "Database release or reporting effort id"
// @Param tagged_only query bool false "Reviewers only see tags they belong to"
// @Success 200 {array} services.TagResponse
// @Router /v1/dbrs/{parentId}/tags [get]
// @Router /v1/res/{parentId}/tags [get]
func (h *TagHandler) List(c *fiber.Ctx) error {
	parentID, _, err := h.path(c)
	if err != nil {
		return err
	}
	taggedOnly, err := queryBool(c, "tagged_only")
	if err != nil {
		return err
	}
	tags, err := h.Service.List(middleware.PrincipalFrom(c), h.Scope, parentID, taggedOnly != nil && *taggedOnly)
	if err != nil {
		return err
	}
	return c.JSON(tags)
}

// Get handles GET /api/v1/{dbrs|res}/:parentId/tags/:tagId
// @Summary Get a tag
// @Tags Tags
// @Produce json
// @Param parentId path int true "Database release or reporting effort id"
// @Param tagId path int true "Tag id"
// @Success 200 {object} services.TagResponse
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /v1/dbrs/{parentId}/tags/{tagId} [get]
// @Router /v1/res/{parentId}/tags/{tagId} [get]
func (h *TagHandler) Get(c *fiber.Ctx) error {
	parentID, tagID, err := h.path(c)
	if err != nil {
		return err
	}
	tag, err := h.Service.Get(h.Scope, parentID, tagID)
	if err != nil {
		return err
	}
	return c.JSON(tag)
}

// Update handles PUT /api/v1/{dbrs|res}/:parentId/tags/:tagId
// @Summary Update a tag
// @Tags Tags
// @Accept json
// @Produce json
// @Param parentId path int true "Database release or reporting effort id"
// @Param tagId path int true "Tag id"
// @Param body body services.TagUpdate true "Fields to change"
// @Success 200 {object} services.TagResponse
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /v1/dbrs/{parentId}/tags/{tagId} [put]
// @Router /v1/res/{parentId}/tags/{tagId} [put]
func (h *TagHandler) Update(c *fiber.Ctx) error {
	parentID, tagID, err := h.path(c)
	if err != nil {
		return err
	}
	var in services.TagUpdate
	if err := parseBody(c, &in); err != nil {
		return err
	}
	tag, err := h.Service.Update(middleware.PrincipalFrom(c), h.Scope, parentID, tagID, in)
	if err != nil {
		return err
	}
	return c.JSON(tag)
}

// Delete handles DELETE /api/v1/{dbrs|res}/:parentId/tags/:tagId
// @Summary Delete a tag
// @Tags Tags
// @Produce json
// @Param parentId path int true "Database release or reporting effort id"
// @Param tagId path int true "Tag id"
// @Success 200 {object} utils.MessageResponseStruct
// @Failure 403 {object} utils.ErrorResponseStruct
// @Failure 404 {object} utils.ErrorResponseStruct
// @Router /v1/dbrs/{parentId}/tags/{tagId} [delete]
// @Router /v1/res/{parentId}/tags/{tagId} [delete]
func (h *TagHandler) Delete(c *fiber.Ctx) error {
	parentID, tagID, err := h.path(c)
	if err != nil {
		return err
	}
	if err := h.Service.Delete(middleware.PrincipalFrom(c), h.Scope, parentID, tagID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Tag deleted", "ok": true, "id": tagID})
}

// AddRecords handles POST /api/v1/{dbrs|res}/:parentId/tags/:tagId/records
// @Summary Attach outputs to a tag
// @Tags Tags
// @Accept json
// @Produce json
// @Param parentId path int true "Database release or reporting effort id"
// @Param tagId path int true "Tag id"
// @Param body body services.RecordsRequest true "Output ids"
// @Success 200 {object} services.AddRecordsResult
// @Failure 409 {object} utils.ErrorResponseStruct
// @Router /v1/dbrs/{parentId}/tags/{tagId}/records [post]
// @Router /v1/res/{parentId}/tags/{tagId}/records [post]
func (h *TagHandler) AddRecords(c *fiber.Ctx) error {
	parentID, tagID, err := h.path(c)
	if err != nil {
		return err
	}
	var in services.RecordsRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := h.Service.AddRecords(middleware.PrincipalFrom(c), h.Scope, parentID, tagID, in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// RemoveRecords handles DELETE /api/v1/{dbrs|res}/:parentId/tags/:tagId/records
// @Summary Detach outputs from a tag
// @Tags Tags
// @Accept json
// @Produce json
// @Param parentId path int true "Database release or reporting effort id"
// @Param tagId path int true "Tag id"
// @Param body body services.RecordsRequest true "Output ids"
// @Success 200 {object} services.RemoveRecordsResult
// @Failure 400 {object} utils.ErrorResponseStruct
// @Router /v1/dbrs/{parentId}/tags/{tagId}/records [delete]
// @Router /v1/res/{parentId}/tags/{tagId}/records [delete]
func (h *TagHandler) RemoveRecords(c *fiber.Ctx) error {
	parentID, tagID, err := h.path(c)
	if err != nil {
		return err
	}
	var in services.RecordsRequest
	if err := parseBody(c, &in); err != nil {
		return err
	}
	res, err := h.Service.RemoveRecords(middleware.PrincipalFrom(c), h.Scope, parentID, tagID, in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// AddUsers handles POST /api/v1/{dbrs|res}/:parentId/tags/:tagId/users
// @Summary Add direct members to a tag
// @Tags Tags
// @Accept json
// @Produce json
// @Param parentId path int true "Database release or reporting effort id"
// @Param tagId path int true "Tag id"
// @Param body body usersRequest true "Comma separated usernames"
// @Success 200 {object} services.TagUsersResult
// @Router /v1/dbrs/{parentId}/tags/{tagId}/users [post]
// @Router /v1/res/{parentId}/tags/{tagId}/users [post]
func (h *TagHandler) AddUsers(c *fiber.Ctx) error {
	parentID, tagID, err := h.path(c)
	if err != nil {
		return err
	}
	names, err := usernames(c)
	if err != nil {
		return err
	}
	res, err := h.Service.AddUsers(middleware.PrincipalFrom(c), h.Scope, parentID, tagID, names)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// RemoveUsers handles DELETE /api/v1/{dbrs|res}/:parentId/tags/:tagId/users
// @Summary Remove direct members from a tag
// @Tags Tags
// @Accept json
// @Produce json
// @Param parentId path int true "Database release or reporting effort id"
// @Param tagId path int true "Tag id"
// @Param usernames query string false "Comma separated usernames"
// @Success 200 {object} services.TagUsersResult
// @Router /v1/dbrs/{parentId}/tags/{tagId}/users [delete]
// @Router /v1/res/{parentId}/tags/{tagId}/users [delete]
func (h *TagHandler) RemoveUsers(c *fiber.Ctx) error {
	parentID, tagID, err := h.path(c)
	if err != nil {
		return err
	}
	names, err := usernames(c)
	if err != nil {
		return err
	}
	res, err := h.Service.RemoveUsers(middleware.PrincipalFrom(c), h.Scope, parentID, tagID, names)
	if err != nil {
		return err
	}
	return c.JSON(res)
}
