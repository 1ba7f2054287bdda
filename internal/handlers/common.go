// common.go
//
// Regulated output tagging and distribution data service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of orca-tagsdb.
// orca-tagsdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// orca-tagsdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with orca-tagsdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Laisky/errors/v2"
	"github.com/Laisky/zap"
	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/orca-tagsdb/internal/types"
	"github.com/localnerve/orca-tagsdb/internal/utils"
)

// ErrorHandler renders every error as the JSON error envelope.
// Anything that is not a CustomError or fiber error is logged and reported as internal.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var ce *types.CustomError
		if errors.As(err, &ce) {
			if ce.Code >= fiber.StatusInternalServerError {
				log.Error("request failed", zap.String("url", c.OriginalURL()), zap.Error(err))
			}
			return utils.ErrorResponse(c, ce.Code, ce.Message, ce.Type, ce.Field, ce.IDs)
		}

		var fe *fiber.Error
		if errors.As(err, &fe) {
			return utils.ErrorResponse(c, fe.Code, fe.Message, kindForStatus(fe.Code), "", nil)
		}

		log.Error("unhandled request error", zap.String("url", c.OriginalURL()), zap.Error(err))
		return utils.ErrorResponse(c, fiber.StatusInternalServerError,
			"An unexpected error occurred", types.KindInternal, "", nil)
	}
}

func kindForStatus(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return types.KindNotFound
	case fiber.StatusConflict:
		return types.KindConflict
	case fiber.StatusForbidden, fiber.StatusUnauthorized:
		return types.KindForbidden
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return types.KindValidation
	}
	return types.KindInternal
}

// NotFound is the catch-all route
func NotFound(c *fiber.Ctx) error {
	return utils.NotFoundResponse(c, "[404] Resource Not Found")
}

// parseBody decodes the JSON body; malformed input is a schema level validation failure
func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return &types.CustomError{
			Code:    fiber.StatusUnprocessableEntity,
			Message: fmt.Sprintf("Invalid request body: %v", err),
			Type:    types.KindValidation,
		}
	}
	return nil
}

// paramID reads a positive integer route parameter
func paramID(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, types.Validation(name, fmt.Sprintf("Invalid %s '%s'", name, raw))
	}
	return uint(id), nil
}

// queryID reads an optional positive integer query parameter; absent is zero
func queryID(c *fiber.Ctx, name string) (uint, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, types.Validation(name, fmt.Sprintf("Invalid %s '%s'", name, raw))
	}
	return uint(id), nil
}

// queryBool reads an optional boolean query parameter
func queryBool(c *fiber.Ctx, name string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, types.Validation(name, fmt.Sprintf("Invalid %s '%s'", name, raw))
	}
	return &v, nil
}
