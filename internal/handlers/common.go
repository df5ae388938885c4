// common.go
//
// Collaborative item catalog data service for jam-build
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of jam-build-cmdb.
// jam-build-cmdb is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// jam-build-cmdb is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with jam-build-cmdb.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package handlers

import (
	"errors"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/localnerve/jam-build-cmdb/internal/middleware"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"github.com/localnerve/jam-build-cmdb/internal/utils"
)

// statusOf maps a domain error kind onto an HTTP status and envelope type
func statusOf(kind types.Kind) (int, string) {
	switch kind {
	case types.KindNotFound:
		return fiber.StatusNotFound, "notfound"
	case types.KindForbidden:
		return fiber.StatusForbidden, "forbidden"
	case types.KindBlocked:
		return fiber.StatusForbidden, "blocked"
	case types.KindIdentityMismatch:
		return fiber.StatusForbidden, "identity"
	case types.KindAlreadyLiked:
		return fiber.StatusConflict, "liked"
	case types.KindInvalidState:
		return fiber.StatusUnprocessableEntity, "invalid"
	case types.KindConflict:
		return fiber.StatusConflict, "conflict"
	case types.KindPartialFailure:
		return fiber.StatusMultiStatus, "partial"
	}
	return fiber.StatusInternalServerError, "upstream"
}

// respondError sends the envelope for a service error. Upstream and Conflict
// details are logged, not returned.
func respondError(c *fiber.Ctx, op string, err error) error {
	kind := types.KindOf(err)
	status, errorType := statusOf(kind)

	var typed *types.Error
	hasTyped := errors.As(err, &typed)

	switch kind {
	case types.KindUpstream, types.KindConflict:
		var ids []string
		if hasTyped {
			ids = typed.IDs
		}
		log.Printf("%s failed: actor=%q params=%v ids=%v: %v", op, middleware.ActorID(c), c.AllParams(), ids, err)
		message := "Something went wrong, could not complete " + op + "."
		if kind == types.KindConflict {
			message = "Could not complete " + op + "; records need reconciliation."
		}
		return utils.ErrorResponse(c, message, status, errorType)
	case types.KindPartialFailure:
		return utils.PartialFailureResponse(c, typed.Message, typed.IDs)
	}

	message := err.Error()
	if hasTyped && typed.Message != "" {
		message = typed.Message
	}
	return utils.ErrorResponse(c, message, status, errorType)
}

// ErrorHandler handles errors that escape the handlers
func ErrorHandler(c *fiber.Ctx, err error) error {
	var custom *types.CustomError
	if errors.As(err, &custom) {
		return utils.ErrorResponse(c, custom.Message, custom.Code, custom.Type)
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		return utils.ErrorResponse(c, fe.Message, fe.Code, "unknown")
	}

	var typed *types.Error
	if errors.As(err, &typed) {
		return respondError(c, typed.Op, err)
	}

	log.Printf("Unhandled error on %s %s: %v", c.Method(), c.OriginalURL(), err)
	return utils.ErrorResponse(c, "Internal Server Error", fiber.StatusInternalServerError, "unknown")
}

// validationError rejects a request before it reaches the core
func validationError(c *fiber.Ctx, message string) error {
	return utils.ErrorResponse(c, message, fiber.StatusUnprocessableEntity, "validation")
}

// lengthBetween checks the trimmed rune length of s
func lengthBetween(s string, min, max int) bool {
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	return n >= min && n <= max
}

// cleanList trims entries and drops empty ones
func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
