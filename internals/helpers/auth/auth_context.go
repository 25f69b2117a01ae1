// file: internals/helpers/auth/auth_context.go
package helper

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

/* ============================================
   Locals Keys (middleware should set these)
   ============================================ */

const (
	LocRole      = "role"       // string: admin|teacher|student|user
	LocUserID    = "user_id"    // string UUID
	LocSchoolID  = "school_id"  // string UUID (tenant aktif)
	LocTeacherID = "teacher_id" // string UUID (opsional)
	LocStudentID = "student_id" // string UUID (opsional)
)

func parseUUIDFromLocals(c *fiber.Ctx, key string) (uuid.UUID, error) {
	v := c.Locals(key)
	if v == nil {
		return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, key+" tidak ditemukan di token")
	}
	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case string:
		id, err := uuid.Parse(strings.TrimSpace(t))
		if err != nil || id == uuid.Nil {
			return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, key+" tidak valid")
		}
		return id, nil
	}
	return uuid.Nil, fiber.NewError(fiber.StatusUnauthorized, key+" tidak valid")
}

func GetUserIDFromToken(c *fiber.Ctx) (uuid.UUID, error) {
	return parseUUIDFromLocals(c, LocUserID)
}

// ResolveSchoolIDFromContext: tenant id SELALU eksplisit dari token,
// tidak pernah dari state global.
func ResolveSchoolIDFromContext(c *fiber.Ctx) (uuid.UUID, error) {
	return parseUUIDFromLocals(c, LocSchoolID)
}

func GetRole(c *fiber.Ctx) string {
	if v := c.Locals(LocRole); v != nil {
		if s, ok := v.(string); ok {
			return strings.ToLower(strings.TrimSpace(s))
		}
	}
	return ""
}

// EnsureAdmin: guard untuk aksi admin sekolah.
func EnsureAdmin(c *fiber.Ctx) error {
	if r := GetRole(c); r != "admin" && r != "owner" {
		return fiber.NewError(fiber.StatusForbidden, "Hanya admin yang boleh melakukan aksi ini")
	}
	return nil
}

// EnsureTeacherOrAdmin: guard untuk aksi pengajar (cancel/complete/override dsb).
func EnsureTeacherOrAdmin(c *fiber.Ctx) error {
	switch GetRole(c) {
	case "admin", "owner", "teacher":
		return nil
	}
	return fiber.NewError(fiber.StatusForbidden, "Hanya teacher/admin yang boleh melakukan aksi ini")
}
