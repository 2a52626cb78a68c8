package middleware

import (
	"context"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/grade-insight-api/internal/models"
	appErrors "github.com/noah-isme/grade-insight-api/pkg/errors"
	"github.com/noah-isme/grade-insight-api/pkg/response"
)

// ClassAccessChecker answers whether a teacher is responsible for a class.
type ClassAccessChecker interface {
	HasTeacher(ctx context.Context, classID, teacherID int64) (bool, error)
}

// ClassAccess restricts class-scoped routes. Admins always pass; teachers
// must be the head teacher of the class named by the classId route param.
func ClassAccess(classes ClassAccessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if claims.Role == models.RoleAdmin {
			c.Next()
			return
		}

		classID, err := strconv.ParseInt(c.Param("classId"), 10, 64)
		if err != nil || classID <= 0 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid class id"))
			c.Abort()
			return
		}

		ok, err := classes.HasTeacher(c.Request.Context(), classID, claims.UserID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "no access to this class"))
			c.Abort()
			return
		}

		c.Next()
	}
}
