package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/grade-insight-api/internal/models"
)

type stubClassChecker struct {
	owned map[int64]int64
}

func (s *stubClassChecker) HasTeacher(_ context.Context, classID, teacherID int64) (bool, error) {
	return s.owned[classID] == teacherID, nil
}

func classAccessRouter(checker ClassAccessChecker, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/classes/:classId", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, ClassAccess(checker), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return r
}

func doClassRequest(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestClassAccessAdminAlwaysPasses(t *testing.T) {
	r := classAccessRouter(&stubClassChecker{}, &models.JWTClaims{UserID: 1, Role: models.RoleAdmin})

	w := doClassRequest(r, "/classes/7")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestClassAccessTeacherOwningClassPasses(t *testing.T) {
	checker := &stubClassChecker{owned: map[int64]int64{7: 42}}
	r := classAccessRouter(checker, &models.JWTClaims{UserID: 42, Role: models.RoleTeacher})

	w := doClassRequest(r, "/classes/7")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestClassAccessTeacherWithoutClassForbidden(t *testing.T) {
	checker := &stubClassChecker{owned: map[int64]int64{7: 99}}
	r := classAccessRouter(checker, &models.JWTClaims{UserID: 42, Role: models.RoleTeacher})

	w := doClassRequest(r, "/classes/7")
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestClassAccessRejectsBadClassID(t *testing.T) {
	r := classAccessRouter(&stubClassChecker{}, &models.JWTClaims{UserID: 42, Role: models.RoleTeacher})

	w := doClassRequest(r, "/classes/abc")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClassAccessRequiresClaims(t *testing.T) {
	r := classAccessRouter(&stubClassChecker{}, nil)

	w := doClassRequest(r, "/classes/7")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
