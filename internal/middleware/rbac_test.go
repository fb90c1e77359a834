package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-desk/grievance-api/internal/models"
)

func runRBAC(t *testing.T, claims *models.JWTClaims, mw gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/protected", nil)
	if claims != nil {
		c.Set(ContextUserKey, claims)
	}
	mw(c)
	if !c.IsAborted() {
		c.Status(http.StatusOK)
	}
	return rec
}

func TestRequireRolesAllows(t *testing.T) {
	rec := runRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}, RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRolesDeniesOtherRole(t *testing.T) {
	rec := runRBAC(t, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}, RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRolesFailsClosedWithoutRole(t *testing.T) {
	rec := runRBAC(t, &models.JWTClaims{UserID: "u1"}, RequireAnyRole())
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ROLE_NOT_ASSIGNED", body.Error.Code)
}

func TestRequireRolesMissingClaims(t *testing.T) {
	rec := runRBAC(t, nil, RequireAnyRole())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
