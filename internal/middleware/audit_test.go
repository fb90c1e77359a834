package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-desk/grievance-api/internal/models"
)

type recordingAuditRecorder struct {
	logs []*models.AuditLog
}

func (r *recordingAuditRecorder) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func runAudit(t *testing.T, recorder *recordingAuditRecorder, claims *models.JWTClaims, handlerStatus int) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
	})
	r.Use(Audit(recorder, models.AuditActionRegisterExport, "grievances"))
	r.GET("/grievances/export", func(c *gin.Context) {
		c.Status(handlerStatus)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/grievances/export", nil))
}

func TestAuditRecordsSuccessfulRequest(t *testing.T) {
	recorder := &recordingAuditRecorder{}
	runAudit(t, recorder, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}, http.StatusOK)

	require.Len(t, recorder.logs, 1)
	entry := recorder.logs[0]
	assert.Equal(t, models.AuditActionRegisterExport, entry.Action)
	assert.Equal(t, "grievances", entry.Resource)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "admin-1", *entry.UserID)

	var detail map[string]interface{}
	require.NoError(t, json.Unmarshal(entry.NewValues, &detail))
	assert.Equal(t, "GET", detail["method"])
	assert.Equal(t, float64(http.StatusOK), detail["status"])
}

func TestAuditSkipsFailedRequest(t *testing.T) {
	recorder := &recordingAuditRecorder{}
	runAudit(t, recorder, &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}, http.StatusForbidden)

	assert.Empty(t, recorder.logs)
}

func TestAuditWithoutClaimsLeavesUserNil(t *testing.T) {
	recorder := &recordingAuditRecorder{}
	runAudit(t, recorder, nil, http.StatusOK)

	require.Len(t, recorder.logs, 1)
	assert.Nil(t, recorder.logs[0].UserID)
}
