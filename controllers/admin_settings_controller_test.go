package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newSettingsFixture(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.SiteSetting{}))
	config.DB = db

	r := gin.New()
	r.GET("/v1/admin/maintenance", GetMaintenanceSettings)
	r.PUT("/v1/admin/maintenance", UpdateMaintenanceSettings)
	r.GET("/v1/status/maintenance", MaintenanceStatus)
	return r
}

func getMaintenance(r *gin.Engine, path string) map[string]any {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var resp struct {
		Data map[string]any `json:"data"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return resp.Data
}

func TestMaintenanceSettingsDefaults(t *testing.T) {
	r := newSettingsFixture(t)

	data := getMaintenance(r, "/v1/admin/maintenance")
	assert.Equal(t, false, data["enabled"])
	assert.Equal(t, "Under Maintenance", data["title"])
	assert.Equal(t, "We're performing scheduled maintenance. We'll be back soon!", data["message"])
}

func TestMaintenanceToggleRoundTrip(t *testing.T) {
	r := newSettingsFixture(t)

	body, _ := json.Marshal(map[string]any{
		"enabled": true,
		"title":   "Back at noon",
		"message": "Settlement upgrade in progress",
	})
	req := httptest.NewRequest(http.MethodPut, "/v1/admin/maintenance", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// The public status endpoint sees the toggle too.
	data := getMaintenance(r, "/v1/status/maintenance")
	assert.Equal(t, true, data["enabled"])
	assert.Equal(t, "Back at noon", data["title"])
	assert.Equal(t, "Settlement upgrade in progress", data["message"])

	// Toggling off overwrites the existing rows rather than duplicating them.
	body, _ = json.Marshal(map[string]any{"enabled": false})
	req = httptest.NewRequest(http.MethodPut, "/v1/admin/maintenance", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data = getMaintenance(r, "/v1/admin/maintenance")
	assert.Equal(t, false, data["enabled"])

	var count int64
	require.NoError(t, config.DB.Model(&models.SiteSetting{}).
		Where("key = ?", models.SettingMaintenanceEnabled).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}
