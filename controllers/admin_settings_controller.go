package controllers

import (
	"time"

	"github.com/gamersarena/GamersArena/config"
	"github.com/gamersarena/GamersArena/models"
	"github.com/gamersarena/GamersArena/utils"
	"github.com/gin-gonic/gin"
)

const (
	defaultMaintenanceTitle   = "Under Maintenance"
	defaultMaintenanceMessage = "We're performing scheduled maintenance. We'll be back soon!"
)

func getSetting(key string) string {
	var setting models.SiteSetting
	if err := config.DB.Where("key = ?", key).First(&setting).Error; err != nil {
		return ""
	}
	return setting.Value
}

func setSetting(key, value string) error {
	var setting models.SiteSetting
	if err := config.DB.Where("key = ?", key).First(&setting).Error; err != nil {
		return config.DB.Create(&models.SiteSetting{Key: key, Value: value}).Error
	}
	return config.DB.Model(&setting).Update("value", value).Error
}

func maintenanceSettings() gin.H {
	title := getSetting(models.SettingMaintenanceTitle)
	if title == "" {
		title = defaultMaintenanceTitle
	}
	message := getSetting(models.SettingMaintenanceMessage)
	if message == "" {
		message = defaultMaintenanceMessage
	}
	return gin.H{
		"enabled":  getSetting(models.SettingMaintenanceEnabled) == "true",
		"end_time": getSetting(models.SettingMaintenanceEndTime),
		"title":    title,
		"message":  message,
	}
}

// GetMaintenanceSettings returns the current maintenance mode settings
func GetMaintenanceSettings(c *gin.Context) {
	utils.Success(c, "Maintenance settings fetched", maintenanceSettings())
}

// MaintenanceSettingsRequest represents a maintenance mode update body
type MaintenanceSettingsRequest struct {
	Enabled bool       `json:"enabled"`
	EndTime *time.Time `json:"end_time"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// UpdateMaintenanceSettings toggles maintenance mode and its banner text
func UpdateMaintenanceSettings(c *gin.Context) {
	var req MaintenanceSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request format", err.Error())
		return
	}

	enabled := "false"
	if req.Enabled {
		enabled = "true"
	}
	endTime := ""
	if req.EndTime != nil {
		endTime = req.EndTime.Format(time.RFC3339)
	}
	title := req.Title
	if title == "" {
		title = defaultMaintenanceTitle
	}
	message := req.Message
	if message == "" {
		message = defaultMaintenanceMessage
	}

	pairs := map[string]string{
		models.SettingMaintenanceEnabled: enabled,
		models.SettingMaintenanceEndTime: endTime,
		models.SettingMaintenanceTitle:   title,
		models.SettingMaintenanceMessage: message,
	}
	for key, value := range pairs {
		if err := setSetting(key, value); err != nil {
			utils.LogError("Failed to save setting %s: %v", key, err)
			utils.InternalServerError(c, "Failed to update maintenance settings", nil)
			return
		}
	}

	utils.LogInfo("Maintenance mode set to %s", enabled)
	utils.Success(c, "Maintenance settings updated successfully", maintenanceSettings())
}

// MaintenanceStatus is the public view of maintenance mode, for clients to
// decide whether to show the maintenance screen
func MaintenanceStatus(c *gin.Context) {
	utils.Success(c, "Maintenance status fetched", maintenanceSettings())
}
