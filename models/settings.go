package models

import "gorm.io/gorm"

// Maintenance setting keys
const (
	SettingMaintenanceEnabled = "maintenance_enabled"
	SettingMaintenanceEndTime = "maintenance_end_time"
	SettingMaintenanceTitle   = "maintenance_title"
	SettingMaintenanceMessage = "maintenance_message"
)

// SiteSetting is a site-wide key/value setting, such as the maintenance mode
// flags the admin panel toggles
type SiteSetting struct {
	gorm.Model
	Key   string `json:"key" gorm:"size:100;uniqueIndex;not null"`
	Value string `json:"value"`
}
