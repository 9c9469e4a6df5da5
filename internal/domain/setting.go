package domain

import "time"

const (
	SettingIntegrationKey = "integration_key"
	SettingEncryptionKey  = "encryption_key"
	SettingDebug          = "debug"
)

type Setting struct {
	Name      string    `gorm:"type:varchar(64);primaryKey" json:"name"`
	Value     string    `gorm:"type:text" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string { return "settings" }
