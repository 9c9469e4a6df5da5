package settings

import "errors"

var ErrEncryptionKeyTooShort = errors.New("encryption key must be at least 16 characters")

type View struct {
	IntegrationKey string `json:"integration_key" example:"********abcd"`
	EncryptionKey  string `json:"encryption_key" example:"****************************wxyz"`
	Debug          bool   `json:"debug" example:"false"`
}

// UpdateRequest fields left out of the body keep their current value.
type UpdateRequest struct {
	IntegrationKey *string `json:"integration_key"`
	EncryptionKey  *string `json:"encryption_key"`
	Debug          *bool   `json:"debug"`
}
