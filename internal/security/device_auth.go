package security

import (
	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"golang.org/x/crypto/bcrypt"

	"ticket-gate/internal/status"
)

// DeviceAuth verifies scanner devices against the devices collection.
// Secrets are stored bcrypt-hashed, never in clear.
type DeviceAuth struct {
	app core.App
}

func NewDeviceAuth(app core.App) *DeviceAuth {
	return &DeviceAuth{app: app}
}

func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify checks that the device exists, is active, and presented the
// right secret.
func (d *DeviceAuth) Verify(deviceID, secret string) error {
	record, err := d.app.FindFirstRecordByFilter(
		"devices",
		"name = {:name} && active = true",
		dbx.Params{"name": deviceID},
	)
	if err != nil || record == nil {
		return status.ErrDeviceUnknown
	}

	if bcrypt.CompareHashAndPassword([]byte(record.GetString("secret_hash")), []byte(secret)) != nil {
		return status.ErrDeviceBadSecret
	}

	return nil
}
