package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// DeviceFingerprint returns a short stable digest of a caller-supplied device id, for audit
// metadata and logs where the raw id should not appear.
func DeviceFingerprint(uniqueDeviceID string) string {
	if uniqueDeviceID == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(uniqueDeviceID))
	return hex.EncodeToString(sum[:8])
}
