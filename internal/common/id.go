package common

import (
	"github.com/google/uuid"
)

// NewLoginSessionID generates a unique login session ID with the "login_" prefix
// Format: login_<uuid>
func NewLoginSessionID() string {
	return "login_" + uuid.New().String()
}
