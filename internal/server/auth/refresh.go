package auth

import (
	"encoding/base64"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
)

// RefreshTokenValidity is the fixed lifetime of a persisted refresh token.
const RefreshTokenValidity = 30 * 24 * time.Hour

const refreshTokenSize = 64

// GenerateRefreshToken returns 64 bytes of crypto/rand output as standard
// base64 text.
func GenerateRefreshToken() (string, error) {
	return common.MakeRandString(refreshTokenSize, base64.StdEncoding)
}
