package smtptest

import (
	"encoding/base64"
	"errors"
	"strings"
)

var errAuthFailed = errors.New("authentication failed")

// authenticator checks AUTH PLAIN credentials against a single configured
// account. Empty credentials disable authentication.
type authenticator struct {
	username string
	password string
}

func (a authenticator) enabled() bool {
	return a.username != "" && a.password != ""
}

// verifyPlain decodes base64(authzid \0 authcid \0 password) and compares
// the authentication identity and password.
func (a authenticator) verifyPlain(encoded string) error {
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return errors.New("invalid base64 encoding")
	}

	parts := strings.SplitN(string(decoded), "\x00", 3)
	if len(parts) != 3 {
		return errors.New("invalid AUTH PLAIN format")
	}

	if parts[1] != a.username || parts[2] != a.password {
		return errAuthFailed
	}
	return nil
}
