package auth

import (
	"fmt"
	"strings"

	"chatrouter/tools/decode"
)

// AuthConfig mirrors config.AuthConfig's shape without importing the
// config package, keeping auth free of a dependency cycle.
type AuthConfig struct {
	Type string
	Data []byte
}

// New builds the Authenticator variant named by cfg.Type, decoding
// cfg.Data into that variant's option struct.
func New(cfg AuthConfig) (Authenticator, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Type)) {
	case "", "none", "noauth":
		return NoneAuthenticator{}, nil
	case "header-bearer", "bearer":
		opts, err := decode.DecodeRaw[HeaderBearerConfig](cfg.Data)
		if err != nil {
			return nil, fmt.Errorf("auth: header-bearer: %w", err)
		}
		return NewHeaderBearerAuthenticator(*opts), nil
	case "basic":
		opts, err := decode.DecodeRaw[BasicConfig](cfg.Data)
		if err != nil {
			return nil, fmt.Errorf("auth: basic: %w", err)
		}
		return NewBasicAuthenticator(*opts), nil
	case "cookie":
		opts, err := decode.DecodeRaw[CookieConfig](cfg.Data)
		if err != nil {
			return nil, fmt.Errorf("auth: cookie: %w", err)
		}
		return NewCookieAuthenticator(*opts), nil
	case "remote":
		opts, err := decode.DecodeRaw[RemoteConfig](cfg.Data)
		if err != nil {
			return nil, fmt.Errorf("auth: remote: %w", err)
		}
		return NewRemoteAuthenticator(*opts), nil
	default:
		return nil, fmt.Errorf("auth: unknown type %q", cfg.Type)
	}
}
