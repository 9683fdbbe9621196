package auth

import (
	"strings"

	"chatrouter/tools/security"
)

// HeaderBearerConfig configures the header-bearer variant: a JWT carried
// in an Authorization: Bearer header, verified against a shared HMAC
// secret.
type HeaderBearerConfig struct {
	Secret string `json:"secret"`
	Alg    string `json:"alg"`
}

type HeaderBearerAuthenticator struct {
	opts security.Options
}

func NewHeaderBearerAuthenticator(cfg HeaderBearerConfig) *HeaderBearerAuthenticator {
	opts := security.DefaultOptions([]byte(cfg.Secret))
	if cfg.Alg != "" {
		opts.Alg = cfg.Alg
	}
	return &HeaderBearerAuthenticator{opts: opts}
}

func (a *HeaderBearerAuthenticator) Validate(req Request) bool {
	raw := req.Header("Authorization")
	if raw == "" {
		return false
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(raw, prefix) {
		return false
	}
	token := strings.TrimPrefix(raw, prefix)
	_, err := security.Verify(a.opts, token, "")
	return err == nil
}
