// Package auth applies credentials to outgoing transfer requests.
package auth

import (
	"fmt"
	"net/http"
	"os"

	"github.com/glorpus-work/preload/pkg/errors"
)

// Authenticator adds credentials to an HTTP request.
type Authenticator interface {
	Apply(req *http.Request) error
	Type() Type
}

// Type represents the type of authentication.
type Type string

// Authentication types.
const (
	// NoneType sends no credentials.
	NoneType Type = ""
	// BasicAuthType represents HTTP Basic Authentication.
	BasicAuthType Type = "basic"
	// BearerAuthType represents Bearer token authentication.
	BearerAuthType Type = "bearer"
)

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	return t == NoneType || t == BasicAuthType || t == BearerAuthType
}

// BasicAuth represents HTTP Basic Authentication credentials.
type BasicAuth struct {
	Username string
	Password string
}

// Apply adds Basic Authentication headers to the HTTP request.
func (b BasicAuth) Apply(req *http.Request) error {
	req.SetBasicAuth(b.Username, b.Password)
	return nil
}

// Type returns BasicAuthType.
func (b BasicAuth) Type() Type { return BasicAuthType }

// BearerAuth represents Bearer token authentication.
type BearerAuth struct {
	Token string
}

// Apply sets the Authorization header. An empty token is an error so a
// missing environment variable does not silently send anonymous requests.
func (b BearerAuth) Apply(req *http.Request) error {
	if b.Token == "" {
		return fmt.Errorf("%w: empty bearer token", errors.ErrInvalidAuth)
	}
	req.Header.Set("Authorization", "Bearer "+b.Token)
	return nil
}

// Type returns BearerAuthType.
func (b BearerAuth) Type() Type { return BearerAuthType }

// Credentials is the configuration form of an Authenticator.
type Credentials struct {
	Type     Type   `yaml:"type,omitempty"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	Token    string `yaml:"token,omitempty"`
	// TokenEnv names an environment variable holding the bearer token.
	// It wins over Token when set.
	TokenEnv string `yaml:"token_env,omitempty"`
}

// Validate checks that the credentials are complete for their type.
func (c Credentials) Validate() error {
	if !c.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q, must be one of: basic, bearer", errors.ErrInvalidAuth, c.Type)
	}
	switch c.Type {
	case BasicAuthType:
		if c.Username == "" {
			return fmt.Errorf("%w: basic auth requires a username", errors.ErrInvalidAuth)
		}
	case BearerAuthType:
		if c.Token == "" && c.TokenEnv == "" {
			return fmt.Errorf("%w: bearer auth requires token or token_env", errors.ErrInvalidAuth)
		}
	}
	return nil
}

// Authenticator builds the authenticator described by c. It returns nil
// for NoneType and for invalid credentials.
func (c Credentials) Authenticator() Authenticator {
	if c.Validate() != nil {
		return nil
	}
	switch c.Type {
	case BasicAuthType:
		return BasicAuth{Username: c.Username, Password: c.Password}
	case BearerAuthType:
		token := c.Token
		if c.TokenEnv != "" {
			token = os.Getenv(c.TokenEnv)
		}
		return BearerAuth{Token: token}
	default:
		return nil
	}
}
