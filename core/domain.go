package core

import (
	"fmt"
	"strings"
)

type Environment string

const (
	EnvironmentSandbox    Environment = "sandbox"
	EnvironmentProduction Environment = "production"
)

func (e Environment) Validate() error {
	switch e {
	case EnvironmentSandbox, EnvironmentProduction:
		return nil
	default:
		return fmt.Errorf("core: unknown environment %q", string(e))
	}
}

// ConsumerCredentials identify the application to the provider. They are
// fixed for the lifetime of the process.
type ConsumerCredentials struct {
	Key    string
	Secret string
}

func (c ConsumerCredentials) Validate() error {
	if strings.TrimSpace(c.Key) == "" {
		return fmt.Errorf("core: consumer key is required")
	}
	if strings.TrimSpace(c.Secret) == "" {
		return fmt.Errorf("core: consumer secret is required")
	}
	return nil
}

// RequestToken is the single-use credential issued before user
// authorization. It is valid only until exchanged for an access token or
// replaced by a fresh request.
type RequestToken struct {
	Token        string
	Secret       string
	AuthorizeURL string
}

// AccessToken signs authenticated calls until the provider expires it.
// Renewal extends the provider-side expiry without changing the value.
type AccessToken struct {
	Token  string
	Secret string
}

func (t AccessToken) Empty() bool {
	return strings.TrimSpace(t.Token) == "" && strings.TrimSpace(t.Secret) == ""
}
