package command

import (
	"fmt"
	"strings"
)

const (
	TypeAuthorize   = "brokerage.command.authorize"
	TypeExchange    = "brokerage.command.exchange"
	TypeRenew       = "brokerage.command.renew"
	TypeRevoke      = "brokerage.command.revoke"
	TypeExecuteCall = "brokerage.command.call.execute"
)

// AuthorizeMessage begins the three-legged handshake by obtaining a
// request token and its authorize URL.
type AuthorizeMessage struct{}

func (AuthorizeMessage) Type() string { return TypeAuthorize }

func (AuthorizeMessage) Validate() error { return nil }

// ExchangeMessage trades the user-supplied verifier for an access token.
type ExchangeMessage struct {
	Verifier string
}

func (ExchangeMessage) Type() string { return TypeExchange }

func (m ExchangeMessage) Validate() error {
	if strings.TrimSpace(m.Verifier) == "" {
		return fmt.Errorf("command: verifier is required")
	}
	return nil
}

type RenewMessage struct{}

func (RenewMessage) Type() string { return TypeRenew }

func (RenewMessage) Validate() error { return nil }

type RevokeMessage struct {
	Reason string
}

func (RevokeMessage) Type() string { return TypeRevoke }

func (RevokeMessage) Validate() error { return nil }

// ExecuteCallMessage runs one signed API call through the pipeline.
type ExecuteCallMessage struct {
	Method   string
	Endpoint string
	Params   map[string]any
	Body     any
}

func (ExecuteCallMessage) Type() string { return TypeExecuteCall }

func (m ExecuteCallMessage) Validate() error {
	if strings.TrimSpace(m.Endpoint) == "" {
		return fmt.Errorf("command: endpoint is required")
	}
	return nil
}
