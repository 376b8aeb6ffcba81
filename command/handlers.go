package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-brokerage/core"
)

// AuthService is the slice of the token lifecycle the commands mutate.
// The session satisfies this.
type AuthService interface {
	GetRequestToken(ctx context.Context) (core.RequestToken, error)
	GetAccessToken(ctx context.Context, verifier string) (core.AccessToken, error)
	Renew(ctx context.Context) error
	Revoke(ctx context.Context) error
}

// CallService executes one signed API call. The retrying client
// satisfies this.
type CallService interface {
	Execute(ctx context.Context, method, endpoint string, params map[string]any, body any) (map[string]any, error)
}

type AuthorizeCommand struct {
	service AuthService
}

func NewAuthorizeCommand(service AuthService) *AuthorizeCommand {
	return &AuthorizeCommand{service: service}
}

func (c *AuthorizeCommand) Execute(ctx context.Context, msg AuthorizeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: authorize service is required")
	}
	out, err := c.service.GetRequestToken(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ExchangeCommand struct {
	service AuthService
}

func NewExchangeCommand(service AuthService) *ExchangeCommand {
	return &ExchangeCommand{service: service}
}

func (c *ExchangeCommand) Execute(ctx context.Context, msg ExchangeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: exchange service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid exchange message")
	}
	out, err := c.service.GetAccessToken(ctx, msg.Verifier)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RenewCommand struct {
	service AuthService
}

func NewRenewCommand(service AuthService) *RenewCommand {
	return &RenewCommand{service: service}
}

func (c *RenewCommand) Execute(ctx context.Context, msg RenewMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: renew service is required")
	}
	return c.service.Renew(ctx)
}

type RevokeCommand struct {
	service AuthService
}

func NewRevokeCommand(service AuthService) *RevokeCommand {
	return &RevokeCommand{service: service}
}

func (c *RevokeCommand) Execute(ctx context.Context, msg RevokeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: revoke service is required")
	}
	return c.service.Revoke(ctx)
}

type ExecuteCallCommand struct {
	service CallService
}

func NewExecuteCallCommand(service CallService) *ExecuteCallCommand {
	return &ExecuteCallCommand{service: service}
}

func (c *ExecuteCallCommand) Execute(ctx context.Context, msg ExecuteCallMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: call service is required")
	}
	if err := msg.Validate(); err != nil {
		return commandWrapValidation(err, "command: invalid call message")
	}
	out, err := c.service.Execute(ctx, msg.Method, msg.Endpoint, msg.Params, msg.Body)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
