package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[AuthorizeMessage]   = (*AuthorizeCommand)(nil)
	_ gocmd.Commander[ExchangeMessage]    = (*ExchangeCommand)(nil)
	_ gocmd.Commander[RenewMessage]       = (*RenewCommand)(nil)
	_ gocmd.Commander[RevokeMessage]      = (*RevokeCommand)(nil)
	_ gocmd.Commander[ExecuteCallMessage] = (*ExecuteCallCommand)(nil)
)
