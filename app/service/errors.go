package service

import "errors"

var (
	ErrInvalidRequest        = errors.New("invalid request")
	ErrOrderNotFound         = errors.New("order not found")
	ErrGatewayUnsupported    = errors.New("gateway is not supported")
	ErrGatewayDisabled       = errors.New("gateway is disabled")
	ErrOperationNotSupported = errors.New("operation is not supported by gateway")
	ErrCallbackRejected      = errors.New("callback rejected")
	ErrCallbackIgnored       = errors.New("callback ignored")
	ErrGatewayCallFailed     = errors.New("gateway call failed")
)
