package domain

import "errors"

var (
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnsupportedGateway = errors.New("unsupported payment gateway")
	ErrConfiguration      = errors.New("gateway configuration missing")
	ErrMalformedWebhook   = errors.New("webhook payload missing required fields")
	ErrUpstream           = errors.New("gateway upstream request failed")
	ErrPersistence        = errors.New("payment store operation failed")
)
