package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyExists       = errors.New("already exists")
	ErrTradeAlreadyOpen    = errors.New("paper trade already open for market")
	ErrTradeAlreadyClosed  = errors.New("paper trade already closed")
	ErrInsufficientHistory = errors.New("insufficient snapshot history")
	ErrRateLimited         = errors.New("rate limited by upstream api")
	ErrUpstreamUnavailable = errors.New("upstream api unavailable")
	ErrContextDone         = errors.New("context cancelled")
)
