package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrAlreadyRunning   = errors.New("already running")
	ErrUnsupportedChain = errors.New("unsupported chain")
	ErrUnsupportedToken = errors.New("unsupported token")
	ErrNoQuote          = errors.New("no usable quote")
	ErrContextDone      = errors.New("context cancelled")
)
