package domain

import "errors"

var (
	ErrInvalidBillCycle = errors.New("invalid bill cycle")
	ErrNoCutoffDate     = errors.New("no cutoff date for bill cycle")
	ErrCutoffInFuture   = errors.New("cutoff date is in the future")
	ErrRequestNotFound  = errors.New("request not found")
	ErrInvalidConfig    = errors.New("invalid request service config")
)
