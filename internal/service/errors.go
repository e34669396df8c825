package service

import "errors"

var (
	ErrNotConfigured     = errors.New("not fully initialized")
	ErrUnsupportedSeries = errors.New("unsupported series")
	ErrNoStrategy        = errors.New("no strategy available")
	ErrInsufficientData  = errors.New("insufficient data")
)
