package domain

import "errors"

var (
	// ErrTokenAlreadyExists is returned when attempting to create a token that already exists
	ErrTokenAlreadyExists = errors.New("token already exists")

	// ErrTokenNotFound is returned when a token is not found
	ErrTokenNotFound = errors.New("token not found")

	// ErrUnknownEventKind is returned when an event kind is not one of the tracked kinds
	ErrUnknownEventKind = errors.New("unknown event kind")

	// ErrInvalidEvent is returned when a decoded event misses fields required by its kind
	ErrInvalidEvent = errors.New("invalid event")

	// ErrWatermarkRegression is returned when the watermark would move backwards
	ErrWatermarkRegression = errors.New("watermark cannot move backwards")
)
