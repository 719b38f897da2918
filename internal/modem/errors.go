package modem

import "errors"

var (
	ErrInvalidConfig        = errors.New("invalid modem configuration")
	ErrInvalidPayloadLength = errors.New("invalid payload length")
	ErrInvalidBufferLength  = errors.New("invalid buffer length")
	ErrInvalidPointCount    = errors.New("invalid constellation point count")
	ErrTransform            = errors.New("transform failed")
)
