package protocol

import "errors"

var (
	// ErrMalformed indicates input that violates the wire protocol. Clients
	// producing it are disconnected and logged as protocol errors.
	ErrMalformed = errors.New("malformed packet")

	// ErrUnsupported indicates input the server recognizes but does not
	// implement. Clients producing it are disconnected with a softer log.
	ErrUnsupported = errors.New("unsupported packet")
)
