package stove

import "fmt"

// ConfigError reports invalid construction parameters, e.g. missing
// credentials for the chosen auth mode. It is the only error that prevents
// a client from being built at all.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return "stove: " + e.Msg }

// TransportError covers network, timeout, HTTP and auth failures. Transient
// variants are retried by the client before one of these is surfaced.
type TransportError struct {
	Msg string
	Err error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stove: %s: %v", e.Msg, e.Err)
	}
	return "stove: " + e.Msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError means the device answered but the body could not be decoded
// into a coherent structure. Never retried.
type ProtocolError struct {
	Msg string
	Err error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("stove: protocol error: %s: %v", e.Msg, e.Err)
	}
	return "stove: protocol error: " + e.Msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// OperationError means the command was delivered but the firmware rejected
// it with a non-zero result code. Never retried.
type OperationError struct {
	Op   int
	Code int
	Msg  string
}

func (e *OperationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("stove: operation %d failed: %s", e.Op, e.Msg)
	}
	return fmt.Sprintf("stove: operation %d failed with error_code=%d", e.Op, e.Code)
}
