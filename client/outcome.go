package client

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"renderlink/message"
)

var (
	// ErrInvalidArgument matches calls the host rejected for a bad parameter.
	ErrInvalidArgument = errors.New("render: invalid argument")
	// ErrRPCFailure matches every other failed call.
	ErrRPCFailure = errors.New("render: rpc failure")
)

type ErrorKind int

const (
	KindInvalidArgument ErrorKind = iota + 1
	KindRPCFailure
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindRPCFailure:
		return "RPCFailure"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// RPCError is a failed call. Code and Message are the transport status as
// received; the core never retries or rewrites them.
type RPCError struct {
	Kind    ErrorKind
	Code    codes.Code
	Message string
	cause   error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("render: %s: %s: %s", e.Kind, e.Code, e.Message)
}

func (e *RPCError) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Kind == KindInvalidArgument
	case ErrRPCFailure:
		return e.Kind == KindRPCFailure
	}
	return false
}

func (e *RPCError) Unwrap() error {
	return e.cause
}

// GRPCStatus lets status.Code and status.Convert see the original status.
func (e *RPCError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Message)
}

type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	// OutcomeLogicalFailure: the call succeeded but its result says the
	// operation did not (false, null handle, no id).
	OutcomeLogicalFailure
	OutcomeError
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "OK"
	case OutcomeLogicalFailure:
		return "LogicalFailure"
	case OutcomeError:
		return "Error"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(k))
	}
}

// Outcome is the classified result of one call.
type Outcome struct {
	Kind       OutcomeKind
	Diagnostic string
	// Err is a *RPCError when Kind is OutcomeError.
	Err error
}

func (o Outcome) OK() bool {
	return o.Kind == OutcomeOK
}

// Failed reports a logical failure. It is not an error.
func (o Outcome) Failed() bool {
	return o.Kind == OutcomeLogicalFailure
}

func (o Outcome) String() string {
	switch o.Kind {
	case OutcomeError:
		return o.Err.Error()
	case OutcomeLogicalFailure:
		return "logical failure: " + o.Diagnostic
	default:
		return o.Kind.String()
	}
}

// Classify maps a call's error and response to an Outcome. It has no side effects.
func Classify(err error, resp any) Outcome {
	if err != nil {
		return Outcome{Kind: OutcomeError, Err: toRPCError(err)}
	}
	if lr, ok := resp.(message.LogicalResult); ok {
		if ok, diag := lr.LogicalResult(); !ok {
			return Outcome{Kind: OutcomeLogicalFailure, Diagnostic: diag}
		}
	}
	return Outcome{Kind: OutcomeOK}
}

func toRPCError(err error) *RPCError {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var st *status.Status
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		st = status.FromContextError(err)
	default:
		st = status.Convert(err)
	}

	kind := KindRPCFailure
	if st.Code() == codes.InvalidArgument {
		kind = KindInvalidArgument
	}
	return &RPCError{Kind: kind, Code: st.Code(), Message: st.Message(), cause: err}
}
