// Package fel implements the Allwinner FEL USB recovery protocol: bulk USB
// framing, the FEL read/write/execute/version command layer, the SoC
// parameter registry, code-injection primitives, MMU save/restore, and the
// SPL/U-Boot staging engine.
package fel

import "fmt"

// Kind classifies the error families from the protocol's error handling
// design: every failure maps to exactly one of these, and every one is
// fatal to the session (see spec §7).
type Kind int

const (
	// KindTransport covers non-zero bulk transfer status and timeouts.
	KindTransport Kind = iota
	// KindFraming covers a response that doesn't start with "AWUS".
	KindFraming
	// KindProtocol covers header/checksum/MMU-sanity/size mismatches.
	KindProtocol
	// KindConfig covers an unknown SoC id or a missing SoC parameter.
	KindConfig
	// KindOverwrite covers a write that would clobber the loaded U-Boot region.
	KindOverwrite
	// KindCompletion covers a failed eGON.FEL post-check after SPL execution.
	KindCompletion
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindFraming:
		return "framing"
	case KindProtocol:
		return "protocol"
	case KindConfig:
		return "config"
	case KindOverwrite:
		return "overwrite"
	case KindCompletion:
		return "completion"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by this package. Callers that
// need to branch on the failure kind should use errors.As to recover it
// and switch on Kind, rather than matching message text.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "usb.write", "spl.checksum"
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fel: %s: %s: %v", e.Kind, e.Op, e.Err)
	}
	return fmt.Sprintf("fel: %s: %s", e.Kind, e.Op)
}

func (e *Error) Unwrap() error { return e.Err }

func wrapErr(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func newErr(kind Kind, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}
