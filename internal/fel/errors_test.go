package fel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := wrapErr(KindTransport, "usb.write", cause)

	var felErr *Error
	assert.True(t, errors.As(err, &felErr))
	assert.Equal(t, KindTransport, felErr.Kind)
	assert.Equal(t, "usb.write", felErr.Op)
	assert.ErrorIs(t, err, cause)
}

func TestWrapErrNilIsNil(t *testing.T) {
	assert.NoError(t, wrapErr(KindTransport, "usb.write", nil))
}

func TestNewErrFormats(t *testing.T) {
	err := newErr(KindProtocol, "spl.validate", "bad length: %d", 42)
	assert.EqualError(t, err, "fel: protocol: spl.validate: bad length: 42")
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindTransport:  "transport",
		KindFraming:    "framing",
		KindProtocol:   "protocol",
		KindConfig:     "config",
		KindOverwrite:  "overwrite",
		KindCompletion: "completion",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}
