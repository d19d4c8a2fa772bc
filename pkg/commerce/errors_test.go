package commerce

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_KindOf(t *testing.T) {
	cause := errors.New("connection refused")
	err := newError(ErrFetch, cause, "failed to reach %s", "node")

	assert.Equal(t, ErrFetch, KindOf(err))
	assert.Equal(t, ErrFetch, KindOf(errors.Wrap(err, "outer")), "kind survives wrapping")
	assert.Equal(t, ErrorKind(""), KindOf(cause))
	assert.Equal(t, ErrorKind(""), KindOf(nil))

	assert.True(t, IsKind(err, ErrFetch))
	assert.False(t, IsKind(err, ErrContractRead))
	assert.False(t, IsKind(nil, ErrFetch))
}

func TestError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("nonce too low")
	err := writeError("approve", cause)

	assert.True(t, errors.Is(err, &Error{Kind: ErrContractWrite}))
	assert.False(t, errors.Is(err, &Error{Kind: ErrContractRead}))
	assert.True(t, errors.Is(err, cause), "the original cause stays reachable")
	assert.Equal(t, "CONTRACT_WRITE_ERROR: failed to submit approve: nonce too low", err.Error())
}

func TestError_Payloads(t *testing.T) {
	id := NewIntentID()
	processed := alreadyProcessed(id)
	assert.Equal(t, id, processed.ID)

	token := common.HexToAddress("0x036CbD53842c5426634e7929541eC2318f3dCF7e")
	short := insufficientAllowance(token, big.NewInt(100), big.NewInt(40))

	var e *Error
	require.True(t, errors.As(error(short), &e))
	assert.Equal(t, "100", e.Required.String())
	assert.Equal(t, "40", e.Current.String())
	assert.Equal(t, token, e.Token)
}

func TestParseIntentID(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		ok   bool
	}{
		{"empty", nil, false},
		{"15 bytes", make([]byte, 15), false},
		{"16 bytes", make([]byte, 16), true},
		{"17 bytes", make([]byte, 17), false},
		{"32 bytes", make([]byte, 32), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseIntentID(tt.in)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			requireKind(t, err, ErrInvalidIntent)
		})
	}
}

func TestParseIntentIDHex(t *testing.T) {
	want := IntentID{0xde, 0xad, 0xbe, 0xef, 0x00, 0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xaa, 0xbb}

	for _, s := range []string{
		"0xdeadbeef00112233445566778899aabb",
		"deadbeef00112233445566778899aabb",
		"deadbeef-0011-2233-4455-66778899aabb",
	} {
		id, err := ParseIntentIDHex(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, id, s)
	}

	for _, s := range []string{"0xdeadbeef", "not-an-id", "0xzz"} {
		_, err := ParseIntentIDHex(s)
		requireKind(t, err, ErrInvalidIntent)
	}

	var decoded IntentID
	require.NoError(t, decoded.UnmarshalText([]byte(want.Hex())))
	assert.Equal(t, want, decoded)
}
