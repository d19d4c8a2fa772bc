package commerce

import (
	"encoding/hex"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/speedrun-hq/speedrun-commerce/pkg/contracts"
)

// IntentIDLength is the exact width of an intent id
const IntentIDLength = 16

// NativeCurrency is the recipientCurrency sentinel for the chain's native coin
var NativeCurrency = common.Address{}

// IntentID identifies an intent, unique per operator
type IntentID [IntentIDLength]byte

// NewIntentID returns a random id
func NewIntentID() IntentID {
	return IntentID(uuid.New())
}

// ParseIntentID copies b into an id. Any length other than 16 is INVALID_INTENT.
func ParseIntentID(b []byte) (IntentID, error) {
	var id IntentID
	if len(b) != IntentIDLength {
		return id, invalidIntent("intent id must be %d bytes, got %d", IntentIDLength, len(b))
	}
	copy(id[:], b)
	return id, nil
}

// ParseIntentIDHex accepts a 0x-prefixed or bare hex id, or the canonical uuid form
func ParseIntentIDHex(s string) (IntentID, error) {
	if strings.Contains(s, "-") {
		u, err := uuid.Parse(s)
		if err != nil {
			return IntentID{}, invalidIntent("malformed intent id %q", s)
		}
		return IntentID(u), nil
	}

	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X"))
	if err != nil {
		return IntentID{}, invalidIntent("malformed intent id %q", s)
	}
	return ParseIntentID(b)
}

func (id IntentID) Bytes() []byte {
	b := make([]byte, IntentIDLength)
	copy(b, id[:])
	return b
}

func (id IntentID) Hex() string {
	return "0x" + hex.EncodeToString(id[:])
}

func (id IntentID) String() string {
	return id.Hex()
}

func (id IntentID) IsZero() bool {
	return id == IntentID{}
}

func (id IntentID) MarshalText() ([]byte, error) {
	return []byte(id.Hex()), nil
}

func (id *IntentID) UnmarshalText(text []byte) error {
	parsed, err := ParseIntentIDHex(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// TransferIntent is a one-time payment authorization
type TransferIntent struct {
	RecipientAmount   *big.Int
	Deadline          *big.Int
	Recipient         common.Address
	RecipientCurrency common.Address
	RefundDestination common.Address
	FeeAmount         *big.Int
	ID                IntentID
	Operator          common.Address
	Prefix            []byte
}

// TotalAmount is what the payer spends: recipientAmount + feeAmount
func (t *TransferIntent) TotalAmount() *big.Int {
	total := new(big.Int)
	if t.RecipientAmount != nil {
		total.Add(total, t.RecipientAmount)
	}
	if t.FeeAmount != nil {
		total.Add(total, t.FeeAmount)
	}
	return total
}

func (t *TransferIntent) IsNative() bool {
	return t.RecipientCurrency == NativeCurrency
}

// Expired reports whether the deadline is not strictly after now
func (t *TransferIntent) Expired(now time.Time) bool {
	if t.Deadline == nil {
		return true
	}
	return t.Deadline.Cmp(big.NewInt(now.Unix())) <= 0
}

// validate checks field widths and the deadline against now
func (t *TransferIntent) validate(now time.Time) error {
	amounts := []struct {
		name  string
		value *big.Int
	}{
		{"recipientAmount", t.RecipientAmount},
		{"feeAmount", t.FeeAmount},
		{"deadline", t.Deadline},
	}
	for _, a := range amounts {
		if a.value == nil {
			return invalidIntent("%s is required", a.name)
		}
		if a.value.Sign() < 0 || a.value.BitLen() > 256 {
			return invalidIntent("%s %s does not fit uint256", a.name, a.value)
		}
	}
	if total := t.TotalAmount(); total.BitLen() > 256 {
		return invalidIntent("recipientAmount + feeAmount %s does not fit uint256", total)
	}
	if t.Expired(now) {
		return invalidIntent("deadline %s is not after %d", t.Deadline, now.Unix())
	}
	return nil
}

// SignedTransferIntent is an intent plus the operator's signature over its signing hash
type SignedTransferIntent struct {
	TransferIntent
	Signature []byte
}

// ContractIntent converts to the tuple argument of the settlement functions
func (s *SignedTransferIntent) ContractIntent() contracts.TransfersTransferIntent {
	prefix := s.Prefix
	if prefix == nil {
		prefix = []byte{}
	}
	return contracts.TransfersTransferIntent{
		RecipientAmount:   s.RecipientAmount,
		Deadline:          s.Deadline,
		Recipient:         s.Recipient,
		RecipientCurrency: s.RecipientCurrency,
		RefundDestination: s.RefundDestination,
		FeeAmount:         s.FeeAmount,
		Id:                [16]byte(s.ID),
		Operator:          s.Operator,
		Signature:         s.Signature,
		Prefix:            prefix,
	}
}

// IntentData is what an operator fills in before signing. ID is checked for width.
type IntentData struct {
	RecipientAmount   *big.Int
	FeeAmount         *big.Int
	Deadline          *big.Int
	Recipient         common.Address
	RecipientCurrency common.Address
	RefundDestination common.Address
	ID                []byte
	Prefix            []byte
}
