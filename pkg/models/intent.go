package models

import (
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/speedrun-hq/speedrun-commerce/pkg/commerce"
)

// Intent statuses as stored and served by the operator service
const (
	StatusSigned    = "signed"
	StatusSubmitted = "submitted"
)

// CreateIntentRequest asks the operator service to sign a transfer intent for a payer
type CreateIntentRequest struct {
	// ID is optional, a random one is generated when empty
	ID                string `json:"id,omitempty"`
	Payer             string `json:"payer"`
	Recipient         string `json:"recipient"`
	// RecipientCurrency is a token address, empty for native, or USDC for the chain's USDC
	RecipientCurrency string `json:"recipient_currency"`
	RefundDestination string `json:"refund_destination,omitempty"`
	RecipientAmount   string `json:"recipient_amount"`
	FeeAmount         string `json:"fee_amount"`
	// Deadline is a unix timestamp, the service applies its TTL when zero
	Deadline int64  `json:"deadline,omitempty"`
	Prefix   string `json:"prefix,omitempty"`
}

// SignedIntent is a signed transfer intent on the wire
type SignedIntent struct {
	ID                string    `json:"id"`
	ChainID           int64     `json:"chain_id"`
	Contract          string    `json:"contract"`
	Operator          string    `json:"operator"`
	Payer             string    `json:"payer"`
	Recipient         string    `json:"recipient"`
	RecipientCurrency string    `json:"recipient_currency"`
	RefundDestination string    `json:"refund_destination"`
	RecipientAmount   string    `json:"recipient_amount"`
	FeeAmount         string    `json:"fee_amount"`
	Deadline          string    `json:"deadline"`
	Prefix            string    `json:"prefix"`
	Signature         string    `json:"signature"`
	Status            string    `json:"status"`
	TxHash            string    `json:"tx_hash,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ListIntentsResponse is the reply of the intent listing
type ListIntentsResponse struct {
	Intents []SignedIntent `json:"intents"`
}

// ProcessedResponse reports whether an intent id was already used on-chain
type ProcessedResponse struct {
	ID        string `json:"id"`
	Processed bool   `json:"processed"`
}

// SubmittedRequest is what a payer reports after broadcasting the settlement
type SubmittedRequest struct {
	TxHash string `json:"tx_hash"`
}

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Kind  string `json:"kind,omitempty"`
	Error string `json:"error"`
}

// IntentData validates the request and converts it for signing. A zero Deadline becomes defaultDeadline
// and an empty refund destination falls back to the payer.
func (r CreateIntentRequest) IntentData(defaultDeadline time.Time) (commerce.IntentData, common.Address, error) {
	var data commerce.IntentData

	payer, err := parseAddress("payer", r.Payer, false)
	if err != nil {
		return data, common.Address{}, err
	}
	recipient, err := parseAddress("recipient", r.Recipient, false)
	if err != nil {
		return data, common.Address{}, err
	}
	// empty currency means the native coin
	currency, err := parseAddress("recipient_currency", r.RecipientCurrency, true)
	if err != nil {
		return data, common.Address{}, err
	}
	refund := payer
	if r.RefundDestination != "" {
		if refund, err = parseAddress("refund_destination", r.RefundDestination, false); err != nil {
			return data, common.Address{}, err
		}
	}

	recipientAmount, err := parseAmount("recipient_amount", r.RecipientAmount)
	if err != nil {
		return data, common.Address{}, err
	}
	feeAmount, err := parseAmount("fee_amount", r.FeeAmount)
	if err != nil {
		return data, common.Address{}, err
	}

	id := commerce.NewIntentID()
	if r.ID != "" {
		if id, err = commerce.ParseIntentIDHex(r.ID); err != nil {
			return data, common.Address{}, err
		}
	}

	prefix, err := parseHex("prefix", r.Prefix)
	if err != nil {
		return data, common.Address{}, err
	}

	deadline := big.NewInt(r.Deadline)
	if r.Deadline == 0 {
		deadline = big.NewInt(defaultDeadline.Unix())
	}

	data = commerce.IntentData{
		RecipientAmount:   recipientAmount,
		FeeAmount:         feeAmount,
		Deadline:          deadline,
		Recipient:         recipient,
		RecipientCurrency: currency,
		RefundDestination: refund,
		ID:                id.Bytes(),
		Prefix:            prefix,
	}
	return data, payer, nil
}

// NewSignedIntent renders a signed intent for the wire
func NewSignedIntent(signed *commerce.SignedTransferIntent, payer common.Address, chainID int64, contract common.Address) SignedIntent {
	return SignedIntent{
		ID:                signed.ID.Hex(),
		ChainID:           chainID,
		Contract:          contract.Hex(),
		Operator:          signed.Operator.Hex(),
		Payer:             payer.Hex(),
		Recipient:         signed.Recipient.Hex(),
		RecipientCurrency: signed.RecipientCurrency.Hex(),
		RefundDestination: signed.RefundDestination.Hex(),
		RecipientAmount:   signed.RecipientAmount.String(),
		FeeAmount:         signed.FeeAmount.String(),
		Deadline:          signed.Deadline.String(),
		Prefix:            hexutil.Encode(signed.Prefix),
		Signature:         hexutil.Encode(signed.Signature),
		Status:            StatusSigned,
	}
}

// SignedTransferIntent parses the wire form back into the value the payer settles
func (s SignedIntent) SignedTransferIntent() (*commerce.SignedTransferIntent, error) {
	id, err := commerce.ParseIntentIDHex(s.ID)
	if err != nil {
		return nil, err
	}
	operator, err := parseAddress("operator", s.Operator, false)
	if err != nil {
		return nil, err
	}
	recipient, err := parseAddress("recipient", s.Recipient, false)
	if err != nil {
		return nil, err
	}
	currency, err := parseAddress("recipient_currency", s.RecipientCurrency, true)
	if err != nil {
		return nil, err
	}
	refund, err := parseAddress("refund_destination", s.RefundDestination, true)
	if err != nil {
		return nil, err
	}
	recipientAmount, err := parseAmount("recipient_amount", s.RecipientAmount)
	if err != nil {
		return nil, err
	}
	feeAmount, err := parseAmount("fee_amount", s.FeeAmount)
	if err != nil {
		return nil, err
	}
	deadline, err := parseAmount("deadline", s.Deadline)
	if err != nil {
		return nil, err
	}
	prefix, err := parseHex("prefix", s.Prefix)
	if err != nil {
		return nil, err
	}
	signature, err := parseHex("signature", s.Signature)
	if err != nil {
		return nil, err
	}

	return &commerce.SignedTransferIntent{
		TransferIntent: commerce.TransferIntent{
			RecipientAmount:   recipientAmount,
			Deadline:          deadline,
			Recipient:         recipient,
			RecipientCurrency: currency,
			RefundDestination: refund,
			FeeAmount:         feeAmount,
			ID:                id,
			Operator:          operator,
			Prefix:            prefix,
		},
		Signature: signature,
	}, nil
}

func parseAddress(field, s string, allowEmpty bool) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" && allowEmpty {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, commerce.NewError(commerce.ErrInvalidIntent, nil, "%s %q is not an address", field, s)
	}
	return common.HexToAddress(s), nil
}

func parseAmount(field, s string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok {
		return nil, commerce.NewError(commerce.ErrInvalidIntent, nil, "%s %q is not a decimal integer", field, s)
	}
	return amount, nil
}

func parseHex(field, s string) ([]byte, error) {
	if s == "" || s == "0x" {
		return []byte{}, nil
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, commerce.NewError(commerce.ErrInvalidIntent, err, "%s is not 0x-prefixed hex", field)
	}
	return b, nil
}
