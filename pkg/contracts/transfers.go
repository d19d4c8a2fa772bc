package contracts

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// transferIntentComponents is the tuple layout of the TransferIntent struct argument
const transferIntentComponents = `[
	{"internalType": "uint256", "name": "recipientAmount", "type": "uint256"},
	{"internalType": "uint256", "name": "deadline", "type": "uint256"},
	{"internalType": "address payable", "name": "recipient", "type": "address"},
	{"internalType": "address", "name": "recipientCurrency", "type": "address"},
	{"internalType": "address", "name": "refundDestination", "type": "address"},
	{"internalType": "uint256", "name": "feeAmount", "type": "uint256"},
	{"internalType": "bytes16", "name": "id", "type": "bytes16"},
	{"internalType": "address", "name": "operator", "type": "address"},
	{"internalType": "bytes", "name": "signature", "type": "bytes"},
	{"internalType": "bytes", "name": "prefix", "type": "bytes"}
]`

// TransfersABI is the ABI of the Transfers settlement contract
var TransfersABI = `[
	{
		"inputs": [{"components": ` + transferIntentComponents + `, "internalType": "struct TransferIntent", "name": "_intent", "type": "tuple"}],
		"name": "transferNative",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"components": ` + transferIntentComponents + `, "internalType": "struct TransferIntent", "name": "_intent", "type": "tuple"}],
		"name": "transferTokenPreApproved",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"components": ` + transferIntentComponents + `, "internalType": "struct TransferIntent", "name": "_intent", "type": "tuple"}],
		"name": "wrapAndTransfer",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"components": ` + transferIntentComponents + `, "internalType": "struct TransferIntent", "name": "_intent", "type": "tuple"}],
		"name": "unwrapAndTransferPreApproved",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [
			{"components": ` + transferIntentComponents + `, "internalType": "struct TransferIntent", "name": "_intent", "type": "tuple"},
			{"internalType": "uint24", "name": "poolFeesTier", "type": "uint24"}
		],
		"name": "swapAndTransferUniswapV3Native",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [
			{"components": ` + transferIntentComponents + `, "internalType": "struct TransferIntent", "name": "_intent", "type": "tuple"},
			{"internalType": "address", "name": "_tokenIn", "type": "address"},
			{"internalType": "uint256", "name": "maxWillingToPay", "type": "uint256"},
			{"internalType": "uint24", "name": "poolFeesTier", "type": "uint24"}
		],
		"name": "swapAndTransferUniswapV3TokenPreApproved",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "registerOperator",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "_feeDestination", "type": "address"}],
		"name": "registerOperatorWithFeeDestination",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "unregisterOperator",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "_operator", "type": "address"}],
		"name": "getFeeDestination",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "_operator", "type": "address"}],
		"name": "isOperatorRegistered",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "_operator", "type": "address"},
			{"internalType": "bytes16", "name": "_id", "type": "bytes16"}
		],
		"name": "isIntentProcessed",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "internalType": "address", "name": "operator", "type": "address"},
			{"indexed": false, "internalType": "bytes16", "name": "id", "type": "bytes16"},
			{"indexed": false, "internalType": "address", "name": "recipient", "type": "address"},
			{"indexed": false, "internalType": "address", "name": "sender", "type": "address"},
			{"indexed": false, "internalType": "uint256", "name": "spentAmount", "type": "uint256"},
			{"indexed": false, "internalType": "address", "name": "spentCurrency", "type": "address"}
		],
		"name": "Transferred",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "internalType": "address", "name": "operator", "type": "address"},
			{"indexed": false, "internalType": "address", "name": "feeDestination", "type": "address"}
		],
		"name": "OperatorRegistered",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": false, "internalType": "address", "name": "operator", "type": "address"}
		],
		"name": "OperatorUnregistered",
		"type": "event"
	}
]`

// TransfersTransferIntent is an auto generated low-level Go binding around an user-defined struct.
type TransfersTransferIntent struct {
	RecipientAmount   *big.Int
	Deadline          *big.Int
	Recipient         common.Address
	RecipientCurrency common.Address
	RefundDestination common.Address
	FeeAmount         *big.Int
	Id                [16]byte
	Operator          common.Address
	Signature         []byte
	Prefix            []byte
}

// Transfers is an auto generated Go binding around an Ethereum contract.
type Transfers struct {
	TransfersCaller     // Read-only binding to the contract
	TransfersTransactor // Write-only binding to the contract
	TransfersFilterer   // Log filterer for contract events
}

// TransfersCaller is an auto generated read-only Go binding around an Ethereum contract.
type TransfersCaller struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// TransfersTransactor is an auto generated write-only Go binding around an Ethereum contract.
type TransfersTransactor struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// TransfersFilterer is an auto generated log filtering Go binding around an Ethereum contract events.
type TransfersFilterer struct {
	contract *bind.BoundContract // Generic contract wrapper for the low level calls
}

// NewTransfers creates a new instance of Transfers, bound to a specific deployed contract.
func NewTransfers(address common.Address, backend bind.ContractBackend) (*Transfers, error) {
	contract, err := bindTransfers(address, backend, backend, backend)
	if err != nil {
		return nil, err
	}
	return &Transfers{
		TransfersCaller:     TransfersCaller{contract: contract},
		TransfersTransactor: TransfersTransactor{contract: contract},
		TransfersFilterer:   TransfersFilterer{contract: contract},
	}, nil
}

// bindTransfers binds a generic wrapper to an already deployed contract.
func bindTransfers(address common.Address, caller bind.ContractCaller, transactor bind.ContractTransactor, filterer bind.ContractFilterer) (*bind.BoundContract, error) {
	parsed, err := ParsedTransfersABI()
	if err != nil {
		return nil, err
	}
	return bind.NewBoundContract(address, parsed, caller, transactor, filterer), nil
}

// ParsedTransfersABI returns the parsed Transfers ABI
func ParsedTransfersABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(TransfersABI))
}

// GetFeeDestination is a free data retrieval call binding the contract method getFeeDestination.
//
// Solidity: function getFeeDestination(address _operator) view returns(address)
func (_Transfers *TransfersCaller) GetFeeDestination(opts *bind.CallOpts, _operator common.Address) (common.Address, error) {
	var out []interface{}
	err := _Transfers.contract.Call(opts, &out, "getFeeDestination", _operator)
	if err != nil {
		return *new(common.Address), err
	}

	out0 := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	return out0, err
}

// IsOperatorRegistered is a free data retrieval call binding the contract method isOperatorRegistered.
//
// Solidity: function isOperatorRegistered(address _operator) view returns(bool)
func (_Transfers *TransfersCaller) IsOperatorRegistered(opts *bind.CallOpts, _operator common.Address) (bool, error) {
	var out []interface{}
	err := _Transfers.contract.Call(opts, &out, "isOperatorRegistered", _operator)
	if err != nil {
		return *new(bool), err
	}

	out0 := *abi.ConvertType(out[0], new(bool)).(*bool)
	return out0, err
}

// IsIntentProcessed is a free data retrieval call binding the contract method isIntentProcessed.
//
// Solidity: function isIntentProcessed(address _operator, bytes16 _id) view returns(bool)
func (_Transfers *TransfersCaller) IsIntentProcessed(opts *bind.CallOpts, _operator common.Address, _id [16]byte) (bool, error) {
	var out []interface{}
	err := _Transfers.contract.Call(opts, &out, "isIntentProcessed", _operator, _id)
	if err != nil {
		return *new(bool), err
	}

	out0 := *abi.ConvertType(out[0], new(bool)).(*bool)
	return out0, err
}

// RegisterOperator is a paid mutator transaction binding the contract method registerOperator.
//
// Solidity: function registerOperator() returns()
func (_Transfers *TransfersTransactor) RegisterOperator(opts *bind.TransactOpts) (*types.Transaction, error) {
	return _Transfers.contract.Transact(opts, "registerOperator")
}

// RegisterOperatorWithFeeDestination is a paid mutator transaction binding the contract method registerOperatorWithFeeDestination.
//
// Solidity: function registerOperatorWithFeeDestination(address _feeDestination) returns()
func (_Transfers *TransfersTransactor) RegisterOperatorWithFeeDestination(opts *bind.TransactOpts, _feeDestination common.Address) (*types.Transaction, error) {
	return _Transfers.contract.Transact(opts, "registerOperatorWithFeeDestination", _feeDestination)
}

// UnregisterOperator is a paid mutator transaction binding the contract method unregisterOperator.
//
// Solidity: function unregisterOperator() returns()
func (_Transfers *TransfersTransactor) UnregisterOperator(opts *bind.TransactOpts) (*types.Transaction, error) {
	return _Transfers.contract.Transact(opts, "unregisterOperator")
}

// TransferNative is a paid mutator transaction binding the contract method transferNative.
//
// Solidity: function transferNative((uint256,uint256,address,address,address,uint256,bytes16,address,bytes,bytes) _intent) payable returns()
func (_Transfers *TransfersTransactor) TransferNative(opts *bind.TransactOpts, _intent TransfersTransferIntent) (*types.Transaction, error) {
	return _Transfers.contract.Transact(opts, "transferNative", _intent)
}

// TransferTokenPreApproved is a paid mutator transaction binding the contract method transferTokenPreApproved.
//
// Solidity: function transferTokenPreApproved((uint256,uint256,address,address,address,uint256,bytes16,address,bytes,bytes) _intent) returns()
func (_Transfers *TransfersTransactor) TransferTokenPreApproved(opts *bind.TransactOpts, _intent TransfersTransferIntent) (*types.Transaction, error) {
	return _Transfers.contract.Transact(opts, "transferTokenPreApproved", _intent)
}

// TransfersTransferred represents a Transferred event raised by the Transfers contract.
type TransfersTransferred struct {
	Operator      common.Address
	Id            [16]byte
	Recipient     common.Address
	Sender        common.Address
	SpentAmount   *big.Int
	SpentCurrency common.Address
	Raw           types.Log // Blockchain specific contextual infos
}

// ParseTransferred is a log parse operation binding the contract event Transferred.
//
// Solidity: event Transferred(address indexed operator, bytes16 id, address recipient, address sender, uint256 spentAmount, address spentCurrency)
func (_Transfers *TransfersFilterer) ParseTransferred(log types.Log) (*TransfersTransferred, error) {
	event := new(TransfersTransferred)
	if err := _Transfers.contract.UnpackLog(event, "Transferred", log); err != nil {
		return nil, err
	}
	event.Raw = log
	return event, nil
}
