// Package testutil provides an in-process chain that runs the Transfers settlement contract
// and ERC20 token semantics behind the same interface as a JSON-RPC client.
package testutil

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"

	"github.com/speedrun-hq/speedrun-commerce/pkg/blockchain"
	"github.com/speedrun-hq/speedrun-commerce/pkg/contracts"
)

const (
	estimatedGas = 100000
	gasPrice     = 1000000000 // 1 gwei
)

var simulatedCode = []byte{0x60, 0x80}

// RevertError is what a reverted call or estimation returns, like an RPC node would
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	return "execution reverted: " + e.Reason
}

func revert(format string, args ...interface{}) error {
	return &RevertError{Reason: fmt.Sprintf(format, args...)}
}

// SentTransaction is a transaction mined by the simulated chain
type SentTransaction struct {
	Hash   common.Hash
	From   common.Address
	To     common.Address
	Method string
	Args   []interface{}
	Value  *big.Int
	Status uint64
}

type token struct {
	symbol     string
	decimals   uint8
	balances   map[common.Address]*big.Int
	allowances map[common.Address]map[common.Address]*big.Int
}

func (t *token) clone() *token {
	cp := &token{
		symbol:     t.symbol,
		decimals:   t.decimals,
		balances:   make(map[common.Address]*big.Int, len(t.balances)),
		allowances: make(map[common.Address]map[common.Address]*big.Int, len(t.allowances)),
	}
	for k, v := range t.balances {
		cp.balances[k] = v
	}
	for owner, spenders := range t.allowances {
		m := make(map[common.Address]*big.Int, len(spenders))
		for k, v := range spenders {
			m[k] = v
		}
		cp.allowances[owner] = m
	}
	return cp
}

func (t *token) allowance(owner, spender common.Address) *big.Int {
	return amountOf(t.allowances[owner], spender)
}

func (t *token) setAllowance(owner, spender common.Address, amount *big.Int) {
	if t.allowances[owner] == nil {
		t.allowances[owner] = make(map[common.Address]*big.Int)
	}
	t.allowances[owner][spender] = amount
}

// state values are never mutated in place, so copying maps is enough to snapshot
type state struct {
	nonces          map[common.Address]uint64
	native          map[common.Address]*big.Int
	tokens          map[common.Address]*token
	feeDestinations map[common.Address]common.Address
	processed       map[common.Address]map[[16]byte]bool
}

func newState() *state {
	return &state{
		nonces:          make(map[common.Address]uint64),
		native:          make(map[common.Address]*big.Int),
		tokens:          make(map[common.Address]*token),
		feeDestinations: make(map[common.Address]common.Address),
		processed:       make(map[common.Address]map[[16]byte]bool),
	}
}

func (s *state) clone() *state {
	cp := newState()
	for k, v := range s.nonces {
		cp.nonces[k] = v
	}
	for k, v := range s.native {
		cp.native[k] = v
	}
	for k, v := range s.tokens {
		cp.tokens[k] = v.clone()
	}
	for k, v := range s.feeDestinations {
		cp.feeDestinations[k] = v
	}
	for op, ids := range s.processed {
		m := make(map[[16]byte]bool, len(ids))
		for k, v := range ids {
			m[k] = v
		}
		cp.processed[op] = m
	}
	return cp
}

func amountOf(m map[common.Address]*big.Int, a common.Address) *big.Int {
	if v, ok := m[a]; ok {
		return v
	}
	return new(big.Int)
}

func move(m map[common.Address]*big.Int, from, to common.Address, amount *big.Int) error {
	balance := amountOf(m, from)
	if balance.Cmp(amount) < 0 {
		return revert("insufficient balance: %s < %s", balance, amount)
	}
	m[from] = new(big.Int).Sub(balance, amount)
	m[to] = new(big.Int).Add(amountOf(m, to), amount)
	return nil
}

type execResult struct {
	output []byte
	logs   []*types.Log
}

// SimulatedChain is a blockchain.Backend that mines every transaction immediately.
// Gas is free so balance assertions stay exact.
type SimulatedChain struct {
	mu sync.Mutex

	chainID   *big.Int
	signer    types.Signer
	transfers common.Address

	transfersABI abi.ABI
	erc20ABI     abi.ABI

	state       *state
	blockNumber uint64
	receipts    map[common.Hash]*types.Receipt
	logs        []types.Log
	sent        []SentTransaction

	now          func() time.Time
	failNext     map[string]int
	receiptDelay int
	receiptPolls map[common.Hash]int
	tokenCount   uint64

	calls atomic.Int64
}

var _ blockchain.Backend = (*SimulatedChain)(nil)

// NewSimulatedChain creates a chain with the Transfers contract deployed
func NewSimulatedChain(chainID *big.Int) *SimulatedChain {
	transfersABI, err := contracts.ParsedTransfersABI()
	if err != nil {
		panic(err)
	}
	erc20ABI, err := contracts.ParsedERC20ABI()
	if err != nil {
		panic(err)
	}

	deployer := common.HexToAddress("0x00000000000000000000000000000000000dE910")
	return &SimulatedChain{
		chainID:      new(big.Int).Set(chainID),
		signer:       types.LatestSignerForChainID(chainID),
		transfers:    crypto.CreateAddress(deployer, 0),
		transfersABI: transfersABI,
		erc20ABI:     erc20ABI,
		state:        newState(),
		receipts:     make(map[common.Hash]*types.Receipt),
		now:          time.Now,
		failNext:     make(map[string]int),
		receiptPolls: make(map[common.Hash]int),
	}
}

// TransfersAddress is where the settlement contract lives
func (s *SimulatedChain) TransfersAddress() common.Address {
	return s.transfers
}

// DeployToken creates an ERC20 token and returns its address
func (s *SimulatedChain) DeployToken(symbol string, decimals uint8) common.Address {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokenCount++
	address := crypto.CreateAddress(s.transfers, s.tokenCount)
	s.state.tokens[address] = &token{
		symbol:     symbol,
		decimals:   decimals,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[common.Address]*big.Int),
	}
	return address
}

// Mint credits amount of token to account
func (s *SimulatedChain) Mint(tokenAddress, account common.Address, amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.mustToken(tokenAddress)
	t.balances[account] = new(big.Int).Add(amountOf(t.balances, account), amount)
}

// SetNativeBalance sets an account's native balance
func (s *SimulatedChain) SetNativeBalance(account common.Address, amount *big.Int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.native[account] = new(big.Int).Set(amount)
}

func (s *SimulatedChain) TokenBalance(tokenAddress, account common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(amountOf(s.mustToken(tokenAddress).balances, account))
}

func (s *SimulatedChain) Allowance(tokenAddress, owner, spender common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(s.mustToken(tokenAddress).allowance(owner, spender))
}

func (s *SimulatedChain) NativeBalance(account common.Address) *big.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return new(big.Int).Set(amountOf(s.state.native, account))
}

// RegisterOperator registers op directly, skipping a transaction
func (s *SimulatedChain) RegisterOperator(op, feeDestination common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.feeDestinations[op] = feeDestination
}

func (s *SimulatedChain) IsProcessed(op common.Address, id [16]byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.processed[op][id]
}

// SetTime pins the block timestamp; a zero time goes back to the wall clock
func (s *SimulatedChain) SetTime(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.IsZero() {
		s.now = time.Now
		return
	}
	s.now = func() time.Time { return t }
}

// FailNext makes the next transaction calling method get mined with a failed status
func (s *SimulatedChain) FailNext(method string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[method]++
}

// SetReceiptDelay makes receipts visible only after polls lookups
func (s *SimulatedChain) SetReceiptDelay(polls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receiptDelay = polls
}

// Transactions returns every mined transaction in order
func (s *SimulatedChain) Transactions() []SentTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentTransaction(nil), s.sent...)
}

// RPCCalls counts backend calls, used to assert that local validation made none
func (s *SimulatedChain) RPCCalls() int64 {
	return s.calls.Load()
}

func (s *SimulatedChain) mustToken(address common.Address) *token {
	t, ok := s.state.tokens[address]
	if !ok {
		panic(fmt.Sprintf("token %s is not deployed", address.Hex()))
	}
	return t
}

func (s *SimulatedChain) blockTime() *big.Int {
	return big.NewInt(s.now().Unix())
}

// methodName decodes the selector for bookkeeping, empty when unknown
func (s *SimulatedChain) methodName(st *state, to common.Address, data []byte) (string, []interface{}) {
	if len(data) < 4 {
		return "", nil
	}
	var parsed abi.ABI
	switch {
	case to == s.transfers:
		parsed = s.transfersABI
	case st.tokens[to] != nil:
		parsed = s.erc20ABI
	default:
		return "", nil
	}
	method, err := parsed.MethodById(data[:4])
	if err != nil {
		return "", nil
	}
	args, _ := method.Inputs.Unpack(data[4:])
	return method.Name, args
}

func (s *SimulatedChain) exec(st *state, from, to common.Address, value *big.Int, data []byte) (*execResult, error) {
	if value == nil {
		value = new(big.Int)
	}

	t := st.tokens[to]
	if t != nil && value.Sign() > 0 {
		return nil, revert("token is not payable")
	}
	if value.Sign() > 0 {
		if err := move(st.native, from, to, value); err != nil {
			return nil, err
		}
	}

	switch {
	case to == s.transfers:
		return s.execTransfers(st, from, value, data)
	case t != nil:
		return s.execToken(t, from, data)
	}
	return &execResult{}, nil
}

func (s *SimulatedChain) execToken(t *token, from common.Address, data []byte) (*execResult, error) {
	if len(data) < 4 {
		return nil, revert("missing selector")
	}
	method, err := s.erc20ABI.MethodById(data[:4])
	if err != nil {
		return nil, revert("unknown selector")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, revert("malformed calldata")
	}

	var out []byte
	switch method.Name {
	case "allowance":
		out, err = method.Outputs.Pack(t.allowance(args[0].(common.Address), args[1].(common.Address)))
	case "approve":
		t.setAllowance(from, args[0].(common.Address), new(big.Int).Set(args[1].(*big.Int)))
		out, err = method.Outputs.Pack(true)
	case "balanceOf":
		out, err = method.Outputs.Pack(amountOf(t.balances, args[0].(common.Address)))
	case "transfer":
		if err := move(t.balances, from, args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		out, err = method.Outputs.Pack(true)
	case "decimals":
		out, err = method.Outputs.Pack(t.decimals)
	case "symbol":
		out, err = method.Outputs.Pack(t.symbol)
	default:
		return nil, revert("%s is not supported", method.Name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s output", method.Name)
	}
	return &execResult{output: out}, nil
}

func (s *SimulatedChain) execTransfers(st *state, from common.Address, value *big.Int, data []byte) (*execResult, error) {
	if len(data) < 4 {
		return nil, revert("missing selector")
	}
	method, err := s.transfersABI.MethodById(data[:4])
	if err != nil {
		return nil, revert("unknown selector")
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, revert("malformed calldata")
	}
	if value.Sign() > 0 && method.StateMutability != "payable" {
		return nil, revert("%s is not payable", method.Name)
	}

	res := &execResult{}
	switch method.Name {
	case "getFeeDestination":
		res.output, err = method.Outputs.Pack(st.feeDestinations[args[0].(common.Address)])
	case "isOperatorRegistered":
		_, registered := st.feeDestinations[args[0].(common.Address)]
		res.output, err = method.Outputs.Pack(registered)
	case "isIntentProcessed":
		res.output, err = method.Outputs.Pack(st.processed[args[0].(common.Address)][args[1].([16]byte)])
	case "registerOperator":
		st.feeDestinations[from] = from
		res.logs = append(res.logs, s.eventLog("OperatorRegistered", nil, from, from))
	case "registerOperatorWithFeeDestination":
		dest := args[0].(common.Address)
		st.feeDestinations[from] = dest
		res.logs = append(res.logs, s.eventLog("OperatorRegistered", nil, from, dest))
	case "unregisterOperator":
		delete(st.feeDestinations, from)
		res.logs = append(res.logs, s.eventLog("OperatorUnregistered", nil, from))
	case "transferTokenPreApproved":
		intent := *abi.ConvertType(args[0], new(contracts.TransfersTransferIntent)).(*contracts.TransfersTransferIntent)
		return s.settleToken(st, from, intent)
	case "transferNative":
		intent := *abi.ConvertType(args[0], new(contracts.TransfersTransferIntent)).(*contracts.TransfersTransferIntent)
		return s.settleNative(st, from, value, intent)
	default:
		return nil, revert("%s is not supported by the simulated chain", method.Name)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to pack %s output", method.Name)
	}
	return res, nil
}

// checkIntent mirrors the contract's validity checks and returns the operator's fee destination
func (s *SimulatedChain) checkIntent(st *state, sender common.Address, in contracts.TransfersTransferIntent) (common.Address, error) {
	if in.Deadline.Cmp(s.blockTime()) < 0 {
		return common.Address{}, revert("ExpiredIntent")
	}
	feeDestination, registered := st.feeDestinations[in.Operator]
	if !registered {
		return common.Address{}, revert("OperatorNotRegistered")
	}
	if st.processed[in.Operator][in.Id] {
		return common.Address{}, revert("AlreadyProcessed")
	}

	if len(in.Signature) != 65 {
		return common.Address{}, revert("InvalidSignature")
	}
	sig := append([]byte{}, in.Signature...)
	if sig[64] != 27 && sig[64] != 28 {
		return common.Address{}, revert("InvalidSignature")
	}
	sig[64] -= 27
	pub, err := crypto.SigToPub(s.intentHash(in, sender), sig)
	if err != nil || crypto.PubkeyToAddress(*pub) != in.Operator {
		return common.Address{}, revert("InvalidSignature")
	}
	return feeDestination, nil
}

// intentHash is the contract's own packing of the intent with chain id, sender and contract address
func (s *SimulatedChain) intentHash(in contracts.TransfersTransferIntent, sender common.Address) []byte {
	inner := crypto.Keccak256(
		common.LeftPadBytes(in.RecipientAmount.Bytes(), 32),
		common.LeftPadBytes(in.Deadline.Bytes(), 32),
		in.Recipient.Bytes(),
		in.RecipientCurrency.Bytes(),
		in.RefundDestination.Bytes(),
		common.LeftPadBytes(in.FeeAmount.Bytes(), 32),
		in.Id[:],
		in.Operator.Bytes(),
		common.LeftPadBytes(s.chainID.Bytes(), 32),
		sender.Bytes(),
		s.transfers.Bytes(),
	)
	if len(in.Prefix) > 0 {
		return crypto.Keccak256(in.Prefix, inner)
	}
	return crypto.Keccak256([]byte("\x19Ethereum Signed Message:\n32"), inner)
}

func (s *SimulatedChain) settleToken(st *state, sender common.Address, in contracts.TransfersTransferIntent) (*execResult, error) {
	if in.RecipientCurrency == (common.Address{}) {
		return nil, revert("IncorrectCurrency")
	}
	feeDestination, err := s.checkIntent(st, sender, in)
	if err != nil {
		return nil, err
	}
	t := st.tokens[in.RecipientCurrency]
	if t == nil {
		return nil, revert("IncorrectCurrency")
	}

	total := new(big.Int).Add(in.RecipientAmount, in.FeeAmount)
	allowance := t.allowance(sender, s.transfers)
	if allowance.Cmp(total) < 0 {
		return nil, revert("InsufficientAllowance")
	}
	if err := move(t.balances, sender, in.Recipient, in.RecipientAmount); err != nil {
		return nil, revert("InsufficientBalance")
	}
	if err := move(t.balances, sender, feeDestination, in.FeeAmount); err != nil {
		return nil, revert("InsufficientBalance")
	}
	if allowance.Cmp(math.MaxBig256) != 0 {
		t.setAllowance(sender, s.transfers, new(big.Int).Sub(allowance, total))
	}

	return s.markProcessed(st, sender, in, total), nil
}

func (s *SimulatedChain) settleNative(st *state, sender common.Address, value *big.Int, in contracts.TransfersTransferIntent) (*execResult, error) {
	if in.RecipientCurrency != (common.Address{}) {
		return nil, revert("IncorrectCurrency")
	}
	feeDestination, err := s.checkIntent(st, sender, in)
	if err != nil {
		return nil, err
	}

	total := new(big.Int).Add(in.RecipientAmount, in.FeeAmount)
	if value.Cmp(total) < 0 {
		return nil, revert("InvalidNativeAmount")
	}
	if err := move(st.native, s.transfers, in.Recipient, in.RecipientAmount); err != nil {
		return nil, err
	}
	if err := move(st.native, s.transfers, feeDestination, in.FeeAmount); err != nil {
		return nil, err
	}
	if refund := new(big.Int).Sub(value, total); refund.Sign() > 0 {
		if err := move(st.native, s.transfers, sender, refund); err != nil {
			return nil, err
		}
	}

	return s.markProcessed(st, sender, in, total), nil
}

func (s *SimulatedChain) markProcessed(st *state, sender common.Address, in contracts.TransfersTransferIntent, spent *big.Int) *execResult {
	if st.processed[in.Operator] == nil {
		st.processed[in.Operator] = make(map[[16]byte]bool)
	}
	st.processed[in.Operator][in.Id] = true

	topics := []common.Hash{common.BytesToHash(in.Operator.Bytes())}
	return &execResult{logs: []*types.Log{
		s.eventLog("Transferred", topics, in.Id, in.Recipient, sender, spent, in.RecipientCurrency),
	}}
}

func (s *SimulatedChain) eventLog(name string, indexed []common.Hash, values ...interface{}) *types.Log {
	event := s.transfersABI.Events[name]
	data, err := event.Inputs.NonIndexed().Pack(values...)
	if err != nil {
		panic(err)
	}
	return &types.Log{
		Address: s.transfers,
		Topics:  append([]common.Hash{event.ID}, indexed...),
		Data:    data,
	}
}

func (s *SimulatedChain) hasCode(address common.Address) bool {
	return address == s.transfers || s.state.tokens[address] != nil
}

// ChainID implements blockchain.Backend
func (s *SimulatedChain) ChainID(_ context.Context) (*big.Int, error) {
	s.calls.Add(1)
	return new(big.Int).Set(s.chainID), nil
}

func (s *SimulatedChain) BlockNumber(_ context.Context) (uint64, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blockNumber, nil
}

func (s *SimulatedChain) HeaderByNumber(_ context.Context, _ *big.Int) (*types.Header, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return &types.Header{
		Number: new(big.Int).SetUint64(s.blockNumber),
		Time:   uint64(s.now().Unix()),
	}, nil
}

func (s *SimulatedChain) CodeAt(_ context.Context, account common.Address, _ *big.Int) ([]byte, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hasCode(account) {
		return simulatedCode, nil
	}
	return nil, nil
}

func (s *SimulatedChain) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return s.CodeAt(ctx, account, nil)
}

func (s *SimulatedChain) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.nonces[account], nil
}

func (s *SimulatedChain) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	s.calls.Add(1)
	return big.NewInt(gasPrice), nil
}

func (s *SimulatedChain) SuggestGasTipCap(_ context.Context) (*big.Int, error) {
	s.calls.Add(1)
	return big.NewInt(gasPrice), nil
}

func (s *SimulatedChain) CallContract(_ context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if call.To == nil {
		return nil, errors.New("contract creation is not supported")
	}
	res, err := s.exec(s.state.clone(), call.From, *call.To, call.Value, call.Data)
	if err != nil {
		return nil, err
	}
	return res.output, nil
}

func (s *SimulatedChain) EstimateGas(_ context.Context, call ethereum.CallMsg) (uint64, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	if call.To == nil {
		return 0, errors.New("contract creation is not supported")
	}
	if _, err := s.exec(s.state.clone(), call.From, *call.To, call.Value, call.Data); err != nil {
		return 0, err
	}
	return estimatedGas, nil
}

// SendTransaction mines tx in its own block. A reverting transaction is mined with a failed status.
func (s *SimulatedChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	from, err := types.Sender(s.signer, tx)
	if err != nil {
		return errors.Wrap(err, "invalid sender")
	}
	if tx.To() == nil {
		return errors.New("contract creation is not supported")
	}
	if _, exists := s.receipts[tx.Hash()]; exists {
		return errors.New("already known")
	}
	expected := s.state.nonces[from]
	if tx.Nonce() < expected {
		return fmt.Errorf("nonce too low: address %s, tx: %d state: %d", from.Hex(), tx.Nonce(), expected)
	}
	if tx.Nonce() > expected {
		return fmt.Errorf("nonce too high: address %s, tx: %d state: %d", from.Hex(), tx.Nonce(), expected)
	}

	to := *tx.To()
	method, args := s.methodName(s.state, to, tx.Data())

	next := s.state.clone()
	status := types.ReceiptStatusSuccessful
	var logs []*types.Log
	if s.failNext[method] > 0 {
		s.failNext[method]--
		status = types.ReceiptStatusFailed
	} else if res, err := s.exec(next, from, to, tx.Value(), tx.Data()); err != nil {
		next = s.state.clone()
		status = types.ReceiptStatusFailed
	} else {
		logs = res.logs
	}
	next.nonces[from] = expected + 1
	s.state = next

	s.blockNumber++
	blockNumber := new(big.Int).SetUint64(s.blockNumber)
	blockHash := crypto.Keccak256Hash(blockNumber.Bytes())
	for i, l := range logs {
		l.BlockNumber = s.blockNumber
		l.BlockHash = blockHash
		l.TxHash = tx.Hash()
		l.Index = uint(len(s.logs) + i)
	}
	for _, l := range logs {
		s.logs = append(s.logs, *l)
	}

	s.receipts[tx.Hash()] = &types.Receipt{
		Type:              tx.Type(),
		Status:            status,
		CumulativeGasUsed: estimatedGas,
		Logs:              logs,
		TxHash:            tx.Hash(),
		GasUsed:           estimatedGas,
		EffectiveGasPrice: tx.GasPrice(),
		BlockHash:         blockHash,
		BlockNumber:       blockNumber,
	}
	s.sent = append(s.sent, SentTransaction{
		Hash:   tx.Hash(),
		From:   from,
		To:     to,
		Method: method,
		Args:   args,
		Value:  tx.Value(),
		Status: status,
	})
	return nil
}

func (s *SimulatedChain) TransactionReceipt(_ context.Context, txHash common.Hash) (*types.Receipt, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	receipt, ok := s.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	if s.receiptPolls[txHash] < s.receiptDelay {
		s.receiptPolls[txHash]++
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (s *SimulatedChain) FilterLogs(_ context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []types.Log
	for _, l := range s.logs {
		if len(q.Addresses) > 0 && !containsAddress(q.Addresses, l.Address) {
			continue
		}
		if len(q.Topics) > 0 && len(q.Topics[0]) > 0 && !containsHash(q.Topics[0], l.Topics[0]) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (s *SimulatedChain) SubscribeFilterLogs(_ context.Context, _ ethereum.FilterQuery, _ chan<- types.Log) (ethereum.Subscription, error) {
	s.calls.Add(1)
	return nil, errors.New("simulated chain does not support subscriptions")
}

func containsAddress(list []common.Address, a common.Address) bool {
	for _, x := range list {
		if x == a {
			return true
		}
	}
	return false
}

func containsHash(list []common.Hash, h common.Hash) bool {
	for _, x := range list {
		if x == h {
			return true
		}
	}
	return false
}
