package chain

import (
	"github.com/MedGa-eth/foundry/chain/state"
	"github.com/ethereum/go-ethereum/common"
	gethstate "github.com/ethereum/go-ethereum/core/state"
	"github.com/ethereum/go-ethereum/core/stateless"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/ethereum/go-ethereum/trie/utils"
	"github.com/holiman/uint256"
)

var _ vm.StateDB = (*ForkStateDB)(nil)

// forkAccount holds the in-memory view of a single account. Remote values are faulted in once through the backend;
// all subsequent mutations stay local.
type forkAccount struct {
	balance  *uint256.Int
	nonce    uint64
	code     []byte
	codeHash common.Hash
	storage  map[common.Hash]common.Hash

	// resolved indicates the account basics were faulted in (or the account was created locally).
	resolved bool
	// resolvedSlots tracks storage keys which were faulted in, so zero-valued remote slots are not re-fetched.
	resolvedSlots map[common.Hash]struct{}
}

func newForkAccount() *forkAccount {
	return &forkAccount{
		balance:       uint256.NewInt(0),
		storage:       make(map[common.Hash]common.Hash),
		resolvedSlots: make(map[common.Hash]struct{}),
	}
}

func (a *forkAccount) clone() *forkAccount {
	cloned := &forkAccount{
		balance:       new(uint256.Int).Set(a.balance),
		nonce:         a.nonce,
		code:          a.code,
		codeHash:      a.codeHash,
		storage:       make(map[common.Hash]common.Hash, len(a.storage)),
		resolved:      a.resolved,
		resolvedSlots: make(map[common.Hash]struct{}, len(a.resolvedSlots)),
	}
	for k, v := range a.storage {
		cloned.storage[k] = v
	}
	for k := range a.resolvedSlots {
		cloned.resolvedSlots[k] = struct{}{}
	}
	return cloned
}

/*
ForkStateDB implements vm.StateDB over a remote state backend. Account basics and storage slots are faulted in
lazily from the backend on first access and all mutations are kept in memory, so the remote chain is never written
to. Backend fetch failures do not abort EVM execution; the first failure is recorded and must be checked by the
caller via FetchError once execution finishes.
*/
type ForkStateDB struct {
	backend state.Backend

	accounts map[common.Address]*forkAccount

	// snapshots stores deep copies of the account set for RevertToSnapshot.
	snapshots  map[int]map[common.Address]*forkAccount
	nextSnapID int

	// Access lists (EIP-2929)
	accessedAddresses map[common.Address]struct{}
	accessedSlots     map[common.Address]map[common.Hash]struct{}

	// Transient storage (EIP-1153)
	transientStorage map[common.Address]map[common.Hash]common.Hash

	logs    []*types.Log
	logSize uint

	preimages map[common.Hash][]byte

	selfDestructed map[common.Address]struct{}

	// created tracks accounts created within the current transaction (EIP-6780).
	created map[common.Address]struct{}

	refund uint64

	// fetchErr records the first backend failure encountered while faulting in state.
	fetchErr error
}

// NewForkStateDB creates a ForkStateDB whose cold reads are served by the given backend.
func NewForkStateDB(backend state.Backend) *ForkStateDB {
	return &ForkStateDB{
		backend:           backend,
		accounts:          make(map[common.Address]*forkAccount),
		snapshots:         make(map[int]map[common.Address]*forkAccount),
		accessedAddresses: make(map[common.Address]struct{}),
		accessedSlots:     make(map[common.Address]map[common.Hash]struct{}),
		transientStorage:  make(map[common.Address]map[common.Hash]common.Hash),
		preimages:         make(map[common.Hash][]byte),
		selfDestructed:    make(map[common.Address]struct{}),
		created:           make(map[common.Address]struct{}),
	}
}

// FetchError returns the first backend failure encountered while faulting in remote state, if any.
func (s *ForkStateDB) FetchError() error {
	return s.fetchErr
}

// recordFetchError keeps only the first failure. Later failures are usually a consequence of the first.
func (s *ForkStateDB) recordFetchError(err error) {
	if s.fetchErr == nil {
		s.fetchErr = err
	}
}

// resolveAccount returns the account for addr, faulting its basics in from the backend on first access. On backend
// failure the account resolves to an empty account and the error is recorded.
func (s *ForkStateDB) resolveAccount(addr common.Address) *forkAccount {
	account, ok := s.accounts[addr]
	if !ok {
		account = newForkAccount()
		s.accounts[addr] = account
	}
	if account.resolved {
		return account
	}
	account.resolved = true

	balance, nonce, code, err := s.backend.GetStateObject(addr)
	if err != nil {
		s.recordFetchError(err)
		return account
	}
	account.balance = new(uint256.Int).Set(balance)
	account.nonce = nonce
	account.code = code
	if len(code) > 0 {
		account.codeHash = crypto.Keccak256Hash(code)
	}
	return account
}

// resolveSlot faults in a single storage slot for addr if it has not been read or written yet.
func (s *ForkStateDB) resolveSlot(addr common.Address, key common.Hash) *forkAccount {
	account := s.resolveAccount(addr)
	if _, ok := account.storage[key]; ok {
		return account
	}
	if _, ok := account.resolvedSlots[key]; ok {
		return account
	}
	account.resolvedSlots[key] = struct{}{}

	value, err := s.backend.GetStorageAt(addr, key)
	if err != nil {
		s.recordFetchError(err)
		return account
	}
	account.storage[key] = value
	return account
}

func (s *ForkStateDB) CreateAccount(addr common.Address) {
	prev := s.resolveAccount(addr)
	account := newForkAccount()
	// Per EIP-161 semantics, creating over an existing account carries the balance over.
	account.balance = new(uint256.Int).Set(prev.balance)
	account.resolved = true
	s.accounts[addr] = account
	s.created[addr] = struct{}{}
}

func (s *ForkStateDB) CreateContract(addr common.Address) {
	s.created[addr] = struct{}{}
}

func (s *ForkStateDB) GetBalance(addr common.Address) *uint256.Int {
	return new(uint256.Int).Set(s.resolveAccount(addr).balance)
}

func (s *ForkStateDB) SubBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	account := s.resolveAccount(addr)
	prev := *account.balance
	account.balance = new(uint256.Int).Sub(account.balance, amount)
	return prev
}

func (s *ForkStateDB) AddBalance(addr common.Address, amount *uint256.Int, reason tracing.BalanceChangeReason) uint256.Int {
	account := s.resolveAccount(addr)
	prev := *account.balance
	account.balance = new(uint256.Int).Add(account.balance, amount)
	return prev
}

func (s *ForkStateDB) GetNonce(addr common.Address) uint64 {
	return s.resolveAccount(addr).nonce
}

func (s *ForkStateDB) SetNonce(addr common.Address, nonce uint64, reason tracing.NonceChangeReason) {
	s.resolveAccount(addr).nonce = nonce
}

func (s *ForkStateDB) GetCodeHash(addr common.Address) common.Hash {
	account := s.resolveAccount(addr)
	if len(account.code) == 0 {
		return common.Hash{}
	}
	return account.codeHash
}

func (s *ForkStateDB) GetCode(addr common.Address) []byte {
	return s.resolveAccount(addr).code
}

func (s *ForkStateDB) GetCodeSize(addr common.Address) int {
	return len(s.resolveAccount(addr).code)
}

func (s *ForkStateDB) SetCode(addr common.Address, code []byte) []byte {
	account := s.resolveAccount(addr)
	prev := account.code
	account.code = code
	if len(code) > 0 {
		account.codeHash = crypto.Keccak256Hash(code)
	} else {
		account.codeHash = common.Hash{}
	}
	return prev
}

func (s *ForkStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	return s.resolveSlot(addr, key).storage[key]
}

func (s *ForkStateDB) GetStateAndCommittedState(addr common.Address, key common.Hash) (common.Hash, common.Hash) {
	// Committed state is not tracked separately; the current value stands in for both.
	value := s.GetState(addr, key)
	return value, value
}

func (s *ForkStateDB) SetState(addr common.Address, key common.Hash, value common.Hash) common.Hash {
	account := s.resolveSlot(addr, key)
	prev := account.storage[key]
	account.storage[key] = value
	return prev
}

func (s *ForkStateDB) GetStorageRoot(addr common.Address) common.Hash {
	// No trie is maintained over the in-memory state.
	return common.Hash{}
}

func (s *ForkStateDB) GetTransientState(addr common.Address, key common.Hash) common.Hash {
	if storage, ok := s.transientStorage[addr]; ok {
		return storage[key]
	}
	return common.Hash{}
}

func (s *ForkStateDB) SetTransientState(addr common.Address, key, value common.Hash) {
	if s.transientStorage[addr] == nil {
		s.transientStorage[addr] = make(map[common.Hash]common.Hash)
	}
	s.transientStorage[addr][key] = value
}

func (s *ForkStateDB) SelfDestruct(addr common.Address) uint256.Int {
	account := s.resolveAccount(addr)
	s.selfDestructed[addr] = struct{}{}
	prev := *account.balance
	account.balance = uint256.NewInt(0)
	return prev
}

func (s *ForkStateDB) HasSelfDestructed(addr common.Address) bool {
	_, ok := s.selfDestructed[addr]
	return ok
}

func (s *ForkStateDB) SelfDestruct6780(addr common.Address) (uint256.Int, bool) {
	// EIP-6780: only accounts created in the same transaction are actually destroyed.
	account := s.resolveAccount(addr)
	_, created := s.created[addr]
	if created {
		s.selfDestructed[addr] = struct{}{}
	}
	prev := *account.balance
	account.balance = uint256.NewInt(0)
	return prev, created
}

func (s *ForkStateDB) Exist(addr common.Address) bool {
	return !s.Empty(addr)
}

func (s *ForkStateDB) Empty(addr common.Address) bool {
	account := s.resolveAccount(addr)
	return account.balance.IsZero() && account.nonce == 0 && len(account.code) == 0
}

func (s *ForkStateDB) AddressInAccessList(addr common.Address) bool {
	_, ok := s.accessedAddresses[addr]
	return ok
}

func (s *ForkStateDB) SlotInAccessList(addr common.Address, slot common.Hash) (bool, bool) {
	_, addrOk := s.accessedAddresses[addr]
	if slots, ok := s.accessedSlots[addr]; ok {
		_, slotOk := slots[slot]
		return addrOk, slotOk
	}
	return addrOk, false
}

func (s *ForkStateDB) AddAddressToAccessList(addr common.Address) {
	s.accessedAddresses[addr] = struct{}{}
}

func (s *ForkStateDB) AddSlotToAccessList(addr common.Address, slot common.Hash) {
	s.accessedAddresses[addr] = struct{}{}
	if s.accessedSlots[addr] == nil {
		s.accessedSlots[addr] = make(map[common.Hash]struct{})
	}
	s.accessedSlots[addr][slot] = struct{}{}
}

func (s *ForkStateDB) AddRefund(gas uint64) {
	s.refund += gas
}

func (s *ForkStateDB) SubRefund(gas uint64) {
	if gas > s.refund {
		s.refund = 0
	} else {
		s.refund -= gas
	}
}

func (s *ForkStateDB) GetRefund() uint64 {
	return s.refund
}

func (s *ForkStateDB) Snapshot() int {
	id := s.nextSnapID
	s.nextSnapID++

	snapshot := make(map[common.Address]*forkAccount, len(s.accounts))
	for addr, account := range s.accounts {
		snapshot[addr] = account.clone()
	}
	s.snapshots[id] = snapshot

	return id
}

func (s *ForkStateDB) RevertToSnapshot(id int) {
	if snapshot, ok := s.snapshots[id]; ok {
		s.accounts = snapshot
		for snapID := range s.snapshots {
			if snapID >= id {
				delete(s.snapshots, snapID)
			}
		}
	}
}

func (s *ForkStateDB) AddLog(log *types.Log) {
	log.Index = s.logSize
	s.logSize++
	s.logs = append(s.logs, log)
}

// Logs returns the logs emitted during execution.
func (s *ForkStateDB) Logs() []*types.Log {
	return s.logs
}

func (s *ForkStateDB) AddPreimage(hash common.Hash, preimage []byte) {
	s.preimages[hash] = preimage
}

func (s *ForkStateDB) Prepare(rules params.Rules, sender, coinbase common.Address, dest *common.Address, precompiles []common.Address, txAccesses types.AccessList) {
	s.transientStorage = make(map[common.Address]map[common.Hash]common.Hash)
	s.accessedAddresses = make(map[common.Address]struct{})
	s.accessedSlots = make(map[common.Address]map[common.Hash]struct{})
	s.created = make(map[common.Address]struct{})

	for _, addr := range precompiles {
		s.accessedAddresses[addr] = struct{}{}
	}
	s.accessedAddresses[sender] = struct{}{}
	s.accessedAddresses[coinbase] = struct{}{}
	if dest != nil {
		s.accessedAddresses[*dest] = struct{}{}
	}
	for _, item := range txAccesses {
		s.accessedAddresses[item.Address] = struct{}{}
		if s.accessedSlots[item.Address] == nil {
			s.accessedSlots[item.Address] = make(map[common.Hash]struct{})
		}
		for _, key := range item.StorageKeys {
			s.accessedSlots[item.Address][key] = struct{}{}
		}
	}
}

func (s *ForkStateDB) PointCache() *utils.PointCache {
	return nil
}

func (s *ForkStateDB) Witness() *stateless.Witness {
	return nil
}

func (s *ForkStateDB) AccessEvents() *gethstate.AccessEvents {
	return nil
}

func (s *ForkStateDB) Finalise(deleteEmptyObjects bool) {
}
