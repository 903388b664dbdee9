package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"digibank/internal/errs"
	"digibank/internal/models"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store used by tests and by deployments
// without a database. Do takes a snapshot, applies the unit of work to it
// and swaps it in only on success, so partial mutations never become
// visible. A single mutex serializes units of work, which also gives the
// debit-serialization guarantee.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (m *MemoryStore) Do(ctx context.Context, fn func(Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.state.clone()
	if err := fn(memSession{state: work}); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) Accounts() AccountStore { return memAccounts{memSession{store: m}} }
func (m *MemoryStore) Ledger() Ledger         { return memLedger{memSession{store: m}} }
func (m *MemoryStore) Requests() RequestStore { return memRequests{memSession{store: m}} }
func (m *MemoryStore) Users() UserStore       { return memUsers{memSession{store: m}} }

type memState struct {
	nextAccountID int64
	nextTxnID     int64
	nextRequestID int64
	nextUserID    int64

	accounts     map[int64]*models.Account
	txns         map[string]*models.Transaction
	txnOrder     []string
	requests     map[string]*models.MoneyRequest
	requestOrder []string
	users        map[int64]*models.User
	bankAccounts map[int64]*models.BankAccount
	apiKeys      []*models.APIKey
}

func newMemState() *memState {
	return &memState{
		nextAccountID: 1,
		nextTxnID:     1,
		nextRequestID: 1,
		nextUserID:    1,
		accounts:      make(map[int64]*models.Account),
		txns:          make(map[string]*models.Transaction),
		requests:      make(map[string]*models.MoneyRequest),
		users:         make(map[int64]*models.User),
		bankAccounts:  make(map[int64]*models.BankAccount),
	}
}

func (s *memState) clone() *memState {
	cp := *s
	cp.accounts = make(map[int64]*models.Account, len(s.accounts))
	for id, a := range s.accounts {
		v := *a
		cp.accounts[id] = &v
	}
	cp.txns = make(map[string]*models.Transaction, len(s.txns))
	for id, t := range s.txns {
		v := *t
		cp.txns[id] = &v
	}
	cp.txnOrder = append([]string(nil), s.txnOrder...)
	cp.requests = make(map[string]*models.MoneyRequest, len(s.requests))
	for id, r := range s.requests {
		v := *r
		cp.requests[id] = &v
	}
	cp.requestOrder = append([]string(nil), s.requestOrder...)
	cp.users = make(map[int64]*models.User, len(s.users))
	for id, u := range s.users {
		v := *u
		cp.users[id] = &v
	}
	cp.bankAccounts = make(map[int64]*models.BankAccount, len(s.bankAccounts))
	for id, b := range s.bankAccounts {
		v := *b
		cp.bankAccounts[id] = &v
	}
	cp.apiKeys = append([]*models.APIKey(nil), s.apiKeys...)
	return &cp
}

// memSession either holds a working snapshot (inside Do) or points back
// at the store for standalone, individually locked operations.
type memSession struct {
	store *MemoryStore
	state *memState
}

func (s memSession) acquire() (*memState, func()) {
	if s.store != nil {
		s.store.mu.Lock()
		return s.store.state, s.store.mu.Unlock
	}
	return s.state, func() {}
}

func (s memSession) Accounts() AccountStore { return memAccounts{s} }
func (s memSession) Ledger() Ledger         { return memLedger{s} }
func (s memSession) Requests() RequestStore { return memRequests{s} }
func (s memSession) Users() UserStore       { return memUsers{s} }

type memAccounts struct {
	s memSession
}

func (a memAccounts) Get(ctx context.Context, id int64) (*models.Account, error) {
	st, done := a.s.acquire()
	defer done()
	acc, ok := st.accounts[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "account not found")
	}
	v := *acc
	return &v, nil
}

func (a memAccounts) GetByNumber(ctx context.Context, number string) (*models.Account, error) {
	st, done := a.s.acquire()
	defer done()
	for _, acc := range st.accounts {
		if acc.AccountNumber == number {
			v := *acc
			return &v, nil
		}
	}
	return nil, errs.E(errs.NotFound, "account not found")
}

func (a memAccounts) PrimaryForUser(ctx context.Context, userID int64) (*models.Account, error) {
	st, done := a.s.acquire()
	defer done()
	var primary *models.Account
	for _, acc := range st.accounts {
		if acc.UserID == userID && (primary == nil || acc.ID < primary.ID) {
			primary = acc
		}
	}
	if primary == nil {
		return nil, errs.E(errs.NotFound, "account not found")
	}
	v := *primary
	return &v, nil
}

func (a memAccounts) Create(ctx context.Context, acc *models.Account) error {
	st, done := a.s.acquire()
	defer done()
	acc.ID = st.nextAccountID
	st.nextAccountID++
	now := time.Now()
	acc.CreatedAt = now
	acc.UpdatedAt = now
	v := *acc
	st.accounts[acc.ID] = &v
	return nil
}

func (a memAccounts) AdjustBalance(ctx context.Context, id int64, delta decimal.Decimal) (*models.Account, error) {
	st, done := a.s.acquire()
	defer done()
	acc, ok := st.accounts[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "account not found")
	}
	newBalance := acc.Balance.Add(delta)
	if newBalance.IsNegative() {
		return nil, errs.E(errs.InsufficientFunds, "insufficient balance")
	}
	acc.Balance = newBalance
	acc.UpdatedAt = time.Now()
	v := *acc
	return &v, nil
}

type memLedger struct {
	s memSession
}

func (l memLedger) RecordPending(ctx context.Context, txn *models.Transaction) error {
	st, done := l.s.acquire()
	defer done()
	if txn.Status == "" {
		txn.Status = models.TransactionStatusPending
	}
	if _, exists := st.txns[txn.PublicID]; exists {
		return fmt.Errorf("duplicate transaction id %s", txn.PublicID)
	}
	txn.ID = st.nextTxnID
	st.nextTxnID++
	now := time.Now()
	txn.CreatedAt = now
	txn.UpdatedAt = now
	v := *txn
	st.txns[txn.PublicID] = &v
	st.txnOrder = append(st.txnOrder, txn.PublicID)
	return nil
}

func (l memLedger) transition(st *memState, publicID string, to models.TransactionStatus) (*models.Transaction, error) {
	t, ok := st.txns[publicID]
	if !ok {
		return nil, errs.E(errs.NotFound, "transaction not found")
	}
	if t.Status == to {
		return nil, nil
	}
	if !t.Status.CanTransition(to) {
		return nil, errs.E(errs.InvalidState, fmt.Sprintf("illegal transaction transition %s -> %s", t.Status, to))
	}
	t.Status = to
	t.UpdatedAt = time.Now()
	return t, nil
}

func (l memLedger) MarkSuccessful(ctx context.Context, publicID, bankReference string) error {
	st, done := l.s.acquire()
	defer done()
	t, err := l.transition(st, publicID, models.TransactionStatusSuccessful)
	if err != nil {
		return err
	}
	if t != nil && bankReference != "" {
		t.BankReference = bankReference
	}
	return nil
}

func (l memLedger) MarkFailed(ctx context.Context, publicID, reason string) error {
	st, done := l.s.acquire()
	defer done()
	t, err := l.transition(st, publicID, models.TransactionStatusFailed)
	if err != nil {
		return err
	}
	if t != nil {
		t.FailureReason = reason
	}
	return nil
}

func (l memLedger) MarkRefunded(ctx context.Context, publicID string) error {
	st, done := l.s.acquire()
	defer done()
	t, ok := st.txns[publicID]
	if !ok {
		return errs.E(errs.NotFound, "transaction not found")
	}
	if !t.Refundable() {
		return errs.E(errs.InvalidState, "transaction already refunded or not refundable")
	}
	t.Refunded = true
	t.UpdatedAt = time.Now()
	return nil
}

func (l memLedger) GetByPublicID(ctx context.Context, publicID string) (*models.Transaction, error) {
	st, done := l.s.acquire()
	defer done()
	t, ok := st.txns[publicID]
	if !ok {
		return nil, errs.E(errs.NotFound, "transaction not found")
	}
	v := *t
	return &v, nil
}

func (l memLedger) list(st *memState, match func(*models.Transaction) bool, limit, offset int) []*models.Transaction {
	var txns []*models.Transaction
	skipped := 0
	// Newest first: walk insertion order backwards.
	for i := len(st.txnOrder) - 1; i >= 0 && len(txns) < limit; i-- {
		t := st.txns[st.txnOrder[i]]
		if !match(t) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		v := *t
		txns = append(txns, &v)
	}
	return txns
}

func (l memLedger) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	st, done := l.s.acquire()
	defer done()
	return l.list(st, func(t *models.Transaction) bool { return t.UserID == userID }, limit, offset), nil
}

func (l memLedger) ListByAccount(ctx context.Context, accountID int64, limit, offset int) ([]*models.Transaction, error) {
	st, done := l.s.acquire()
	defer done()
	return l.list(st, func(t *models.Transaction) bool { return t.AccountID == accountID }, limit, offset), nil
}

func (l memLedger) SumSuccessful(ctx context.Context, accountID int64) (decimal.Decimal, error) {
	st, done := l.s.acquire()
	defer done()
	sum := decimal.Zero
	for _, t := range st.txns {
		if t.AccountID != accountID || t.Status != models.TransactionStatusSuccessful || t.IsDemo {
			continue
		}
		if t.Type == models.TransactionTypeDebit {
			sum = sum.Sub(t.Amount)
		} else {
			sum = sum.Add(t.Amount)
		}
	}
	return sum, nil
}

type memRequests struct {
	s memSession
}

func (r memRequests) Create(ctx context.Context, req *models.MoneyRequest) error {
	st, done := r.s.acquire()
	defer done()
	req.ID = st.nextRequestID
	st.nextRequestID++
	req.CreatedAt = time.Now()
	v := *req
	st.requests[req.PublicID] = &v
	st.requestOrder = append(st.requestOrder, req.PublicID)
	return nil
}

func (r memRequests) GetByPublicID(ctx context.Context, publicID string) (*models.MoneyRequest, error) {
	st, done := r.s.acquire()
	defer done()
	req, ok := st.requests[publicID]
	if !ok {
		return nil, errs.E(errs.NotFound, "money request not found")
	}
	v := *req
	return &v, nil
}

func (r memRequests) HasPendingDuplicate(ctx context.Context, fromUserID, toUserID int64, amount decimal.Decimal, now time.Time) (bool, error) {
	st, done := r.s.acquire()
	defer done()
	for _, req := range st.requests {
		if req.FromUserID == fromUserID && req.ToUserID == toUserID &&
			req.Amount.Equal(amount) &&
			req.Status == models.RequestStatusPending && req.ExpiresAt.After(now) {
			return true, nil
		}
	}
	return false, nil
}

func (r memRequests) UpdateStatus(ctx context.Context, publicID string, from, to models.RequestStatus, respondedAt time.Time, reason string) error {
	st, done := r.s.acquire()
	defer done()
	req, ok := st.requests[publicID]
	if !ok {
		return errs.E(errs.NotFound, "money request not found")
	}
	if req.Status != from || !from.CanTransition(to) {
		return errs.E(errs.InvalidState, fmt.Sprintf("illegal request transition %s -> %s", req.Status, to))
	}
	req.Status = to
	req.RespondedAt = &respondedAt
	req.RejectionReason = reason
	return nil
}

func (r memRequests) ListForUser(ctx context.Context, userID int64, direction string, limit int) ([]*models.MoneyRequest, error) {
	st, done := r.s.acquire()
	defer done()
	var requests []*models.MoneyRequest
	for i := len(st.requestOrder) - 1; i >= 0 && len(requests) < limit; i-- {
		req := st.requests[st.requestOrder[i]]
		switch direction {
		case "sent":
			if req.FromUserID != userID {
				continue
			}
		case "received":
			if req.ToUserID != userID {
				continue
			}
		default:
			if req.FromUserID != userID && req.ToUserID != userID {
				continue
			}
		}
		v := *req
		requests = append(requests, &v)
	}
	return requests, nil
}

type memUsers struct {
	s memSession
}

func (u memUsers) Create(ctx context.Context, user *models.User) error {
	st, done := u.s.acquire()
	defer done()
	for _, existing := range st.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return errs.E(errs.InvalidInput, "user with this email already exists")
		}
	}
	user.ID = st.nextUserID
	st.nextUserID++
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	v := *user
	st.users[user.ID] = &v
	return nil
}

func (u memUsers) GetByID(ctx context.Context, id int64) (*models.User, error) {
	st, done := u.s.acquire()
	defer done()
	user, ok := st.users[id]
	if !ok {
		return nil, errs.E(errs.NotFound, "user not found")
	}
	v := *user
	return &v, nil
}

func (u memUsers) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	st, done := u.s.acquire()
	defer done()
	for _, user := range st.users {
		if strings.EqualFold(user.Email, email) {
			v := *user
			return &v, nil
		}
	}
	return nil, errs.E(errs.NotFound, "user not found")
}

func (u memUsers) GetByUPI(ctx context.Context, handle string) (*models.User, error) {
	st, done := u.s.acquire()
	defer done()
	for _, user := range st.users {
		if user.UPIHandle == handle {
			v := *user
			return &v, nil
		}
	}
	return nil, errs.E(errs.NotFound, "user not found")
}

func (u memUsers) SetUPI(ctx context.Context, userID int64, handle, pinHash string) error {
	st, done := u.s.acquire()
	defer done()
	user, ok := st.users[userID]
	if !ok {
		return errs.E(errs.NotFound, "user not found")
	}
	user.UPIHandle = handle
	user.UPIPinHash = pinHash
	user.UpdatedAt = time.Now()
	return nil
}

func (u memUsers) SetPINHash(ctx context.Context, userID int64, pinHash string) error {
	st, done := u.s.acquire()
	defer done()
	user, ok := st.users[userID]
	if !ok {
		return errs.E(errs.NotFound, "user not found")
	}
	user.UPIPinHash = pinHash
	user.UpdatedAt = time.Now()
	return nil
}

func (u memUsers) ResolveAPIKey(ctx context.Context, key, merchantID string) (*models.User, error) {
	st, done := u.s.acquire()
	defer done()
	for _, ak := range st.apiKeys {
		if ak.Key == key && ak.MerchantID == merchantID && ak.IsActive {
			user, ok := st.users[ak.UserID]
			if !ok {
				return nil, errs.E(errs.Unauthorized, "invalid API credentials")
			}
			v := *user
			return &v, nil
		}
	}
	return nil, errs.E(errs.Unauthorized, "invalid API credentials")
}

func (u memUsers) VerifiedBankAccount(ctx context.Context, userID int64) (*models.BankAccount, error) {
	st, done := u.s.acquire()
	defer done()
	b, ok := st.bankAccounts[userID]
	if !ok || !b.IsVerified || !b.IsActive {
		return nil, errs.E(errs.NotFound, "no verified bank account linked")
	}
	v := *b
	return &v, nil
}

// AddAPIKey and AddBankAccount seed merchant fixtures; the SQL store gets
// these rows from migrations or operator tooling instead.
func (m *MemoryStore) AddAPIKey(key *models.APIKey) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := *key
	m.state.apiKeys = append(m.state.apiKeys, &v)
}

func (m *MemoryStore) AddBankAccount(b *models.BankAccount) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := *b
	m.state.bankAccounts[b.UserID] = &v
}
