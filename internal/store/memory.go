package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"brokerhub/internal/model"
	"brokerhub/internal/types"
)

// MemoryStore implements Store with in-memory maps. Used for tests and
// development. Returned values are copies; nothing escapes the lock.
type MemoryStore struct {
	mu     sync.RWMutex
	users  map[string]*model.User
	creds  map[string]string // userID -> password hash
	emails map[string]string // email -> userID

	ledgers   map[string]*model.Ledger
	positions map[string]*model.Position
	requests  map[string]*model.MoneyRequest

	kyc     map[string]*model.KYCRecord
	experts map[string]*model.ExpertTrader
	subs    map[string]*model.CopySubscription
	notices map[string]*model.Notice

	vendors  map[string]*model.Vendor
	trades   map[string]*model.P2PTrade
	messages map[string][]model.TradeMessage

	userMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:     make(map[string]*model.User),
		creds:     make(map[string]string),
		emails:    make(map[string]string),
		ledgers:   make(map[string]*model.Ledger),
		positions: make(map[string]*model.Position),
		requests:  make(map[string]*model.MoneyRequest),
		kyc:       make(map[string]*model.KYCRecord),
		experts:   make(map[string]*model.ExpertTrader),
		subs:      make(map[string]*model.CopySubscription),
		notices:   make(map[string]*model.Notice),
		vendors:   make(map[string]*model.Vendor),
		trades:    make(map[string]*model.P2PTrade),
		messages:  make(map[string][]model.TradeMessage),
	}
}

func (s *MemoryStore) userLock(userID string) *sync.Mutex {
	s.userMu.Lock()
	defer s.userMu.Unlock()
	if s.locks == nil {
		s.locks = make(map[string]*sync.Mutex)
	}
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	return l
}

// Update serializes all mutations for one user behind that user's
// mutex. fn works on a snapshot; the snapshot replaces the live state
// only when fn returns nil.
func (s *MemoryStore) Update(_ context.Context, userID string, fn func(Txn) error) error {
	l := s.userLock(userID)
	l.Lock()
	defer l.Unlock()

	s.mu.RLock()
	if _, ok := s.users[userID]; !ok {
		s.mu.RUnlock()
		return ErrNotFound
	}
	txn := s.snapshot(userID)
	s.mu.RUnlock()

	if err := fn(txn); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	*s.users[userID] = txn.user
	*s.ledgers[userID] = txn.ledger
	for id, p := range txn.positions {
		cp := p
		s.positions[id] = &cp
	}
	for id, r := range txn.requests {
		cp := r
		s.requests[id] = &cp
	}
	return nil
}

func (s *MemoryStore) snapshot(userID string) *memTxn {
	txn := &memTxn{
		user:      *s.users[userID],
		ledger:    *s.ledgers[userID],
		positions: make(map[string]model.Position),
		requests:  make(map[string]model.MoneyRequest),
	}
	for id, p := range s.positions {
		if p.UserID == userID {
			txn.positions[id] = *p
		}
	}
	for id, r := range s.requests {
		if r.UserID == userID {
			txn.requests[id] = *r
		}
	}
	return txn
}

type memTxn struct {
	user      model.User
	ledger    model.Ledger
	positions map[string]model.Position
	requests  map[string]model.MoneyRequest
}

func (t *memTxn) User() (model.User, error) { return t.user, nil }

func (t *memTxn) SaveUser(u model.User) error {
	t.user = u
	return nil
}

func (t *memTxn) Ledger() (model.Ledger, error) { return t.ledger, nil }

func (t *memTxn) ApplyDelta(balance, bonus decimal.Decimal) error {
	t.ledger.AccountBalance = t.ledger.AccountBalance.Add(balance)
	t.ledger.BonusAmount = t.ledger.BonusAmount.Add(bonus)
	return nil
}

func (t *memTxn) SetProfitToday(v decimal.Decimal) error {
	t.ledger.ProfitToday = v
	return nil
}

func (t *memTxn) GetPosition(id string) (model.Position, error) {
	p, ok := t.positions[id]
	if !ok {
		return model.Position{}, ErrNotFound
	}
	return p, nil
}

func (t *memTxn) InsertPosition(p model.Position) error {
	t.positions[p.ID] = p
	return nil
}

func (t *memTxn) SavePosition(p model.Position) error {
	if _, ok := t.positions[p.ID]; !ok {
		return ErrNotFound
	}
	t.positions[p.ID] = p
	return nil
}

func (t *memTxn) SumOpenProfit() (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, p := range t.positions {
		if p.Status == types.PositionStatusOpen {
			sum = sum.Add(p.Profit)
		}
	}
	return sum, nil
}

func (t *memTxn) GetRequest(id string) (model.MoneyRequest, error) {
	r, ok := t.requests[id]
	if !ok {
		return model.MoneyRequest{}, ErrNotFound
	}
	return r, nil
}

func (t *memTxn) InsertRequest(r model.MoneyRequest) error {
	t.requests[r.ID] = r
	return nil
}

func (t *memTxn) SaveRequest(r model.MoneyRequest) error {
	if _, ok := t.requests[r.ID]; !ok {
		return ErrNotFound
	}
	t.requests[r.ID] = r
	return nil
}

// --- users ---

func (s *MemoryStore) CreateUser(_ context.Context, u *model.User, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.emails[u.Email]; ok {
		return ErrDuplicateEmail
	}
	cp := *u
	s.users[u.ID] = &cp
	s.creds[u.ID] = passwordHash
	s.emails[u.Email] = u.ID
	s.ledgers[u.ID] = &model.Ledger{UserID: u.ID}
	return nil
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.emails[email]
	if !ok {
		return nil, "", ErrNotFound
	}
	cp := *s.users[id]
	return &cp, s.creds[id], nil
}

func (s *MemoryStore) GetLedger(_ context.Context, userID string) (*model.Ledger, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.ledgers[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *l
	return &cp, nil
}

// --- positions ---

func (s *MemoryStore) GetPosition(_ context.Context, id string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryStore) ListPositions(_ context.Context, userID string, status types.PositionStatus) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Position
	for _, p := range s.positions {
		if p.UserID != userID {
			continue
		}
		if status != "" && p.Status != status {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenedAt.After(out[j].OpenedAt) })
	return out, nil
}

// --- money requests ---

func (s *MemoryStore) GetRequest(_ context.Context, id string) (*model.MoneyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (s *MemoryStore) ListRequests(_ context.Context, userID string, limit int) ([]model.MoneyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.MoneyRequest
	for _, r := range s.requests {
		if r.UserID == userID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListPendingRequests(_ context.Context, kind types.RequestKind) ([]model.MoneyRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.MoneyRequest
	for _, r := range s.requests {
		if r.Status != types.RequestStatusPending {
			continue
		}
		if kind != "" && r.Kind != kind {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// --- kyc ---

func (s *MemoryStore) GetKYC(_ context.Context, userID string) (*model.KYCRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.kyc[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *MemoryStore) PutKYC(_ context.Context, rec *model.KYCRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.kyc[rec.UserID] = &cp
	return nil
}

func (s *MemoryStore) SetKYCVerified(_ context.Context, userID string, verified bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.kyc[userID]
	if !ok {
		return ErrNotFound
	}
	rec.Verified = verified
	return nil
}

// --- copy trading ---

func (s *MemoryStore) ListExperts(_ context.Context, activeOnly bool) ([]model.ExpertTrader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ExpertTrader
	for _, e := range s.experts {
		if activeOnly && !e.Active {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetExpert(_ context.Context, id string) (*model.ExpertTrader, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.experts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemoryStore) PutExpert(_ context.Context, e *model.ExpertTrader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.experts[e.ID] = &cp
	return nil
}

func (s *MemoryStore) GetActiveSubscription(_ context.Context, userID, expertID string) (*model.CopySubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.UserID == userID && sub.ExpertID == expertID && sub.Active {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListSubscriptions(_ context.Context, userID string) ([]model.CopySubscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.CopySubscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	return out, nil
}

func (s *MemoryStore) PutSubscription(_ context.Context, sub *model.CopySubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sub
	s.subs[sub.ID] = &cp
	return nil
}

// --- notices ---

func (s *MemoryStore) AddNotice(_ context.Context, n *model.Notice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *n
	s.notices[n.ID] = &cp
	return nil
}

func (s *MemoryStore) ListNotices(_ context.Context, userID string) ([]model.Notice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Notice
	for _, n := range s.notices {
		if n.UserID == userID {
			out = append(out, *n)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Read != out[j].Read {
			return !out[i].Read
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) MarkNoticeRead(_ context.Context, userID, noticeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notices[noticeID]
	if !ok || n.UserID != userID {
		return ErrNotFound
	}
	n.Read = true
	return nil
}

// --- p2p ---

func (s *MemoryStore) ListVendors(_ context.Context) ([]model.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Vendor
	for _, v := range s.vendors {
		if v.Active {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) GetVendor(_ context.Context, id string) (*model.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vendors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *MemoryStore) PutVendor(_ context.Context, v *model.Vendor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *v
	s.vendors[v.ID] = &cp
	return nil
}

func (s *MemoryStore) CreateTrade(_ context.Context, tr *model.P2PTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tr
	s.trades[tr.ID] = &cp
	return nil
}

func (s *MemoryStore) GetTrade(_ context.Context, id string) (*model.P2PTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tr, ok := s.trades[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tr
	return &cp, nil
}

func (s *MemoryStore) SaveTrade(_ context.Context, tr *model.P2PTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.trades[tr.ID]; !ok {
		return ErrNotFound
	}
	cp := *tr
	s.trades[tr.ID] = &cp
	return nil
}

func (s *MemoryStore) ListTrades(_ context.Context, userID string) ([]model.P2PTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.P2PTrade
	for _, tr := range s.trades {
		if tr.UserID == userID {
			out = append(out, *tr)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AddTradeMessage(_ context.Context, m *model.TradeMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[m.TradeID] = append(s.messages[m.TradeID], *m)
	return nil
}

func (s *MemoryStore) ListTradeMessages(_ context.Context, tradeID string) ([]model.TradeMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TradeMessage, len(s.messages[tradeID]))
	copy(out, s.messages[tradeID])
	return out, nil
}

func (s *MemoryStore) Ping(_ context.Context) error { return nil }
