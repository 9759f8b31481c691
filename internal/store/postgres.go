package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"brokerhub/internal/model"
	"brokerhub/internal/types"
)

// PostgresStore implements Store on pgx. Ledger columns live on the
// users row so one FOR UPDATE lock covers the whole per-user unit.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Update locks the user row and runs fn inside a serializable
// transaction.
func (s *PostgresStore) Update(ctx context.Context, userID string, fn func(Txn) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, "select true from users where id = $1 for update", userID).Scan(&exists)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if err := fn(&pgTxn{ctx: ctx, tx: tx, userID: userID}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgTxn struct {
	ctx    context.Context
	tx     pgx.Tx
	userID string
}

func (t *pgTxn) User() (model.User, error) {
	var u model.User
	var pending *string
	err := t.tx.QueryRow(t.ctx, `
		select id, email, coalesce(full_name, ''), coalesce(country, ''), coalesce(currency, ''),
		       current_plan, pending_plan, upgrade_progress, coalesce(upgrade_note, ''), created_at
		from users where id = $1
	`, t.userID).Scan(&u.ID, &u.Email, &u.FullName, &u.Country, &u.Currency,
		&u.CurrentPlan, &pending, &u.UpgradeProgress, &u.UpgradeNote, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return u, ErrNotFound
	}
	if pending != nil {
		u.PendingPlan = types.PlanCode(*pending)
	}
	return u, err
}

func (t *pgTxn) SaveUser(u model.User) error {
	var pending *string
	if u.PendingPlan != "" {
		v := string(u.PendingPlan)
		pending = &v
	}
	_, err := t.tx.Exec(t.ctx, `
		update users
		set full_name = $1, country = $2, currency = $3, current_plan = $4,
		    pending_plan = $5, upgrade_progress = $6, upgrade_note = $7
		where id = $8
	`, u.FullName, u.Country, u.Currency, string(u.CurrentPlan), pending,
		u.UpgradeProgress, u.UpgradeNote, t.userID)
	return err
}

func (t *pgTxn) Ledger() (model.Ledger, error) {
	var l model.Ledger
	l.UserID = t.userID
	err := t.tx.QueryRow(t.ctx,
		"select account_balance, profit_today, bonus_amount from users where id = $1",
		t.userID).Scan(&l.AccountBalance, &l.ProfitToday, &l.BonusAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return l, ErrNotFound
	}
	return l, err
}

func (t *pgTxn) ApplyDelta(balance, bonus decimal.Decimal) error {
	_, err := t.tx.Exec(t.ctx,
		"update users set account_balance = account_balance + $1, bonus_amount = bonus_amount + $2 where id = $3",
		balance, bonus, t.userID)
	return err
}

func (t *pgTxn) SetProfitToday(v decimal.Decimal) error {
	_, err := t.tx.Exec(t.ctx, "update users set profit_today = $1 where id = $2", v, t.userID)
	return err
}

func (t *pgTxn) GetPosition(id string) (model.Position, error) {
	p, err := scanPosition(t.tx.QueryRow(t.ctx, positionQuery+" where id = $1 and user_id = $2", id, t.userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (t *pgTxn) InsertPosition(p model.Position) error {
	_, err := t.tx.Exec(t.ctx, `
		insert into positions (id, user_id, asset, side, amount, profit, status, leverage, duration, opened_by, opened_at, closed_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, p.ID, p.UserID, p.Asset, string(p.Side), p.Amount, p.Profit, string(p.Status),
		p.Leverage, p.Duration, string(p.OpenedBy), p.OpenedAt, p.ClosedAt)
	return err
}

func (t *pgTxn) SavePosition(p model.Position) error {
	tag, err := t.tx.Exec(t.ctx, `
		update positions
		set asset = $1, side = $2, amount = $3, profit = $4, status = $5,
		    leverage = $6, duration = $7, closed_at = $8
		where id = $9 and user_id = $10
	`, p.Asset, string(p.Side), p.Amount, p.Profit, string(p.Status),
		p.Leverage, p.Duration, p.ClosedAt, p.ID, t.userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTxn) SumOpenProfit() (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := t.tx.QueryRow(t.ctx,
		"select coalesce(sum(profit), 0) from positions where user_id = $1 and status = 'open'",
		t.userID).Scan(&sum)
	return sum, err
}

func (t *pgTxn) GetRequest(id string) (model.MoneyRequest, error) {
	r, err := scanRequest(t.tx.QueryRow(t.ctx, requestQuery+" where id = $1 and user_id = $2", id, t.userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return r, ErrNotFound
	}
	return r, err
}

func (t *pgTxn) InsertRequest(r model.MoneyRequest) error {
	_, err := t.tx.Exec(t.ctx, `
		insert into money_requests (id, user_id, kind, amount, status, note, created_at, decided_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.UserID, string(r.Kind), r.Amount, string(r.Status), r.Note.Encode(), r.CreatedAt, r.DecidedAt)
	return err
}

func (t *pgTxn) SaveRequest(r model.MoneyRequest) error {
	tag, err := t.tx.Exec(t.ctx, `
		update money_requests set status = $1, note = $2, decided_at = $3 where id = $4 and user_id = $5
	`, string(r.Status), r.Note.Encode(), r.DecidedAt, r.ID, t.userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- users ---

func (s *PostgresStore) CreateUser(ctx context.Context, u *model.User, passwordHash string) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	_, err = tx.Exec(ctx, `
		insert into users (id, email, full_name, country, currency, current_plan, upgrade_progress, created_at)
		values ($1, $2, $3, $4, $5, $6, 0, $7)
	`, u.ID, u.Email, u.FullName, u.Country, u.Currency, string(u.CurrentPlan), u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return err
	}
	_, err = tx.Exec(ctx, "insert into user_credentials (user_id, password_hash) values ($1, $2)", u.ID, passwordHash)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, userQuery+" where id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*model.User, string, error) {
	var u model.User
	var pending *string
	var hash string
	err := s.pool.QueryRow(ctx, `
		select u.id, u.email, coalesce(u.full_name, ''), coalesce(u.country, ''), coalesce(u.currency, ''),
		       u.current_plan, u.pending_plan, u.upgrade_progress, coalesce(u.upgrade_note, ''), u.created_at,
		       c.password_hash
		from users u join user_credentials c on c.user_id = u.id
		where u.email = $1
	`, email).Scan(&u.ID, &u.Email, &u.FullName, &u.Country, &u.Currency,
		&u.CurrentPlan, &pending, &u.UpgradeProgress, &u.UpgradeNote, &u.CreatedAt, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, "", ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	if pending != nil {
		u.PendingPlan = types.PlanCode(*pending)
	}
	return &u, hash, nil
}

func (s *PostgresStore) GetLedger(ctx context.Context, userID string) (*model.Ledger, error) {
	l := model.Ledger{UserID: userID}
	err := s.pool.QueryRow(ctx,
		"select account_balance, profit_today, bonus_amount from users where id = $1",
		userID).Scan(&l.AccountBalance, &l.ProfitToday, &l.BonusAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// --- positions ---

const positionQuery = `
	select id, user_id, asset, side, amount, profit, status,
	       coalesce(leverage, ''), coalesce(duration, ''), opened_by, opened_at, closed_at
	from positions`

func (s *PostgresStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	p, err := scanPosition(s.pool.QueryRow(ctx, positionQuery+" where id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PostgresStore) ListPositions(ctx context.Context, userID string, status types.PositionStatus) ([]model.Position, error) {
	q := positionQuery + " where user_id = $1"
	args := []any{userID}
	if status != "" {
		q += " and status = $2"
		args = append(args, string(status))
	}
	q += " order by opened_at desc"
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// --- money requests ---

const requestQuery = `
	select id, user_id, kind, amount, status, coalesce(note, ''), created_at, decided_at
	from money_requests`

func (s *PostgresStore) GetRequest(ctx context.Context, id string) (*model.MoneyRequest, error) {
	r, err := scanRequest(s.pool.QueryRow(ctx, requestQuery+" where id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PostgresStore) ListRequests(ctx context.Context, userID string, limit int) ([]model.MoneyRequest, error) {
	q := requestQuery + " where user_id = $1 order by created_at desc"
	args := []any{userID}
	if limit > 0 {
		q += " limit $2"
		args = append(args, limit)
	}
	return s.queryRequests(ctx, q, args...)
}

func (s *PostgresStore) ListPendingRequests(ctx context.Context, kind types.RequestKind) ([]model.MoneyRequest, error) {
	q := requestQuery + " where status = 'pending'"
	var args []any
	if kind != "" {
		q += " and kind = $1"
		args = append(args, string(kind))
	}
	q += " order by created_at"
	return s.queryRequests(ctx, q, args...)
}

func (s *PostgresStore) queryRequests(ctx context.Context, q string, args ...any) ([]model.MoneyRequest, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.MoneyRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// --- kyc ---

func (s *PostgresStore) GetKYC(ctx context.Context, userID string) (*model.KYCRecord, error) {
	var rec model.KYCRecord
	err := s.pool.QueryRow(ctx, `
		select user_id, full_name, document_type, document_number, coalesce(state, ''), coalesce(city, ''), verified, created_at
		from kyc_records where user_id = $1
	`, userID).Scan(&rec.UserID, &rec.FullName, &rec.DocumentType, &rec.DocumentNumber,
		&rec.State, &rec.City, &rec.Verified, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *PostgresStore) PutKYC(ctx context.Context, rec *model.KYCRecord) error {
	_, err := s.pool.Exec(ctx, `
		insert into kyc_records (user_id, full_name, document_type, document_number, state, city, verified, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		on conflict (user_id) do update set
			full_name = excluded.full_name,
			document_type = excluded.document_type,
			document_number = excluded.document_number,
			state = excluded.state,
			city = excluded.city
	`, rec.UserID, rec.FullName, rec.DocumentType, rec.DocumentNumber, rec.State, rec.City, rec.Verified, rec.CreatedAt)
	return err
}

func (s *PostgresStore) SetKYCVerified(ctx context.Context, userID string, verified bool) error {
	tag, err := s.pool.Exec(ctx, "update kyc_records set verified = $1 where user_id = $2", verified, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- copy trading ---

func (s *PostgresStore) ListExperts(ctx context.Context, activeOnly bool) ([]model.ExpertTrader, error) {
	q := "select id, name, wins, losses, profit_share, active, coalesce(bio, ''), created_at from experts"
	if activeOnly {
		q += " where active"
	}
	q += " order by name"
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.ExpertTrader
	for rows.Next() {
		var e model.ExpertTrader
		if err := rows.Scan(&e.ID, &e.Name, &e.Wins, &e.Losses, &e.ProfitShare, &e.Active, &e.Bio, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetExpert(ctx context.Context, id string) (*model.ExpertTrader, error) {
	var e model.ExpertTrader
	err := s.pool.QueryRow(ctx,
		"select id, name, wins, losses, profit_share, active, coalesce(bio, ''), created_at from experts where id = $1",
		id).Scan(&e.ID, &e.Name, &e.Wins, &e.Losses, &e.ProfitShare, &e.Active, &e.Bio, &e.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *PostgresStore) PutExpert(ctx context.Context, e *model.ExpertTrader) error {
	_, err := s.pool.Exec(ctx, `
		insert into experts (id, name, wins, losses, profit_share, active, bio, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		on conflict (id) do update set
			name = excluded.name, wins = excluded.wins, losses = excluded.losses,
			profit_share = excluded.profit_share, active = excluded.active, bio = excluded.bio
	`, e.ID, e.Name, e.Wins, e.Losses, e.ProfitShare, e.Active, e.Bio, e.CreatedAt)
	return err
}

func (s *PostgresStore) GetActiveSubscription(ctx context.Context, userID, expertID string) (*model.CopySubscription, error) {
	var sub model.CopySubscription
	err := s.pool.QueryRow(ctx, `
		select id, user_id, expert_id, active, started_at, ended_at
		from copy_subscriptions where user_id = $1 and expert_id = $2 and active
	`, userID, expertID).Scan(&sub.ID, &sub.UserID, &sub.ExpertID, &sub.Active, &sub.StartedAt, &sub.EndedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *PostgresStore) ListSubscriptions(ctx context.Context, userID string) ([]model.CopySubscription, error) {
	rows, err := s.pool.Query(ctx, `
		select id, user_id, expert_id, active, started_at, ended_at
		from copy_subscriptions where user_id = $1 order by started_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.CopySubscription
	for rows.Next() {
		var sub model.CopySubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.ExpertID, &sub.Active, &sub.StartedAt, &sub.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) PutSubscription(ctx context.Context, sub *model.CopySubscription) error {
	_, err := s.pool.Exec(ctx, `
		insert into copy_subscriptions (id, user_id, expert_id, active, started_at, ended_at)
		values ($1, $2, $3, $4, $5, $6)
		on conflict (id) do update set active = excluded.active, ended_at = excluded.ended_at
	`, sub.ID, sub.UserID, sub.ExpertID, sub.Active, sub.StartedAt, sub.EndedAt)
	return err
}

// --- notices ---

func (s *PostgresStore) AddNotice(ctx context.Context, n *model.Notice) error {
	_, err := s.pool.Exec(ctx, `
		insert into notices (id, user_id, title, message, read, created_at)
		values ($1, $2, $3, $4, $5, $6)
	`, n.ID, n.UserID, n.Title, n.Message, n.Read, n.CreatedAt)
	return err
}

func (s *PostgresStore) ListNotices(ctx context.Context, userID string) ([]model.Notice, error) {
	rows, err := s.pool.Query(ctx, `
		select id, user_id, title, message, read, created_at
		from notices where user_id = $1 order by read, created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Notice
	for rows.Next() {
		var n model.Notice
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresStore) MarkNoticeRead(ctx context.Context, userID, noticeID string) error {
	tag, err := s.pool.Exec(ctx, "update notices set read = true where id = $1 and user_id = $2", noticeID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- p2p ---

func (s *PostgresStore) ListVendors(ctx context.Context) ([]model.Vendor, error) {
	rows, err := s.pool.Query(ctx, `
		select id, name, rating, trades, min_amount, max_amount, active, created_at
		from vendors where active order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Vendor
	for rows.Next() {
		var v model.Vendor
		if err := rows.Scan(&v.ID, &v.Name, &v.Rating, &v.Trades, &v.MinAmount, &v.MaxAmount, &v.Active, &v.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GetVendor(ctx context.Context, id string) (*model.Vendor, error) {
	var v model.Vendor
	err := s.pool.QueryRow(ctx, `
		select id, name, rating, trades, min_amount, max_amount, active, created_at
		from vendors where id = $1
	`, id).Scan(&v.ID, &v.Name, &v.Rating, &v.Trades, &v.MinAmount, &v.MaxAmount, &v.Active, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *PostgresStore) PutVendor(ctx context.Context, v *model.Vendor) error {
	_, err := s.pool.Exec(ctx, `
		insert into vendors (id, name, rating, trades, min_amount, max_amount, active, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
		on conflict (id) do update set
			name = excluded.name, rating = excluded.rating, trades = excluded.trades,
			min_amount = excluded.min_amount, max_amount = excluded.max_amount, active = excluded.active
	`, v.ID, v.Name, v.Rating, v.Trades, v.MinAmount, v.MaxAmount, v.Active, v.CreatedAt)
	return err
}

func (s *PostgresStore) CreateTrade(ctx context.Context, tr *model.P2PTrade) error {
	_, err := s.pool.Exec(ctx, `
		insert into p2p_trades (id, user_id, vendor_id, amount, status, proof_file, created_at, updated_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8)
	`, tr.ID, tr.UserID, tr.VendorID, tr.Amount, string(tr.Status), tr.ProofFile, tr.CreatedAt, tr.UpdatedAt)
	return err
}

func (s *PostgresStore) GetTrade(ctx context.Context, id string) (*model.P2PTrade, error) {
	var tr model.P2PTrade
	err := s.pool.QueryRow(ctx, `
		select id, user_id, vendor_id, amount, status, coalesce(proof_file, ''), created_at, updated_at
		from p2p_trades where id = $1
	`, id).Scan(&tr.ID, &tr.UserID, &tr.VendorID, &tr.Amount, &tr.Status, &tr.ProofFile, &tr.CreatedAt, &tr.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tr, nil
}

func (s *PostgresStore) SaveTrade(ctx context.Context, tr *model.P2PTrade) error {
	tag, err := s.pool.Exec(ctx, `
		update p2p_trades set status = $1, proof_file = $2, updated_at = $3 where id = $4
	`, string(tr.Status), tr.ProofFile, tr.UpdatedAt, tr.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListTrades(ctx context.Context, userID string) ([]model.P2PTrade, error) {
	rows, err := s.pool.Query(ctx, `
		select id, user_id, vendor_id, amount, status, coalesce(proof_file, ''), created_at, updated_at
		from p2p_trades where user_id = $1 order by created_at desc
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.P2PTrade
	for rows.Next() {
		var tr model.P2PTrade
		if err := rows.Scan(&tr.ID, &tr.UserID, &tr.VendorID, &tr.Amount, &tr.Status, &tr.ProofFile, &tr.CreatedAt, &tr.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AddTradeMessage(ctx context.Context, m *model.TradeMessage) error {
	_, err := s.pool.Exec(ctx, `
		insert into trade_messages (id, trade_id, sender_id, sender, body, created_at)
		values ($1, $2, nullif($3, ''), $4, $5, $6)
	`, m.ID, m.TradeID, m.SenderID, m.Sender, m.Body, m.CreatedAt)
	return err
}

func (s *PostgresStore) ListTradeMessages(ctx context.Context, tradeID string) ([]model.TradeMessage, error) {
	rows, err := s.pool.Query(ctx, `
		select id, trade_id, coalesce(sender_id::text, ''), sender, body, created_at
		from trade_messages where trade_id = $1 order by created_at
	`, tradeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.TradeMessage
	for rows.Next() {
		var m model.TradeMessage
		if err := rows.Scan(&m.ID, &m.TradeID, &m.SenderID, &m.Sender, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.pool.Ping(pingCtx)
}

// --- scan helpers ---

type rowScanner interface {
	Scan(dest ...any) error
}

const userQuery = `
	select id, email, coalesce(full_name, ''), coalesce(country, ''), coalesce(currency, ''),
	       current_plan, pending_plan, upgrade_progress, coalesce(upgrade_note, ''), created_at
	from users`

func scanUser(row rowScanner) (model.User, error) {
	var u model.User
	var pending *string
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Country, &u.Currency,
		&u.CurrentPlan, &pending, &u.UpgradeProgress, &u.UpgradeNote, &u.CreatedAt)
	if pending != nil {
		u.PendingPlan = types.PlanCode(*pending)
	}
	return u, err
}

func scanPosition(row rowScanner) (model.Position, error) {
	var p model.Position
	var side, status, openedBy string
	err := row.Scan(&p.ID, &p.UserID, &p.Asset, &side, &p.Amount, &p.Profit, &status,
		&p.Leverage, &p.Duration, &openedBy, &p.OpenedAt, &p.ClosedAt)
	p.Side = types.PositionSide(side)
	p.Status = types.PositionStatus(status)
	p.OpenedBy = types.ActorKind(openedBy)
	return p, err
}

func scanRequest(row rowScanner) (model.MoneyRequest, error) {
	var r model.MoneyRequest
	var kind, status, note string
	err := row.Scan(&r.ID, &r.UserID, &kind, &r.Amount, &status, &note, &r.CreatedAt, &r.DecidedAt)
	r.Kind = types.RequestKind(kind)
	r.Status = types.RequestStatus(status)
	r.Note = model.ParseNote(note)
	return r, err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
