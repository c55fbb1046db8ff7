package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"esusu/internal/models"
	"esusu/internal/store"
	"esusu/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// memLedger is an in-memory ledger for service tests. memTxRunner holds txMu
// for a whole transaction and restores a snapshot when fn fails, so it gives
// the same serial, all-or-nothing behaviour the row locks give in Postgres.
type memLedger struct {
	txMu sync.Mutex

	mu            sync.Mutex
	seq           int64
	accounts      map[string]models.Account
	transactions  []models.AccountTransaction
	groups        map[string]models.Group
	members       map[string]map[string]models.Membership
	contributions []models.Contribution
	audit         []store.AuditEntry
}

type memSnapshot struct {
	accounts      map[string]models.Account
	transactions  []models.AccountTransaction
	groups        map[string]models.Group
	members       map[string]map[string]models.Membership
	contributions []models.Contribution
	audit         []store.AuditEntry
}

func newMemLedger() *memLedger {
	return &memLedger{
		accounts: make(map[string]models.Account),
		groups:   make(map[string]models.Group),
		members:  make(map[string]map[string]models.Membership),
	}
}

func (l *memLedger) snapshot() memSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	snap := memSnapshot{
		accounts:      make(map[string]models.Account, len(l.accounts)),
		transactions:  append([]models.AccountTransaction(nil), l.transactions...),
		groups:        make(map[string]models.Group, len(l.groups)),
		members:       make(map[string]map[string]models.Membership, len(l.members)),
		contributions: append([]models.Contribution(nil), l.contributions...),
		audit:         append([]store.AuditEntry(nil), l.audit...),
	}
	for id, account := range l.accounts {
		snap.accounts[id] = account
	}
	for id, group := range l.groups {
		snap.groups[id] = group
	}
	for groupID, members := range l.members {
		copied := make(map[string]models.Membership, len(members))
		for userID, membership := range members {
			copied[userID] = membership
		}
		snap.members[groupID] = copied
	}
	return snap
}

func (l *memLedger) restore(snap memSnapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.accounts = snap.accounts
	l.transactions = snap.transactions
	l.groups = snap.groups
	l.members = snap.members
	l.contributions = snap.contributions
	l.audit = snap.audit
}

// now must be called with mu held.
func (l *memLedger) now() time.Time {
	l.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(l.seq) * time.Millisecond)
}

type memTxRunner struct {
	ledger *memLedger
}

func (r memTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	r.ledger.txMu.Lock()
	defer r.ledger.txMu.Unlock()
	snap := r.ledger.snapshot()
	if err := fn(nil); err != nil {
		r.ledger.restore(snap)
		return err
	}
	return nil
}

func uniqueViolation(constraint string) error {
	return &pq.Error{Code: "23505", Constraint: constraint}
}

type memAccounts struct{ l *memLedger }

func (m memAccounts) Create(_ context.Context, _ store.Execer, account models.Account) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	for _, existing := range m.l.accounts {
		if existing.AccountNumber == account.AccountNumber {
			return uniqueViolation("accounts_account_number_key")
		}
	}
	account.CreatedAt = m.l.now()
	account.UpdatedAt = account.CreatedAt
	m.l.accounts[account.ID] = account
	return nil
}

func (m memAccounts) GetByID(_ context.Context, accountID string) (models.Account, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	account, ok := m.l.accounts[accountID]
	if !ok {
		return models.Account{}, sql.ErrNoRows
	}
	return account, nil
}

func (m memAccounts) GetForUpdate(ctx context.Context, _ store.Getter, accountID string) (models.Account, error) {
	return m.GetByID(ctx, accountID)
}

func (m memAccounts) ListByOwner(_ context.Context, ownerID string) ([]models.Account, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	var rows []models.Account
	for _, account := range m.l.accounts {
		if account.OwnerID == ownerID {
			rows = append(rows, account)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows, nil
}

func (m memAccounts) UpdateBalances(_ context.Context, _ store.Execer, accountID string, balance, available decimal.Decimal) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	account, ok := m.l.accounts[accountID]
	if !ok {
		return sql.ErrNoRows
	}
	account.Balance = balance
	account.AvailableBalance = available
	m.l.accounts[accountID] = account
	return nil
}

type memTransactions struct{ l *memLedger }

func (m memTransactions) Create(_ context.Context, _ store.Getter, input models.AccountTransaction) (models.AccountTransaction, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	for _, existing := range m.l.transactions {
		if existing.Reference == input.Reference {
			return models.AccountTransaction{}, uniqueViolation("account_transactions_reference_key")
		}
	}
	input.CreatedAt = m.l.now()
	m.l.transactions = append(m.l.transactions, input)
	return input, nil
}

func (m memTransactions) ListByAccount(_ context.Context, accountID string, limit, offset int) ([]models.AccountTransaction, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	var rows []models.AccountTransaction
	for i := len(m.l.transactions) - 1; i >= 0; i-- {
		if m.l.transactions[i].AccountID == accountID {
			rows = append(rows, m.l.transactions[i])
		}
	}
	return window(rows, limit, offset), nil
}

func (m memTransactions) CountByAccount(_ context.Context, accountID string) (int, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	count := 0
	for _, txn := range m.l.transactions {
		if txn.AccountID == accountID {
			count++
		}
	}
	return count, nil
}

type memGroups struct{ l *memLedger }

func (m memGroups) Create(_ context.Context, _ store.Execer, group models.Group) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	group.CreatedAt = m.l.now()
	group.UpdatedAt = group.CreatedAt
	m.l.groups[group.ID] = group
	return nil
}

func (m memGroups) GetByID(_ context.Context, _ store.Getter, groupID string) (models.Group, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	group, ok := m.l.groups[groupID]
	if !ok {
		return models.Group{}, sql.ErrNoRows
	}
	return group, nil
}

func (m memGroups) GetForUpdate(ctx context.Context, tx store.Getter, groupID string) (models.Group, error) {
	return m.GetByID(ctx, tx, groupID)
}

func (m memGroups) GetView(_ context.Context, groupID string) (models.GroupView, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	group, ok := m.l.groups[groupID]
	if !ok {
		return models.GroupView{}, sql.ErrNoRows
	}
	return models.GroupView{Group: group, MemberCount: len(m.l.members[groupID])}, nil
}

func (m memGroups) matching(filter store.GroupFilter) []models.GroupView {
	var rows []models.GroupView
	for _, group := range m.l.groups {
		if filter.TenantID != nil && (group.TenantID == nil || *group.TenantID != *filter.TenantID) {
			continue
		}
		if filter.Status != nil && group.Status != *filter.Status {
			continue
		}
		rows = append(rows, models.GroupView{Group: group, MemberCount: len(m.l.members[group.ID])})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].CreatedAt.After(rows[j].CreatedAt) })
	return rows
}

func (m memGroups) List(_ context.Context, filter store.GroupFilter, limit, offset int) ([]models.GroupView, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	return window(m.matching(filter), limit, offset), nil
}

func (m memGroups) Count(_ context.Context, filter store.GroupFilter) (int, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	return len(m.matching(filter)), nil
}

func (m memGroups) Update(_ context.Context, _ store.Execer, group models.Group) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if _, ok := m.l.groups[group.ID]; !ok {
		return sql.ErrNoRows
	}
	m.l.groups[group.ID] = group
	return nil
}

func (m memGroups) UpdateStatus(_ context.Context, _ store.Execer, groupID string, status models.GroupStatus) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	group := m.l.groups[groupID]
	group.Status = status
	m.l.groups[groupID] = group
	return nil
}

func (m memGroups) Delete(_ context.Context, _ store.Execer, groupID string) (int64, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if _, ok := m.l.groups[groupID]; !ok {
		return 0, nil
	}
	delete(m.l.groups, groupID)
	delete(m.l.members, groupID)
	kept := m.l.contributions[:0]
	for _, contribution := range m.l.contributions {
		if contribution.GroupID != groupID {
			kept = append(kept, contribution)
		}
	}
	m.l.contributions = kept
	return 1, nil
}

type memMembers struct{ l *memLedger }

func (m memMembers) Create(_ context.Context, _ store.Execer, groupID, userID string, role models.Role) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if m.l.members[groupID] == nil {
		m.l.members[groupID] = make(map[string]models.Membership)
	}
	if _, ok := m.l.members[groupID][userID]; ok {
		return uniqueViolation("group_members_pkey")
	}
	m.l.members[groupID][userID] = models.Membership{GroupID: groupID, UserID: userID, Role: role, JoinedAt: m.l.now()}
	return nil
}

func (m memMembers) Get(_ context.Context, _ store.Getter, groupID, userID string) (models.Membership, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	membership, ok := m.l.members[groupID][userID]
	if !ok {
		return models.Membership{}, sql.ErrNoRows
	}
	return membership, nil
}

func (m memMembers) Count(_ context.Context, _ store.Getter, groupID string) (int, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	return len(m.l.members[groupID]), nil
}

func (m memMembers) Delete(_ context.Context, _ store.Execer, groupID, userID string) (int64, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	if _, ok := m.l.members[groupID][userID]; !ok {
		return 0, nil
	}
	delete(m.l.members[groupID], userID)
	return 1, nil
}

func (m memMembers) UpdateRole(_ context.Context, _ store.Execer, groupID, userID string, role models.Role) (int64, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	membership, ok := m.l.members[groupID][userID]
	if !ok {
		return 0, nil
	}
	membership.Role = role
	m.l.members[groupID][userID] = membership
	return 1, nil
}

func (m memMembers) ListByGroup(_ context.Context, groupID string) ([]models.Membership, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	rows := make([]models.Membership, 0, len(m.l.members[groupID]))
	for _, membership := range m.l.members[groupID] {
		rows = append(rows, membership)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].JoinedAt.Before(rows[j].JoinedAt) })
	return rows, nil
}

func (m memMembers) IsMember(_ context.Context, groupID, userID string) (bool, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	_, ok := m.l.members[groupID][userID]
	return ok, nil
}

type memContributions struct{ l *memLedger }

func (m memContributions) Create(_ context.Context, _ store.Execer, contribution models.Contribution) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	for _, existing := range m.l.contributions {
		if existing.PaymentReference == contribution.PaymentReference {
			return uniqueViolation("contributions_payment_reference_key")
		}
	}
	contribution.GroupName = ""
	contribution.CreatedAt = m.l.now()
	contribution.UpdatedAt = contribution.CreatedAt
	m.l.contributions = append(m.l.contributions, contribution)
	return nil
}

func (m memContributions) UpdateStatus(_ context.Context, _ store.Execer, contributionID string, status models.ContributionStatus) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	for i := range m.l.contributions {
		if m.l.contributions[i].ID == contributionID {
			m.l.contributions[i].Status = status
			m.l.contributions[i].UpdatedAt = m.l.now()
			return nil
		}
	}
	return sql.ErrNoRows
}

// withGroupName must be called with mu held.
func (m memContributions) withGroupName(contribution models.Contribution) models.Contribution {
	contribution.GroupName = m.l.groups[contribution.GroupID].Name
	return contribution
}

func (m memContributions) GetByID(_ context.Context, _ store.Getter, contributionID string) (models.Contribution, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	for _, contribution := range m.l.contributions {
		if contribution.ID == contributionID {
			return m.withGroupName(contribution), nil
		}
	}
	return models.Contribution{}, sql.ErrNoRows
}

func (m memContributions) filter(keep func(models.Contribution) bool) []models.Contribution {
	var rows []models.Contribution
	for i := len(m.l.contributions) - 1; i >= 0; i-- {
		if keep(m.l.contributions[i]) {
			rows = append(rows, m.withGroupName(m.l.contributions[i]))
		}
	}
	return rows
}

func (m memContributions) byPayer(payerID string, groupID *string) func(models.Contribution) bool {
	return func(c models.Contribution) bool {
		return c.PayerUserID == payerID && (groupID == nil || c.GroupID == *groupID)
	}
}

func (m memContributions) ListByPayer(_ context.Context, payerID string, groupID *string, limit, offset int) ([]models.Contribution, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	return window(m.filter(m.byPayer(payerID, groupID)), limit, offset), nil
}

func (m memContributions) CountByPayer(_ context.Context, payerID string, groupID *string) (int, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	return len(m.filter(m.byPayer(payerID, groupID))), nil
}

func (m memContributions) ListByGroup(_ context.Context, groupID string, limit, offset int) ([]models.Contribution, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	return window(m.filter(func(c models.Contribution) bool { return c.GroupID == groupID }), limit, offset), nil
}

func (m memContributions) CountByGroup(_ context.Context, groupID string) (int, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	return len(m.filter(func(c models.Contribution) bool { return c.GroupID == groupID })), nil
}

type memAudit struct{ l *memLedger }

func (m memAudit) Log(_ context.Context, _ store.Execer, actorID, action, entityType, entityID string, _ any) error {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	actor := actorID
	m.l.audit = append(m.l.audit, store.AuditEntry{
		ID:          action + "-" + entityID,
		ActorUserID: &actor,
		Action:      action,
		EntityType:  entityType,
		EntityID:    entityID,
		CreatedAt:   m.l.now(),
	})
	return nil
}

func (m memAudit) ListByEntity(_ context.Context, entityType, entityID string, limit, offset int) ([]store.AuditEntry, error) {
	m.l.mu.Lock()
	defer m.l.mu.Unlock()
	var rows []store.AuditEntry
	for i := len(m.l.audit) - 1; i >= 0; i-- {
		if m.l.audit[i].EntityType == entityType && m.l.audit[i].EntityID == entityID {
			rows = append(rows, m.l.audit[i])
		}
	}
	return window(rows, limit, offset), nil
}

func window[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	end := offset + limit
	if end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

type recordingHub struct {
	mu       sync.Mutex
	balances []websocket.BalanceUpdate
	groups   []websocket.GroupUpdate
}

func (h *recordingHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.balances = append(h.balances, update)
}

func (h *recordingHub) BroadcastGroup(_ string, update websocket.GroupUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.groups = append(h.groups, update)
}

type memServices struct {
	ledger        *memLedger
	hub           *recordingHub
	accounts      *AccountService
	groups        *GroupService
	contributions *ContributionService
}

func newMemServices() memServices {
	ledger := newMemLedger()
	hub := &recordingHub{}
	runner := memTxRunner{ledger: ledger}
	audit := memAudit{l: ledger}
	return memServices{
		ledger:        ledger,
		hub:           hub,
		accounts:      NewAccountService(runner, memAccounts{l: ledger}, memTransactions{l: ledger}, audit, hub, "NGN"),
		groups:        NewGroupService(runner, memGroups{l: ledger}, memMembers{l: ledger}, audit, audit, hub),
		contributions: NewContributionService(runner, memGroups{l: ledger}, memMembers{l: ledger}, memContributions{l: ledger}, audit, InstantSettler{}, "NGN"),
	}
}

// seedAccount stores an account directly, skipping OpenAccount.
func (m memServices) seedAccount(id, ownerID, balance, minimum string) {
	m.ledger.mu.Lock()
	defer m.ledger.mu.Unlock()
	m.ledger.accounts[id] = models.Account{
		ID:               id,
		OwnerID:          ownerID,
		AccountNumber:    id,
		Type:             models.AccountSavings,
		Balance:          decimal.RequireFromString(balance),
		AvailableBalance: decimal.RequireFromString(balance),
		Currency:         "NGN",
		MinimumBalance:   decimal.RequireFromString(minimum),
		Status:           models.AccountActive,
	}
}
