// Package memstore - хранилище расчётов в памяти для тестов и локального запуска.
// Единица работы сериализуется мьютексом и откатывается снимком состояния,
// условные обновления повторяют охранные условия SQL-реализации.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/creator-settlement/internal/models"
	"github.com/ignatzorin/creator-settlement/internal/repository"
)

type state struct {
	campaigns   map[uuid.UUID]uuid.UUID
	agreements  map[uuid.UUID]models.Agreement
	submissions map[uuid.UUID]models.Submission
	orders      map[uuid.UUID]models.Order
	orderEvents []models.OrderEvent
	payments    map[string]models.PaymentRecord
	webhooks    map[string]models.WebhookEvent
	escrows     map[uuid.UUID]models.EscrowRecord
	balances    map[uuid.UUID]models.CreatorBalance
	balanceTxs  []models.BalanceTransaction
	withdrawals map[uuid.UUID]models.WithdrawalRequest
}

func newState() *state {
	return &state{
		campaigns:   map[uuid.UUID]uuid.UUID{},
		agreements:  map[uuid.UUID]models.Agreement{},
		submissions: map[uuid.UUID]models.Submission{},
		orders:      map[uuid.UUID]models.Order{},
		payments:    map[string]models.PaymentRecord{},
		webhooks:    map[string]models.WebhookEvent{},
		escrows:     map[uuid.UUID]models.EscrowRecord{},
		balances:    map[uuid.UUID]models.CreatorBalance{},
		withdrawals: map[uuid.UUID]models.WithdrawalRequest{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *state) clone() *state {
	return &state{
		campaigns:   cloneMap(s.campaigns),
		agreements:  cloneMap(s.agreements),
		submissions: cloneMap(s.submissions),
		orders:      cloneMap(s.orders),
		orderEvents: append([]models.OrderEvent(nil), s.orderEvents...),
		payments:    cloneMap(s.payments),
		webhooks:    cloneMap(s.webhooks),
		escrows:     cloneMap(s.escrows),
		balances:    cloneMap(s.balances),
		balanceTxs:  append([]models.BalanceTransaction(nil), s.balanceTxs...),
		withdrawals: cloneMap(s.withdrawals),
	}
}

// Store реализует repository.Store в памяти.
type Store struct {
	mu sync.Mutex
	st *state
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{st: newState()}
}

var _ repository.Store = (*Store)(nil)

// WithinTx выполняет fn эксклюзивно. При ошибке состояние откатывается.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Ledger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.st.clone()
	if err := fn(&ledger{st: s.st}); err != nil {
		s.st = snapshot
		return err
	}
	return nil
}

// do выполняет одиночную операцию вне транзакции.
func (s *Store) do(ctx context.Context, fn func(l *ledger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&ledger{st: s.st})
}

// AddCampaign регистрирует кампанию бренда.
func (s *Store) AddCampaign(campaignID, brandID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.campaigns[campaignID] = brandID
}

// AddAgreement регистрирует соглашение (и кампанию, если её ещё нет).
func (s *Store) AddAgreement(a models.Agreement) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.st.agreements[a.ID] = a
	if _, ok := s.st.campaigns[a.CampaignID]; !ok {
		s.st.campaigns[a.CampaignID] = a.BrandID
	}
}

// AddSubmission регистрирует работу креатора. BrandID берётся из кампании.
func (s *Store) AddSubmission(sub models.Submission) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.Status == "" {
		sub.Status = "submitted"
	}
	s.st.submissions[sub.ID] = sub
}

// SetBalance задаёт баланс креатора напрямую.
func (s *Store) SetBalance(b models.CreatorBalance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.balances[b.CreatorID] = b
}

// EscrowCount возвращает число записей эскроу по соглашению.
func (s *Store) EscrowCount(agreementID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.st.escrows[agreementID]; ok {
		return 1
	}
	return 0
}

// PaymentCount возвращает число платёжных записей во всём хранилище.
func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.payments)
}

func sortedByCreated[T any](items []T, created func(T) time.Time, desc bool) {
	sort.SliceStable(items, func(i, j int) bool {
		if desc {
			return created(items[i]).After(created(items[j]))
		}
		return created(items[i]).Before(created(items[j]))
	})
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
