package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/pablotheshekpeking/payroll-system/internal/cache"
	"github.com/pablotheshekpeking/payroll-system/internal/paystack"

	"github.com/shopspring/decimal"
)

var ErrProvider = errors.New("payment provider request failed")

// Provider is the reference-data part of the provider client.
type Provider interface {
	ListBanks(ctx context.Context, country string) ([]paystack.Bank, error)
	Balance(ctx context.Context) ([]paystack.Balance, error)
}

// Balance is the available provider balance in major units.
type Balance struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency,omitempty"`
}

type Service interface {
	ListBanks(ctx context.Context) ([]paystack.Bank, error)
	Balance(ctx context.Context) (*Balance, error)
}

type service struct {
	provider Provider
	cache    *cache.Store
	country  string
	ttl      time.Duration
	logger   *slog.Logger
}

// NewService caches bank lists in store for ttl; store may be nil.
func NewService(provider Provider, store *cache.Store, country string, ttl time.Duration, logger *slog.Logger) Service {
	return &service{
		provider: provider,
		cache:    store,
		country:  country,
		ttl:      ttl,
		logger:   logger,
	}
}

func (s *service) ListBanks(ctx context.Context) ([]paystack.Bank, error) {
	key := strings.ToLower(s.country)

	var banks []paystack.Bank
	if s.cache.Get(ctx, key, &banks) {
		return banks, nil
	}

	banks, err := s.provider.ListBanks(ctx, s.country)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch banks", "country", s.country, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if banks == nil {
		banks = []paystack.Bank{}
	}

	s.cache.Set(ctx, key, banks, s.ttl)
	return banks, nil
}

// Balance returns the first balance the provider reports, or zero when none.
func (s *service) Balance(ctx context.Context) (*Balance, error) {
	balances, err := s.provider.Balance(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to fetch balance", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if len(balances) == 0 {
		return &Balance{Amount: decimal.Zero}, nil
	}
	return &Balance{
		Amount:   paystack.FromSubunits(balances[0].Balance),
		Currency: balances[0].Currency,
	}, nil
}
