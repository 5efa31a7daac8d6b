package app

import (
	"context"
	"sync"
	"time"

	"futuresProxy/internal/domain"
	"futuresProxy/internal/ports"
)

// Mock implementations
type mockLogger struct {
	mu        sync.Mutex
	debugMsgs []string
	infoMsgs  []string
	warnMsgs  []string
	errorMsgs []string
}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.debugMsgs = append(m.debugMsgs, msg)
}

func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoMsgs = append(m.infoMsgs, msg)
}

func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnMsgs = append(m.warnMsgs, msg)
}

func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorMsgs = append(m.errorMsgs, msg)
}

type orderCall struct {
	symbol     string
	start, end time.Time
}

type mockExchange struct {
	mu sync.Mutex

	fundingRates []domain.FundingRate
	fundingErr   error
	incomes      []domain.IncomeRecord
	incomeErr    error
	orders       map[string][]domain.OrderRecord
	orderErrs    map[string]error
	positions    []domain.AccountPosition
	positionsErr error

	fundingCalls  []string
	incomeQueries []ports.IncomeQuery
	orderCalls    []orderCall
	positionCalls int
}

func (m *mockExchange) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fundingCalls) + len(m.incomeQueries) + len(m.orderCalls) + m.positionCalls
}

func (m *mockExchange) GetFundingRate(ctx context.Context, symbol string) ([]domain.FundingRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fundingCalls = append(m.fundingCalls, symbol)
	return m.fundingRates, m.fundingErr
}

func (m *mockExchange) GetIncomeHistory(ctx context.Context, creds ports.Credentials, q ports.IncomeQuery) ([]domain.IncomeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.incomeQueries = append(m.incomeQueries, q)
	return m.incomes, m.incomeErr
}

func (m *mockExchange) GetOrderHistory(ctx context.Context, creds ports.Credentials, symbol string, start, end time.Time) ([]domain.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderCalls = append(m.orderCalls, orderCall{symbol: symbol, start: start, end: end})
	if err := m.orderErrs[symbol]; err != nil {
		return nil, err
	}
	return m.orders[symbol], nil
}

func (m *mockExchange) GetAccountPositions(ctx context.Context, creds ports.Credentials) ([]domain.AccountPosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionCalls++
	return m.positions, m.positionsErr
}

type mockValidator map[string]bool

func (m mockValidator) IsValid(symbol string) bool { return m[symbol] }

type countingPacer struct {
	waits int
	err   error
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.waits++
	return p.err
}
