// Package mocks provides testify mocks for the domain collaborator ports.
package mocks

import (
	"context"

	"github.com/ecocycle/waste-tracking/shared/models"
	"github.com/ecocycle/waste-tracking/tracking-service/domain"
	"github.com/stretchr/testify/mock"
)

type TransactionRepository struct {
	mock.Mock
}

func (m *TransactionRepository) Get(ctx context.Context, id models.ID, scope models.Scope) (*domain.Transaction, error) {
	args := m.Called(ctx, id, scope)
	tx, _ := args.Get(0).(*domain.Transaction)
	return tx, args.Error(1)
}

func (m *TransactionRepository) Save(ctx context.Context, transaction *domain.Transaction, scope models.Scope) error {
	args := m.Called(ctx, transaction, scope)
	return args.Error(0)
}

func (m *TransactionRepository) Destroy(ctx context.Context, transaction *domain.Transaction, scope models.Scope) error {
	args := m.Called(ctx, transaction, scope)
	return args.Error(0)
}

type TransactionDetailRepository struct {
	mock.Mock
}

func (m *TransactionDetailRepository) Save(ctx context.Context, detail *domain.TransactionDetail, scope models.Scope) error {
	args := m.Called(ctx, detail, scope)
	return args.Error(0)
}

func (m *TransactionDetailRepository) FindByTransactionID(ctx context.Context, transactionID models.ID, scope models.Scope) ([]*domain.TransactionDetail, error) {
	args := m.Called(ctx, transactionID, scope)
	details, _ := args.Get(0).([]*domain.TransactionDetail)
	return details, args.Error(1)
}

type ContainerRepository struct {
	mock.Mock
}

func (m *ContainerRepository) Get(ctx context.Context, id models.ID, scope models.Scope) (*domain.Container, error) {
	args := m.Called(ctx, id, scope)
	c, _ := args.Get(0).(*domain.Container)
	return c, args.Error(1)
}

func (m *ContainerRepository) Save(ctx context.Context, container *domain.Container, scope models.Scope) error {
	args := m.Called(ctx, container, scope)
	return args.Error(0)
}

func (m *ContainerRepository) FindByIDs(ctx context.Context, ids []models.ID, scope models.Scope) ([]*domain.Container, error) {
	args := m.Called(ctx, ids, scope)
	containers, _ := args.Get(0).([]*domain.Container)
	return containers, args.Error(1)
}

type WasteTypeRepository struct {
	mock.Mock
}

func (m *WasteTypeRepository) Get(ctx context.Context, id models.ID) (*domain.WasteType, error) {
	args := m.Called(ctx, id)
	wt, _ := args.Get(0).(*domain.WasteType)
	return wt, args.Error(1)
}

func (m *WasteTypeRepository) FindByIDs(ctx context.Context, ids []models.ID) ([]*domain.WasteType, error) {
	args := m.Called(ctx, ids)
	wts, _ := args.Get(0).([]*domain.WasteType)
	return wts, args.Error(1)
}

type StockLedger struct {
	mock.Mock
}

func (m *StockLedger) GetUserStock(ctx context.Context, user models.ID) (domain.Stock, error) {
	args := m.Called(ctx, user)
	stock, _ := args.Get(0).(domain.Stock)
	return stock, args.Error(1)
}

func (m *StockLedger) IncrementStock(ctx context.Context, wasteType, user models.ID, qty int64) error {
	args := m.Called(ctx, wasteType, user, qty)
	return args.Error(0)
}

func (m *StockLedger) MoveStock(ctx context.Context, wasteType, from, to models.ID, qty int64) error {
	args := m.Called(ctx, wasteType, from, to, qty)
	return args.Error(0)
}

func (m *StockLedger) RestoreUserStock(ctx context.Context, user models.ID, stock domain.Stock) error {
	args := m.Called(ctx, user, stock)
	return args.Error(0)
}

type PermissionGrants struct {
	mock.Mock
}

func (m *PermissionGrants) GrantReadWrite(ctx context.Context, entityType string, entityID, user models.ID) error {
	args := m.Called(ctx, entityType, entityID, user)
	return args.Error(0)
}

func (m *PermissionGrants) RevokeReadWrite(ctx context.Context, entityType string, entityID, user models.ID) error {
	args := m.Called(ctx, entityType, entityID, user)
	return args.Error(0)
}

type Notifier struct {
	mock.Mock
}

func (m *Notifier) NotifyTransferRequest(ctx context.Context, transactionID, from, to models.ID) error {
	args := m.Called(ctx, transactionID, from, to)
	return args.Error(0)
}

func (m *Notifier) NotifyTransport(ctx context.Context, transactionID, from models.ID, to []models.ID) error {
	args := m.Called(ctx, transactionID, from, to)
	return args.Error(0)
}

type TransportAuthorizer struct {
	mock.Mock
}

func (m *TransportAuthorizer) CanTransportContainer(ctx context.Context, container *domain.Container, user models.ID) error {
	args := m.Called(ctx, container, user)
	return args.Error(0)
}

type Sequencer struct {
	mock.Mock
}

func (m *Sequencer) NextSequenceNumber(ctx context.Context, entity string) (int64, error) {
	args := m.Called(ctx, entity)
	return args.Get(0).(int64), args.Error(1)
}

type UserDirectory struct {
	mock.Mock
}

func (m *UserDirectory) FindUser(ctx context.Context, id models.ID) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

type RecyclingCenterDirectory struct {
	mock.Mock
}

func (m *RecyclingCenterDirectory) FindRecyclingCenter(ctx context.Context, id models.ID) (*domain.RecyclingCenter, error) {
	args := m.Called(ctx, id)
	center, _ := args.Get(0).(*domain.RecyclingCenter)
	return center, args.Error(1)
}
