package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dafibh/ledgerly/ledgerly-backend/internal/domain"
	"github.com/dafibh/ledgerly/ledgerly-backend/internal/websocket"
)

// MockUserRepository is a mock implementation of domain.UserRepository
type MockUserRepository struct {
	Users    map[int32]*domain.User
	NextID   int32
	CreateFn func(ctx context.Context, user *domain.User) (*domain.User, error)
	UpdateFn func(ctx context.Context, user *domain.User) (*domain.User, error)
}

// NewMockUserRepository creates a new MockUserRepository
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users:  make(map[int32]*domain.User),
		NextID: 1,
	}
}

// Create stores a new user, enforcing unique email and username
func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) (*domain.User, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, user)
	}
	if err := m.checkUnique(user); err != nil {
		return nil, err
	}
	user.ID = m.NextID
	m.NextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	m.Users[user.ID] = user
	return user, nil
}

// GetByID retrieves a user by ID
func (m *MockUserRepository) GetByID(ctx context.Context, id int32) (*domain.User, error) {
	if user, ok := m.Users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

// GetByEmail retrieves a user by email
func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	for _, user := range m.Users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// GetByUsername retrieves a user by username
func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	for _, user := range m.Users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

// Update overwrites a stored user
func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) (*domain.User, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, user)
	}
	if _, ok := m.Users[user.ID]; !ok {
		return nil, domain.ErrUserNotFound
	}
	if err := m.checkUnique(user); err != nil {
		return nil, err
	}
	user.UpdatedAt = time.Now()
	m.Users[user.ID] = user
	return user, nil
}

// AddUser adds a user to the mock repository (helper for tests)
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.Users[user.ID] = user
	if user.ID >= m.NextID {
		m.NextID = user.ID + 1
	}
}

func (m *MockUserRepository) checkUnique(user *domain.User) error {
	for _, existing := range m.Users {
		if existing.ID == user.ID {
			continue
		}
		if existing.Email == user.Email {
			return domain.ErrEmailTaken
		}
		if existing.Username == user.Username {
			return domain.ErrUsernameTaken
		}
	}
	return nil
}

// MockAccountRepository is a mock implementation of domain.AccountRepository
type MockAccountRepository struct {
	Accounts  map[int32]*domain.Account
	NextID    int32
	CreateFn  func(ctx context.Context, account *domain.Account) (*domain.Account, error)
	GetByIDFn func(ctx context.Context, userID int32, id int32) (*domain.Account, error)
	GetAllFn  func(ctx context.Context, userID int32) ([]*domain.Account, error)
	UpdateFn  func(ctx context.Context, account *domain.Account) (*domain.Account, error)
	DeleteFn  func(ctx context.Context, userID int32, id int32) error
}

// NewMockAccountRepository creates a new MockAccountRepository
func NewMockAccountRepository() *MockAccountRepository {
	return &MockAccountRepository{
		Accounts: make(map[int32]*domain.Account),
		NextID:   1,
	}
}

// Create creates a new account
func (m *MockAccountRepository) Create(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, account)
	}
	account.ID = m.NextID
	m.NextID++
	account.CreatedAt = time.Now()
	account.UpdatedAt = account.CreatedAt
	m.Accounts[account.ID] = account
	return account, nil
}

// GetByID retrieves an account by its ID for a user
func (m *MockAccountRepository) GetByID(ctx context.Context, userID int32, id int32) (*domain.Account, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, userID, id)
	}
	account, ok := m.Accounts[id]
	if !ok || account.UserID != userID {
		return nil, domain.ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

// GetAllByUser retrieves all accounts for a user ordered by ID
func (m *MockAccountRepository) GetAllByUser(ctx context.Context, userID int32) ([]*domain.Account, error) {
	if m.GetAllFn != nil {
		return m.GetAllFn(ctx, userID)
	}
	accounts := []*domain.Account{}
	for _, account := range m.Accounts {
		if account.UserID == userID {
			accounts = append(accounts, account)
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	return accounts, nil
}

// Update overwrites an account's name and initial balance
func (m *MockAccountRepository) Update(ctx context.Context, account *domain.Account) (*domain.Account, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, account)
	}
	existing, ok := m.Accounts[account.ID]
	if !ok || existing.UserID != account.UserID {
		return nil, domain.ErrAccountNotFound
	}
	existing.Name = account.Name
	existing.InitialBalance = account.InitialBalance
	existing.UpdatedAt = time.Now()
	return existing, nil
}

// Delete removes an account
func (m *MockAccountRepository) Delete(ctx context.Context, userID int32, id int32) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, userID, id)
	}
	account, ok := m.Accounts[id]
	if !ok || account.UserID != userID {
		return domain.ErrAccountNotFound
	}
	delete(m.Accounts, id)
	return nil
}

// AddAccount adds an account to the mock repository (helper for tests)
func (m *MockAccountRepository) AddAccount(account *domain.Account) {
	m.Accounts[account.ID] = account
	if account.ID >= m.NextID {
		m.NextID = account.ID + 1
	}
}

// MockCategoryRepository is a mock implementation of domain.CategoryRepository
type MockCategoryRepository struct {
	Categories map[int32]*domain.Category
	NextID     int32
	CreateFn   func(ctx context.Context, category *domain.Category) (*domain.Category, error)
	GetByIDFn  func(ctx context.Context, userID int32, id int32) (*domain.Category, error)
	DeleteFn   func(ctx context.Context, userID int32, id int32) error
}

// NewMockCategoryRepository creates a new MockCategoryRepository
func NewMockCategoryRepository() *MockCategoryRepository {
	return &MockCategoryRepository{
		Categories: make(map[int32]*domain.Category),
		NextID:     1,
	}
}

// Create creates a category, rejecting a duplicate name for the same user
func (m *MockCategoryRepository) Create(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, category)
	}
	if m.nameTaken(category) {
		return nil, domain.ErrCategoryNameTaken
	}
	category.ID = m.NextID
	m.NextID++
	category.CreatedAt = time.Now()
	category.UpdatedAt = category.CreatedAt
	m.Categories[category.ID] = category
	return category, nil
}

// GetByID retrieves a category by its ID for a user
func (m *MockCategoryRepository) GetByID(ctx context.Context, userID int32, id int32) (*domain.Category, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, userID, id)
	}
	category, ok := m.Categories[id]
	if !ok || category.UserID != userID {
		return nil, domain.ErrCategoryNotFound
	}
	copied := *category
	return &copied, nil
}

// GetAllByUser retrieves all categories for a user ordered by ID
func (m *MockCategoryRepository) GetAllByUser(ctx context.Context, userID int32) ([]*domain.Category, error) {
	categories := []*domain.Category{}
	for _, category := range m.Categories {
		if category.UserID == userID {
			categories = append(categories, category)
		}
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].ID < categories[j].ID })
	return categories, nil
}

// Update renames a category
func (m *MockCategoryRepository) Update(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	existing, ok := m.Categories[category.ID]
	if !ok || existing.UserID != category.UserID {
		return nil, domain.ErrCategoryNotFound
	}
	if m.nameTaken(category) {
		return nil, domain.ErrCategoryNameTaken
	}
	existing.Name = category.Name
	existing.UpdatedAt = time.Now()
	return existing, nil
}

// Delete removes a category
func (m *MockCategoryRepository) Delete(ctx context.Context, userID int32, id int32) error {
	if m.DeleteFn != nil {
		return m.DeleteFn(ctx, userID, id)
	}
	category, ok := m.Categories[id]
	if !ok || category.UserID != userID {
		return domain.ErrCategoryNotFound
	}
	delete(m.Categories, id)
	return nil
}

// AddCategory adds a category to the mock repository (helper for tests)
func (m *MockCategoryRepository) AddCategory(category *domain.Category) {
	m.Categories[category.ID] = category
	if category.ID >= m.NextID {
		m.NextID = category.ID + 1
	}
}

func (m *MockCategoryRepository) nameTaken(category *domain.Category) bool {
	for _, existing := range m.Categories {
		if existing.ID != category.ID && existing.UserID == category.UserID && existing.Name == category.Name {
			return true
		}
	}
	return false
}

// MockTransactionRepository is a mock implementation of domain.TransactionRepository
type MockTransactionRepository struct {
	Transactions  map[int32]*domain.Transaction
	NextID        int32
	CreateFn      func(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error)
	GetAllFn      func(ctx context.Context, userID int32) ([]*domain.Transaction, error)
	UpdateFn      func(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error)
	BeginImportFn func(ctx context.Context) (domain.TransactionImport, error)
	// ImportCreateFn, when set, is called for every row written through an
	// import batch before it is buffered
	ImportCreateFn func(ctx context.Context, transaction *domain.Transaction) error
	Imports        []*MockTransactionImport
}

// NewMockTransactionRepository creates a new MockTransactionRepository
func NewMockTransactionRepository() *MockTransactionRepository {
	return &MockTransactionRepository{
		Transactions: make(map[int32]*domain.Transaction),
		NextID:       1,
	}
}

// Create creates a new transaction
func (m *MockTransactionRepository) Create(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, transaction)
	}
	return m.insert(transaction), nil
}

// GetByID retrieves a transaction by its ID for a user
func (m *MockTransactionRepository) GetByID(ctx context.Context, userID int32, id int32) (*domain.Transaction, error) {
	transaction, ok := m.Transactions[id]
	if !ok || transaction.UserID != userID {
		return nil, domain.ErrTransactionNotFound
	}
	copied := *transaction
	return &copied, nil
}

// GetAllByUser retrieves all transactions for a user ordered by ID
func (m *MockTransactionRepository) GetAllByUser(ctx context.Context, userID int32) ([]*domain.Transaction, error) {
	if m.GetAllFn != nil {
		return m.GetAllFn(ctx, userID)
	}
	transactions := []*domain.Transaction{}
	for _, transaction := range m.Transactions {
		if transaction.UserID == userID {
			transactions = append(transactions, transaction)
		}
	}
	sort.Slice(transactions, func(i, j int) bool { return transactions[i].ID < transactions[j].ID })
	return transactions, nil
}

// Update overwrites every writable field of a transaction
func (m *MockTransactionRepository) Update(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	if m.UpdateFn != nil {
		return m.UpdateFn(ctx, transaction)
	}
	existing, ok := m.Transactions[transaction.ID]
	if !ok || existing.UserID != transaction.UserID {
		return nil, domain.ErrTransactionNotFound
	}
	transaction.CreatedAt = existing.CreatedAt
	transaction.UpdatedAt = time.Now()
	m.Transactions[transaction.ID] = transaction
	return transaction, nil
}

// Delete removes a transaction
func (m *MockTransactionRepository) Delete(ctx context.Context, userID int32, id int32) error {
	transaction, ok := m.Transactions[id]
	if !ok || transaction.UserID != userID {
		return domain.ErrTransactionNotFound
	}
	delete(m.Transactions, id)
	return nil
}

// BeginImport starts a buffered import batch
func (m *MockTransactionRepository) BeginImport(ctx context.Context) (domain.TransactionImport, error) {
	if m.BeginImportFn != nil {
		return m.BeginImportFn(ctx)
	}
	batch := &MockTransactionImport{repo: m}
	m.Imports = append(m.Imports, batch)
	return batch, nil
}

// AddTransaction adds a transaction to the mock repository (helper for tests)
func (m *MockTransactionRepository) AddTransaction(transaction *domain.Transaction) {
	m.Transactions[transaction.ID] = transaction
	if transaction.ID >= m.NextID {
		m.NextID = transaction.ID + 1
	}
}

func (m *MockTransactionRepository) insert(transaction *domain.Transaction) *domain.Transaction {
	transaction.ID = m.NextID
	m.NextID++
	transaction.CreatedAt = time.Now()
	transaction.UpdatedAt = transaction.CreatedAt
	m.Transactions[transaction.ID] = transaction
	return transaction
}

// MockTransactionImport buffers rows until Commit. Rolled back rows never
// reach the repository.
type MockTransactionImport struct {
	repo       *MockTransactionRepository
	pending    []*domain.Transaction
	Committed  bool
	RolledBack bool
	CommitErr  error
}

// Create buffers a transaction
func (b *MockTransactionImport) Create(ctx context.Context, transaction *domain.Transaction) (*domain.Transaction, error) {
	if b.repo.ImportCreateFn != nil {
		if err := b.repo.ImportCreateFn(ctx, transaction); err != nil {
			return nil, err
		}
	}
	b.pending = append(b.pending, transaction)
	return transaction, nil
}

// Commit flushes buffered rows into the repository
func (b *MockTransactionImport) Commit(ctx context.Context) error {
	if b.CommitErr != nil {
		return b.CommitErr
	}
	for _, transaction := range b.pending {
		b.repo.insert(transaction)
	}
	b.pending = nil
	b.Committed = true
	return nil
}

// Rollback discards buffered rows. It is a no-op after Commit.
func (b *MockTransactionImport) Rollback(ctx context.Context) error {
	if b.Committed {
		return nil
	}
	b.pending = nil
	b.RolledBack = true
	return nil
}

// PublishedEvent is an event captured by MockEventPublisher
type PublishedEvent struct {
	UserID int32
	Event  websocket.Event
}

// MockEventPublisher records published events
type MockEventPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

// NewMockEventPublisher creates a new MockEventPublisher
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

// Publish records the event
func (m *MockEventPublisher) Publish(userID int32, event websocket.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, PublishedEvent{UserID: userID, Event: event})
}
