package domain

import "errors"

// Domain errors
var (
	ErrNotFound               = errors.New("resource not found")
	ErrAlreadyExists          = errors.New("resource already exists")
	ErrInvalidInput           = errors.New("invalid input")
	ErrUserNotFound           = errors.New("user not found")
	ErrAccountNotFound        = errors.New("account not found")
	ErrCategoryNotFound       = errors.New("category not found")
	ErrTransactionNotFound    = errors.New("transaction not found")
	ErrNameRequired           = errors.New("name is required")
	ErrNameTooLong            = errors.New("name exceeds maximum length")
	ErrCategoryNameTaken      = errors.New("category name already exists")
	ErrInvalidTransactionType = errors.New("invalid transaction type")
	ErrDateRequired           = errors.New("date is required")
	ErrDescriptionTooLong     = errors.New("description exceeds maximum length")
	ErrAmountOutOfRange       = errors.New("amount out of range")
	ErrInvalidImport          = errors.New("invalid import file")
	ErrRemoteStorageDisabled  = errors.New("remote storage is not configured")
)

// Auth errors
var (
	// ErrInvalidCredentials is the uniform failure for any bearer token problem
	ErrInvalidCredentials = errors.New("could not validate credentials")
	// ErrInvalidLogin is returned for a wrong username or password
	ErrInvalidLogin       = errors.New("incorrect username or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidEmail       = errors.New("invalid email")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrPasswordTooShort   = errors.New("password too short")
)

// Validation constants
const (
	MaxNameLength        = 255
	MaxDescriptionLength = 1000
	MinUsernameLength    = 3
	MaxUsernameLength    = 50
	MinPasswordLength    = 8
)
