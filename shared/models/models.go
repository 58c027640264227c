package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ID represents a unique identifier
type ID string

// GenerateUUID creates a new UUID
func GenerateUUID() ID {
	return ID(uuid.New().String())
}

// NewID creates an ID from string
func NewID(id string) (ID, error) {
	_, err := uuid.Parse(id)
	if err != nil {
		return "", err
	}
	return ID(id), nil
}

// String returns string representation
func (id ID) String() string {
	return string(id)
}

// Timestamps represents creation and update times
type Timestamps struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

// NewTimestamps creates new timestamps
func NewTimestamps() Timestamps {
	now := time.Now()
	return Timestamps{
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Update updates the UpdatedAt timestamp
func (t Timestamps) Update() Timestamps {
	t.UpdatedAt = time.Now()
	return t
}

// Version represents entity version for optimistic locking
type Version struct {
	Value int
}

// NewVersion creates new version
func NewVersion() Version {
	return Version{Value: 1}
}

// Update increments version
func (v Version) Update() Version {
	v.Value++
	return v
}

// Quantity represents an amount of waste in a given unit
type Quantity struct {
	Amount int64  `json:"amount"`
	Unit   string `json:"unit"`
}

// NewQuantity creates a new quantity value
func NewQuantity(amount int64, unit string) Quantity {
	return Quantity{
		Amount: amount,
		Unit:   unit,
	}
}

// IsZero checks if quantity is zero
func (q Quantity) IsZero() bool {
	return q.Amount == 0
}

// IsPositive checks if quantity is positive
func (q Quantity) IsPositive() bool {
	return q.Amount > 0
}

// Add adds two quantities (must have same unit)
func (q Quantity) Add(other Quantity) (Quantity, error) {
	if q.Unit != other.Unit {
		return Quantity{}, errors.New("unit mismatch")
	}
	return Quantity{
		Amount: q.Amount + other.Amount,
		Unit:   q.Unit,
	}, nil
}

// Subtract subtracts two quantities (must have same unit)
func (q Quantity) Subtract(other Quantity) (Quantity, error) {
	if q.Unit != other.Unit {
		return Quantity{}, errors.New("unit mismatch")
	}
	return Quantity{
		Amount: q.Amount - other.Amount,
		Unit:   q.Unit,
	}, nil
}

// Scope is the credential a store call runs under. Workflows thread the
// acting user's scope through every read and write, escalating to the
// elevated scope only for compensation and for reading counter-party state.
type Scope struct {
	UserID   ID
	Elevated bool
}

// UserScope returns a scope acting as the given user
func UserScope(userID ID) Scope {
	return Scope{UserID: userID}
}

// ElevatedScope returns the master scope
func ElevatedScope() Scope {
	return Scope{Elevated: true}
}

// ActsAs checks whether the scope is the given user or elevated
func (s Scope) ActsAs(userID ID) bool {
	return s.Elevated || s.UserID == userID
}
