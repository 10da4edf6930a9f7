package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("item not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStorage           = errors.New("storage failure")
	ErrNotification      = errors.New("notification failed")
	ErrOrderExists       = errors.New("order already recorded")
)

// ValidationError reports bad input shape or range.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Shortage describes one item whose requested quantity exceeds stock.
type Shortage struct {
	ItemName  string `json:"item_name"`
	Requested int    `json:"requested"`
	Available int    `json:"available"`
}

// InsufficientStockError names every offending item of a rejected request.
type InsufficientStockError struct {
	Shortages []Shortage
}

func (e *InsufficientStockError) Error() string {
	names := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		names = append(names, fmt.Sprintf("%s (requested %d, available %d)", s.ItemName, s.Requested, s.Available))
	}
	return "insufficient stock: " + strings.Join(names, ", ")
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// ItemNames lists the offending items in reported order.
func (e *InsufficientStockError) ItemNames() []string {
	names := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		names = append(names, s.ItemName)
	}
	return names
}

// StorageError wraps a persistence failure. Callers may retry the operation.
type StorageError struct {
	Op  string
	Err error
}

func NewStorageError(op string, err error) *StorageError {
	return &StorageError{Op: op, Err: err}
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool { return target == ErrStorage }

func (e *StorageError) Retryable() bool { return true }

// NotificationError wraps a failed low-stock alert dispatch.
type NotificationError struct {
	ItemName string
	Err      error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("low stock alert for %q: %v", e.ItemName, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }

func (e *NotificationError) Is(target error) bool { return target == ErrNotification }
