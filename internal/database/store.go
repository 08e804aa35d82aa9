package database

import (
	"errors"
	"fmt"

	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStockChanged is returned by a conditional batch update when the batch
	// no longer holds the count the caller planned against.
	ErrStockChanged = errors.New("batch count changed since it was read")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("record conflicts with an existing one")
	// ErrInvalidReference is returned when a write points at a missing record.
	ErrInvalidReference = errors.New("referenced record does not exist")
)

// Store is the relational repository behind every API operation. A Store
// obtained from Transaction runs all its calls in that transaction.
type Store struct {
	db *gorm.DB
}

// NewStore wraps an open gorm connection.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Ping checks that the database is reachable.
func (s *Store) Ping() error {
	return s.db.DB().Ping()
}

// Transaction runs fn inside a database transaction. The transaction commits
// when fn returns nil and rolls back on error or panic.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(&Store{db: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// translate maps driver errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if gorm.IsRecordNotFoundError(err) {
		return ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s", ErrConflict, pqErr.Detail)
		case "23503":
			return fmt.Errorf("%w: %s", ErrInvalidReference, pqErr.Detail)
		}
	}
	return err
}

func (s *Store) get(out interface{}, id string, preload ...string) error {
	q := s.db
	for _, p := range preload {
		q = q.Preload(p)
	}
	return translate(q.Where("id = ?", id).First(out).Error)
}

func (s *Store) update(model interface{}, id string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := s.db.Model(model).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) remove(model interface{}, id string) error {
	res := s.db.Where("id = ?", id).Delete(model)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
