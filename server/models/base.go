package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BaseModel struct {
	ID        string    `json:"id,omitempty" gorm:"primarykey;type:varchar(36)"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// BeforeCreate assigns a UUID unless the caller already chose an id.
func (base *BaseModel) BeforeCreate(tx *gorm.DB) error {
	assignID(&base.ID)
	return nil
}

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// Store is the handle every component uses to reach the database.
// It is created once at startup and is safe for concurrent use.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection, mainly for tests and migrations.
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
