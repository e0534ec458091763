package models

import (
	"context"

	"github.com/Daskott/rolodex/schema"
	"gorm.io/gorm"
)

// User is the application-level profile row of an account.
type User struct {
	BaseModel
	Email    string    `json:"email" gorm:"not null;unique"`
	Name     string    `json:"name" gorm:"not null"`
	Contacts []Contact `json:"contacts,omitempty" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

func (user *User) Row() schema.UserRow {
	return schema.UserRow{
		schema.ColID:        user.ID,
		schema.ColEmail:     user.Email,
		schema.ColName:      user.Name,
		schema.ColCreatedAt: user.CreatedAt,
	}
}

func (s *Store) CreateUser(ctx context.Context, user *User) error {
	return s.db.WithContext(ctx).Create(user).Error
}

func (s *Store) FindUser(ctx context.Context, id string) (*User, error) {
	user := User{}
	err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &user, nil
}

// DeleteUser removes the profile row and every contact it owns.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		contacts := []Contact{}
		if err := tx.Select("id").Find(&contacts, "user_id = ?", id).Error; err != nil {
			return err
		}

		for i := range contacts {
			if err := deleteContactTree(tx, &contacts[i]); err != nil {
				return err
			}
		}

		return tx.Delete(&User{}, "id = ?", id).Error
	})
}
