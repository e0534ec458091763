package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Credential is the auth subsystem's identity. Its id is reused by the
// user's profile row in the users table.
type Credential struct {
	BaseModel
	Email        string `json:"email" gorm:"not null;unique"`
	PasswordHash string `json:"-" gorm:"not null"`
	Name         string `json:"name"`
}

// Session backs one issued access/refresh token pair.
type Session struct {
	BaseModel
	UserID           string     `json:"user_id" gorm:"type:varchar(36);not null;index"`
	RefreshTokenHash string     `json:"-" gorm:"not null;uniqueIndex"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RevokedAt        *time.Time `json:"revoked_at,omitempty"`
}

// AuthCode is a one-time PKCE authorization code.
type AuthCode struct {
	BaseModel
	UserID        string     `json:"user_id" gorm:"type:varchar(36);not null"`
	CodeHash      string     `json:"-" gorm:"not null;uniqueIndex"`
	CodeChallenge string     `json:"-" gorm:"not null"`
	ExpiresAt     time.Time  `json:"expires_at"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
}

func (s *Store) CreateCredential(ctx context.Context, credential *Credential) error {
	return s.db.WithContext(ctx).Create(credential).Error
}

func (s *Store) FindCredentialByEmail(ctx context.Context, email string) (*Credential, error) {
	credential := Credential{}
	err := s.db.WithContext(ctx).First(&credential, "email = ?", email).Error
	if err != nil {
		return nil, err
	}

	return &credential, nil
}

func (s *Store) FindCredential(ctx context.Context, id string) (*Credential, error) {
	credential := Credential{}
	err := s.db.WithContext(ctx).First(&credential, "id = ?", id).Error
	if err != nil {
		return nil, err
	}

	return &credential, nil
}

// DeleteCredential removes the credential together with its sessions and auth codes.
func (s *Store) DeleteCredential(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&Session{}).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", id).Delete(&AuthCode{}).Error; err != nil {
			return err
		}

		res := tx.Delete(&Credential{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// ---------------------------------------------------------------------------------//
// Sessions
// --------------------------------------------------------------------------------//

func (s *Store) CreateSession(ctx context.Context, session *Session) error {
	return s.db.WithContext(ctx).Create(session).Error
}

// FindActiveSession returns the session if it is neither revoked nor expired.
func (s *Store) FindActiveSession(ctx context.Context, id string) (*Session, error) {
	session := Session{}
	err := s.db.WithContext(ctx).
		Where("id = ? AND revoked_at IS NULL AND expires_at > ?", id, time.Now().UTC()).
		First(&session).Error
	if err != nil {
		return nil, err
	}

	return &session, nil
}

func (s *Store) FindSessionByRefreshHash(ctx context.Context, hash string) (*Session, error) {
	session := Session{}
	err := s.db.WithContext(ctx).
		Where("refresh_token_hash = ? AND revoked_at IS NULL AND expires_at > ?", hash, time.Now().UTC()).
		First(&session).Error
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// RotateRefreshToken swaps the refresh token hash of a session, but only if the
// old hash is still current. Returns false when another refresh won the race.
func (s *Store) RotateRefreshToken(ctx context.Context, sessionID, oldHash, newHash string, expiresAt time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND refresh_token_hash = ? AND revoked_at IS NULL", sessionID, oldHash).
		Updates(map[string]interface{}{
			"refresh_token_hash": newHash,
			"expires_at":         expiresAt,
		})
	if res.Error != nil {
		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

func (s *Store) RevokeSession(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Model(&Session{}).
		Where("id = ? AND revoked_at IS NULL", id).
		Update("revoked_at", time.Now().UTC()).Error
}

// ---------------------------------------------------------------------------------//
// Auth codes
// --------------------------------------------------------------------------------//

func (s *Store) CreateAuthCode(ctx context.Context, code *AuthCode) error {
	return s.db.WithContext(ctx).Create(code).Error
}

// ConsumeAuthCode marks an unexpired, unused code as used and returns it.
func (s *Store) ConsumeAuthCode(ctx context.Context, codeHash string) (*AuthCode, error) {
	code := AuthCode{}
	now := time.Now().UTC()

	err := s.db.WithContext(ctx).
		Where("code_hash = ? AND used_at IS NULL AND expires_at > ?", codeHash, now).
		First(&code).Error
	if err != nil {
		return nil, err
	}

	res := s.db.WithContext(ctx).Model(&AuthCode{}).
		Where("id = ? AND used_at IS NULL", code.ID).
		Update("used_at", now)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}

	return &code, nil
}
