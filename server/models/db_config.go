package models

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/Daskott/rolodex/shared"
	"github.com/Daskott/rolodex/utils"
	sqliteEncrypt "github.com/Daskott/gorm-sqlite-cipher"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

const DB_NAME = "rolodex.db"

// Open connects to the configured database and migrates the schema.
// dbRootDir is only used by the sqlite driver.
func Open(config shared.DatabaseConfig, dbRootDir string) (*Store, error) {
	dialector, err := dialectorFor(config, dbRootDir)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			gormLogger.Config{
				LogLevel:                  gormLogger.Silent,
				IgnoreRecordNotFoundError: true,
				Colorful:                  false,
			},
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %v", err)
	}

	store := NewStore(db)
	if err := store.AutoMigrate(); err != nil {
		return nil, err
	}

	return store, nil
}

// AutoMigrate migrates the db schema
func (s *Store) AutoMigrate() error {
	return s.db.AutoMigrate(
		&Credential{}, &Session{}, &AuthCode{},
		&User{}, &Contact{}, &ContactMethod{},
		&SocialLink{}, &Conversation{},
	)
}

// ---------------------------------------------------------------------------------//
// Helper functions
// --------------------------------------------------------------------------------//

func dialectorFor(config shared.DatabaseConfig, dbRootDir string) (gorm.Dialector, error) {
	switch config.Driver {
	case "postgres":
		return postgres.Open(config.DSN), nil
	case "sqlite":
		if config.Dir != "" {
			dbRootDir = config.Dir
		}

		dsn, err := dbDSN(config.PassPhrase, dbRootDir)
		if err != nil {
			return nil, fmt.Errorf("failed to set sqlite DSN: %v", err)
		}
		return sqliteEncrypt.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", config.Driver)
	}
}

func dbDSN(passPhrase string, dbRootDir string) (string, error) {
	dbDir, err := DbDirectory(dbRootDir)
	if err != nil {
		return "", err
	}

	dbFilePath := filepath.Join(dbDir, DB_NAME)
	dbName := fmt.Sprintf("file:%v", dbFilePath)

	return fmt.Sprintf(
		"%v?_pragma_key=%s&_pragma_cipher_page_size=4096&_journal_mode=WAL&_foreign_keys=1",
		dbName,
		passPhrase,
	), nil
}

func DbDirectory(dbRootDir string) (string, error) {
	dbDir := filepath.Join(dbRootDir, "db")

	err := utils.CreateDirIfNotExist(dbDir)
	if err != nil {
		return "", err
	}

	return dbDir, nil
}
