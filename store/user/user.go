package user

import (
	"context"
	"errors"

	"reservoir/core"

	"gorm.io/gorm"
)

type userConfigStore struct {
	db *gorm.DB
}

// New new user configuration store
func New(db *gorm.DB) core.IUserConfigStore {
	return &userConfigStore{db: db}
}

// Migrate creates the user configuration table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&core.UserConfiguration{})
}

func (s *userConfigStore) view(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *userConfigStore) FindOrCreate(ctx context.Context, tx *gorm.DB, address string) (*core.UserConfiguration, error) {
	db := s.view(tx)

	var user core.UserConfiguration
	err := db.Where("address = ?", address).First(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	user = core.UserConfiguration{Address: address}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *userConfigStore) Find(ctx context.Context, tx *gorm.DB, address string) (*core.UserConfiguration, error) {
	var user core.UserConfiguration
	if err := s.view(tx).Where("address = ?", address).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &core.UserConfiguration{Address: address}, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *userConfigStore) Update(ctx context.Context, tx *gorm.DB, user *core.UserConfiguration) error {
	version := user.Version
	user.Version++

	result := s.view(tx).Model(&core.UserConfiguration{}).
		Where("id = ? AND version = ?", user.ID, version).
		Select("*").Omit("id", "created_at").
		Updates(user)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("user: stale version")
	}
	return nil
}
