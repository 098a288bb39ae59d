package poolconfig

import (
	"context"
	"errors"

	"reservoir/core"

	"gorm.io/gorm"
)

// the pool holds exactly one configuration row
const configRowID = 1

type poolConfigStore struct {
	db *gorm.DB
}

// New new pool config store
func New(db *gorm.DB) core.IPoolConfigStore {
	return &poolConfigStore{db: db}
}

// Migrate creates the pool configuration table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&core.PoolConfig{})
}

func (s *poolConfigStore) view(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *poolConfigStore) Get(ctx context.Context, tx *gorm.DB) (*core.PoolConfig, error) {
	var cfg core.PoolConfig
	if err := s.view(tx).First(&cfg, configRowID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &core.PoolConfig{ID: configRowID}, nil
		}
		return nil, err
	}
	return &cfg, nil
}

func (s *poolConfigStore) Save(ctx context.Context, tx *gorm.DB, cfg *core.PoolConfig) error {
	db := s.view(tx)
	cfg.ID = configRowID

	var existing core.PoolConfig
	err := db.First(&existing, configRowID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.Create(cfg).Error
	}
	if err != nil {
		return err
	}

	version := cfg.Version
	cfg.Version++
	result := db.Model(&core.PoolConfig{}).
		Where("id = ? AND version = ?", configRowID, version).
		Select("*").Omit("id", "created_at").
		Updates(cfg)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("poolconfig: stale version")
	}
	return nil
}
