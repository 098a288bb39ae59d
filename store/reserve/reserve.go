package reserve

import (
	"context"
	"errors"

	"reservoir/core"

	"gorm.io/gorm"
)

type reserveStore struct {
	db *gorm.DB
}

// New new reserve store
func New(db *gorm.DB) core.IReserveStore {
	return &reserveStore{db: db}
}

// Migrate creates the reserve table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&core.Reserve{})
}

func (s *reserveStore) view(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// Register assigns the next dense reserve id and appends the reserve.
// Reserve id 0 is a valid slot, so presence is always decided by the asset
// lookup, never by a nonzero id.
func (s *reserveStore) Register(ctx context.Context, tx *gorm.DB, reserve *core.Reserve) error {
	db := s.view(tx)

	var existing core.Reserve
	err := db.Where("asset = ?", reserve.Asset).First(&existing).Error
	if err == nil {
		// already listed, keep registration idempotent
		*reserve = existing
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	var count int64
	if err := db.Model(&core.Reserve{}).Count(&count).Error; err != nil {
		return err
	}
	if count >= core.MaxReserves {
		return core.ErrReserveListFull
	}

	reserve.ReserveID = uint(count)
	return db.Create(reserve).Error
}

func (s *reserveStore) Find(ctx context.Context, tx *gorm.DB, asset string) (*core.Reserve, error) {
	var reserve core.Reserve
	if err := s.view(tx).Where("asset = ?", asset).First(&reserve).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrReserveNotFound
		}
		return nil, err
	}
	return &reserve, nil
}

func (s *reserveStore) FindByReserveID(ctx context.Context, tx *gorm.DB, reserveID uint) (*core.Reserve, error) {
	var reserve core.Reserve
	if err := s.view(tx).Where("reserve_id = ?", reserveID).First(&reserve).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, core.ErrReserveNotFound
		}
		return nil, err
	}
	return &reserve, nil
}

func (s *reserveStore) All(ctx context.Context, tx *gorm.DB) ([]*core.Reserve, error) {
	var reserves []*core.Reserve
	if err := s.view(tx).Order("reserve_id").Find(&reserves).Error; err != nil {
		return nil, err
	}
	return reserves, nil
}

func (s *reserveStore) AddressList(ctx context.Context, tx *gorm.DB) ([]string, error) {
	reserves, err := s.All(ctx, tx)
	if err != nil {
		return nil, err
	}

	list := make([]string, len(reserves))
	for idx, r := range reserves {
		list[idx] = r.Asset
	}
	return list, nil
}

func (s *reserveStore) Count(ctx context.Context, tx *gorm.DB) (int, error) {
	var count int64
	if err := s.view(tx).Model(&core.Reserve{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *reserveStore) Update(ctx context.Context, tx *gorm.DB, reserve *core.Reserve) error {
	version := reserve.Version
	reserve.Version++

	result := s.view(tx).Model(&core.Reserve{}).
		Where("id = ? AND version = ?", reserve.ID, version).
		Select("*").Omit("id", "created_at").
		Updates(reserve)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.New("reserve: stale version")
	}
	return nil
}
