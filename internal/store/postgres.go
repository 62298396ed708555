package store

import (
	"context"
	"sync"
	"time"

	"main/internal/model"

	"github.com/yanun0323/errors"
	"gorm.io/gorm"
)

// Postgres is the durable Store backend. All writes go through a single
// mutex; write volume is already bounded by the controller's per-symbol rate
// limit, so a serialized-write discipline is sufficient.
type Postgres struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewPostgres(db *gorm.DB) (*Postgres, error) {
	if db == nil {
		return nil, errors.New("store: nil db")
	}
	if err := db.AutoMigrate(&model.DailyAggregate{}, &model.TickLogEntry{}); err != nil {
		return nil, errors.Wrap(err, "migrate store schema")
	}
	return &Postgres{db: db}, nil
}

func (s *Postgres) Apply(ctx context.Context, tick model.Tick, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	date := model.TradingDate(now)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row model.DailyAggregate
		err := tx.Where("date = ? AND symbol = ? AND exchange = ?", date, tick.Symbol, tick.Exchange).
			Take(&row).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			row = seedAggregate(tick, date, now)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			mergeAggregate(&row, tick, now)
			if err := tx.Save(&row).Error; err != nil {
				return err
			}
		}

		entry := tickLogEntry(tick, now)
		return tx.Create(&entry).Error
	})
	if err != nil {
		return errors.Wrap(err, "apply tick")
	}
	return nil
}

func (s *Postgres) CurrentPrice(ctx context.Context, symbol, exchange string, now time.Time) (model.DailyAggregate, error) {
	var row model.DailyAggregate
	err := s.db.WithContext(ctx).
		Where("date = ? AND symbol = ? AND exchange = ?", model.TradingDate(now), symbol, exchange).
		Take(&row).Error
	if err == gorm.ErrRecordNotFound {
		return model.DailyAggregate{}, ErrNotFound
	}
	if err != nil {
		return model.DailyAggregate{}, errors.Wrap(err, "current price")
	}
	return row, nil
}

func (s *Postgres) History(ctx context.Context, symbol, exchange string, days int) ([]model.DailyAggregate, error) {
	var rows []model.DailyAggregate
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND exchange = ?", symbol, exchange).
		Order("date DESC").
		Limit(days).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "history")
	}
	return rows, nil
}

func (s *Postgres) RecentTicks(ctx context.Context, symbol, exchange string, limit int) ([]model.TickLogEntry, error) {
	var rows []model.TickLogEntry
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND exchange = ?", symbol, exchange).
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrap(err, "recent ticks")
	}
	return rows, nil
}

func (s *Postgres) MarketStatus(ctx context.Context, now time.Time) (model.MarketStatus, error) {
	date := model.TradingDate(now)
	db := s.db.WithContext(ctx)

	var status model.MarketStatus

	var symbols int64
	if err := db.Model(&model.DailyAggregate{}).Where("date = ?", date).Count(&symbols).Error; err != nil {
		return status, errors.Wrap(err, "count symbols")
	}
	status.SymbolsTracked = int(symbols)

	var latest *time.Time
	if err := db.Model(&model.DailyAggregate{}).Where("date = ?", date).
		Select("MAX(last_updated)").Scan(&latest).Error; err != nil {
		return status, errors.Wrap(err, "latest update")
	}
	if latest != nil {
		status.LatestUpdate = *latest
	}

	if err := db.Model(&model.TickLogEntry{}).Where("timestamp >= ?", date).
		Count(&status.TicksToday).Error; err != nil {
		return status, errors.Wrap(err, "count ticks")
	}

	var size int64
	if err := db.Raw("SELECT pg_database_size(current_database())").Scan(&size).Error; err != nil {
		return status, errors.Wrap(err, "database size")
	}
	status.StorageBytes = size

	return status, nil
}

func (s *Postgres) PruneTicks(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.db.WithContext(ctx).Where("timestamp < ?", cutoff).Delete(&model.TickLogEntry{})
	if res.Error != nil {
		return 0, errors.Wrap(res.Error, "prune ticks")
	}
	return res.RowsAffected, nil
}

func (s *Postgres) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
