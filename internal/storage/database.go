package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"opposite-clock/internal/catalog"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database stores the city catalog. Selections are never persisted.
type Database struct {
	db *gorm.DB
}

func NewDatabase(path string) (*Database, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&CityRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Database{db: db}, nil
}

// SeedCities inserts cities only if the table is empty. It reports whether
// anything was written.
func (d *Database) SeedCities(cities []catalog.City) (bool, error) {
	var count int64
	if err := d.db.Model(&CityRecord{}).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count cities: %w", err)
	}
	if count > 0 {
		return false, nil
	}
	if len(cities) == 0 {
		return false, nil
	}

	records := recordsFrom(cities)
	if err := d.db.Create(&records).Error; err != nil {
		return false, fmt.Errorf("seed cities: %w", err)
	}
	return true, nil
}

// ReplaceCities swaps the stored catalog for cities in one transaction.
func (d *Database) ReplaceCities(cities []catalog.City) error {
	return d.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("1 = 1").Delete(&CityRecord{}).Error; err != nil {
			return fmt.Errorf("clear cities: %w", err)
		}
		if len(cities) == 0 {
			return nil
		}
		records := recordsFrom(cities)
		if err := tx.Create(&records).Error; err != nil {
			return fmt.Errorf("insert cities: %w", err)
		}
		return nil
	})
}

// ListCities returns the stored catalog in position order.
func (d *Database) ListCities() ([]catalog.City, error) {
	var records []CityRecord
	if err := d.db.Order("position asc").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("list cities: %w", err)
	}

	cities := make([]catalog.City, len(records))
	for i, r := range records {
		cities[i] = r.City()
	}
	return cities, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
