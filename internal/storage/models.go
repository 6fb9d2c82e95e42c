package storage

import (
	"opposite-clock/internal/catalog"

	"gorm.io/gorm"
)

// CityRecord is the persisted form of a catalog city. Position keeps the
// catalog order stable across restarts.
type CityRecord struct {
	gorm.Model
	Position int    `gorm:"index" json:"position"`
	Name     string `gorm:"not null" json:"name"`
	Timezone string `gorm:"not null" json:"timezone"`
	Country  string `json:"country"`
}

func (CityRecord) TableName() string {
	return "cities"
}

func (r CityRecord) City() catalog.City {
	return catalog.City{Name: r.Name, Timezone: r.Timezone, Country: r.Country}
}

func recordsFrom(cities []catalog.City) []CityRecord {
	records := make([]CityRecord, len(cities))
	for i, c := range cities {
		records[i] = CityRecord{
			Position: i,
			Name:     c.Name,
			Timezone: c.Timezone,
			Country:  c.Country,
		}
	}
	return records
}
