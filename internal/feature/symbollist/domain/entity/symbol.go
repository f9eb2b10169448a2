// Package entity defines the domain models for the symbollist feature.
package entity

import "time"

// Symbol is one tradable instrument. Active symbols form the default universe
// of a batch indicator recompute.
type Symbol struct {
	ID        uint      `gorm:"primaryKey"`
	Code      string    `gorm:"size:32;not null;uniqueIndex"` // e.g. "BTCUSDT", "7203.T"
	Name      string    `gorm:"size:255;not null"`
	Market    string    `gorm:"size:100;not null;index"`
	IsActive  bool      `gorm:"not null;default:true"`
	SortKey   int       `gorm:"not null;default:0"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
