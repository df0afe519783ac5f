package models

import "time"

// Account is a registered user together with their virtual cash balance.
// Balance is mutated only by the settlement engine and never goes negative.
type Account struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Username     string    `gorm:"column:username;type:varchar(64);uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	Balance      float64   `gorm:"column:balance;not null" json:"balance"`
}

func (Account) TableName() string { return "accounts" }

// Position is a user's holding in the instrument. At most one row exists per
// (username, symbol) pair; the row is deleted once Amount reaches zero, so
// AvgPrice is only ever meaningful while Amount > 0.
type Position struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Username  string    `gorm:"column:username;type:varchar(64);index;not null" json:"username"`
	Symbol    string    `gorm:"column:symbol;type:varchar(16);index;not null" json:"symbol"`
	Amount    int64     `gorm:"column:amount;not null" json:"amount"`
	AvgPrice  float64   `gorm:"column:avg_price;not null" json:"avg_price"`
}

func (Position) TableName() string { return "positions" }
