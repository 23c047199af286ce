package models

// ContractCounter backs the CON-YYYY-NNN contract number allocator.
// One row per calendar year, bumped inside the creation transaction.
type ContractCounter struct {
	Year      int `gorm:"primaryKey"`
	LastValue int `gorm:"not null;default:0"`
}
