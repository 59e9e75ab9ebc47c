package models

import "time"

// Customer is a business-record row. CRUD lives outside this service; the
// entitlement gate only counts rows per owner.
type Customer struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	Phone     string    `gorm:"type:varchar(30)" json:"phone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Invoice is a business-record row, counted per calendar month by the
// entitlement gate.
type Invoice struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UserID     uint      `gorm:"not null;index:idx_invoices_user_created,priority:1" json:"user_id"`
	CustomerID uint      `gorm:"index" json:"customer_id"`
	Total      float64   `json:"total"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_invoices_user_created,priority:2" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Product is a storefront item. SalePrice, when set, overrides Price at
// checkout time.
type Product struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"not null;index" json:"user_id"`
	Name      string     `gorm:"type:varchar(200);not null" json:"name"`
	Price     float64    `gorm:"not null" json:"price"`
	SalePrice *float64   `json:"sale_price,omitempty"`
	Active    bool       `gorm:"default:true" json:"active"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`
}

// EffectivePrice returns the live unit price, honoring a sale override
func (p *Product) EffectivePrice() float64 {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}
