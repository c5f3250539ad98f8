package domain

import (
	"strings"
	"time"
)

// Customer is a back-office client record. The outreach engine reads
// customers but never mutates them.
type Customer struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DisplayName returns the customer's full name, or a neutral placeholder
// when both name fields are empty.
func (c Customer) DisplayName() string {
	name := strings.TrimSpace(c.FirstName + " " + c.LastName)
	if name == "" {
		return "customer"
	}
	return name
}

// Product is a catalog item. CycleDays is the estimated replenishment
// cycle length; zero means no cycle estimate.
type Product struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	SKU       string  `json:"sku,omitempty"`
	Unit      string  `json:"unit,omitempty"`
	Category  string  `json:"category,omitempty"`
	UnitPrice float64 `json:"unit_price"`
	Stock     int     `json:"stock"`
	Active    bool    `json:"active"`
	CycleDays int     `json:"cycle_days,omitempty"`
}

// Sale is a completed order with its line items. Purchase histories are
// returned most-recent-first.
type Sale struct {
	ID         int64      `json:"id"`
	CustomerID int64      `json:"customer_id"`
	Date       time.Time  `json:"date"`
	Lines      []SaleLine `json:"lines,omitempty"`
}

// SaleLine is one product position inside a sale.
type SaleLine struct {
	ProductID int64   `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// ProductSales is an aggregate of units sold per product, used as the
// global popularity signal for customers without purchase history.
type ProductSales struct {
	ProductID int64 `json:"product_id"`
	Units     int   `json:"units"`
}
