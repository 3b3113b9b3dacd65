package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// StatementLine movimiento financiero de un cliente.
type StatementLine struct {
	ID          int64           `json:"id"`
	Date        time.Time       `json:"date"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// CustomerStatement estado de cuenta de un cliente con sus totales.
type CustomerStatement struct {
	CompanyName    string          `json:"companyName"`
	CustomerID     int64           `json:"customerId"`
	CustomerName   string          `json:"customerName"`
	CustomerEmail  string          `json:"customerEmail"`
	GeneratedAt    time.Time       `json:"generatedAt"`
	Lines          []StatementLine `json:"lines"`
	TotalSales     decimal.Decimal `json:"totalSales"`
	TotalPurchases decimal.Decimal `json:"totalPurchases"`
	TotalInvoiced  decimal.Decimal `json:"totalInvoiced"`
	Pending        decimal.Decimal `json:"pending"`
	ComplaintCount int64           `json:"complaintCount"`
}
