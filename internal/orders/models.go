package orders

import "time"

type ProductType string

const (
	TypePhysical ProductType = "physical"
	TypeDigital  ProductType = "digital"
)

type Product struct {
	ID         string
	SKU        string
	Name       string
	Type       ProductType
	Stock      int // meaningful only for physical products
	PriceCents int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Physical reports whether stock checks and mutations apply to p.
func (p Product) Physical() bool { return p.Type == TypePhysical }

type Order struct {
	ID     string
	UserID string // empty for guest checkout
	Status Status

	// StockDeducted is true exactly when this order's stock decrements
	// are applied and not yet reversed.
	StockDeducted bool

	// Monetary fields are inputs computed upstream, never recomputed here.
	TotalCents               int
	DiscountCents            int
	TaxCents                 int
	DeliveryChargeCents      int
	ExtraDeliveryChargeCents int
	NetTotalCents            int

	CustomerName    string
	Phone           string
	Email           string
	ShippingAddress string

	PaymentMethod string
	PaymentInfo   string // opaque provider blob
	CouponCode    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Qty       int
	// PriceCents is the unit price snapshot taken at order time.
	PriceCents    int
	SelectedColor string
	SelectedSize  string
}

// ItemQty is a per-product aggregated quantity, the unit stock checks
// and mutations operate on.
type ItemQty struct {
	ProductID string
	Qty       int
}
