package models

import (
	"time"

	"github.com/fabricio9061-glitch/Mi-cartera-inmobiliaria/internal/utils"
)

// TransactionKind tells whether a listing is offered for sale or for rent.
type TransactionKind string

const (
	TransactionSale TransactionKind = "sale"
	TransactionRent TransactionKind = "rent"
)

// Valid reports whether k is a known transaction kind.
func (k TransactionKind) Valid() bool {
	return k == TransactionSale || k == TransactionRent
}

// StructureKind is the legal structure of the property.
type StructureKind string

const (
	StructureCommon     StructureKind = "common" // standard parcel
	StructureHorizontal StructureKind = "ph"     // horizontal property
)

// Valid reports whether k is a known structure kind.
func (k StructureKind) Valid() bool {
	return k == StructureCommon || k == StructureHorizontal
}

// Listing represents a property offered for sale or rent.
type Listing struct {
	ID             utils.SixID     `bson:"_id" json:"id"`
	Title          string          `bson:"title" json:"title"`
	Description    string          `bson:"description" json:"description"`
	Location       string          `bson:"location" json:"location"`
	Price          float64         `bson:"price" json:"price"`
	Type           TransactionKind `bson:"type" json:"type"`
	PropertyType   StructureKind   `bson:"property_type" json:"property_type"`
	TotalArea      float64         `bson:"total_area" json:"total_area"`
	PrivateArea    float64         `bson:"private_area" json:"private_area"`
	Bedrooms       int             `bson:"bedrooms" json:"bedrooms"`
	Bathrooms      int             `bson:"bathrooms" json:"bathrooms"`
	Garage         bool            `bson:"garage" json:"garage"`
	AcceptsPets    bool            `bson:"accepts_pets" json:"accepts_pets"` // Only meaningful for rent
	CommonExpenses *float64        `bson:"common_expenses,omitempty" json:"common_expenses,omitempty"`
	Images         []string        `bson:"images" json:"images"` // Display order
	Views          int64           `bson:"views" json:"views"`
	OwnerID        utils.SixID     `bson:"owner_id" json:"owner_id"`
	OwnerName      string          `bson:"owner_name" json:"owner_name"`
	OwnerWhatsapp  string          `bson:"owner_whatsapp" json:"owner_whatsapp"`
	CreatedAt      time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `bson:"updated_at" json:"updated_at"`
}

// Complete reports whether the record carries every field a reader relies on.
// Records written half-way by another client are not Complete.
func (l *Listing) Complete() bool {
	return !l.ID.IsZero() &&
		l.Title != "" &&
		l.Price > 0 &&
		l.Type.Valid() &&
		!l.CreatedAt.IsZero()
}
