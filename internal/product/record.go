package product

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Availability string

const (
	InStock    Availability = "in stock"
	OutOfStock Availability = "out of stock"
)

// ConditionNew is the only condition the shop sells.
const ConditionNew = "new"

// Record is one product as it appears in every feed.
type Record struct {
	ID           string       `json:"id" validate:"required"`
	Title        string       `json:"title" validate:"required"`
	Description  string       `json:"description"`
	Price        string       `json:"price" validate:"required,price"`
	Currency     string       `json:"currency" validate:"required"`
	ImageLink    string       `json:"image_link" validate:"required"`
	Availability Availability `json:"availability" validate:"required,oneof='in stock' 'out of stock'"`
	Condition    string       `json:"condition" validate:"required"`
	Link         string       `json:"link" validate:"required,url"`
	Brand        string       `json:"brand" validate:"required"`

	// PriceFallback is set when Price is the configured default rather than a scraped value.
	PriceFallback bool `json:"-"`
}

// PriceWithCurrency renders the "<amount> <currency>" form used by the XML feeds and Meta CSV.
func (r Record) PriceWithCurrency() string {
	if r.Currency == "" {
		return r.Price
	}
	return r.Price + " " + r.Currency
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("price", validatePrice); err != nil {
		panic(fmt.Errorf("register price validation: %w", err))
	}
	return v
}

func validatePrice(fl validator.FieldLevel) bool {
	return IsNumericPrice(fl.Field().String())
}

// Validate checks the feed contract of a single record.
func Validate(r Record) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("product %q contract validation failed: %w", r.Link, err)
	}
	return nil
}
