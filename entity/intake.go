package entity

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

type Intake struct {
	Name   string
	Email  string
	Gender string
	Amount int64
}

// PriceList maps a gender to its ticket price. A missing entry accepts any
// positive amount.
type PriceList map[Gender]int64

func (i *Intake) Normalize() {
	i.Name = strings.TrimSpace(i.Name)
	i.Email = strings.ToLower(strings.TrimSpace(i.Email))
	i.Gender = strings.ToLower(strings.TrimSpace(i.Gender))
}

func (i Intake) Validate(prices PriceList) error {
	err := validation.ValidateStruct(&i,
		validation.Field(&i.Name, validation.Required, validation.RuneLength(2, 0)),
		validation.Field(&i.Email, validation.Required, is.EmailFormat),
		validation.Field(&i.Gender, validation.Required, validation.In(string(GenderMale), string(GenderFemale))),
		validation.Field(&i.Amount, validation.Required, validation.Min(int64(1))),
	)
	if err != nil {
		return ValidationError{Err: err}
	}

	if price, ok := prices[Gender(i.Gender)]; ok && price != i.Amount {
		return ValidationError{Err: validation.Errors{
			"amount": validation.NewError("validation_price", "must match the ticket price"),
		}}
	}

	return nil
}
