package checkout

import (
	"errors"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/order"
)

var phonePattern = regexp.MustCompile(`^(?:\+?88)?01[3-9]\d{8}$`)

// Form is the checkout form submitted by the shopper.
type Form struct {
	Name            string `json:"name" validate:"required,max=120"`
	Email           string `json:"email" validate:"omitempty,email"`
	Phone           string `json:"phone" validate:"required,bdphone"`
	Address         string `json:"address" validate:"required,max=500"`
	District        string `json:"district" validate:"required"`
	Note            string `json:"note" validate:"max=1000"`
	ShippingMethod  string `json:"shippingMethod" validate:"omitempty,oneof=inside outside shop_pickup"`
	PaymentMethod   string `json:"paymentMethod" validate:"required,oneof=cod online"`
	Password        string `json:"password,omitempty" validate:"omitempty,min=6"`
	ConfirmPassword string `json:"confirmPassword,omitempty" validate:"eqfield=Password"`
}

// Customer projects the form onto the order's customer details.
func (f Form) Customer() order.Customer {
	return order.Customer{
		Name:     strings.TrimSpace(f.Name),
		Email:    strings.TrimSpace(f.Email),
		Phone:    strings.TrimSpace(f.Phone),
		Address:  strings.TrimSpace(f.Address),
		District: strings.TrimSpace(f.District),
		Note:     strings.TrimSpace(f.Note),
	}
}

// Draft returns the form without credentials, suitable for keeping in the
// session after a failed submission.
func (f Form) Draft() Form {
	f.Password = ""
	f.ConfirmPassword = ""
	return f
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("bdphone", func(fl validator.FieldLevel) bool {
			return phonePattern.MatchString(strings.TrimSpace(fl.Field().String()))
		})
		validate = v
	})
	return validate
}

// Validate checks the form and returns a VALIDATION_FAILED AppError whose
// details map each offending field to an inline message.
func (f Form) Validate() error {
	err := formValidator().Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := fields[fe.Field()]; seen {
			continue
		}
		fields[fe.Field()] = fieldMessage(fe)
	}
	return common.Validation("checkout form is invalid", fields)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "bdphone":
		return "must be a valid mobile number"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "eqfield":
		return "does not match"
	default:
		return "is invalid"
	}
}
