package orders

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
)

const dateOnlyLayout = "2006-01-02"

// Weights are stored as numeric(10,2).
const weightScale = 2

var contactPattern = regexp.MustCompile(`^\d{10}$`)

// CreateOrderInput is the customer-supplied booking. Every field is checked
// and all violations are reported together.
type CreateOrderInput struct {
	PickupAddress   string          `json:"pickupAddress" validate:"required,max=500"`
	PickupContact   string          `json:"pickupContact" validate:"required,contact"`
	DeliveryAddress string          `json:"deliveryAddress" validate:"required,max=500"`
	DeliveryContact string          `json:"deliveryContact" validate:"required,contact"`
	PackageType     string          `json:"packageType" validate:"required,oneof=document parcel fragile heavy"`
	Weight          decimal.Decimal `json:"weight" validate:"gte=0.1,lte=99999999.99"`
	Description     *string         `json:"description,omitempty" validate:"omitempty,max=1000"`
	ScheduledDate   string          `json:"scheduledDate" validate:"required,scheduled_date"`
	Priority        string          `json:"priority" validate:"required,oneof=standard express priority"`
}

// validatedOrder is CreateOrderInput after parsing.
type validatedOrder struct {
	PickupAddress   string
	PickupContact   string
	DeliveryAddress string
	DeliveryContact string
	PackageType     enums.PackageType
	Weight          decimal.Decimal
	Description     *string
	ScheduledDate   time.Time
	Priority        enums.OrderPriority
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("contact", func(fl validator.FieldLevel) bool {
		return contactPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("scheduled_date", func(fl validator.FieldLevel) bool {
		_, err := parseScheduledDate(fl.Field().String())
		return err == nil
	})
	return v
}

func (in CreateOrderInput) normalize() CreateOrderInput {
	in.PickupAddress = strings.TrimSpace(in.PickupAddress)
	in.PickupContact = strings.TrimSpace(in.PickupContact)
	in.DeliveryAddress = strings.TrimSpace(in.DeliveryAddress)
	in.DeliveryContact = strings.TrimSpace(in.DeliveryContact)
	in.PackageType = strings.ToLower(strings.TrimSpace(in.PackageType))
	in.Priority = strings.ToLower(strings.TrimSpace(in.Priority))
	in.ScheduledDate = strings.TrimSpace(in.ScheduledDate)
	if in.Description != nil {
		trimmed := strings.TrimSpace(*in.Description)
		if trimmed == "" {
			in.Description = nil
		} else {
			in.Description = &trimmed
		}
	}
	return in
}

func validateCreateInput(raw CreateOrderInput) (*validatedOrder, error) {
	in := raw.normalize()
	if err := validate.Struct(in); err != nil {
		return nil, formatValidationErrors(err)
	}

	scheduled, _ := parseScheduledDate(in.ScheduledDate)
	return &validatedOrder{
		PickupAddress:   in.PickupAddress,
		PickupContact:   in.PickupContact,
		DeliveryAddress: in.DeliveryAddress,
		DeliveryContact: in.DeliveryContact,
		PackageType:     enums.PackageType(in.PackageType),
		Weight:          in.Weight.Round(weightScale),
		Description:     in.Description,
		ScheduledDate:   scheduled,
		Priority:        enums.OrderPriority(in.Priority),
	}, nil
}

// parseScheduledDate accepts RFC3339 timestamps and bare calendar dates.
func parseScheduledDate(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateOnlyLayout, value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := map[string]string{}
	for _, fieldErr := range errs {
		details[fieldErr.Field()] = validationMessage(fieldErr)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "contact":
		return "phone number must be 10 digits"
	case "scheduled_date":
		return "must be an RFC3339 timestamp or YYYY-MM-DD date"
	}
	return "is invalid"
}
