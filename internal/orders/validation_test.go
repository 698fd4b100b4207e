package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/porter-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/porter-backend/pkg/errors"
)

func validInput() CreateOrderInput {
	return CreateOrderInput{
		PickupAddress:   "12 Harbour Road",
		PickupContact:   "5551234567",
		DeliveryAddress: "98 Hill Street",
		DeliveryContact: "5559876543",
		PackageType:     "parcel",
		Weight:          decimal.RequireFromString("2.5"),
		ScheduledDate:   "2026-11-02",
		Priority:        "standard",
	}
}

func TestValidateCreateInputAccepts(t *testing.T) {
	desc := "  fragile glassware  "
	in := validInput()
	in.PackageType = " Fragile "
	in.Description = &desc

	got, err := validateCreateInput(in)
	require.NoError(t, err)
	assert.Equal(t, enums.PackageTypeFragile, got.PackageType)
	assert.Equal(t, enums.OrderPriorityStandard, got.Priority)
	assert.Equal(t, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), got.ScheduledDate)
	require.NotNil(t, got.Description)
	assert.Equal(t, "fragile glassware", *got.Description)
}

func TestValidateCreateInputParsesRFC3339(t *testing.T) {
	in := validInput()
	in.ScheduledDate = "2026-11-02T15:30:00+02:00"

	got, err := validateCreateInput(in)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 11, 2, 13, 30, 0, 0, time.UTC), got.ScheduledDate)
}

func TestValidateCreateInputReportsEveryViolation(t *testing.T) {
	in := CreateOrderInput{
		PickupAddress:   "",
		PickupContact:   "12345",
		DeliveryAddress: "98 Hill Street",
		DeliveryContact: "55598765xx",
		PackageType:     "crate",
		Weight:          decimal.Zero,
		ScheduledDate:   "next tuesday",
		Priority:        "overnight",
	}

	_, err := validateCreateInput(in)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())

	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "is required", details["pickupAddress"])
	assert.Equal(t, "phone number must be 10 digits", details["pickupContact"])
	assert.Equal(t, "phone number must be 10 digits", details["deliveryContact"])
	assert.Contains(t, details["packageType"], "document, parcel, fragile, heavy")
	assert.Equal(t, "must be at least 0.1", details["weight"])
	assert.Contains(t, details, "scheduledDate")
	assert.Contains(t, details, "priority")
	assert.NotContains(t, details, "deliveryAddress")
}

func TestValidateCreateInputRejectsNegativeWeight(t *testing.T) {
	in := validInput()
	in.Weight = decimal.RequireFromString("-1")

	_, err := validateCreateInput(in)
	require.Error(t, err)
	details := pkgerrors.As(err).Details().(map[string]string)
	assert.Len(t, details, 1)
	assert.Contains(t, details, "weight")
}

func TestValidateCreateInputWeightFitsStorage(t *testing.T) {
	for _, tc := range []struct {
		weight string
		msg    string
	}{
		{weight: "0.004", msg: "must be at least 0.1"},
		{weight: "123456789.5", msg: "must be at most 99999999.99"},
	} {
		t.Run(tc.weight, func(t *testing.T) {
			in := validInput()
			in.Weight = decimal.RequireFromString(tc.weight)

			_, err := validateCreateInput(in)
			require.Error(t, err)
			details := pkgerrors.As(err).Details().(map[string]string)
			assert.Equal(t, tc.msg, details["weight"])
		})
	}
}

func TestValidateCreateInputRoundsWeightToCents(t *testing.T) {
	in := validInput()
	in.Weight = decimal.RequireFromString("2.126")

	got, err := validateCreateInput(in)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString("2.13").Equal(got.Weight), got.Weight.String())
	assert.True(t, Cost(got.PackageType, got.Weight).Equal(Cost(got.PackageType, decimal.RequireFromString("2.13"))))
}
