package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/porter-backend/pkg/enums"
)

type rate struct {
	base     decimal.Decimal
	perKg    decimal.Decimal
	leadTime time.Duration
}

var rates = map[enums.PackageType]rate{
	enums.PackageTypeDocument: {base: decimal.NewFromInt(10), perKg: decimal.RequireFromString("0.5"), leadTime: 24 * time.Hour},
	enums.PackageTypeParcel:   {base: decimal.NewFromInt(15), perKg: decimal.NewFromInt(1), leadTime: 48 * time.Hour},
	enums.PackageTypeFragile:  {base: decimal.NewFromInt(25), perKg: decimal.RequireFromString("1.5"), leadTime: 72 * time.Hour},
	enums.PackageTypeHeavy:    {base: decimal.NewFromInt(35), perKg: decimal.NewFromInt(2), leadTime: 96 * time.Hour},
}

// Cost prices a shipment: base fee plus a per-kilogram charge, in cents.
func Cost(packageType enums.PackageType, weight decimal.Decimal) decimal.Decimal {
	r, ok := rates[packageType]
	if !ok {
		return decimal.Zero
	}
	return r.base.Add(weight.Mul(r.perKg)).Round(2)
}

// EstimatedDelivery adds the package type's lead time to the scheduled date.
func EstimatedDelivery(packageType enums.PackageType, scheduled time.Time) time.Time {
	return scheduled.Add(rates[packageType].leadTime)
}
