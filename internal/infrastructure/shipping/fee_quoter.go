package shipping

import (
	"context"

	"github.com/komono/backend/internal/domain/shared/valueobject"
	"github.com/komono/backend/internal/domain/shipping"
)

// defaultParcel is the parcel profile used to quote checkout shipping
// fees before package dimensions are known. Most orders fit the 80 class.
var defaultParcel = shipping.PackageSize{
	WeightGrams: 3000,
	WidthCM:     35,
	HeightCM:    25,
	DepthCM:     20,
}

// CarrierFeeQuoter quotes checkout shipping fees from the carrier rate
// table, waiving the fee above the free-shipping threshold.
type CarrierFeeQuoter struct {
	carrier               shipping.Carrier
	freeShippingThreshold valueobject.Money
}

// NewCarrierFeeQuoter creates a fee quoter. A zero threshold disables
// free shipping.
func NewCarrierFeeQuoter(carrier shipping.Carrier, freeShippingThreshold valueobject.Money) *CarrierFeeQuoter {
	return &CarrierFeeQuoter{
		carrier:               carrier,
		freeShippingThreshold: freeShippingThreshold,
	}
}

// Quote returns the shipping fee for delivering to the given address
func (q *CarrierFeeQuoter) Quote(ctx context.Context, to valueobject.Address, subtotal valueobject.Money) (valueobject.Money, error) {
	if !q.freeShippingThreshold.IsZero() {
		below, err := subtotal.LessThan(q.freeShippingThreshold)
		if err != nil {
			return valueobject.Money{}, err
		}
		if !below {
			return valueobject.ZeroJPY(), nil
		}
	}

	quote, err := q.carrier.GetRate(ctx, &shipping.RateRequest{
		ServiceType:  shipping.ServiceStandard,
		Package:      defaultParcel,
		ToPrefecture: to.Prefecture(),
	})
	if err != nil {
		return valueobject.Money{}, err
	}
	return quote.Fees.Total, nil
}
