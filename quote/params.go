package quote

import (
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// Query parameter names read from the page URL.
const (
	ParamCapital             = "capital"
	ParamInterest            = "intereses"
	ParamCosts               = "costos"
	ParamOverdueStartDate    = "fechaInicio"
	ParamOverdueDays         = "diasMora"
	ParamPreviousInstallment = "cuotaAnterior"
	ParamDebtorID            = "uuid"
)

// RequiredParams lists the numeric parameters in reporting order.
var RequiredParams = []string{ParamCapital, ParamInterest, ParamCosts}

// ParseParams validates the required amounts and collects the informational
// fields. All three amounts are checked before returning so that every missing
// or invalid name is reported at once in a *MissingParamsError.
func ParseParams(values url.Values) (DebtRecord, error) {
	amounts := make(map[string]decimal.Decimal, len(RequiredParams))
	var missing []string

	for _, name := range RequiredParams {
		v, ok := parseAmount(values.Get(name))
		if !ok {
			missing = append(missing, name)
			continue
		}
		amounts[name] = v
	}

	if len(missing) > 0 {
		return DebtRecord{}, &MissingParamsError{Params: missing}
	}

	return DebtRecord{
		Capital:             amounts[ParamCapital],
		Interest:            amounts[ParamInterest],
		Costs:               amounts[ParamCosts],
		OverdueStartDate:    optional(values, ParamOverdueStartDate),
		OverdueDays:         optional(values, ParamOverdueDays),
		PreviousInstallment: optional(values, ParamPreviousInstallment),
		DebtorID:            optional(values, ParamDebtorID),
	}, nil
}

// parseAmount accepts a non-negative decimal. Empty, non-numeric and negative
// values are rejected.
func parseAmount(raw string) (decimal.Decimal, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

func optional(values url.Values, name string) *string {
	v := values.Get(name)
	if v == "" {
		return nil
	}
	return &v
}
