package quote

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/settlement-quoter/calendar"
)

// isoMillis matches the ISO-8601 form browsers produce for timestamps.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

// AgreementPayload is the webhook body. Key names are part of the receiver's
// contract and must not change.
type AgreementPayload struct {
	CapitalOriginal     json.Number       `json:"capitalOriginal"`
	InteresesCondonados json.Number       `json:"interesesCondonados"`
	CostosCondonados    json.Number       `json:"costosCondonados"`
	TotalOriginal       json.Number       `json:"totalOriginal"`
	CapitalAPagar       json.Number       `json:"capitalAPagar"`
	DescuentoCapital    json.Number       `json:"descuentoCapital"`
	TotalCondonado      json.Number       `json:"totalCondonado"`
	TotalAhorro         json.Number       `json:"totalAhorro"`
	PlanSeleccionado    string            `json:"planSeleccionado"`
	NumeroCuotas        int               `json:"numeroCuotas"`
	ValorCuota          json.Number       `json:"valorCuota"`
	FechaAcuerdo        string            `json:"fechaAcuerdo"`
	DatosInformativos   DatosInformativos `json:"datosInformativos"`
	UUIDDeudor          *string           `json:"uuidDeudor"`
	URLOrigen           string            `json:"urlOrigen"`
	FechaPrimerPago     string            `json:"fechaPrimerPago"`
	Timestamp           int64             `json:"timestamp"`
}

type DatosInformativos struct {
	FechaInicioMora *string `json:"fechaInicioMora"`
	DiasMora        *string `json:"diasMora"`
	CuotaAnterior   *string `json:"cuotaAnterior"`
}

// PayloadMeta is the context captured at submission time.
type PayloadMeta struct {
	Now       time.Time
	OriginURL string
}

// BuildPayload snapshots s into an agreement. It re-validates plan and date
// independently of the view, so a stale or tampered state cannot be submitted.
func BuildPayload(s State, rules calendar.Rules, meta PayloadMeta) (AgreementPayload, error) {
	if s.Plan == "" {
		return AgreementPayload{}, ErrNoPlanSelected
	}
	plan, err := LookupPlan(s.Plan)
	if err != nil {
		return AgreementPayload{}, err
	}
	if !plan.Allows(s.Installments) {
		return AgreementPayload{}, &InstallmentsRangeError{Plan: plan.ID, Requested: s.Installments, Min: plan.MinInstallments, Max: plan.MaxInstallments}
	}
	firstPayment, err := rules.Validate(s.Date)
	if err != nil {
		return AgreementPayload{}, err
	}

	b := Compute(s.Debt, plan, s.Installments)

	return AgreementPayload{
		CapitalOriginal:     number(b.Capital),
		InteresesCondonados: number(b.Interest),
		CostosCondonados:    number(b.Costs),
		TotalOriginal:       number(b.Total),
		CapitalAPagar:       number(b.CapitalToPay),
		DescuentoCapital:    number(b.DiscountAmount),
		TotalCondonado:      number(b.TotalCondoned),
		TotalAhorro:         number(b.TotalSaved),
		PlanSeleccionado:    plan.Label(s.Installments),
		NumeroCuotas:        s.Installments,
		ValorCuota:          number(b.InstallmentValue),
		FechaAcuerdo:        meta.Now.UTC().Format(isoMillis),
		DatosInformativos: DatosInformativos{
			FechaInicioMora: s.Debt.OverdueStartDate,
			DiasMora:        s.Debt.OverdueDays,
			CuotaAnterior:   s.Debt.PreviousInstallment,
		},
		UUIDDeudor:      s.Debt.DebtorID,
		URLOrigen:       meta.OriginURL,
		FechaPrimerPago: firstPayment.String(),
		Timestamp:       meta.Now.UnixMilli(),
	}, nil
}

// number renders d as a JSON number literal without losing precision.
func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}
