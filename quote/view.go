package quote

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/warp/settlement-quoter/calendar"
)

var copPrinter = message.NewPrinter(language.MustParse("es-CO"))

// User-facing texts.
const (
	MsgSelectDate = "Por favor seleccione la fecha del primer pago"
	MsgPastDate   = "La fecha del primer pago no puede ser anterior a hoy"
	MsgSending    = "Enviando..."
	MsgSubmitted  = "Acuerdo enviado exitosamente"

	LabelConfirm   = "Confirmar Acuerdo"
	LabelSending   = "Enviando..."
	LabelConfirmed = "Acuerdo Confirmado"
	LabelRetry     = "Reintentar Envío"
)

// =============================================================================
// VIEW MODEL
// =============================================================================

// View is everything a front end needs to render a session. It is derived from
// State and never stored.
type View struct {
	Class        DebtClass           `json:"class"`
	Debt         DebtView            `json:"debt"`
	Info         InfoView            `json:"info"`
	Plans        []PlanOption        `json:"plans"`
	Installments InstallmentControl  `json:"installments"`
	Results      *ResultsView        `json:"results,omitempty"`
	DatePicker   calendar.PickerView `json:"date_picker"`
	DateMessage  string              `json:"date_message,omitempty"`
	Confirm      ButtonView          `json:"confirm"`
	Status       *Status             `json:"status,omitempty"`
	Phase        Phase               `json:"phase"`
}

type DebtView struct {
	Capital  string `json:"capital"`
	Interest string `json:"interest"`
	Costs    string `json:"costs"`
	Total    string `json:"total"`
}

type InfoView struct {
	OverdueStartDate    string `json:"overdue_start_date"`
	OverdueDays         string `json:"overdue_days"`
	PreviousInstallment string `json:"previous_installment"`
}

type PlanOption struct {
	ID       PlanID `json:"id"`
	Name     string `json:"name"`
	Discount string `json:"discount"`
	Min      int    `json:"min_installments"`
	Max      int    `json:"max_installments"`
	Selected bool   `json:"selected"`
}

type InstallmentControl struct {
	Visible    bool   `json:"visible"`
	Min        int    `json:"min"`
	Max        int    `json:"max"`
	Value      int    `json:"value"`
	Label      string `json:"label"`
	ValueLabel string `json:"value_label"`
}

type ResultsView struct {
	CapitalToPay     string    `json:"capital_to_pay"`
	DiscountAmount   string    `json:"discount_amount"`
	InterestCondoned string    `json:"interest_condoned"`
	CostsCondoned    string    `json:"costs_condoned"`
	TotalSaved       string    `json:"total_saved"`
	InstallmentValue string    `json:"installment_value"`
	Installments     string    `json:"installments"`
	Breakdown        Breakdown `json:"breakdown"`
}

type ButtonView struct {
	Enabled bool   `json:"enabled"`
	Label   string `json:"label"`
}

// Render builds the view of s for the day described by rules.
func Render(s State, rules calendar.Rules) View {
	s = Refresh(s, rules)
	v := View{
		Class: s.Class(),
		Debt: DebtView{
			Capital:  FormatCOP(s.Debt.Capital),
			Interest: FormatCOP(s.Debt.Interest),
			Costs:    FormatCOP(s.Debt.Costs),
			Total:    FormatCOP(s.Debt.Total()),
		},
		Info:        renderInfo(s.Debt),
		DatePicker:  rules.View(s.PickerTarget(), s.Date),
		DateMessage: s.DateMessage,
		Phase:       s.Phase,
	}

	for _, p := range OfferedPlans(s.Class()) {
		v.Plans = append(v.Plans, PlanOption{
			ID:       p.ID,
			Name:     p.Name,
			Discount: p.DiscountRate.Shift(2).String() + "%",
			Min:      p.MinInstallments,
			Max:      p.MaxInstallments,
			Selected: p.ID == s.Plan,
		})
	}

	if plan, err := LookupPlan(s.Plan); err == nil {
		v.Installments = InstallmentControl{
			Visible:    !plan.FixedInstallments(),
			Min:        plan.MinInstallments,
			Max:        plan.MaxInstallments,
			Value:      s.Installments,
			Label:      fmt.Sprintf("Cuotas (%d-%d):", plan.MinInstallments, plan.MaxInstallments),
			ValueLabel: InstallmentsLabel(s.Installments),
		}
	}

	if b, ok := s.Breakdown(); ok {
		v.Results = &ResultsView{
			CapitalToPay:     FormatCOP(b.CapitalToPay),
			DiscountAmount:   FormatCOP(b.DiscountAmount),
			InterestCondoned: FormatCOP(b.Interest),
			CostsCondoned:    FormatCOP(b.Costs),
			TotalSaved:       FormatCOP(b.TotalSaved),
			InstallmentValue: FormatCOP(b.InstallmentValue),
			Installments:     fmt.Sprintf("%d", b.Installments),
			Breakdown:        b,
		}
	}

	v.Confirm = ButtonView{Enabled: s.CanConfirm(rules), Label: LabelConfirm}
	switch s.Phase {
	case PhaseSubmitting:
		v.Confirm.Label = LabelSending
	case PhaseConfirmed:
		v.Confirm.Label = LabelConfirmed
	default:
		if s.Status.Kind == StatusError {
			v.Confirm.Label = LabelRetry
		}
	}

	if s.Status.Kind != StatusNone {
		st := s.Status
		v.Status = &st
	}
	return v
}

func renderInfo(d DebtRecord) InfoView {
	info := InfoView{OverdueStartDate: "-", OverdueDays: "-", PreviousInstallment: "-"}
	if d.OverdueStartDate != nil {
		info.OverdueStartDate = *d.OverdueStartDate
	}
	if d.OverdueDays != nil {
		info.OverdueDays = *d.OverdueDays + " días"
	}
	if d.PreviousInstallment != nil {
		if amount, err := decimal.NewFromString(strings.TrimSpace(*d.PreviousInstallment)); err == nil {
			info.PreviousInstallment = FormatCOP(amount)
		} else {
			info.PreviousInstallment = *d.PreviousInstallment
		}
	}
	return info
}

// InstallmentsLabel is "1 cuota" or "N cuotas".
func InstallmentsLabel(n int) string {
	if n == 1 {
		return "1 cuota"
	}
	return fmt.Sprintf("%d cuotas", n)
}

func dateMessage(err error) string {
	if errors.Is(err, ErrPastDate) {
		return MsgPastDate
	}
	return MsgSelectDate
}

// =============================================================================
// CURRENCY FORMAT
// =============================================================================

// FormatCOP renders an amount as Colombian pesos without decimals, e.g. "$ 1.400.000".
func FormatCOP(amount decimal.Decimal) string {
	rounded := amount.Round(0)
	digits := copPrinter.Sprintf("%d", rounded.Abs().IntPart())
	if rounded.IsNegative() {
		return "-$ " + digits
	}
	return "$ " + digits
}
