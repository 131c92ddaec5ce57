package calendar

// Target names where a picker is rendered. Large and small debts show the picker
// in different panels; both panels read the same Selection.
type Target string

const (
	TargetLargeDebt Target = "large-debt"
	TargetSmallDebt Target = "small-debt"
)

// PickerView is the render model of the picker for one target.
type PickerView struct {
	Target   Target    `json:"target"`
	Value    Selection `json:"value"`
	Years    []int     `json:"years"`
	Months   []int     `json:"months"`
	Days     []int     `json:"days"`
	Selected string    `json:"selected,omitempty"` // YYYY-MM-DD once complete
}

// View renders sel for target.
func (r Rules) View(target Target, sel Selection) PickerView {
	v := PickerView{
		Target: target,
		Value:  sel,
		Years:  r.Years().Values(),
		Months: r.Months(sel.Year).Values(),
		Days:   r.Days(sel.Year, sel.Month).Values(),
	}
	if d, ok := sel.Date(); ok {
		v.Selected = d.String()
	}
	return v
}
