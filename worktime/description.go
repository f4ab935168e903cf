package worktime

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/overwork-engine/generic"
)

// =============================================================================
// H:MM CODEC
// =============================================================================

var sixty = decimal.NewFromInt(60)

// FormatHM renders decimal hours as H:MM, minutes rounded half up.
func FormatHM(h generic.Amount) string {
	minutes := h.NonNegative().Value.Mul(sixty).Round(0).IntPart()
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// ParseHM reads H:MM into decimal hours.
func ParseHM(s string) (generic.Amount, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return generic.Amount{}, &generic.ValidationError{Field: "duration", Message: fmt.Sprintf("%q is not H:MM", s)}
	}
	hours, err := strconv.Atoi(hh)
	if err != nil || hours < 0 {
		return generic.Amount{}, &generic.ValidationError{Field: "duration", Message: fmt.Sprintf("bad hours in %q", s)}
	}
	minutes, err := strconv.Atoi(mm)
	if err != nil || minutes < 0 || minutes > 59 || len(mm) != 2 {
		return generic.Amount{}, &generic.ValidationError{Field: "duration", Message: fmt.Sprintf("bad minutes in %q", s)}
	}
	value := decimal.NewFromInt(int64(hours)).Add(decimal.NewFromInt(int64(minutes)).Div(sixty))
	return generic.NewAmountFromDecimal(generic.Round4(value), generic.UnitHours), nil
}

// =============================================================================
// CALENDAR EVENT DESCRIPTION
// =============================================================================

const (
	labelRegular     = "Regular Hours"
	labelUnpaid      = "Unpaid Extra (Isenção)"
	labelPaid        = "Paid Overtime"
	labelWeekend     = "Weekend"
	labelBankHoliday = "Bank Holiday"
	labelLunch       = "Lunch"
)

// FormatDescription renders the breakdown block written into calendar
// events on export.
func FormatDescription(s Session) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s\n", labelRegular, FormatHM(s.RegularHours))
	fmt.Fprintf(&b, "%s: %s\n", labelUnpaid, FormatHM(s.UnpaidExtraHours))
	fmt.Fprintf(&b, "%s: %s\n", labelPaid, FormatHM(s.PaidExtraHours))
	fmt.Fprintf(&b, "%s: %s\n", labelWeekend, yesNo(s.IsWeekend))
	fmt.Fprintf(&b, "%s: %s\n", labelBankHoliday, yesNo(s.IsBankHoliday))
	if s.IncludeLunchTime {
		fmt.Fprintf(&b, "%s: %s\n", labelLunch, FormatHM(s.LunchDuration))
	}
	if s.Notes != "" {
		b.WriteString(s.Notes)
		b.WriteString("\n")
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

// EventDescription is what a description block says. Absent lines stay nil.
type EventDescription struct {
	Regular     *generic.Amount
	UnpaidExtra *generic.Amount
	PaidExtra   *generic.Amount
	Weekend     *bool
	BankHoliday *bool
	Lunch       *generic.Amount
	Notes       []string
}

// Breakdown returns the described breakdown when all three lines are present.
func (d EventDescription) Breakdown() (Breakdown, bool) {
	if d.Regular == nil || d.UnpaidExtra == nil || d.PaidExtra == nil {
		return Breakdown{}, false
	}
	return Breakdown{Regular: *d.Regular, UnpaidExtra: *d.UnpaidExtra, PaidExtra: *d.PaidExtra}, true
}

// ParseDescription reads a description block. Labels match on a
// case-insensitive prefix. Lines that match no label, or whose value does
// not parse, are kept verbatim as notes, so free text such as
// "Lunch: pizza with team" survives a round trip.
func ParseDescription(text string) EventDescription {
	var d EventDescription
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			d.Notes = append(d.Notes, line)
			continue
		}
		label = strings.ToLower(strings.TrimSpace(label))
		value = strings.TrimSpace(value)

		var err error
		switch {
		case strings.HasPrefix(label, "regular hours"):
			err = setHM(&d.Regular, value)
		case strings.HasPrefix(label, "unpaid extra"):
			err = setHM(&d.UnpaidExtra, value)
		case strings.HasPrefix(label, "paid overtime"):
			err = setHM(&d.PaidExtra, value)
		case strings.HasPrefix(label, "weekend"):
			err = setBool(&d.Weekend, value)
		case strings.HasPrefix(label, "bank holiday"):
			err = setBool(&d.BankHoliday, value)
		case strings.HasPrefix(label, "lunch"):
			err = setHM(&d.Lunch, value)
		default:
			err = errNotALabel
		}
		if err != nil {
			d.Notes = append(d.Notes, line)
		}
	}
	return d
}

var errNotALabel = errors.New("not a description label")

func setHM(dst **generic.Amount, s string) error {
	a, err := ParseHM(s)
	if err != nil {
		return err
	}
	*dst = &a
	return nil
}

func setBool(dst **bool, s string) error {
	v, err := parseBool(s)
	if err != nil {
		return err
	}
	*dst = &v
	return nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "sim", "1":
		return true, nil
	case "no", "false", "não", "nao", "0":
		return false, nil
	}
	return false, &generic.ValidationError{Field: "flag", Message: fmt.Sprintf("%q is not yes/no", s)}
}

// FieldMismatch is a described value that disagrees with the engine.
type FieldMismatch struct {
	Field     string
	Described string
	Computed  string
}

// CompareBreakdown compares at minute precision, the precision of H:MM.
func CompareBreakdown(described, computed Breakdown) []FieldMismatch {
	pairs := []struct {
		field string
		d, c  generic.Amount
	}{
		{"regular_hours", described.Regular, computed.Regular},
		{"unpaid_extra_hours", described.UnpaidExtra, computed.UnpaidExtra},
		{"paid_extra_hours", described.PaidExtra, computed.PaidExtra},
	}
	var out []FieldMismatch
	for _, p := range pairs {
		if dv, cv := FormatHM(p.d), FormatHM(p.c); dv != cv {
			out = append(out, FieldMismatch{Field: p.field, Described: dv, Computed: cv})
		}
	}
	return out
}
