package worktime_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/overwork-engine/generic"
	"github.com/warp/overwork-engine/worktime"
)

func TestFormatHM(t *testing.T) {
	cases := map[string]string{
		"0":       "0:00",
		"8":       "8:00",
		"1.5":     "1:30",
		"0.25":    "0:15",
		"2.9999":  "3:00",
		"0.0083":  "0:00",
		"0.00834": "0:01",
		"-1":      "0:00",
		"12.75":   "12:45",
	}
	for in, want := range cases {
		assert.Equal(t, want, worktime.FormatHM(hours(in)), in)
	}
}

func TestParseHM(t *testing.T) {
	got, err := worktime.ParseHM("1:20")
	require.NoError(t, err)
	assertAmount(t, "1.3333", got)

	got, err = worktime.ParseHM(" 8:00 ")
	require.NoError(t, err)
	assertAmount(t, "8", got)

	for _, bad := range []string{"1", "1:60", "1:5", "-1:00", "a:00", "1:xx"} {
		_, err := worktime.ParseHM(bad)
		assert.ErrorIs(t, err, generic.ErrValidation, bad)
	}
}

func TestFormatHM_RoundTripsAtMinutePrecision(t *testing.T) {
	for m := 0; m < 600; m += 7 {
		text := worktime.FormatHM(generic.Hours(float64(m) / 60))
		parsed, err := worktime.ParseHM(text)
		require.NoError(t, err)
		assert.Equal(t, text, worktime.FormatHM(parsed))
	}
}

func TestDescription_FormatThenParse(t *testing.T) {
	// GIVEN: A classified weekend session with lunch tracked
	in := shift(saturday15, 11)
	in.IncludeLunchTime = true
	in.Notes = "release night"
	sess, err := worktime.BuildSession(nil, worktime.DefaultSettings(), in, time.UTC, worktime.NoExclusion, nil)
	require.NoError(t, err)

	// WHEN: Its description is written and read back
	text := worktime.FormatDescription(sess)
	desc := worktime.ParseDescription(text)

	// THEN: Every line survives
	assert.Contains(t, text, "Regular Hours: 8:00")
	assert.Contains(t, text, "Unpaid Extra (Isenção): 0:00")
	assert.Contains(t, text, "Paid Overtime: 2:00")

	b, ok := desc.Breakdown()
	require.True(t, ok)
	assert.Empty(t, worktime.CompareBreakdown(b, sess.Breakdown()))
	require.NotNil(t, desc.Weekend)
	assert.True(t, *desc.Weekend)
	require.NotNil(t, desc.BankHoliday)
	assert.False(t, *desc.BankHoliday)
	require.NotNil(t, desc.Lunch)
	assertAmount(t, "1", *desc.Lunch)
	assert.Equal(t, []string{"release night"}, desc.Notes)
}

func TestParseDescription_LenientLabels(t *testing.T) {
	text := "regular hours: 7:30\nUNPAID EXTRA: 0:00\npaid overtime (approved): 0:45\nstandup ran long\nTicket: OPS-12"

	desc := worktime.ParseDescription(text)

	b, ok := desc.Breakdown()
	require.True(t, ok)
	assertBreakdown(t, "7.5", "0", "0.75", b)
	assert.Nil(t, desc.Weekend)
	assert.Equal(t, []string{"standup ran long", "Ticket: OPS-12"}, desc.Notes)
}

func TestParseDescription_PartialBreakdown(t *testing.T) {
	desc := worktime.ParseDescription("Regular Hours: 8:00")

	_, ok := desc.Breakdown()
	assert.False(t, ok)
}

func TestParseDescription_UnparsedValuesAreNotes(t *testing.T) {
	// GIVEN: Free text that starts with known labels
	sess := worktime.Session{
		RegularHours:     hours("8"),
		UnpaidExtraHours: hours("0"),
		PaidExtraHours:   hours("0"),
		Notes:            "Lunch: pizza with team",
	}

	// WHEN: The written description is read back
	desc := worktime.ParseDescription(worktime.FormatDescription(sess))

	// THEN: The note is kept and nothing is read as a lunch duration
	assert.Nil(t, desc.Lunch)
	assert.Equal(t, []string{"Lunch: pizza with team"}, desc.Notes)
	_, ok := desc.Breakdown()
	assert.True(t, ok)

	desc = worktime.ParseDescription("Paid Overtime: soon\nWeekend: maybe")
	assert.Nil(t, desc.PaidExtra)
	assert.Nil(t, desc.Weekend)
	assert.Equal(t, []string{"Paid Overtime: soon", "Weekend: maybe"}, desc.Notes)
}

func TestCompareBreakdown_MinutePrecision(t *testing.T) {
	computed := worktime.Breakdown{Regular: hours("8"), UnpaidExtra: hours("1.3333"), PaidExtra: hours("0")}

	same := worktime.Breakdown{Regular: hours("8"), UnpaidExtra: hours("1.3334"), PaidExtra: hours("0")}
	assert.Empty(t, worktime.CompareBreakdown(same, computed))

	off := worktime.Breakdown{Regular: hours("8"), UnpaidExtra: hours("1.5"), PaidExtra: hours("0")}
	mismatches := worktime.CompareBreakdown(off, computed)
	require.Len(t, mismatches, 1)
	assert.Equal(t, worktime.FieldMismatch{Field: "unpaid_extra_hours", Described: "1:30", Computed: "1:20"}, mismatches[0])
}
