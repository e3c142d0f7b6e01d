package quota

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayElapsed(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)

	tests := []struct {
		name string
		last time.Time
		now  time.Time
		loc  *time.Location
		want bool
	}{
		{
			name: "same day same moment",
			last: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
			now:  time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: false,
		},
		{
			name: "same day later hour",
			last: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			now:  time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC),
			loc:  time.UTC,
			want: false,
		},
		{
			name: "next day just after midnight",
			last: time.Date(2025, 3, 10, 23, 59, 59, 0, time.UTC),
			now:  time.Date(2025, 3, 11, 0, 0, 1, 0, time.UTC),
			loc:  time.UTC,
			want: true,
		},
		{
			name: "several days elapsed",
			last: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
			now:  time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: true,
		},
		{
			name: "zero last date counts as elapsed",
			last: time.Time{},
			now:  time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
			loc:  time.UTC,
			want: true,
		},
		{
			// 22:00 UTC 10 марта — это уже 01:00 11 марта по Москве.
			name: "timezone shifts the date boundary",
			last: time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
			now:  time.Date(2025, 3, 10, 22, 0, 0, 0, time.UTC),
			loc:  loc,
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DayElapsed(tt.last, tt.now, tt.loc))
		})
	}
}

func TestApplyRollover(t *testing.T) {
	yesterday := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	today := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	todayDate := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		state       State
		now         time.Time
		wantState   State
		wantChanged bool
	}{
		{
			name:        "same day is identity",
			state:       State{ScanCount: 1, DaysLeft: 10, Paid: true, LastScanDate: todayDate},
			now:         today,
			wantState:   State{ScanCount: 1, DaysLeft: 10, Paid: true, LastScanDate: todayDate},
			wantChanged: false,
		},
		{
			name:        "paid user gets allowance and loses a day",
			state:       State{ScanCount: 0, DaysLeft: 30, Paid: true, LastScanDate: yesterday},
			now:         today,
			wantState:   State{ScanCount: 2, DaysLeft: 29, Paid: true, LastScanDate: todayDate},
			wantChanged: true,
		},
		{
			name:        "last subscription day expires",
			state:       State{ScanCount: 2, DaysLeft: 1, Paid: true, LastScanDate: yesterday},
			now:         today,
			wantState:   State{ScanCount: 0, DaysLeft: 0, Paid: false, LastScanDate: todayDate},
			wantChanged: true,
		},
		{
			name:        "paid with zero days expires immediately",
			state:       State{ScanCount: 1, DaysLeft: 0, Paid: true, LastScanDate: yesterday},
			now:         today,
			wantState:   State{ScanCount: 0, DaysLeft: 0, Paid: false, LastScanDate: todayDate},
			wantChanged: true,
		},
		{
			name:        "unpaid user keeps counters, date refreshes",
			state:       State{ScanCount: 0, DaysLeft: 0, Paid: false, LastScanDate: yesterday},
			now:         today,
			wantState:   State{ScanCount: 0, DaysLeft: 0, Paid: false, LastScanDate: todayDate},
			wantChanged: true,
		},
		{
			name:        "single step even after a week offline",
			state:       State{ScanCount: 0, DaysLeft: 30, Paid: true, LastScanDate: today.AddDate(0, 0, -7)},
			now:         today,
			wantState:   State{ScanCount: 2, DaysLeft: 29, Paid: true, LastScanDate: todayDate},
			wantChanged: true,
		},
		{
			name:        "first ever evaluation applies rollover",
			state:       State{ScanCount: 2, DaysLeft: 30, Paid: true},
			now:         today,
			wantState:   State{ScanCount: 2, DaysLeft: 29, Paid: true, LastScanDate: todayDate},
			wantChanged: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := ApplyRollover(tt.state, tt.now, time.UTC, 2)
			assert.Equal(t, tt.wantChanged, changed)
			assert.Equal(t, tt.wantState, got)
		})
	}
}

func TestApplyRollover_IdempotentWithinDay(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	st := State{ScanCount: 0, DaysLeft: 5, Paid: true, LastScanDate: now.AddDate(0, 0, -1)}

	first, changed := ApplyRollover(st, now, time.UTC, 2)
	require.True(t, changed)

	// Повторная оценка в те же сутки ничего не меняет.
	second, changed := ApplyRollover(first, now, time.UTC, 2)
	assert.False(t, changed)
	assert.Equal(t, first, second)

	third, changed := ApplyRollover(second, now.Add(10*time.Hour), time.UTC, 2)
	assert.False(t, changed)
	assert.Equal(t, first, third)
}

func TestApplyRollover_ConfigurableAllowance(t *testing.T) {
	now := time.Date(2025, 3, 10, 8, 30, 0, 0, time.UTC)
	st := State{ScanCount: 0, DaysLeft: 10, Paid: true, LastScanDate: now.AddDate(0, 0, -1)}

	got, changed := ApplyRollover(st, now, time.UTC, 5)
	require.True(t, changed)
	assert.Equal(t, 5, got.ScanCount)
	assert.Equal(t, 9, got.DaysLeft)
}
