package leave

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateSubmission(t *testing.T) {
	today := MustParseDate("2024-06-10")
	p := DefaultPolicy()

	tests := []struct {
		name      string
		start     string
		end       string
		remaining int
		code      string
		sentinel  error
	}{
		{"valid", "2024-06-10", "2024-06-14", 24, "", nil},
		{"missing start", "", "2024-06-14", 24, "missing_dates", ErrMissingDates},
		{"missing end", "2024-06-10", "", 24, "missing_dates", ErrMissingDates},
		{"start in past", "2024-06-09", "2024-06-14", 24, "start_in_past", ErrStartInPast},
		{"end before start", "2024-06-14", "2024-06-12", 24, "end_before_start", ErrEndBeforeStart},
		{"exactly the cap", "2024-06-10", "2024-06-23", 24, "", nil},
		{"over the cap", "2024-06-10", "2024-06-24", 24, "exceeds_cap", ErrExceedsRequestCap},
		{"exactly the balance", "2024-06-10", "2024-06-14", 5, "", nil},
		{"over the balance", "2024-06-10", "2024-06-14", 4, "insufficient_balance", ErrInsufficientBalance},
		{"negative balance", "2024-06-10", "2024-06-10", -1, "insufficient_balance", ErrInsufficientBalance},
		// A range that is both in the past and inverted reports the earlier check.
		{"past beats inverted", "2024-06-05", "2024-06-01", 24, "start_in_past", ErrStartInPast},
		// Over the cap and over the balance reports the cap.
		{"cap beats balance", "2024-06-10", "2024-06-30", 3, "exceeds_cap", ErrExceedsRequestCap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, err := ParseDate(tt.start)
			require.NoError(t, err)
			end, err := ParseDate(tt.end)
			require.NoError(t, err)

			err = p.ValidateSubmission(start, end, today, tt.remaining)
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.code, ve.Code)
			assert.True(t, errors.Is(err, tt.sentinel))
			assert.True(t, IsClientError(err))
		})
	}
}

func TestValidateSubmission_CustomCap(t *testing.T) {
	today := MustParseDate("2024-06-10")
	p := Policy{MaxDaysPerRequest: 3}

	err := p.ValidateSubmission(MustParseDate("2024-06-10"), MustParseDate("2024-06-13"), today, 24)
	assert.ErrorIs(t, err, ErrExceedsRequestCap)
}

func TestValidateRange(t *testing.T) {
	assert.NoError(t, ValidateRange(MustParseDate("2020-01-01"), MustParseDate("2020-01-01")))
	assert.ErrorIs(t, ValidateRange(Date{}, MustParseDate("2020-01-01")), ErrMissingDates)
	assert.ErrorIs(t, ValidateRange(MustParseDate("2020-01-02"), MustParseDate("2020-01-01")), ErrEndBeforeStart)
}

func TestPolicy_Fallbacks(t *testing.T) {
	var p Policy
	assert.Equal(t, AnnualLeaveEntitlement, p.Entitlement())
	assert.Equal(t, MaxLeaveDaysPerRequest, p.maxDays())
	assert.Equal(t, MaxConcurrentLeaves, p.maxConcurrent())

	p = Policy{AnnualEntitlement: 30}
	assert.Equal(t, 30, p.Entitlement())
}
