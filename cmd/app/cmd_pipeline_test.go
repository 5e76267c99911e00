package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRange(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)

	from, to, err := historyRange("", "", 7, now)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-04", from.Format("2006-01-02"))
	assert.Equal(t, "2024-03-10", to.Format("2006-01-02"))

	from, to, err = historyRange("2024-01-01", "2024-01-03", 0, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), to)

	_, _, err = historyRange("2024-01-05", "2024-01-03", 0, now)
	assert.Error(t, err)

	_, _, err = historyRange("", "", 0, now)
	assert.Error(t, err)

	_, _, err = historyRange("01/05/2024", "", 0, now)
	assert.Error(t, err)
}

func TestThresholdOverride(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    *float64
		wantErr bool
	}{
		{name: "unset", args: nil},
		{name: "explicit zero", args: []string{"--threshold", "0"}, want: ptr(0)},
		{name: "value", args: []string{"--threshold", "0.75"}, want: ptr(0.75)},
		{name: "out of range", args: []string{"--threshold", "1.5"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "infer"}
			cmd.Flags().Float64("threshold", 0, "")
			require.NoError(t, cmd.Flags().Parse(tt.args))

			got, err := thresholdOverride(cmd)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func ptr(v float64) *float64 { return &v }
