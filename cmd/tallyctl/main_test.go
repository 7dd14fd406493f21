package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/services"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestPeriodCmd(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"monthly from the 31st", []string{"period", "--start", "2025-01-31", "--type", "monthly"}, "monthly 2025-01-31 .. 2025-01-31 (1 days)\n"},
		{"next after the 31st", []string{"period", "--start", "2025-01-31", "--next"}, "monthly 2025-02-01 .. 2025-02-28 (28 days)\n"},
		{"leap february", []string{"period", "--start", "2024-02-01"}, "monthly 2024-02-01 .. 2024-02-29 (29 days)\n"},
		{"previous quarter", []string{"period", "--start", "2025-05-10", "--type", "quarterly", "--previous"}, "quarterly 2025-01-01 .. 2025-03-31 (90 days)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runCLI(t, tt.args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}

	t.Run("rejects bad input", func(t *testing.T) {
		_, err := runCLI(t, "period", "--start", "31/01/2025")
		assert.Error(t, err)

		_, err = runCLI(t, "period", "--start", "2025-01-31", "--type", "hourly")
		assert.Error(t, err)

		_, err = runCLI(t, "period", "--start", "2025-01-31", "--next", "--previous")
		assert.Error(t, err)

		_, err = runCLI(t, "period")
		assert.Error(t, err)
	})
}

func TestPrintReport(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &services.ReconcileReport{
		AccountsChecked: 2,
		BudgetsChecked:  1,
		Violations: []services.Violation{
			{Invariant: "budget_category_spent_matches_transactions", ResourceID: "bc-1", Detail: "stored 10 derived 12", Fixed: true},
		},
	})

	assert.Contains(t, out.String(), "accounts checked: 2")
	assert.Contains(t, out.String(), "violations:       1")
	assert.Contains(t, out.String(), "budget_category_spent_matches_transactions")
	assert.Contains(t, out.String(), "bc-1")
}
