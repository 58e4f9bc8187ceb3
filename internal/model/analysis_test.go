package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_InvalidStatusBecomesDeclined(t *testing.T) {
	analysis := InvoiceAnalysis{Status: "maybe_later", Reason: "r"}
	analysis.Normalize()
	require.Equal(t, StatusDeclined, analysis.Status)
}

func TestNormalize_CurrencyRules(t *testing.T) {
	analysis := InvoiceAnalysis{Status: StatusDeclined, Currency: " usd "}
	analysis.Normalize()
	require.Equal(t, "USD", analysis.Currency)

	analysis = InvoiceAnalysis{Status: StatusDeclined, Currency: "rupees"}
	analysis.Normalize()
	require.Equal(t, "INR", analysis.Currency)

	analysis = InvoiceAnalysis{Status: StatusDeclined}
	analysis.Normalize()
	require.Equal(t, "INR", analysis.Currency)
}

func TestNormalize_ClampsAmounts(t *testing.T) {
	analysis := InvoiceAnalysis{
		Status:              StatusFullyReimbursed,
		TotalAmount:         100,
		ReimbursementAmount: 150,
	}
	analysis.Normalize()
	require.Equal(t, 100.0, analysis.ReimbursementAmount)

	analysis = InvoiceAnalysis{
		Status:              StatusDeclined,
		TotalAmount:         -5,
		ReimbursementAmount: -10,
	}
	analysis.Normalize()
	require.Equal(t, 0.0, analysis.TotalAmount)
	require.Equal(t, 0.0, analysis.ReimbursementAmount)
}

func TestNormalize_Categories(t *testing.T) {
	analysis := InvoiceAnalysis{
		Status:     StatusFullyReimbursed,
		Categories: []string{" Travel ", "", "MEALS"},
	}
	analysis.Normalize()
	require.Equal(t, []string{"travel", "meals"}, analysis.Categories)

	analysis = InvoiceAnalysis{Status: StatusFullyReimbursed}
	analysis.Normalize()
	require.Equal(t, []string{"uncategorized"}, analysis.Categories)
}

func TestIsValidStatus(t *testing.T) {
	require.True(t, IsValidStatus(StatusFullyReimbursed))
	require.True(t, IsValidStatus(StatusPartiallyReimbursed))
	require.True(t, IsValidStatus(StatusDeclined))
	require.False(t, IsValidStatus("approved"))
	require.False(t, IsValidStatus(""))
}
