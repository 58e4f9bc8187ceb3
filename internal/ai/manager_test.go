package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/claimsight/claimsight/internal/model"
)

func TestParseInvoiceAnalysis_PlainJSON(t *testing.T) {
	output := `{"status":"fully_reimbursed","reason":"within policy","total_amount":1200,"reimbursement_amount":1200,"currency":"INR","categories":["Travel"]}`
	analysis, err := parseInvoiceAnalysis(output)
	require.NoError(t, err)
	require.Equal(t, model.StatusFullyReimbursed, analysis.Status)
	require.Equal(t, 1200.0, analysis.TotalAmount)
}

func TestParseInvoiceAnalysis_CodeFence(t *testing.T) {
	output := "```json\n{\"status\":\"declined\",\"reason\":\"alcohol is not reimbursable\"}\n```"
	analysis, err := parseInvoiceAnalysis(output)
	require.NoError(t, err)
	require.Equal(t, model.StatusDeclined, analysis.Status)
	require.Equal(t, "alcohol is not reimbursable", analysis.Reason)
}

func TestParseInvoiceAnalysis_ChatterAroundJSON(t *testing.T) {
	output := `Sure! Here is the analysis you asked for:
{"status":"partially_reimbursed","reason":"meal cap exceeded","total_amount":900,"reimbursement_amount":500}
Let me know if you need anything else.`
	analysis, err := parseInvoiceAnalysis(output)
	require.NoError(t, err)
	require.Equal(t, model.StatusPartiallyReimbursed, analysis.Status)
	require.Equal(t, 500.0, analysis.ReimbursementAmount)
}

func TestParseInvoiceAnalysis_MissingRequiredFields(t *testing.T) {
	_, err := parseInvoiceAnalysis(`{"reason":"no status here"}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "status")

	_, err = parseInvoiceAnalysis(`{"status":"declined"}`)
	require.Error(t, err)
	require.Contains(t, err.Error(), "reason")
}

func TestParseInvoiceAnalysis_NoJSON(t *testing.T) {
	_, err := parseInvoiceAnalysis("I cannot analyze this invoice.")
	require.Error(t, err)
}

func TestParseSuggestions_JSONArray(t *testing.T) {
	output := `["Show me all declined invoices", "What is the total for Priya?", "tiny"]`
	suggestions := parseSuggestions(output)
	require.Len(t, suggestions, 2)
	require.Equal(t, "Show me all declined invoices", suggestions[0])
}

func TestParseSuggestions_FencedArray(t *testing.T) {
	output := "```json\n[\"Show declined invoices\",\"List travel expenses\"]\n```"
	suggestions := parseSuggestions(output)
	require.Equal(t, []string{"Show declined invoices", "List travel expenses"}, suggestions)
}

func TestParseSuggestions_SalvagesBulletedLines(t *testing.T) {
	output := `Here are some ideas:
- Show me all declined invoices
- List invoices over 5000
not a suggestion line
• What categories appear most often?`
	suggestions := parseSuggestions(output)
	require.Equal(t, []string{
		"Show me all declined invoices",
		"List invoices over 5000",
		"What categories appear most often?",
	}, suggestions)
}

func TestParseSuggestions_CapsAtFive(t *testing.T) {
	output := `["suggestion one","suggestion two","suggestion three","suggestion four","suggestion five","suggestion six"]`
	suggestions := parseSuggestions(output)
	require.Len(t, suggestions, 5)
}

type stubGenerator struct {
	output string
	err    error
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return s.output, s.err
}

func (s *stubGenerator) GenerateStream(ctx context.Context, prompt string, fn func(chunk string) error) error {
	if s.err != nil {
		return s.err
	}
	return fn(s.output)
}

func TestAnalyzeInvoice_UnparseableOutputDegradesToDeclined(t *testing.T) {
	manager := NewManager(&stubGenerator{output: "no json here, sorry"}, nil, ManagerConfig{})
	analysis, err := manager.AnalyzeInvoice(context.Background(), "Priya", "policy text", "invoice text")
	require.NoError(t, err)
	require.Equal(t, model.StatusDeclined, analysis.Status)
	require.Contains(t, analysis.Reason, "Error parsing analysis")
	require.Equal(t, []string{"Response parsing failed"}, analysis.PolicyViolations)
	require.Equal(t, "INR", analysis.Currency)
	require.Equal(t, []string{"uncategorized"}, analysis.Categories)
}

func TestAnalyzeInvoice_NormalizesModelOutput(t *testing.T) {
	output := `{"status":"fully_reimbursed","reason":"ok","total_amount":100,"reimbursement_amount":250,"currency":"usd","categories":["Travel",""]}`
	manager := NewManager(&stubGenerator{output: output}, nil, ManagerConfig{})
	analysis, err := manager.AnalyzeInvoice(context.Background(), "Priya", "policy", "invoice")
	require.NoError(t, err)
	require.Equal(t, 100.0, analysis.ReimbursementAmount)
	require.Equal(t, "USD", analysis.Currency)
	require.Equal(t, []string{"travel"}, analysis.Categories)
}

func TestClip_LimitsInputLength(t *testing.T) {
	manager := NewManager(nil, nil, ManagerConfig{MaxInputChars: 10})
	clipped := manager.clip(strings.Repeat("a", 100))
	require.Len(t, clipped, 10)
	require.Equal(t, "short", manager.clip("short"))
}

func TestFallbackSuggestions_PerQueryType(t *testing.T) {
	require.NotEmpty(t, FallbackSuggestions(model.QueryTypeEmployeeSpecific))
	require.NotEmpty(t, FallbackSuggestions(model.QueryTypeStatusFilter))
	require.NotEmpty(t, FallbackSuggestions(model.QueryTypeAmountFilter))
	require.NotEmpty(t, FallbackSuggestions(model.QueryTypeGeneral))
	require.NotEqual(t, FallbackSuggestions(model.QueryTypeGeneral), FallbackSuggestions(model.QueryTypeStatusFilter))
}

func TestBuildChatPrompt_IncludesHistoryAndDocs(t *testing.T) {
	history := []model.ChatMessage{
		{Role: "user", Content: "show declined invoices"},
		{Role: "assistant", Content: "here they are"},
	}
	docs := []model.ScoredDocument{
		{
			Document: model.Document{
				DocType:      model.DocTypeInvoiceAnalysis,
				EmployeeName: "Priya Sharma",
				Filename:     "taxi.pdf",
				Status:       model.StatusDeclined,
				Currency:     "INR",
			},
		},
		{
			Document: model.Document{
				DocType: model.DocTypePolicy,
				Content: "Meals are capped at 500 INR per day.",
			},
		},
	}
	prompt := buildChatPrompt("why was taxi.pdf declined?", docs, history)
	require.Contains(t, prompt, "CONVERSATION HISTORY:")
	require.Contains(t, prompt, "USER: show declined invoices")
	require.Contains(t, prompt, "RELEVANT INVOICE DATA:")
	require.Contains(t, prompt, "Priya Sharma")
	require.Contains(t, prompt, "RELEVANT POLICY INFORMATION:")
	require.Contains(t, prompt, "CURRENT QUERY: why was taxi.pdf declined?")
}

func TestBuildChatPrompt_NoDocuments(t *testing.T) {
	prompt := buildChatPrompt("anything?", nil, nil)
	require.Contains(t, prompt, "No relevant documents found")
}
