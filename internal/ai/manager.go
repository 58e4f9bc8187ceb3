package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/claimsight/claimsight/internal/model"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

// Manager owns the prompt templates and response parsing for every LLM
// interaction: invoice analysis, chat answers, and query suggestions.
type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{generator: generator, embedder: embedder, cfg: cfg}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return m.embedder.Embed(ctx, m.clip(text), taskType)
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

// Ping issues a minimal generation to verify the provider chain is
// reachable.
func (m *Manager) Ping(ctx context.Context) error {
	if m.generator == nil {
		return fmt.Errorf("generator not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	_, err := m.generator.Generate(ctx, `Respond with the single word "ok".`)
	return err
}

const invoiceAnalysisSystemPrompt = `You are an expert invoice analyst for HR reimbursement processing. Your task is to analyze employee invoices against company reimbursement policies and provide a structured JSON response.

ANALYSIS REQUIREMENTS:
1. Carefully read the HR reimbursement policy provided
2. Analyze the invoice content for expense details, amounts, dates, and categories
3. Compare invoice items against policy guidelines
4. Determine reimbursement status: "fully_reimbursed", "partially_reimbursed", or "declined"
5. Provide detailed reasoning for your decision
6. Calculate exact reimbursement amounts when applicable
7. ALWAYS extract the total amount and currency from the invoice
8. ALWAYS identify expense categories based on the invoice content

STRUCTURED OUTPUT REQUIREMENT:
You MUST respond with a valid JSON object that matches this exact schema:
{
    "status": "fully_reimbursed|partially_reimbursed|declined",
    "reason": "Detailed explanation of the decision (10-1000 characters)",
    "total_amount": <total invoice amount as float - REQUIRED>,
    "reimbursement_amount": <amount to be reimbursed as float>,
    "currency": "<3-letter currency code (INR, USD, EUR, etc.) - REQUIRED>",
    "categories": ["<expense category 1>", "<expense category 2>"] - REQUIRED array with at least 1 item,
    "policy_violations": ["<violation 1>", "<violation 2>"] or null if none
}

CRITICAL EXTRACTION RULES:
- TOTAL_AMOUNT: Look for amounts like ₹233, $100, €50, Rs.150, etc. Extract the numeric value. Must be >= 0.
- REIMBURSEMENT_AMOUNT: Cannot exceed total_amount. Must be >= 0.
- CURRENCY: Based on currency symbol: ₹ or Rs. = "INR", $ = "USD", € = "EUR", £ = "GBP". UPPERCASE only.
- CATEGORIES: Common categories include "travel", "meals", "office_supplies", "accommodation", "cab", "fuel", "communication", etc. At least 1 required.
- STATUS: Must be exactly one of: "fully_reimbursed", "partially_reimbursed", "declined"
- If no amount is found, set total_amount to 0.0
- If no currency symbol found, default to "INR"
- Categories should be descriptive and based on expense type (e.g., ["travel", "cab"] for cab expenses)

ANALYSIS GUIDELINES:
- Be thorough and accurate in your analysis
- Consider all policy rules and restrictions
- Identify specific policy violations if any
- Calculate partial reimbursements when some items are approved and others are not
- Consider spending limits, approval requirements, and eligible expense types
- Provide clear, professional reasoning that an HR representative could understand

RESPONSE FORMAT: Return ONLY the JSON object, no additional text or formatting.`

// AnalyzeInvoice classifies one invoice against the policy. A failed
// model call returns an error; an unparseable answer degrades to a
// declined verdict carrying the parse failure, so one bad response never
// sinks a batch.
func (m *Manager) AnalyzeInvoice(ctx context.Context, employeeName, policyText, invoiceText string) (*model.InvoiceAnalysis, error) {
	if m.generator == nil {
		return nil, fmt.Errorf("generator not configured")
	}
	prompt := fmt.Sprintf(`%s

EMPLOYEE: %s
DATE: %s

HR REIMBURSEMENT POLICY:
%s

INVOICE TO ANALYZE:
%s

Please analyze this invoice against the HR policy and provide your assessment in the required JSON format.`,
		invoiceAnalysisSystemPrompt,
		employeeName,
		time.Now().Format("2006-01-02"),
		m.clip(policyText),
		m.clip(invoiceText),
	)
	output, err := m.generateText(ctx, prompt)
	if err != nil {
		return nil, err
	}
	analysis, err := parseInvoiceAnalysis(output)
	if err != nil {
		excerpt := output
		if len(excerpt) > 200 {
			excerpt = excerpt[:200] + "..."
		}
		analysis = &model.InvoiceAnalysis{
			Status:           model.StatusDeclined,
			Reason:           fmt.Sprintf("Error parsing analysis: %v. Raw response: %s", err, excerpt),
			Currency:         "INR",
			PolicyViolations: []string{"Response parsing failed"},
		}
	}
	analysis.Normalize()
	return analysis, nil
}

const chatSystemPrompt = `You are an intelligent assistant for an Invoice Reimbursement System. Your role is to help users query and understand invoice reimbursement data using the provided context documents and conversation history.

CAPABILITIES:
- Answer questions about invoice reimbursement status and details
- Search for specific invoices by employee name, date, amount, or status
- Explain reimbursement decisions and policy violations using BOTH invoice data and policy context
- Provide summaries and statistics about processed invoices
- Maintain context across conversation turns

RESPONSE GUIDELINES:
1. Always base your answers on the provided context documents (both invoice and policy)
2. When explaining WHY an invoice was declined/approved, reference relevant policy information
3. Use conversation history to provide more relevant and contextual responses
4. Use markdown formatting for better readability (tables, bold, lists)
5. Be accurate and cite specific information when available
6. If you don't have enough information, clearly state this
7. Include relevant details like amounts, dates, and employee names

RESPONSE FORMAT:
- Use **bold** for important information like amounts and statuses
- Use tables for structured invoice data with columns: Employee Name, Invoice Name, Status, Amount, Date
- Use status emojis: ✅ (fully_reimbursed), ⚠️ (partially_reimbursed), ❌ (declined)
- End with contextual suggestions based on current conversation

Remember: Only provide information that can be found in the context documents.`

func (m *Manager) ChatAnswer(ctx context.Context, query string, docs []model.ScoredDocument, history []model.ChatMessage) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured")
	}
	return m.generateText(ctx, buildChatPrompt(query, docs, history))
}

func (m *Manager) ChatAnswerStream(ctx context.Context, query string, docs []model.ScoredDocument, history []model.ChatMessage, fn func(chunk string) error) error {
	if m.generator == nil {
		return fmt.Errorf("generator not configured")
	}
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	return m.generator.GenerateStream(ctx, buildChatPrompt(query, docs, history), fn)
}

func buildChatPrompt(query string, docs []model.ScoredDocument, history []model.ChatMessage) string {
	var b strings.Builder
	b.WriteString(chatSystemPrompt)
	b.WriteString("\n\n")

	if len(history) > 0 {
		b.WriteString("CONVERSATION HISTORY:\n")
		b.WriteString("(Use this to understand context and provide relevant follow-up responses)\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(msg.Role), msg.Content)
		}
		b.WriteString("\n")
	}

	var invoiceDocs, policyDocs []model.ScoredDocument
	for _, doc := range docs {
		switch doc.DocType {
		case model.DocTypePolicy:
			policyDocs = append(policyDocs, doc)
		default:
			invoiceDocs = append(invoiceDocs, doc)
		}
	}

	if len(invoiceDocs) == 0 && len(policyDocs) == 0 {
		b.WriteString("No relevant documents found for this query.\n")
		b.WriteString("Please inform the user and suggest alternative queries.\n\n")
	}
	if len(invoiceDocs) > 0 {
		b.WriteString("RELEVANT INVOICE DATA:\n")
		fmt.Fprintf(&b, "(Found %d matching invoice documents)\n", len(invoiceDocs))
		if len(invoiceDocs) > 6 {
			invoiceDocs = invoiceDocs[:6]
		}
		for i, doc := range invoiceDocs {
			fmt.Fprintf(&b, "Invoice %d:\n", i+1)
			fmt.Fprintf(&b, "- Employee: %s\n", doc.EmployeeName)
			fmt.Fprintf(&b, "- Invoice: %s\n", doc.Filename)
			fmt.Fprintf(&b, "- Status: %s\n", doc.Status)
			fmt.Fprintf(&b, "- Total Amount: %.2f %s\n", doc.TotalAmount, doc.Currency)
			fmt.Fprintf(&b, "- Reimbursement Amount: %.2f %s\n", doc.ReimbursementAmount, doc.Currency)
			fmt.Fprintf(&b, "- Date: %s\n", time.Unix(doc.Ctime, 0).UTC().Format("2006-01-02"))
			if doc.Reason != "" {
				fmt.Fprintf(&b, "- Reason: %s\n", doc.Reason)
			}
			if len(doc.Categories) > 0 {
				fmt.Fprintf(&b, "- Categories: %s\n", strings.Join(doc.Categories, ", "))
			}
			if len(doc.PolicyViolations) > 0 {
				fmt.Fprintf(&b, "- Policy Violations: %s\n", strings.Join(doc.PolicyViolations, ", "))
			}
			b.WriteString("\n")
		}
	}
	if len(policyDocs) > 0 {
		b.WriteString("RELEVANT POLICY INFORMATION:\n")
		fmt.Fprintf(&b, "(Found %d matching policy sections)\n", len(policyDocs))
		if len(policyDocs) > 3 {
			policyDocs = policyDocs[:3]
		}
		for i, doc := range policyDocs {
			fmt.Fprintf(&b, "Policy Section %d:\n", i+1)
			if doc.Filename != "" {
				fmt.Fprintf(&b, "- Policy: %s\n", doc.Filename)
			}
			content := doc.Content
			if len(content) > 800 {
				content = content[:800] + "..."
			}
			fmt.Fprintf(&b, "- Content: %s\n\n", content)
		}
	}

	fmt.Fprintf(&b, "CURRENT QUERY: %s\n\n", query)
	b.WriteString("RESPONSE INSTRUCTIONS:\n")
	b.WriteString("- Use conversation history to provide contextual responses\n")
	b.WriteString("- Format invoice data in clear tables when showing multiple records\n")
	b.WriteString("- Be specific with amounts, dates, and employee names\n")
	return b.String()
}

const suggestionSystemPrompt = `You are an assistant that generates helpful query suggestions for an Invoice Reimbursement System. Based on the user's current query and the available data, suggest 3-5 related queries that the user might find useful.

GUIDELINES FOR SUGGESTIONS:
1. Make suggestions specific and actionable
2. Vary the type of queries (status filters, employee-specific, date ranges, amounts, categories)
3. Use the context to make relevant suggestions
4. Keep suggestions concise and clear

RESPONSE FORMAT:
Return only a JSON array of suggestion strings, nothing else:
["suggestion 1", "suggestion 2", "suggestion 3", "suggestion 4", "suggestion 5"]`

func (m *Manager) SuggestQueries(ctx context.Context, query, queryType string, docs []model.ScoredDocument) ([]string, error) {
	if m.generator == nil {
		return nil, fmt.Errorf("generator not configured")
	}
	var b strings.Builder
	b.WriteString(suggestionSystemPrompt)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "ORIGINAL QUERY: %s\n", query)
	fmt.Fprintf(&b, "QUERY TYPE: %s\n\n", queryType)

	if len(docs) > 0 {
		employees := map[string]bool{}
		statuses := map[string]bool{}
		categories := map[string]bool{}
		limit := len(docs)
		if limit > 5 {
			limit = 5
		}
		for _, doc := range docs[:limit] {
			if doc.EmployeeName != "" {
				employees[doc.EmployeeName] = true
			}
			if doc.Status != "" {
				statuses[doc.Status] = true
			}
			for _, cat := range doc.Categories {
				categories[cat] = true
			}
		}
		b.WriteString("AVAILABLE DATA CONTEXT:\n")
		if len(employees) > 0 {
			fmt.Fprintf(&b, "- Employees: %s\n", strings.Join(mapKeys(employees, 3), ", "))
		}
		if len(statuses) > 0 {
			fmt.Fprintf(&b, "- Statuses: %s\n", strings.Join(mapKeys(statuses, 3), ", "))
		}
		if len(categories) > 0 {
			fmt.Fprintf(&b, "- Categories: %s\n", strings.Join(mapKeys(categories, 5), ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("Generate 4-5 diverse and helpful query suggestions based on this context.")

	output, err := m.generateText(ctx, b.String())
	if err != nil {
		return nil, err
	}
	suggestions := parseSuggestions(output)
	if len(suggestions) == 0 {
		return nil, fmt.Errorf("no suggestions found")
	}
	return suggestions, nil
}

// FallbackSuggestions returns canned suggestions for when generation
// fails or times out.
func FallbackSuggestions(queryType string) []string {
	switch queryType {
	case model.QueryTypeEmployeeSpecific:
		return []string{
			"Show me all invoices for this employee",
			"What was the total reimbursement amount?",
			"Show me declined invoices for this employee",
			"List the expense categories for this employee",
		}
	case model.QueryTypeStatusFilter:
		return []string{
			"Show me invoices with different status",
			"What was the total amount for this status?",
			"Which employees have this status most?",
			"Show me the reasons for this status",
		}
	case model.QueryTypeAmountFilter:
		return []string{
			"Show me invoices in different amount ranges",
			"What's the average invoice amount?",
			"Show me high-value invoices",
			"List low-amount invoices",
		}
	default:
		return []string{
			"Show me all declined invoices",
			"What are the most common expense categories?",
			"List invoices over ₹10,000",
			"Show me this month's approved invoices",
		}
	}
}

func (m *Manager) generateText(ctx context.Context, prompt string) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := m.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) clip(text string) string {
	if m.cfg.MaxInputChars > 0 && len(text) > m.cfg.MaxInputChars {
		return text[:m.cfg.MaxInputChars]
	}
	return text
}

// parseInvoiceAnalysis pulls the first {...} block out of the model
// output, tolerating markdown code fences and chatter around the JSON.
func parseInvoiceAnalysis(output string) (*model.InvoiceAnalysis, error) {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no json object found in response")
	}
	var analysis model.InvoiceAnalysis
	if err := json.Unmarshal([]byte(clean[start:end+1]), &analysis); err != nil {
		return nil, fmt.Errorf("parse analysis: %w", err)
	}
	if analysis.Status == "" {
		return nil, fmt.Errorf("missing required field: status")
	}
	if analysis.Reason == "" {
		return nil, fmt.Errorf("missing required field: reason")
	}
	return &analysis, nil
}

func parseSuggestions(output string) []string {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	start := strings.Index(clean, "[")
	end := strings.LastIndex(clean, "]")
	if start >= 0 && end > start {
		var parsed []string
		if err := json.Unmarshal([]byte(clean[start:end+1]), &parsed); err == nil {
			suggestions := make([]string, 0, len(parsed))
			for _, s := range parsed {
				s = strings.TrimSpace(s)
				if len(s) > 5 {
					suggestions = append(suggestions, s)
				}
				if len(suggestions) >= 5 {
					break
				}
			}
			return suggestions
		}
	}
	// No JSON array; salvage quoted or bulleted lines.
	var suggestions []string
	for _, line := range strings.Split(clean, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, `"`) && !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "•") {
			continue
		}
		line = strings.Trim(line, `"-• `)
		if len(line) > 5 {
			suggestions = append(suggestions, line)
		}
		if len(suggestions) >= 5 {
			break
		}
	}
	return suggestions
}

func mapKeys(set map[string]bool, limit int) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
		if len(keys) >= limit {
			break
		}
	}
	return keys
}
