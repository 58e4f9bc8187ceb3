package model

import (
	"strings"
	"time"
)

const (
	StatusFullyReimbursed     = "fully_reimbursed"
	StatusPartiallyReimbursed = "partially_reimbursed"
	StatusDeclined            = "declined"
)

func IsValidStatus(s string) bool {
	switch s {
	case StatusFullyReimbursed, StatusPartiallyReimbursed, StatusDeclined:
		return true
	}
	return false
}

// InvoiceAnalysis is the structured verdict the model must return for a
// single invoice.
type InvoiceAnalysis struct {
	Status              string   `json:"status"`
	Reason              string   `json:"reason"`
	TotalAmount         float64  `json:"total_amount"`
	ReimbursementAmount float64  `json:"reimbursement_amount"`
	Currency            string   `json:"currency"`
	Categories          []string `json:"categories"`
	PolicyViolations    []string `json:"policy_violations,omitempty"`
}

// Normalize enforces the field rules the model is asked for but does not
// always honor: valid status, 3-letter uppercase currency (INR default),
// lowercased non-empty categories, amounts >= 0 and reimbursement <= total.
func (a *InvoiceAnalysis) Normalize() {
	if !IsValidStatus(a.Status) {
		a.Status = StatusDeclined
	}
	a.Currency = strings.ToUpper(strings.TrimSpace(a.Currency))
	if len(a.Currency) != 3 {
		a.Currency = "INR"
	}
	if a.TotalAmount < 0 {
		a.TotalAmount = 0
	}
	if a.ReimbursementAmount < 0 {
		a.ReimbursementAmount = 0
	}
	if a.ReimbursementAmount > a.TotalAmount {
		a.ReimbursementAmount = a.TotalAmount
	}
	cleaned := make([]string, 0, len(a.Categories))
	for _, cat := range a.Categories {
		cat = strings.ToLower(strings.TrimSpace(cat))
		if cat == "" {
			continue
		}
		cleaned = append(cleaned, cat)
	}
	if len(cleaned) == 0 {
		cleaned = []string{"uncategorized"}
	}
	a.Categories = cleaned
}

type InvoiceAnalysisResult struct {
	Filename            string   `json:"filename"`
	Status              string   `json:"status"`
	Reason              string   `json:"reason"`
	TotalAmount         float64  `json:"total_amount"`
	ReimbursementAmount float64  `json:"reimbursement_amount"`
	Currency            string   `json:"currency"`
	Categories          []string `json:"categories,omitempty"`
	PolicyViolations    []string `json:"policy_violations,omitempty"`
	FromCache           bool     `json:"from_cache,omitempty"`
}

type ProcessingError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

type InvoiceAnalysisResponse struct {
	Success           bool                    `json:"success"`
	Message           string                  `json:"message"`
	EmployeeName      string                  `json:"employee_name"`
	TotalInvoices     int                     `json:"total_invoices"`
	ProcessedInvoices int                     `json:"processed_invoices"`
	FailedInvoices    int                     `json:"failed_invoices"`
	Results           []InvoiceAnalysisResult `json:"results,omitempty"`
	ProcessingErrors  []ProcessingError       `json:"processing_errors,omitempty"`
	Timestamp         time.Time               `json:"timestamp"`
}

// Analysis streaming chunk types, in the order a client will see them.
const (
	AnalysisChunkMetadata      = "metadata"
	AnalysisChunkPolicy        = "policy_processing"
	AnalysisChunkExtraction    = "invoice_extraction"
	AnalysisChunkAnalysis      = "invoice_analysis"
	AnalysisChunkVectorStorage = "vector_storage"
	AnalysisChunkResult        = "result"
	AnalysisChunkProgress      = "progress"
	AnalysisChunkDone          = "done"
	AnalysisChunkError         = "error"
)

// AnalysisStatus summarizes pipeline readiness and rolling counters
// since startup.
type AnalysisStatus struct {
	Ready          bool      `json:"ready"`
	Message        string    `json:"message,omitempty"`
	ActiveBatches  int       `json:"active_batches"`
	TotalBatches   int64     `json:"total_batches"`
	TotalProcessed int64     `json:"total_processed"`
	TotalFailed    int64     `json:"total_failed"`
	Timestamp      time.Time `json:"timestamp"`
}

type AnalysisProgress struct {
	CurrentInvoice    int    `json:"current_invoice"`
	TotalInvoices     int    `json:"total_invoices"`
	ProcessedInvoices int    `json:"processed_invoices"`
	FailedInvoices    int    `json:"failed_invoices"`
	CurrentFilename   string `json:"current_filename,omitempty"`
	Stage             string `json:"stage"`
}
