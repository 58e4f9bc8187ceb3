package model

const (
	DocTypeInvoiceAnalysis = "invoice_analysis"
	DocTypePolicy          = "policy"
)

// Document is a row of the vector store: the embedded content plus the
// filterable metadata columns.
type Document struct {
	ID                  string
	DocType             string
	Content             string
	Embedding           []float32
	EmployeeName        string
	Filename            string
	FileHash            string
	Status              string
	Reason              string
	TotalAmount         float64
	ReimbursementAmount float64
	Currency            string
	Categories          []string
	PolicyViolations    []string
	Ctime               int64
}

type ScoredDocument struct {
	Document
	Score float64
}

type DocumentFilter struct {
	DocType      string
	EmployeeName string
	Status       string
	MinAmount    *float64
	MaxAmount    *float64
}

type CollectionStats struct {
	TotalDocuments int64 `json:"total_documents"`
	InvoiceCount   int64 `json:"invoice_count"`
	PolicyCount    int64 `json:"policy_count"`
}

type EmbeddingCache struct {
	ModelName   string
	TaskType    string
	ContentHash string
	Embedding   []float32
	Ctime       int64
}
