package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

func newDocumentID() string {
	return uuid.NewString()
}

// policyDocumentID is stable per employee and day so re-uploading the
// same policy on the same date maps to a predictable identifier.
func policyDocumentID(employeeName string, now time.Time) string {
	name := strings.ReplaceAll(strings.TrimSpace(employeeName), " ", "_")
	return fmt.Sprintf("HR_Policy_%s_%s", name, now.Format("20060102"))
}
