// internal/models/application.go
package models

import "time"

// Status is the application lifecycle state.
type Status string

const (
	StatusSubmitted           Status = "Submitted"
	StatusDocumentsComplete   Status = "DocumentsComplete"
	StatusDocumentsIncomplete Status = "DocumentsIncomplete"
	StatusShortlisted         Status = "Shortlisted"
	StatusRejectedEligibility Status = "RejectedEligibility"
	StatusAdmissionConfirmed  Status = "AdmissionConfirmed"
)

// LoanStatus tracks the loan sub-flow independently of the application status.
type LoanStatus string

const (
	LoanNotRequested   LoanStatus = "NotRequested"
	LoanPendingRequest LoanStatus = "PendingRequest"
	LoanPending        LoanStatus = "LoanPending"
	LoanApproved       LoanStatus = "LoanApproved"
	LoanRejected       LoanStatus = "LoanRejected"
)

// DocumentRef records metadata for an uploaded document. File content lives in
// the external upload store; only filename and size cross the intake boundary.
type DocumentRef struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Documents models the three required slots plus optional extras. A nil slot
// means the document is absent.
type Documents struct {
	Grade10Marksheet *DocumentRef  `json:"grade10Marksheet,omitempty"`
	Grade12Marksheet *DocumentRef  `json:"grade12Marksheet,omitempty"`
	IDProof          *DocumentRef  `json:"idProof,omitempty"`
	Other            []DocumentRef `json:"other,omitempty"`
}

// Missing returns the display names of absent required documents, in slot order.
func (d Documents) Missing() []string {
	var missing []string
	if d.Grade10Marksheet == nil {
		missing = append(missing, "Class X Marksheet")
	}
	if d.Grade12Marksheet == nil {
		missing = append(missing, "Class XII Marksheet")
	}
	if d.IDProof == nil {
		missing = append(missing, "ID Proof")
	}
	return missing
}

// Loan is the loan sub-record. ApprovedAmount never exceeds RequestedAmount.
type Loan struct {
	RequestedAmount float64    `json:"requestedAmount"`
	ApprovedAmount  float64    `json:"approvedAmount"`
	Status          LoanStatus `json:"status"`
	Reason          string     `json:"reason,omitempty"`
}

// CommunicationEntry is one dispatched notification noted on the application record.
type CommunicationEntry struct {
	Timestamp   time.Time   `json:"timestamp"`
	MessageType MessageType `json:"messageType"`
}

// Application is the admission record owned by the orchestrator. All mutation is
// routed through state machine transitions under the record's exclusive lock.
type Application struct {
	ID int64 `json:"id"`

	Name        string `json:"name"`
	Email       string `json:"email"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
	Address     string `json:"address"`

	Course            string  `json:"course"`
	Grade10Percentage float64 `json:"grade10Percentage"`
	Grade12Percentage float64 `json:"grade12Percentage"`
	EntranceExam      string  `json:"entranceExam"`
	EntranceExamRank  int     `json:"entranceExamRank"`

	Documents Documents `json:"documents"`

	ParentName  string `json:"parentName"`
	ParentPhone string `json:"parentPhone"`
	ParentEmail string `json:"parentEmail,omitempty"`

	LoanInterest bool `json:"loanInterest"`

	Status        Status `json:"status"`
	StatusDetails string `json:"statusDetails"`
	Loan          Loan   `json:"loan"`

	CommunicationHistory []CommunicationEntry `json:"communicationHistory"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
