// internal/models/notification.go
package models

import "time"

// MessageType enumerates the outbound communications the workflow can emit.
type MessageType string

const (
	MsgApplicationAcknowledgment MessageType = "application_acknowledgment"
	MsgIncompleteDocuments       MessageType = "incomplete_documents"
	MsgProvisionalOffer          MessageType = "provisional_offer"
	MsgRejection                 MessageType = "rejection"
	MsgAdmissionLetter           MessageType = "admission_letter"
	MsgFeeSlip                   MessageType = "fee_slip"
	MsgLoanStatusUpdate          MessageType = "loan_status_update"
)

// Render paths for the notification body.
const (
	RenderGenerated     = "generated"
	RenderFallback      = "fallback"
	RenderDeterministic = "deterministic"
)

// NotificationRecord is one append-only audit log entry. It records that a
// message was produced, independent of any delivery mechanism.
type NotificationRecord struct {
	ID          string      `json:"id"`
	AppID       int64       `json:"appId"`
	Recipient   string      `json:"recipient"`
	MessageType MessageType `json:"messageType"`
	Body        string      `json:"body"`
	RenderPath  string      `json:"renderPath"`
	Timestamp   time.Time   `json:"timestamp"`
}
