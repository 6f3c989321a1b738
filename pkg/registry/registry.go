// Package registry holds the message templates used when a notification body
// cannot be generated. Templates may be overridden from a JSON file; every
// message type ships with a built-in default so rendering never fails.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"admission-orchestrator/internal/models"
)

// Template is a subject/body pair with {{placeholder}} markers.
type Template struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Registry maps message types to templates.
type Registry struct {
	templates map[models.MessageType]Template
}

// NewRegistry returns a registry seeded with the built-in defaults.
func NewRegistry() *Registry {
	return &Registry{templates: defaultTemplates()}
}

// LoadRegistry reads template overrides from a JSON file keyed by message
// type and layers them over the defaults. An empty path returns defaults.
func LoadRegistry(path string) (*Registry, error) {
	r := NewRegistry()
	if path == "" {
		return r, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template registry: %w", err)
	}

	var overrides map[models.MessageType]Template
	if err := json.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parse template registry: %w", err)
	}

	for msgType, tmpl := range overrides {
		r.templates[msgType] = tmpl
	}
	return r, nil
}

// Render fills the template for the given message type with data. Unknown
// message types fall back to a generic status-update template.
func (r *Registry) Render(msgType models.MessageType, data map[string]interface{}) (subject, body string) {
	tmpl, ok := r.templates[msgType]
	if !ok {
		tmpl = r.templates[models.MsgLoanStatusUpdate]
	}
	return renderTemplate(tmpl.Subject, data), renderTemplate(tmpl.Body, data)
}

// renderTemplate substitutes known placeholders, then strips any that remain
// so missing values never leak marker syntax into the output.
func renderTemplate(tmpl string, data map[string]interface{}) string {
	result := tmpl

	for k, v := range data {
		placeholder := "{{" + k + "}}"
		value := ""
		switch t := v.(type) {
		case string:
			value = t
		case int:
			value = fmt.Sprintf("%d", t)
		case int64:
			value = fmt.Sprintf("%d", t)
		default:
			if v != nil {
				value = fmt.Sprintf("%v", v)
			}
		}
		result = strings.ReplaceAll(result, placeholder, value)
	}

	for {
		start := strings.Index(result, "{{")
		if start == -1 {
			break
		}
		end := strings.Index(result[start:], "}}")
		if end == -1 {
			break
		}
		end += start + 2
		result = result[:start] + result[end:]
	}

	return result
}

func defaultTemplates() map[models.MessageType]Template {
	return map[models.MessageType]Template{
		models.MsgApplicationAcknowledgment: {
			Subject: "Application Received",
			Body:    "Dear {{name}}, your application #{{applicationId}} for {{course}} has been received and is under review.",
		},
		models.MsgIncompleteDocuments: {
			Subject: "Documents Required",
			Body:    "Dear {{name}}, your application #{{applicationId}} is missing required documents. {{details}} Please upload them to continue.",
		},
		models.MsgProvisionalOffer: {
			Subject: "Provisional Shortlisting Offer",
			Body:    "Dear {{name}}, congratulations! Your application #{{applicationId}} for {{course}} has been shortlisted. {{details}}",
		},
		models.MsgRejection: {
			Subject: "Application Decision",
			Body:    "Dear {{name}}, we regret to inform you that your application #{{applicationId}} for {{course}} was not shortlisted. {{details}}",
		},
		models.MsgAdmissionLetter: {
			Subject: "Admission Confirmed",
			Body:    "Dear {{name}}, your admission to {{course}} is confirmed. {{details}} A fee slip follows separately.",
		},
		models.MsgFeeSlip: {
			Subject: "Fee Slip",
			Body:    "Dear {{name}}, the fee slip for your application #{{applicationId}} ({{course}}) is attached. {{details}}",
		},
		models.MsgLoanStatusUpdate: {
			Subject: "Loan Application Update",
			Body:    "Dear {{name}}, there is an update on your loan request for application #{{applicationId}}. {{details}}",
		},
	}
}
