// internal/notify/dispatcher.go
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"admission-orchestrator/internal/common/logger"
	"admission-orchestrator/internal/common/metrics"
	"admission-orchestrator/internal/models"
	"admission-orchestrator/internal/workflow"
	"admission-orchestrator/pkg/registry"
)

// ContactSource resolves the preferred contact address for an applicant.
// Implementations may consult an external directory; a lookup failure means
// the applicant's own email is used.
type ContactSource interface {
	Lookup(ctx context.Context, email string) (string, error)
}

// Dispatcher turns workflow notification events into audit records. Bodies
// come from the generator when one is configured and responsive, and from the
// template registry otherwise. Records are append-only and ordered per
// application.
type Dispatcher struct {
	generator Generator
	templates *registry.Registry
	contacts  ContactSource
	timeout   time.Duration
	logger    logger.Logger

	mu      sync.Mutex
	records []models.NotificationRecord
}

func NewDispatcher(generator Generator, templates *registry.Registry, contacts ContactSource, timeout time.Duration, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		generator: generator,
		templates: templates,
		contacts:  contacts,
		timeout:   timeout,
		logger:    log.WithFields(map[string]interface{}{"component": "dispatcher"}),
	}
}

// Dispatch produces and records one notification. It never fails: any
// generation problem degrades to the template body.
func (d *Dispatcher) Dispatch(ctx context.Context, app *models.Application, event workflow.Notification) models.NotificationRecord {
	record := models.NotificationRecord{
		ID:          uuid.New().String(),
		AppID:       app.ID,
		Recipient:   d.resolveRecipient(ctx, app),
		MessageType: event.MessageType,
		Timestamp:   time.Now().UTC(),
	}

	switch {
	case event.Body != "":
		// Pre-rendered artifacts (fee slips) carry exact figures and are
		// never rephrased.
		record.Body = event.Body
		record.RenderPath = models.RenderDeterministic
	default:
		record.Body, record.RenderPath = d.renderBody(ctx, app, event)
	}

	metrics.NotificationsDispatched.WithLabelValues(string(event.MessageType), record.RenderPath).Inc()

	d.mu.Lock()
	d.records = append(d.records, record)
	d.mu.Unlock()

	d.logger.Info("notification recorded", map[string]interface{}{
		"appId":       app.ID,
		"messageType": string(event.MessageType),
		"renderPath":  record.RenderPath,
	})
	return record
}

// History returns the records for one application, in dispatch order.
func (d *Dispatcher) History(appID int64) []models.NotificationRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	var out []models.NotificationRecord
	for _, rec := range d.records {
		if rec.AppID == appID {
			out = append(out, rec)
		}
	}
	return out
}

// All returns every record in dispatch order.
func (d *Dispatcher) All() []models.NotificationRecord {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]models.NotificationRecord, len(d.records))
	copy(out, d.records)
	return out
}

func (d *Dispatcher) renderBody(ctx context.Context, app *models.Application, event workflow.Notification) (string, string) {
	if d.generator != nil {
		genCtx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()

		body, err := d.generator.Generate(genCtx, GenerateRequest{
			Purpose:          purposeFor(event.MessageType),
			RecipientContext: fmt.Sprintf("%s, applicant for %s", app.Name, app.Course),
			Status:           string(app.Status),
			Details:          event.Details,
			Snippets:         event.Snippets,
		})
		if err == nil && body != "" {
			return body, models.RenderGenerated
		}
		d.logger.Warn("generator unavailable, using template body", map[string]interface{}{
			"appId":       app.ID,
			"messageType": string(event.MessageType),
			"error":       err,
		})
	}

	_, body := d.templates.Render(event.MessageType, map[string]interface{}{
		"name":          app.Name,
		"applicationId": app.ID,
		"course":        app.Course,
		"details":       event.Details,
	})
	return body, models.RenderFallback
}

func (d *Dispatcher) resolveRecipient(ctx context.Context, app *models.Application) string {
	if d.contacts == nil {
		return app.Email
	}
	contact, err := d.contacts.Lookup(ctx, app.Email)
	if err != nil || contact == "" {
		return app.Email
	}
	return contact
}

func purposeFor(msgType models.MessageType) string {
	switch msgType {
	case models.MsgApplicationAcknowledgment:
		return "acknowledge receipt of a new application"
	case models.MsgIncompleteDocuments:
		return "request missing documents"
	case models.MsgProvisionalOffer:
		return "deliver a provisional shortlisting offer"
	case models.MsgRejection:
		return "deliver an eligibility rejection"
	case models.MsgAdmissionLetter:
		return "deliver an admission confirmation letter"
	case models.MsgLoanStatusUpdate:
		return "report a loan decision"
	default:
		return "send a status update"
	}
}
