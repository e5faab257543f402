package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mediconnect/telemed-api/internal/models"
	"github.com/mediconnect/telemed-api/pkg/mailer"
)

type contactStore interface {
	GetContact(ctx context.Context, appointmentID string) (*models.PatientContact, error)
}

// RescheduleNotifier emails patients whose appointments were moved by the
// scheduler. Notification is strictly best-effort: a failed lookup or send is
// logged and skipped, it never fails the optimization that produced the
// change.
type RescheduleNotifier struct {
	store   contactStore
	mailer  mailer.Mailer
	metrics *MetricsService
	logger  *zap.Logger
}

func NewRescheduleNotifier(store contactStore, m mailer.Mailer, metrics *MetricsService, logger *zap.Logger) *RescheduleNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RescheduleNotifier{store: store, mailer: m, metrics: metrics, logger: logger}
}

// NotifyChanges sends one email per applied change, in order.
func (n *RescheduleNotifier) NotifyChanges(ctx context.Context, changes []models.ScheduleChange) {
	for _, change := range changes {
		n.notifyOne(ctx, change)
	}
}

func (n *RescheduleNotifier) notifyOne(ctx context.Context, change models.ScheduleChange) {
	contact, err := n.store.GetContact(ctx, change.AppointmentID)
	if err != nil || contact == nil {
		n.logger.Warn("reschedule notification skipped, contact lookup failed",
			zap.String("appointment_id", change.AppointmentID),
			zap.Error(err),
		)
		n.recordEmail(false)
		return
	}

	subject := "Your appointment has been rescheduled"
	body := fmt.Sprintf(
		"Dear %s,\n\nYour appointment on %s at %s has been moved to %s at %s due to %s.\n\nIf the new time does not work for you, please contact our front desk.\n\nMediConnect Telehealth",
		contact.Name,
		change.OldDate, change.OldTime,
		change.NewDate, change.NewTime,
		change.Reason.HumanReason(),
	)

	if err := n.mailer.Send(ctx, contact.Email, subject, body); err != nil {
		n.logger.Warn("reschedule notification failed",
			zap.String("appointment_id", change.AppointmentID),
			zap.String("recipient", contact.Email),
			zap.Error(err),
		)
		n.recordEmail(false)
		return
	}

	n.recordEmail(true)
	n.logger.Debug("reschedule notification sent",
		zap.String("appointment_id", change.AppointmentID),
		zap.String("new_date", change.NewDate),
		zap.String("new_time", change.NewTime),
	)
}

func (n *RescheduleNotifier) recordEmail(sent bool) {
	if n.metrics != nil {
		n.metrics.RecordNotificationEmail(sent)
	}
}
