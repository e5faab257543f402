package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mediconnect/telemed-api/internal/models"
	appErrors "github.com/mediconnect/telemed-api/pkg/errors"
	"github.com/mediconnect/telemed-api/pkg/export"
)

// ExportFormat enumerates supported day-plan export encodings.
type ExportFormat string

const (
	FormatCSV ExportFormat = "csv"
	FormatPDF ExportFormat = "pdf"
)

// ExportResult is the rendered day plan plus metadata for the HTTP layer.
type ExportResult struct {
	FileName    string
	ContentType string
	Content     []byte
}

type dayPlanAppointmentStore interface {
	ListByDoctorAndDate(ctx context.Context, doctorID, date string) ([]models.Appointment, error)
}

// DayPlanExportService renders a doctor's daily schedule as a downloadable file.
type DayPlanExportService struct {
	store   dayPlanAppointmentStore
	doctors doctorLookup
	csv     *export.CSVExporter
	pdf     *export.PDFExporter
	logger  *zap.Logger
}

// NewDayPlanExportService constructs the export service.
func NewDayPlanExportService(store dayPlanAppointmentStore, doctors doctorLookup, logger *zap.Logger) *DayPlanExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DayPlanExportService{
		store:   store,
		doctors: doctors,
		csv:     export.NewCSVExporter(),
		pdf:     export.NewPDFExporter(),
		logger:  logger,
	}
}

// Export renders the doctor's day plan in the requested format.
func (s *DayPlanExportService) Export(ctx context.Context, doctorID, date string, format ExportFormat) (*ExportResult, error) {
	if err := validateCalendarInput(doctorID, date); err != nil {
		return nil, err
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	doctor, err := s.doctors.FindByID(ctx, doctorID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load doctor")
	}

	appts, err := s.store.ListByDoctorAndDate(ctx, doctorID, date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load day schedule")
	}
	sortAppointments(appts)

	dataset := export.Dataset{
		Title:   fmt.Sprintf("Day plan for %s on %s", doctor.FullName, date),
		Headers: []string{"Time", "Patient", "Email"},
		Weights: []float64{1, 2, 3},
		Rows:    make([][]string, 0, len(appts)),
	}
	for _, appt := range appts {
		dataset.Rows = append(dataset.Rows, []string{appt.Time, appt.PatientName, appt.PatientEmail})
	}

	base := fmt.Sprintf("dayplan-%s-%s", doctorID, date)

	switch format {
	case FormatPDF:
		content, renderErr := s.pdf.Render(dataset)
		if renderErr != nil {
			return nil, appErrors.Wrap(renderErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &ExportResult{FileName: base + ".pdf", ContentType: "application/pdf", Content: content}, nil
	default:
		content, renderErr := s.csv.Render(dataset)
		if renderErr != nil {
			return nil, appErrors.Wrap(renderErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &ExportResult{FileName: base + ".csv", ContentType: "text/csv", Content: content}, nil
	}
}
