package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/mediconnect/telemed-api/internal/models"
	appErrors "github.com/mediconnect/telemed-api/pkg/errors"
)

type doctorRepository interface {
	List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, int, error)
	FindByID(ctx context.Context, id string) (*models.Doctor, error)
	Create(ctx context.Context, doctor *models.Doctor) error
	Update(ctx context.Context, doctor *models.Doctor) error
	Delete(ctx context.Context, id string) error
}

// CreateDoctorRequest holds payload for registering doctors.
type CreateDoctorRequest struct {
	FullName  string `json:"full_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Specialty string `json:"specialty" validate:"required"`
}

// UpdateDoctorRequest holds payload for updating doctors.
type UpdateDoctorRequest struct {
	FullName  string `json:"full_name" validate:"required"`
	Email     string `json:"email" validate:"required,email"`
	Specialty string `json:"specialty" validate:"required"`
	Active    bool   `json:"active"`
}

// DoctorService handles practitioner directory use-cases.
type DoctorService struct {
	repo      doctorRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewDoctorService constructs the doctor service.
func NewDoctorService(repo doctorRepository, validate *validator.Validate, logger *zap.Logger) *DoctorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DoctorService{repo: repo, validator: validate, logger: logger}
}

// List returns doctors and pagination metadata.
func (s *DoctorService) List(ctx context.Context, filter models.DoctorFilter) ([]models.Doctor, *models.Pagination, error) {
	doctors, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to list doctors")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return doctors, pagination, nil
}

// Get returns a single doctor by id.
func (s *DoctorService) Get(ctx context.Context, id string) (*models.Doctor, error) {
	doctor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load doctor")
	}
	return doctor, nil
}

// Create registers a new doctor.
func (s *DoctorService) Create(ctx context.Context, req CreateDoctorRequest) (*models.Doctor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid doctor payload")
	}
	doctor := &models.Doctor{
		FullName:  req.FullName,
		Email:     req.Email,
		Specialty: req.Specialty,
		Active:    true,
	}
	if err := s.repo.Create(ctx, doctor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreWrite.Code, appErrors.ErrStoreWrite.Status, "failed to create doctor")
	}
	return doctor, nil
}

// Update modifies an existing doctor record.
func (s *DoctorService) Update(ctx context.Context, id string, req UpdateDoctorRequest) (*models.Doctor, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid doctor payload")
	}
	doctor, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load doctor")
	}
	doctor.FullName = req.FullName
	doctor.Email = req.Email
	doctor.Specialty = req.Specialty
	doctor.Active = req.Active
	if err := s.repo.Update(ctx, doctor); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStoreWrite.Code, appErrors.ErrStoreWrite.Status, "failed to update doctor")
	}
	return doctor, nil
}

// Delete removes a doctor from the directory.
func (s *DoctorService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStoreRead.Code, appErrors.ErrStoreRead.Status, "failed to load doctor")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrStoreWrite.Code, appErrors.ErrStoreWrite.Status, "failed to delete doctor")
	}
	return nil
}
