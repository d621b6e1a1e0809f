package validators

import (
	"fmt"
	"strings"

	"safelink/internal/models"
	"safelink/internal/utils"

	"github.com/go-playground/validator/v10"
)

// ValidateCreateAlert checks a distress report before any record is written.
// A failed validation must leave no trace, so this runs before the repository
// is touched.
func ValidateCreateAlert(req *models.CreateAlertRequest) error {
	fields := structFieldErrors(req)

	if req.Latitude != nil && (*req.Latitude < -90 || *req.Latitude > 90) {
		fields["latitude"] = "must be between -90 and 90"
	}
	if req.Longitude != nil && (*req.Longitude < -180 || *req.Longitude > 180) {
		fields["longitude"] = "must be between -180 and 180"
	}
	if (req.Latitude == nil) != (req.Longitude == nil) {
		fields["latitude"] = "latitude and longitude must be provided together"
	}
	if req.StudentPhone != "" && !utils.IsValidPhone(req.StudentPhone) {
		fields["student_phone"] = "must be a valid phone number"
	}
	if req.StudentEmail != "" && !utils.IsValidEmail(req.StudentEmail) {
		fields["student_email"] = "must be a valid email address"
	}
	for i, phone := range req.GuardianPhones {
		if !utils.IsValidPhone(phone) {
			fields[fmt.Sprintf("guardian_phones[%d]", i)] = "must be a valid phone number"
		}
	}

	if len(fields) > 0 {
		return utils.NewValidationError(fields)
	}

	return nil
}

func ValidateRespond(req *models.RespondRequest) error {
	fields := structFieldErrors(req)

	if len(fields) > 0 {
		return utils.NewValidationError(fields)
	}

	return nil
}

func ValidateForward(req *models.ForwardRequest) error {
	fields := structFieldErrors(req)

	if len(fields) > 0 {
		return utils.NewValidationError(fields)
	}

	return nil
}

func structFieldErrors(s interface{}) map[string]string {
	fields := make(map[string]string)

	err := utils.ValidateStruct(s)
	if err == nil {
		return fields
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		fields["request"] = err.Error()
		return fields
	}

	for _, fieldErr := range validationErrors {
		name := strings.ToLower(fieldErr.Field())
		switch fieldErr.Tag() {
		case "required":
			fields[name] = "is required"
		case "email":
			fields[name] = "must be a valid email address"
		default:
			fields[name] = "is invalid"
		}
	}

	return fields
}
