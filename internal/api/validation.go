package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"alcyxob/coach-scheduler/internal/domain"
	"alcyxob/coach-scheduler/internal/schedule"
)

// RegisterValidations adds the request tags used by the DTOs to gin's validator.
func RegisterValidations() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	validations := map[string]validator.Func{
		"objectid":         validateObjectID,
		"start_date":       validateStartDate,
		"replication_type": validateReplicationType,
	}
	for tag, fn := range validations {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("register %s: %w", tag, err)
		}
	}
	return nil
}

func validateObjectID(fl validator.FieldLevel) bool {
	return primitive.IsValidObjectID(fl.Field().String())
}

// validateStartDate only checks the format; the handler resolves the day in the
// schedule's location.
func validateStartDate(fl validator.FieldLevel) bool {
	_, err := schedule.ParseStartDate(fl.Field().String(), time.UTC)
	return err == nil
}

func validateReplicationType(fl validator.FieldLevel) bool {
	switch domain.ReplicationType(fl.Field().String()) {
	case domain.ReplicationWeeks, domain.ReplicationPeriods:
		return true
	}
	return false
}

// bindingMessage flattens validator errors into one readable line.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return "Validation error: " + strings.Join(parts, "; ")
}
