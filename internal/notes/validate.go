package notes

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notepane/internal/apperr"
	"github.com/starford/notepane/internal/models"
)

var errBlank = validation.NewError("validation_not_blank", "cannot be blank")

func notBlank(value any) error {
	s, _ := value.(string)
	if strings.TrimSpace(s) == "" {
		return errBlank
	}
	return nil
}

// validateDraft rejects drafts the store must never see: blank title or
// content, or fields longer than the form limits.
func validateDraft(d models.Draft) error {
	err := validation.ValidateStruct(&d,
		validation.Field(&d.Title, validation.By(notBlank), validation.RuneLength(0, models.MaxTitleLength)),
		validation.Field(&d.Content, validation.By(notBlank), validation.RuneLength(0, models.MaxContentLength)),
	)
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	ve := &apperr.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for field, fe := range fieldErrs {
		ve.Fields[field] = fe.Error()
	}
	return ve
}
