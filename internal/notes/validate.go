package notes

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"keepit/internal/apperr"
	"keepit/internal/models"
)

const (
	TitleMaxLength   = 200
	ContentMaxLength = 10000
	LabelMaxLength   = 500
)

var colorPattern = regexp.MustCompile(`^#([A-Fa-f0-9]{6}|[A-Fa-f0-9]{3})$`)

func validateTitle(title string) error {
	if strings.TrimSpace(title) == "" || utf8.RuneCountInString(title) > TitleMaxLength {
		return apperr.Validation("title must be 1-%d characters", TitleMaxLength)
	}
	return nil
}

func validateContent(content string) error {
	if utf8.RuneCountInString(content) > ContentMaxLength {
		return apperr.Validation("content must be at most %d characters", ContentMaxLength)
	}
	return nil
}

func validateColor(color string) error {
	if color != "" && !colorPattern.MatchString(color) {
		return apperr.Validation("color must be #rgb or #rrggbb")
	}
	return nil
}

func validateCheckboxes(boxes []models.Checkbox) error {
	for _, cb := range boxes {
		if strings.TrimSpace(cb.Label) == "" || utf8.RuneCountInString(cb.Label) > LabelMaxLength {
			return apperr.Validation("checkbox labels must be 1-%d characters", LabelMaxLength)
		}
	}
	return nil
}

func (in *Input) validate() error {
	if err := validateTitle(in.Title); err != nil {
		return err
	}
	if err := validateContent(in.Content); err != nil {
		return err
	}
	if err := validateColor(in.Color); err != nil {
		return err
	}
	return validateCheckboxes(in.Checkboxes)
}

func (p *Patch) validate() error {
	if p.Title != nil {
		if err := validateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Content != nil {
		if err := validateContent(*p.Content); err != nil {
			return err
		}
	}
	if p.Color != nil {
		if err := validateColor(*p.Color); err != nil {
			return err
		}
	}
	if p.Checkboxes != nil {
		return validateCheckboxes(*p.Checkboxes)
	}
	return nil
}
