package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"paper-portal/config"
	"paper-portal/models"
)

var validate = newValidator()

// newValidator meldet Feldnamen mit ihrem JSON-Namen.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct übersetzt validator-Fehler in einen ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return fmt.Errorf("validate input: %w", err)
	}
	verr := &ValidationError{}
	for _, fe := range errs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		verr.Add(field, tagMessage(fe))
	}
	return verr
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return "is invalid"
}

// fieldKind kapselt Validierung und Darstellung eines Feldtyps.
type fieldKind interface {
	// Validate liefert "" oder eine Fehlermeldung für einen nicht-leeren Wert.
	Validate(field *models.EventField, value string) string
	Widget() string
}

type textKind struct{ widget string }

func (k textKind) Validate(f *models.EventField, v string) string {
	return checkBounds(f, v)
}

func (k textKind) Widget() string { return k.widget }

type numberKind struct{}

func (numberKind) Validate(f *models.EventField, v string) string {
	if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
		return "must be a number"
	}
	return ""
}

func (numberKind) Widget() string { return "number" }

// taggedKind prüft über einen validator-Tag (email, url).
type taggedKind struct {
	tag    string
	msg    string
	widget string
}

func (k taggedKind) Validate(f *models.EventField, v string) string {
	if err := validate.Var(strings.TrimSpace(v), k.tag); err != nil {
		return k.msg
	}
	return checkBounds(f, v)
}

func (k taggedKind) Widget() string { return k.widget }

type dateKind struct{}

func (dateKind) Validate(f *models.EventField, v string) string {
	if _, err := time.Parse("2006-01-02", strings.TrimSpace(v)); err != nil {
		return "must be a date (YYYY-MM-DD)"
	}
	return ""
}

func (dateKind) Widget() string { return "date" }

type selectKind struct{ multiple bool }

func (k selectKind) Validate(f *models.EventField, v string) string {
	options := FieldOptions(f)
	allowed := make(map[string]bool, len(options))
	for _, o := range options {
		allowed[o] = true
	}
	values := []string{v}
	if k.multiple {
		values = splitMulti(v)
	}
	for _, value := range values {
		if !allowed[value] {
			return fmt.Sprintf("invalid option %q", value)
		}
	}
	return ""
}

func (k selectKind) Widget() string {
	if k.multiple {
		return "multiselect"
	}
	return "select"
}

type checkboxKind struct{}

func (checkboxKind) Validate(f *models.EventField, v string) string {
	if _, err := strconv.ParseBool(strings.TrimSpace(v)); err != nil {
		return "must be true or false"
	}
	return ""
}

func (checkboxKind) Widget() string { return "checkbox" }

// fileKind: der Wert wird über den Upload gesetzt, nicht über das Formular.
type fileKind struct{}

func (fileKind) Validate(f *models.EventField, v string) string { return "" }

func (fileKind) Widget() string { return "file" }

// kindOf ordnet jedem Feldtyp genau eine Implementierung zu.
func kindOf(t models.FieldType) (fieldKind, bool) {
	switch t {
	case models.FieldText:
		return textKind{widget: "input"}, true
	case models.FieldTextarea:
		return textKind{widget: "textarea"}, true
	case models.FieldAbstract:
		return textKind{widget: "abstract"}, true
	case models.FieldNumber:
		return numberKind{}, true
	case models.FieldEmail:
		return taggedKind{tag: "email", msg: "must be a valid email address", widget: "email"}, true
	case models.FieldURL:
		return taggedKind{tag: "url", msg: "must be a valid URL", widget: "url"}, true
	case models.FieldDate:
		return dateKind{}, true
	case models.FieldSelect:
		return selectKind{}, true
	case models.FieldMultiSelect:
		return selectKind{multiple: true}, true
	case models.FieldCheckbox:
		return checkboxKind{}, true
	case models.FieldFile:
		return fileKind{}, true
	}
	return nil, false
}

// checkBounds prüft Zeichen- (Runes) und Wortgrenzen.
func checkBounds(f *models.EventField, v string) string {
	chars := CountChars(strings.TrimSpace(v))
	if f.MinLength != nil && chars < *f.MinLength {
		return fmt.Sprintf("must have at least %d characters", *f.MinLength)
	}
	if f.MaxLength != nil && chars > *f.MaxLength {
		return fmt.Sprintf("must have at most %d characters", *f.MaxLength)
	}
	words := CountWords(v)
	if f.MinWords != nil && words < *f.MinWords {
		return fmt.Sprintf("must have at least %d words", *f.MinWords)
	}
	if f.MaxWords != nil && words > *f.MaxWords {
		return fmt.Sprintf("must have at most %d words", *f.MaxWords)
	}
	return ""
}

func splitMulti(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// FieldOptions dekodiert die Auswahlmöglichkeiten eines SELECT/MULTISELECT-Felds.
func FieldOptions(f *models.EventField) []string {
	if len(f.Options) == 0 {
		return nil
	}
	var options []string
	if err := json.Unmarshal(f.Options, &options); err != nil {
		return nil
	}
	return options
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// FieldValidationOptions steuert, wann Pflichtfelder erzwungen werden.
type FieldValidationOptions struct {
	// RequireAll erzwingt Pflichtfelder (Einreichung).
	RequireAll bool
	// HasFile meldet, ob das Paper bereits eine Datei hat (erfüllt FILE-Pflichtfelder).
	HasFile bool
}

// ValidateFieldValues prüft die Werte (fieldID -> Wert) gegen die aktiven Felddefinitionen.
// Werte zu unbekannten oder inaktiven Feldern werden abgelehnt.
func ValidateFieldValues(fields []models.EventField, values map[string]string, opts FieldValidationOptions) *ValidationError {
	verr := &ValidationError{}
	known := make(map[string]bool, len(fields))
	for i := range fields {
		f := &fields[i]
		if !f.IsActive {
			continue
		}
		known[f.ID] = true
		key := "fields." + f.Name
		kind, ok := kindOf(f.FieldType)
		if !ok {
			verr.Add(key, fmt.Sprintf("unsupported field type %q", f.FieldType))
			continue
		}
		value := values[f.ID]
		if f.FieldType == models.FieldFile {
			if opts.RequireAll && f.Required && !opts.HasFile {
				verr.Add(key, "file is required")
			}
			continue
		}
		if strings.TrimSpace(value) == "" {
			if opts.RequireAll && f.Required {
				verr.Add(key, "is required")
			}
			continue
		}
		if msg := kind.Validate(f, value); msg != "" {
			verr.Add(key, msg)
		}
	}
	for id := range values {
		if !known[id] {
			verr.Add("fields."+id, "unknown field")
		}
	}
	return verr
}

// ValidateFieldDefinition prüft eine vom Veranstalter angelegte Felddefinition.
func ValidateFieldDefinition(f *models.EventField) error {
	verr := &ValidationError{}
	if strings.TrimSpace(f.Name) == "" {
		verr.Add("name", "is required")
	}
	if strings.TrimSpace(f.Label) == "" {
		verr.Add("label", "is required")
	}
	if _, ok := kindOf(f.FieldType); !ok {
		verr.Add("fieldType", fmt.Sprintf("unknown field type %q", f.FieldType))
	}
	if f.MinLength != nil && f.MaxLength != nil && *f.MinLength > *f.MaxLength {
		verr.Add("minLength", "must not exceed maxLength")
	}
	if f.MinWords != nil && f.MaxWords != nil && *f.MinWords > *f.MaxWords {
		verr.Add("minWords", "must not exceed maxWords")
	}
	if f.FieldType == models.FieldSelect || f.FieldType == models.FieldMultiSelect {
		if len(FieldOptions(f)) == 0 {
			verr.Add("options", "select fields need at least one option")
		}
	}
	if f.MaxFileSize != nil && *f.MaxFileSize <= 0 {
		verr.Add("maxFileSize", "must be positive")
	}
	return verr.Err()
}

// FormField ist die Darstellung eines Felds für den Client.
type FormField struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Label       string   `json:"label"`
	FieldType   string   `json:"fieldType"`
	Widget      string   `json:"widget"`
	Required    bool     `json:"required"`
	MinLength   *int     `json:"minLength,omitempty"`
	MaxLength   *int     `json:"maxLength,omitempty"`
	MinWords    *int     `json:"minWords,omitempty"`
	MaxWords    *int     `json:"maxWords,omitempty"`
	MaxFileSize *int64   `json:"maxFileSize,omitempty"`
	FileTypes   []string `json:"fileTypes,omitempty"`
	Options     []string `json:"options,omitempty"`
	Placeholder string   `json:"placeholder,omitempty"`
	HelpText    string   `json:"helpText,omitempty"`
}

func formField(f *models.EventField) FormField {
	widget := "input"
	if kind, ok := kindOf(f.FieldType); ok {
		widget = kind.Widget()
	}
	return FormField{
		ID:          f.ID,
		Name:        f.Name,
		Label:       f.Label,
		FieldType:   string(f.FieldType),
		Widget:      widget,
		Required:    f.Required,
		MinLength:   f.MinLength,
		MaxLength:   f.MaxLength,
		MinWords:    f.MinWords,
		MaxWords:    f.MaxWords,
		MaxFileSize: f.MaxFileSize,
		FileTypes:   config.SplitList(f.AllowedFileTypes),
		Options:     FieldOptions(f),
		Placeholder: f.Placeholder,
		HelpText:    f.HelpText,
	}
}
