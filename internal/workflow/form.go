package workflow

import (
	"slices"
	"strings"
)

// Form is the state of one input surface: whether it is open, what it is
// editing and what the user typed.
type Form struct {
	Name      string
	Open      bool
	EditingID int64
	Values    map[string]string
	Missing   []string
}

// NewForm returns a closed, empty form.
func NewForm(name string) *Form {
	return &Form{Name: name, Values: make(map[string]string)}
}

// OpenCreate opens the form for a new entity with the given defaults.
func (f *Form) OpenCreate(defaults map[string]string) {
	f.Open = true
	f.EditingID = 0
	f.Missing = nil
	f.Values = make(map[string]string, len(defaults))
	for k, v := range defaults {
		f.Values[k] = v
	}
}

// OpenEdit opens the form prefilled with an existing entity.
func (f *Form) OpenEdit(id int64, values map[string]string) {
	f.OpenCreate(values)
	f.EditingID = id
}

// Editing reports whether the form targets an existing entity.
func (f *Form) Editing() bool {
	return f.EditingID != 0
}

// Get returns the trimmed value of field key.
func (f *Form) Get(key string) string {
	return strings.TrimSpace(f.Values[key])
}

// Set stores a field value.
func (f *Form) Set(key, value string) {
	if f.Values == nil {
		f.Values = make(map[string]string)
	}
	f.Values[key] = value
}

// Validate records which required fields are blank and reports whether none are.
func (f *Form) Validate(required ...string) bool {
	f.Missing = f.Missing[:0]
	for _, key := range required {
		if f.Get(key) == "" {
			f.Missing = append(f.Missing, key)
		}
	}
	return len(f.Missing) == 0
}

// IsMissing reports whether key failed the last Validate.
func (f *Form) IsMissing(key string) bool {
	return slices.Contains(f.Missing, key)
}

// Close hides the form. Values are dropped so a reopened form starts clean.
func (f *Form) Close() {
	f.Open = false
	f.EditingID = 0
	f.Missing = nil
	f.Values = make(map[string]string)
}
