package queue

import (
	"strings"
)

// Fields holds the document field names records are stored under.
type Fields struct {
	Value       string
	Created     string
	Claimed     string
	Priority    string
	Description string
}

// DefaultFields returns the field names used when a Definition leaves Fields
// empty.
func DefaultFields() Fields {
	return Fields{
		Value:       "value",
		Created:     "created",
		Claimed:     "claimed",
		Priority:    "priority",
		Description: "description",
	}
}

func (f Fields) isZero() bool {
	return f == Fields{}
}

func (f Fields) named() [][2]string {
	return [][2]string{
		{"value field", f.Value},
		{"created field", f.Created},
		{"claimed field", f.Claimed},
		{"priority field", f.Priority},
		{"description field", f.Description},
	}
}

// Definition configures a concrete queue.
type Definition struct {
	// Collection is the name of the collection holding the queue's records.
	Collection string
	// DefaultPriority is used for inserts that do not supply a priority.
	DefaultPriority int64
	// Fields defaults to DefaultFields() when left empty.
	Fields Fields
}

func (d Definition) withDefaults() Definition {
	if d.Fields.isZero() {
		d.Fields = DefaultFields()
	}
	return d
}

// Validate checks the definition, returning a *ConfigurationError for the first
// problem found.
func (d Definition) Validate() error {
	d = d.withDefaults()

	switch {
	case d.Collection == "":
		return &ConfigurationError{Field: "collection", Reason: "must be a nonempty string"}
	case strings.ContainsAny(d.Collection, "$\x00"):
		return &ConfigurationError{Field: "collection", Reason: "must not contain '$' or NUL"}
	case strings.HasPrefix(d.Collection, "system."):
		return &ConfigurationError{Field: "collection", Reason: "must not use the reserved \"system.\" prefix"}
	}

	seen := make(map[string]string, 5)
	for _, nf := range d.Fields.named() {
		name, value := nf[0], nf[1]
		if value == "" {
			return &ConfigurationError{Field: name, Reason: "must be a nonempty string"}
		}
		if strings.HasPrefix(value, "$") || strings.Contains(value, ".") {
			return &ConfigurationError{Field: name, Reason: "must not start with '$' or contain '.'"}
		}
		if other, ok := seen[value]; ok {
			return &ConfigurationError{Field: name, Reason: "duplicates the " + other}
		}
		seen[value] = name
	}
	return nil
}
