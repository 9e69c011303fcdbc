package class

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/mwalimu/core"
)

type Class struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Major     string    `json:"major"`
	Subject   string    `json:"subject"`
	CreatedAt time.Time `json:"createdAt"` // UTC
	UpdatedAt time.Time `json:"updatedAt"` // UTC
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name    string `json:"name" validate:"required"`
	Major   string `json:"major"`
	Subject string `json:"subject" validate:"required"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Major = core.CleanString(nc.Major)
	nc.Subject = core.CleanString(nc.Subject)
	return validate.Struct(nc)
}

// UpdateClass replaces every editable field of a Class.
type UpdateClass NewClass

func (uc *UpdateClass) Validate(validate *validator.Validate) error {
	return (*NewClass)(uc).Validate(validate)
}

type QueryFilter struct {
	Search  string   `query:"search"`
	Major   string   `query:"major"`
	Subject string   `query:"subject"`
	IDs     []string `query:"-"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Major = core.CleanString(qf.Major)
	qf.Subject = core.CleanString(qf.Subject)
}

// Match reports whether c passes every set field of the filter.
// Search does a case-insensitive match on one of Class.Name, Class.Major or Class.Subject.
func (qf *QueryFilter) Match(c Class) bool {
	if qf == nil {
		return true
	}
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(strings.ToLower(c.Name), s) ||
			strings.Contains(strings.ToLower(c.Major), s) ||
			strings.Contains(strings.ToLower(c.Subject), s)) {
			return false
		}
	}
	if qf.Major != "" && !strings.EqualFold(qf.Major, c.Major) {
		return false
	}
	if qf.Subject != "" && !strings.EqualFold(qf.Subject, c.Subject) {
		return false
	}
	if qf.IDs != nil {
		var found bool
		for _, id := range qf.IDs {
			if id == c.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// IDs returns the IDs of classes.
func IDs(classes []Class) []string {
	ids := make([]string, 0, len(classes))
	for _, c := range classes {
		ids = append(ids, c.ID)
	}
	return ids
}

// Names returns the names of classes.
func Names(classes []Class) []string {
	names := make([]string, 0, len(classes))
	for _, c := range classes {
		names = append(names, c.Name)
	}
	return names
}

// Dependents removes the records referencing a class; used to cascade class deletion.
type Dependents interface {
	DeleteByClass(ctx context.Context, classID string, exec ...core.DBExecutor) (int, error)
}
