package patient

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/ehr/phr/internal/platform/apperr"
	"github.com/ehr/phr/pkg/caldate"
	"github.com/ehr/phr/pkg/patch"
)

const maxNameLen = 100

// Patient is a person whose records a user manages. A user may manage
// several patients (themselves, children, parents); one of them is primary
// and is used when a request does not name a patient.
type Patient struct {
	ID        uuid.UUID     `json:"id"`
	UserID    string        `json:"user_id"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	BirthDate *caldate.Date `json:"birth_date"`
	IsPrimary bool          `json:"is_primary"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func (p *Patient) Validate(today caldate.Date) error {
	f := apperr.Fields{}
	checkName(f, "first_name", p.FirstName)
	checkName(f, "last_name", p.LastName)
	if p.BirthDate != nil && p.BirthDate.After(today) {
		f.Add("birth_date", "must not be in the future")
	}
	return f.Err()
}

func checkName(f apperr.Fields, field, v string) {
	if v == "" {
		f.Add(field, "is required")
	} else if utf8.RuneCountInString(v) > maxNameLen {
		f.Add(field, fmt.Sprintf("must be at most %d characters", maxNameLen))
	}
}

type CreateRequest struct {
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	BirthDate *caldate.Date `json:"birth_date"`
	IsPrimary bool          `json:"is_primary"`
}

func (r CreateRequest) build(userID string, today caldate.Date) (*Patient, error) {
	p := &Patient{
		UserID:    userID,
		FirstName: strings.TrimSpace(r.FirstName),
		LastName:  strings.TrimSpace(r.LastName),
		BirthDate: r.BirthDate,
		IsPrimary: r.IsPrimary,
	}
	if err := p.Validate(today); err != nil {
		return nil, err
	}
	return p, nil
}

type UpdateRequest struct {
	FirstName patch.Field[string]       `json:"first_name"`
	LastName  patch.Field[string]       `json:"last_name"`
	BirthDate patch.Field[caldate.Date] `json:"birth_date"`
	IsPrimary patch.Field[bool]         `json:"is_primary"`
}

func (r UpdateRequest) apply(p *Patient, today caldate.Date) error {
	if r.FirstName.Set {
		p.FirstName = patch.Text(r.FirstName).Value
	}
	if r.LastName.Set {
		p.LastName = patch.Text(r.LastName).Value
	}
	r.BirthDate.Apply(&p.BirthDate)
	if r.IsPrimary.Set {
		if r.IsPrimary.Null {
			return apperr.Invalid("is_primary", "cannot be null")
		}
		if p.IsPrimary && !r.IsPrimary.Value {
			return apperr.Invalid("is_primary", "mark another patient as primary instead")
		}
		p.IsPrimary = r.IsPrimary.Value
	}
	return p.Validate(today)
}
