package patient

import (
	"slices"
	"strings"
	"time"

	"github.com/hengadev/errsx"

	"github.com/clinic/clinic/internal/platform/middleware"
)

func (in *Input) normalize() {
	in.Name = middleware.SanitizeString(in.Name)
	in.Gender = strings.ToLower(strings.TrimSpace(in.Gender))
	in.BloodType = strings.ToLower(strings.TrimSpace(in.BloodType))
	in.BirthDate = strings.TrimSpace(in.BirthDate)
}

// validate checks every field and returns the parsed birth date alongside
// all violations found.
func (in *Input) validate(today time.Time) (time.Time, errsx.Map) {
	var errs errsx.Map

	if in.Name == "" {
		errs.Set("name", "Patient name is required.")
	}

	switch {
	case in.Gender == "":
		errs.Set("gender", "Gender is required.")
	case !slices.Contains(Genders, in.Gender):
		errs.Set("gender", "Gender must be one of: "+strings.Join(Genders, ", ")+".")
	}

	switch {
	case in.BloodType == "":
		errs.Set("blood_type", "Blood type is required.")
	case !slices.Contains(BloodTypes, in.BloodType):
		errs.Set("blood_type", "Blood type must be one of: "+strings.Join(BloodTypes, ", ")+".")
	}

	var birth time.Time
	if in.BirthDate == "" {
		errs.Set("birth_date", "Birth date is required.")
	} else if t, err := time.Parse(DateLayout, in.BirthDate); err != nil {
		errs.Set("birth_date", "Birth date must be a valid date in YYYY-MM-DD format.")
	} else if t.After(today) {
		errs.Set("birth_date", "Birth date cannot be in the future.")
	} else {
		birth = t
	}

	return birth, errs
}
