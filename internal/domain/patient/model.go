package patient

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the wire format of birth dates.
const DateLayout = "2006-01-02"

// Date is a calendar day encoded as YYYY-MM-DD.
type Date struct {
	time.Time
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return fmt.Errorf("date %q: %w", s, err)
	}
	d.Time = t
	return nil
}

const (
	GenderMale   = "male"
	GenderFemale = "female"
)

// Genders lists the accepted gender values.
var Genders = []string{GenderMale, GenderFemale}

// BloodTypes lists the accepted blood type values.
var BloodTypes = []string{
	"a-positive", "a-negative",
	"b-positive", "b-negative",
	"ab-positive", "ab-negative",
	"o-positive", "o-negative",
}

// Patient maps to the patients table.
type Patient struct {
	ID        uuid.UUID `db:"id" json:"id"`
	DoctorID  uuid.UUID `db:"doctor_id" json:"doctor_id"`
	Name      string    `db:"name" json:"name"`
	Gender    string    `db:"gender" json:"gender"`
	BloodType string    `db:"blood_type" json:"blood_type"`
	BirthDate Date      `db:"birth_date" json:"birth_date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Input is the add/edit patient submission.
type Input struct {
	Name      string `json:"name" form:"name"`
	Gender    string `json:"gender" form:"gender"`
	BloodType string `json:"blood_type" form:"blood_type"`
	BirthDate string `json:"birth_date" form:"birth_date"`
}

func (p *Patient) apply(in Input, birth time.Time) {
	p.Name = in.Name
	p.Gender = in.Gender
	p.BloodType = in.BloodType
	p.BirthDate = Date{birth}
}
