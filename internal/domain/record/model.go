package record

import (
	"time"

	"github.com/google/uuid"

	"github.com/clinic/clinic/internal/platform/middleware"
)

// Record maps to the medical_records table. Every clinical field is
// optional and stored as NULL when absent.
type Record struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientID     uuid.UUID `db:"patient_id" json:"patient_id"`
	Medications   *string   `db:"medications" json:"medications"`
	Allergies     *string   `db:"allergies" json:"allergies"`
	VitalSigns    *string   `db:"vital_signs" json:"vital_signs"`
	Diagnosis     *string   `db:"diagnosis" json:"diagnosis"`
	TreatmentPlan *string   `db:"treatment_plan" json:"treatment_plan"`
	Description   *string   `db:"description" json:"description"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Fields is the clinical content of a record submission. Treatment is the
// form name for TreatmentPlan and is used when TreatmentPlan is absent.
type Fields struct {
	Medications   *string `json:"medications"`
	Allergies     *string `json:"allergies"`
	VitalSigns    *string `json:"vital_signs"`
	Diagnosis     *string `json:"diagnosis"`
	TreatmentPlan *string `json:"treatment_plan"`
	Treatment     *string `json:"treatment"`
	Description   *string `json:"description"`
}

// normalize folds the treatment alias into TreatmentPlan and cleans every
// field. Blank values become nil.
func (f *Fields) normalize() {
	if f.TreatmentPlan == nil {
		f.TreatmentPlan = f.Treatment
	}
	f.Treatment = nil
	for _, p := range []**string{&f.Medications, &f.Allergies, &f.VitalSigns, &f.Diagnosis, &f.TreatmentPlan, &f.Description} {
		*p = clean(*p)
	}
}

func clean(s *string) *string {
	if s == nil {
		return nil
	}
	v := middleware.SanitizeString(*s)
	if v == "" {
		return nil
	}
	return &v
}

// overwrite replaces every clinical field of r with f. Fields absent from f
// become NULL.
func (r *Record) overwrite(f Fields) {
	r.Medications = f.Medications
	r.Allergies = f.Allergies
	r.VitalSigns = f.VitalSigns
	r.Diagnosis = f.Diagnosis
	r.TreatmentPlan = f.TreatmentPlan
	r.Description = f.Description
}
