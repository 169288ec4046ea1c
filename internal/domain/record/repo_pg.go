package record

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) querier {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const recordCols = `mr.id, mr.patient_id, mr.medications, mr.allergies, mr.vital_signs,
	mr.diagnosis, mr.treatment_plan, mr.description, mr.created_at, mr.updated_at`

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, medications, allergies, vital_signs,
			diagnosis, treatment_plan, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		rec.ID, rec.PatientID, rec.Medications, rec.Allergies, rec.VitalSigns,
		rec.Diagnosis, rec.TreatmentPlan, rec.Description,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+recordCols+` FROM medical_records mr
		WHERE mr.patient_id = $1
		ORDER BY mr.created_at, mr.id`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, rec)
	}
	return items, rows.Err()
}

func (r *repoPG) GetWithOwner(ctx context.Context, id uuid.UUID) (*Record, uuid.UUID, error) {
	var rec Record
	var owner uuid.UUID
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT `+recordCols+`, p.doctor_id
		FROM medical_records mr
		JOIN patients p ON p.id = mr.patient_id
		WHERE mr.id = $1`, id).Scan(
		&rec.ID, &rec.PatientID, &rec.Medications, &rec.Allergies, &rec.VitalSigns,
		&rec.Diagnosis, &rec.TreatmentPlan, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt,
		&owner,
	)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return &rec, owner, nil
}

func (r *repoPG) Update(ctx context.Context, rec *Record, doctorID uuid.UUID) error {
	return r.conn(ctx).QueryRow(ctx, `
		UPDATE medical_records mr SET
			medications = $3, allergies = $4, vital_signs = $5,
			diagnosis = $6, treatment_plan = $7, description = $8,
			updated_at = NOW()
		FROM patients p
		WHERE mr.id = $1 AND p.id = mr.patient_id AND p.doctor_id = $2
		RETURNING mr.updated_at`,
		rec.ID, doctorID, rec.Medications, rec.Allergies, rec.VitalSigns,
		rec.Diagnosis, rec.TreatmentPlan, rec.Description,
	).Scan(&rec.UpdatedAt)
}

func (r *repoPG) Delete(ctx context.Context, id, doctorID uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM medical_records mr
		USING patients p
		WHERE mr.id = $1 AND p.id = mr.patient_id AND p.doctor_id = $2`, id, doctorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	if err := row.Scan(&rec.ID, &rec.PatientID, &rec.Medications, &rec.Allergies, &rec.VitalSigns,
		&rec.Diagnosis, &rec.TreatmentPlan, &rec.Description, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}
