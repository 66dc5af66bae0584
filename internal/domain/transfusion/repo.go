package transfusion

import (
	"context"

	"github.com/google/uuid"
)

// SearchField selects which token set a search query matches against.
// Patient fields resolve through the referenced patient record.
type SearchField string

const (
	SearchByCode        SearchField = "code"
	SearchByPatientCode SearchField = "patient_code"
	SearchByPatientName SearchField = "patient_name"
)

// TokenMatch pairs a search field with the token it must contain.
// Multiple matches are combined with OR.
type TokenMatch struct {
	Field SearchField
	Token string
}

// Repository is the persistence boundary for transfusion records.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	LockCode(ctx context.Context, code string) error

	GetByID(ctx context.Context, id uuid.UUID) (*Transfusion, error)
	GetByCode(ctx context.Context, code string) (*Transfusion, error)
	Put(ctx context.Context, t *Transfusion) error
	Delete(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, limit, offset int) ([]*Transfusion, int, error)
	Search(ctx context.Context, matches []TokenMatch, limit, offset int) ([]*Transfusion, int, error)
	Count(ctx context.Context) (int64, error)
	CountByTag(ctx context.Context, tag string) (int64, error)

	// PatientExists verifies the referenced patient inside the current
	// transaction, holding a share lock on its row so a concurrent delete
	// cannot slip between the check and the write.
	PatientExists(ctx context.Context, patientCode string) (bool, error)

	// PatientCodeByKey resolves a patient storage key to its stored code.
	PatientCodeByKey(ctx context.Context, key uuid.UUID) (string, error)
}
