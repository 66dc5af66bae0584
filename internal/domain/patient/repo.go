package patient

import (
	"context"

	"github.com/google/uuid"
)

// SearchField selects which token set a search query matches against.
type SearchField string

const (
	SearchByName SearchField = "name"
	SearchByCode SearchField = "code"
)

// TokenMatch pairs a token set with the token it must contain. Multiple
// matches are combined with OR.
type TokenMatch struct {
	Field SearchField
	Token string
}

// Repository is the persistence boundary for patient records. WithinTx
// runs fn inside a single transaction; the other methods join that
// transaction when called from inside fn.
type Repository interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error

	// LockCode serializes concurrent writers of the same code for the
	// duration of the surrounding transaction.
	LockCode(ctx context.Context, code string) error

	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByCode(ctx context.Context, code string) (*Patient, error)
	Put(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error

	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Search(ctx context.Context, matches []TokenMatch, limit, offset int) ([]*Patient, int, error)
	Count(ctx context.Context) (int64, error)

	// Referenced reports whether any transfusion record points at the
	// given patient code.
	Referenced(ctx context.Context, code string) (bool, error)
}
