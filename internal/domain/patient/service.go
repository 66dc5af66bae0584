package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hemorec/hemorec/internal/platform/apperr"
	"github.com/hemorec/hemorec/internal/platform/auth"
	"github.com/hemorec/hemorec/internal/platform/counter"
	"github.com/hemorec/hemorec/internal/platform/textindex"
)

const entityType = "patient"

type Service struct {
	repo     Repository
	counters *counter.Counters
	log      zerolog.Logger
}

func NewService(repo Repository, counters *counter.Counters, log zerolog.Logger) *Service {
	return &Service{repo: repo, counters: counters, log: log}
}

// UpsertInput carries the writable fields of a patient record. A zero Key
// requests creation; a non-zero Key updates the existing record.
type UpsertInput struct {
	Key       uuid.UUID
	Code      string
	Name      string
	BloodType string
	Type      string
}

// Upsert creates or updates a patient inside a single transaction. The
// code lock serializes concurrent writers of the same code, so two
// creates racing on one code cannot both succeed. Returns the stored
// record and whether it was newly created.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*Patient, bool, error) {
	ident, _ := auth.CurrentIdentity(ctx)

	var result *Patient
	var created bool
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if in.Key == uuid.Nil {
			p, err := s.create(ctx, in, ident)
			if err != nil {
				return err
			}
			result, created = p, true
			return nil
		}
		p, err := s.update(ctx, in, ident)
		if err != nil {
			return err
		}
		result = p
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.counters.OnCreate(ctx, entityType, nil)
	}
	return result, created, nil
}

func (s *Service) create(ctx context.Context, in UpsertInput, ident auth.Identity) (*Patient, error) {
	// The canonical form is what gets stored: "12345/0" and "123450"
	// are the same patient, so only the extracted form is kept.
	p := &Patient{
		ID:        StorageKey(entityType, in.Code),
		Code:      CanonicalCode(in.Code),
		Name:      in.Name,
		BloodType: in.BloodType,
		Type:      in.Type,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.LockCode(ctx, p.Code); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByCode(ctx, p.Code); err == nil {
		return nil, fmt.Errorf("%w: patient code %q", apperr.ErrDuplicateCode, p.Code)
	} else if !isNotFound(err) {
		return nil, err
	}

	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.AppendLog(ActionCreate, ident.ID, ident.Email)
	p.Reindex()
	return p, s.repo.Put(ctx, p)
}

func (s *Service) update(ctx context.Context, in UpsertInput, ident auth.Identity) (*Patient, error) {
	p, err := s.repo.GetByID(ctx, in.Key)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: patient key %s", apperr.ErrCodeNotFound, in.Key)
		}
		return nil, err
	}

	// The code determines the storage key, so it cannot change on
	// update; the stored code wins over whatever the request carried.
	p.Name = in.Name
	p.BloodType = in.BloodType
	p.Type = in.Type
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.UpdatedAt = time.Now().UTC()
	p.AppendLog(ActionUpdate, ident.ID, ident.Email)
	p.Reindex()
	return p, s.repo.Put(ctx, p)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByCode(ctx context.Context, code string) (*Patient, error) {
	return s.repo.GetByCode(ctx, code)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Search matches the query against the requested token sets. Fields
// outside the known set are ignored; with no usable field the name set
// is searched.
func (s *Service) Search(ctx context.Context, query string, fields []string, limit, offset int) ([]*Patient, int, error) {
	matches := SearchMatches(query, fields)
	if len(matches) == 0 {
		return nil, 0, apperr.Validationf("query is empty")
	}
	return s.repo.Search(ctx, matches, limit, offset)
}

// SearchMatches builds the token matches for a raw query. The query is
// normalized per field: name searches use the normalized text, code
// searches use the canonical code form.
func SearchMatches(query string, fields []string) []TokenMatch {
	var matches []TokenMatch
	for _, f := range fields {
		switch SearchField(f) {
		case SearchByName:
			if tok := textindex.Normalize(query); tok != "" {
				matches = append(matches, TokenMatch{Field: SearchByName, Token: tok})
			}
		case SearchByCode:
			if tok := CanonicalCode(query); tok != "" {
				matches = append(matches, TokenMatch{Field: SearchByCode, Token: tok})
			}
		}
	}
	if len(matches) == 0 {
		if tok := textindex.Normalize(query); tok != "" {
			matches = append(matches, TokenMatch{Field: SearchByName, Token: tok})
		}
	}
	return matches
}

// Delete removes a patient that no transfusion references.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		referenced, err := s.repo.Referenced(ctx, p.Code)
		if err != nil {
			return err
		}
		if referenced {
			return fmt.Errorf("%w: patient %q has transfusion records", apperr.ErrInUse, p.Code)
		}
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.counters.OnDelete(ctx, entityType, nil)
	return nil
}

// Stats returns the cached total of patient records, recounting from
// storage when the cache is cold.
func (s *Service) Stats(ctx context.Context) (int64, error) {
	return s.counters.Get(ctx, entityType, "", s.repo.Count)
}

func isNotFound(err error) bool {
	return apperr.IsNotFound(err)
}
