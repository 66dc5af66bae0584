package transfusion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hemorec/hemorec/internal/domain/patient"
	"github.com/hemorec/hemorec/internal/platform/apperr"
	"github.com/hemorec/hemorec/internal/platform/auth"
	"github.com/hemorec/hemorec/internal/platform/counter"
	"github.com/hemorec/hemorec/internal/platform/textindex"
)

const entityType = "transfusion"

type Service struct {
	repo     Repository
	counters *counter.Counters
	log      zerolog.Logger
}

func NewService(repo Repository, counters *counter.Counters, log zerolog.Logger) *Service {
	return &Service{repo: repo, counters: counters, log: log}
}

// UpsertInput carries the writable fields of a transfusion record. A zero
// Key requests creation; a non-zero Key updates the existing record. The
// patient may be referenced by PatientKey or by PatientCode; the key wins
// when both are set.
type UpsertInput struct {
	Key         uuid.UUID
	Code        string
	PatientKey  uuid.UUID
	PatientCode string
	Date        Date
	Local       string
	Bags        []BloodBag
	Tags        []string
	Text        string
}

// Upsert creates or updates a transfusion inside a single transaction.
// The referenced patient is verified under a share lock in the same
// transaction, so the reference cannot dangle at commit time.
func (s *Service) Upsert(ctx context.Context, in UpsertInput) (*Transfusion, bool, error) {
	ident, _ := auth.CurrentIdentity(ctx)

	var result *Transfusion
	var created bool
	var oldTags []string
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		if in.Key == uuid.Nil {
			t, err := s.create(ctx, in, ident)
			if err != nil {
				return err
			}
			result, created = t, true
			return nil
		}
		t, prev, err := s.update(ctx, in, ident)
		if err != nil {
			return err
		}
		result, oldTags = t, prev
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if created {
		s.counters.OnCreate(ctx, entityType, result.Tags)
	} else {
		s.counters.OnTagsChanged(ctx, entityType, oldTags, result.Tags)
	}
	return result, created, nil
}

func (s *Service) create(ctx context.Context, in UpsertInput, ident auth.Identity) (*Transfusion, error) {
	patientCode, err := s.resolvePatient(ctx, in)
	if err != nil {
		return nil, err
	}

	// Codes are stored in their canonical digit-extracted form.
	t := &Transfusion{
		ID:          patient.StorageKey(entityType, in.Code),
		Code:        patient.CanonicalCode(in.Code),
		PatientCode: patientCode,
		Date:        in.Date,
		Local:       in.Local,
		Bags:        in.Bags,
		Tags:        in.Tags,
		Text:        in.Text,
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.LockCode(ctx, t.Code); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByCode(ctx, t.Code); err == nil {
		return nil, fmt.Errorf("%w: transfusion code %q", apperr.ErrDuplicateCode, t.Code)
	} else if !apperr.IsNotFound(err) {
		return nil, err
	}

	if err := s.checkPatient(ctx, t.PatientCode); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.AppendLog(patient.ActionCreate, ident.ID, ident.Email)
	t.Reindex()
	return t, s.repo.Put(ctx, t)
}

func (s *Service) update(ctx context.Context, in UpsertInput, ident auth.Identity) (*Transfusion, []string, error) {
	t, err := s.repo.GetByID(ctx, in.Key)
	if err != nil {
		if apperr.IsNotFound(err) {
			return nil, nil, fmt.Errorf("%w: transfusion key %s", apperr.ErrCodeNotFound, in.Key)
		}
		return nil, nil, err
	}
	oldTags := t.Tags

	patientCode, err := s.resolvePatient(ctx, in)
	if err == nil && patientCode != t.PatientCode {
		err = s.checkPatient(ctx, patientCode)
	}
	if err != nil {
		// A dangling reference on update is a missing target, not a
		// malformed request.
		if errors.Is(err, apperr.ErrReferencedEntityMissing) {
			return nil, nil, fmt.Errorf("%w: patient %q", apperr.ErrNotFound, patientCode)
		}
		return nil, nil, err
	}

	// The code determines the storage key, so it cannot change on
	// update; the stored code wins over whatever the request carried.
	t.PatientCode = patientCode
	t.Date = in.Date
	t.Local = in.Local
	t.Bags = in.Bags
	t.Tags = in.Tags
	t.Text = in.Text
	if err := t.Validate(); err != nil {
		return nil, nil, err
	}
	t.UpdatedAt = time.Now().UTC()
	t.AppendLog(patient.ActionUpdate, ident.ID, ident.Email)
	t.Reindex()
	return t, oldTags, s.repo.Put(ctx, t)
}

// resolvePatient yields the referenced patient's canonical code: the
// stored code when a patient key is given, else the canonical form of the
// written code.
func (s *Service) resolvePatient(ctx context.Context, in UpsertInput) (string, error) {
	if in.PatientKey == uuid.Nil {
		return patient.CanonicalCode(in.PatientCode), nil
	}
	code, err := s.repo.PatientCodeByKey(ctx, in.PatientKey)
	if err != nil {
		if apperr.IsNotFound(err) {
			return "", fmt.Errorf("%w: patient key %s", apperr.ErrReferencedEntityMissing, in.PatientKey)
		}
		return "", err
	}
	return code, nil
}

func (s *Service) checkPatient(ctx context.Context, patientCode string) error {
	exists, err := s.repo.PatientExists(ctx, patientCode)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: patient %q", apperr.ErrReferencedEntityMissing, patientCode)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Transfusion, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Transfusion, int, error) {
	return s.repo.List(ctx, limit, offset)
}

// Search matches the query against the requested fields. Patient fields
// search the referenced patient's token sets; with no usable field the
// transfusion code set is searched.
func (s *Service) Search(ctx context.Context, query string, fields []string, limit, offset int) ([]*Transfusion, int, error) {
	matches := SearchMatches(query, fields)
	if len(matches) == 0 {
		return nil, 0, apperr.Validationf("query is empty")
	}
	return s.repo.Search(ctx, matches, limit, offset)
}

// SearchMatches builds the token matches for a raw query, normalizing it
// per field.
func SearchMatches(query string, fields []string) []TokenMatch {
	var matches []TokenMatch
	for _, f := range fields {
		switch SearchField(f) {
		case SearchByCode:
			if tok := patient.CanonicalCode(query); tok != "" {
				matches = append(matches, TokenMatch{Field: SearchByCode, Token: tok})
			}
		case SearchByPatientCode:
			if tok := patient.CanonicalCode(query); tok != "" {
				matches = append(matches, TokenMatch{Field: SearchByPatientCode, Token: tok})
			}
		case SearchByPatientName:
			if tok := textindex.Normalize(query); tok != "" {
				matches = append(matches, TokenMatch{Field: SearchByPatientName, Token: tok})
			}
		}
	}
	if len(matches) == 0 {
		if tok := patient.CanonicalCode(query); tok != "" {
			matches = append(matches, TokenMatch{Field: SearchByCode, Token: tok})
		}
	}
	return matches
}

// Delete removes a transfusion record.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	var tags []string
	err := s.repo.WithinTx(ctx, func(ctx context.Context) error {
		t, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		tags = t.Tags
		return s.repo.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.counters.OnDelete(ctx, entityType, tags)
	return nil
}

// Stats returns the cached record totals: the overall count plus one
// bucket per known tag. Cold buckets are recounted from storage.
func (s *Service) Stats(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64, len(Tags)+1)

	all, err := s.counters.Get(ctx, entityType, "", s.repo.Count)
	if err != nil {
		return nil, err
	}
	out[counter.AllBucket] = all

	for _, tag := range Tags {
		tag := tag
		n, err := s.counters.Get(ctx, entityType, tag, func(ctx context.Context) (int64, error) {
			return s.repo.CountByTag(ctx, tag)
		})
		if err != nil {
			return nil, err
		}
		out[tag] = n
	}
	return out, nil
}
