package patient

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hemorec/hemorec/internal/platform/apperr"
	"github.com/hemorec/hemorec/internal/platform/textindex"
)

// BloodTypes is the closed vocabulary of ABO/Rh blood types.
var BloodTypes = []string{"A+", "B+", "AB+", "O+", "A-", "B-", "AB-", "O-"}

// PatientTypes classifies admissions: newborn, pregnant, other.
var PatientTypes = []string{"RN", "G", "O"}

const (
	ActionCreate = "create"
	ActionUpdate = "update"
)

// keyNamespace seeds the deterministic storage keys, so the same
// entity code always maps to the same record id.
var keyNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// StorageKey derives the deterministic record id for an entity code.
// Codes are reduced to their digits first, so "12.345-0" and "123450"
// name the same record; codes without digits are normalized instead.
func StorageKey(entityType, code string) uuid.UUID {
	return uuid.NewSHA1(keyNamespace, []byte(entityType+":"+CanonicalCode(code)))
}

// CanonicalCode is the comparable form of an entity code: its digits
// when it has any, otherwise its normalized text.
func CanonicalCode(code string) string {
	if digits := textindex.OnlyDigits(code); digits != "" {
		return digits
	}
	return textindex.Normalize(code)
}

// LogEntry records who changed a record and when. Entries are append-only.
type LogEntry struct {
	Action string    `json:"action"`
	UserID string    `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	When   time.Time `json:"when"`
}

type Patient struct {
	ID        uuid.UUID `json:"key"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	BloodType string    `json:"blood_type"`
	Type      string    `json:"type"`

	NameTokens []string `json:"-"`
	CodeTokens []string `json:"-"`

	Logs      []LogEntry `json:"logs,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

var nameTokenOpts = textindex.Options{
	Min:           4,
	Max:           16,
	OnlyWordStart: true,
	CombineWords:  true,
}

// Reindex recomputes the search token sets from the current name and
// code. The full normalized value is always present in its set, so exact
// matches work even when the value falls outside the window bounds.
func (p *Patient) Reindex() {
	name := textindex.Normalize(p.Name)
	names := textindex.Tokenize(name, nameTokenOpts)
	names.Add(name)
	p.NameTokens = names.Slice()

	p.CodeTokens = textindex.CodeTokens(p.Code).Slice()
}

func contains(vocab []string, v string) bool {
	for _, item := range vocab {
		if item == v {
			return true
		}
	}
	return false
}

// Validate checks the record against the closed vocabularies.
func (p *Patient) Validate() error {
	if p.Code == "" {
		return apperr.Validationf("code is required")
	}
	if p.Name == "" {
		return apperr.Validationf("name is required")
	}
	if !contains(BloodTypes, p.BloodType) {
		return apperr.Validationf("invalid blood type %q", p.BloodType)
	}
	if !contains(PatientTypes, p.Type) {
		return apperr.Validationf("invalid patient type %q", p.Type)
	}
	return nil
}

// AppendLog records an audit entry with the current UTC time.
func (p *Patient) AppendLog(action, userID, email string) {
	p.Logs = append(p.Logs, LogEntry{
		Action: action,
		UserID: userID,
		Email:  email,
		When:   time.Now().UTC(),
	})
}

func (p *Patient) String() string {
	return fmt.Sprintf("patient %s (%s)", p.Code, p.Name)
}
