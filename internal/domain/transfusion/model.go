package transfusion

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hemorec/hemorec/internal/domain/patient"
	"github.com/hemorec/hemorec/internal/platform/apperr"
	"github.com/hemorec/hemorec/internal/platform/textindex"
)

// BloodContents is the closed vocabulary of bag contents: red cell
// concentrate, fresh plasma, platelets, and irradiated red cells.
var BloodContents = []string{"CHPL", "CP", "PF", "CHPLI"}

// Locals is the closed vocabulary of hospital wards where a transfusion
// can take place.
var Locals = []string{
	"unidade-a", "unidade-b", "unidade-b4", "alto-risco",
	"uti-neonatal", "uti-materna", "sem-registro",
}

// Tags is the closed vocabulary of workflow markers attached to a record.
var Tags = []string{
	"semrt", "rt", "ficha-preenchida", "carimbo-plantao",
	"carimbo-nhh", "anvisa", "visitado",
}

// DateLayout is the wire format for transfusion dates.
const DateLayout = "2006-01-02"

// Date is a calendar day serialized as "2006-01-02".
type Date struct {
	time.Time
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`""`), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		d.Time = time.Time{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return apperr.Validationf("invalid date %s", s)
	}
	t, err := time.Parse(DateLayout, s[1:len(s)-1])
	if err != nil {
		return apperr.Validationf("invalid date %s, expected %s", s, DateLayout)
	}
	d.Time = t
	return nil
}

// BloodBag is one administered bag: its blood type and its content kind.
type BloodBag struct {
	Type    string `json:"type"`
	Content string `json:"content"`
}

type Transfusion struct {
	ID          uuid.UUID  `json:"key"`
	Code        string     `json:"code"`
	PatientCode string     `json:"patient_code"`
	Date        Date       `json:"date"`
	Local       string     `json:"local"`
	Bags        []BloodBag `json:"bags"`
	Tags        []string   `json:"tags"`
	Text        string     `json:"text,omitempty"`

	CodeTokens []string `json:"-"`

	Logs      []patient.LogEntry `json:"logs,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

func contains(vocab []string, v string) bool {
	for _, item := range vocab {
		if item == v {
			return true
		}
	}
	return false
}

// Validate checks the record against the closed vocabularies. Every bag
// must carry a known blood type and content; every tag must be known.
func (t *Transfusion) Validate() error {
	if t.Code == "" {
		return apperr.Validationf("code is required")
	}
	if t.PatientCode == "" {
		return apperr.Validationf("patient_code is required")
	}
	if t.Date.IsZero() {
		return apperr.Validationf("date is required")
	}
	if !contains(Locals, t.Local) {
		return apperr.Validationf("invalid local %q", t.Local)
	}
	if len(t.Bags) == 0 {
		return apperr.Validationf("at least one blood bag is required")
	}
	for _, bag := range t.Bags {
		if !contains(patient.BloodTypes, bag.Type) {
			return apperr.Validationf("invalid bag blood type %q", bag.Type)
		}
		if !contains(BloodContents, bag.Content) {
			return apperr.Validationf("invalid bag content %q", bag.Content)
		}
	}
	for _, tag := range t.Tags {
		if !contains(Tags, tag) {
			return apperr.Validationf("invalid tag %q", tag)
		}
	}
	return nil
}

// Reindex recomputes the search token set for the transfusion code.
func (t *Transfusion) Reindex() {
	t.CodeTokens = textindex.CodeTokens(t.Code).Slice()
}

// AppendLog records an audit entry with the current UTC time.
func (t *Transfusion) AppendLog(action, userID, email string) {
	t.Logs = append(t.Logs, patient.LogEntry{
		Action: action,
		UserID: userID,
		Email:  email,
		When:   time.Now().UTC(),
	})
}

func (t *Transfusion) String() string {
	return fmt.Sprintf("transfusion %s for patient %s", t.Code, t.PatientCode)
}
