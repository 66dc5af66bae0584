package transfusion

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hemorec/hemorec/internal/domain/patient"
	"github.com/hemorec/hemorec/internal/platform/auth"
)

func passThrough(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := auth.WithIdentity(c.Request().Context(), auth.Identity{ID: "u1", Email: "doc@example.org"})
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

func newTestServer(t *testing.T) (*echo.Echo, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	repo.addPatient("12345/0")
	e := echo.New()
	h := NewHandler(newTestService(repo))
	h.RegisterRoutes(e.Group("/api/v1"), passThrough, passThrough)
	return e, repo
}

func doJSON(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode envelope: %v (body %s)", err, rec.Body.String())
	}
	return env
}

const createBody = `{
	"code": "20240001",
	"patient_code": "12345/0",
	"date": "2024-03-10",
	"local": "uti-neonatal",
	"bags": [{"type": "O+", "content": "CHPL"}],
	"tags": ["rt"],
	"text": "reacao leve, observado"
}`

func TestHandlerCreate(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/api/v1/transfusions", createBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var tr Transfusion
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &tr); err != nil {
		t.Fatalf("decode transfusion: %v", err)
	}
	if tr.Code != "20240001" || tr.Date.Format(DateLayout) != "2024-03-10" {
		t.Errorf("transfusion = %+v", tr)
	}
	if tr.Text != "reacao leve, observado" {
		t.Errorf("text = %q", tr.Text)
	}
}

func TestHandlerCreateBadDate(t *testing.T) {
	e, _ := newTestServer(t)
	body := strings.Replace(createBody, "2024-03-10", "10/03/2024", 1)
	rec := doJSON(e, http.MethodPost, "/api/v1/transfusions", body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerCreateMissingPatient(t *testing.T) {
	e, repo := newTestServer(t)
	delete(repo.patients, patient.CanonicalCode("12345/0"))
	rec := doJSON(e, http.MethodPost, "/api/v1/transfusions", createBody)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandlerCreateByPatientKey(t *testing.T) {
	e, _ := newTestServer(t)
	key := patient.StorageKey("patient", "12345/0")

	body := `{"code":"20240009","patient_key":"` + key.String() + `","date":"2024-03-10",` +
		`"local":"uti-neonatal","bags":[{"type":"O+","content":"CHPL"}]}`
	rec := doJSON(e, http.MethodPost, "/api/v1/transfusions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var tr Transfusion
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &tr); err != nil {
		t.Fatal(err)
	}
	if tr.PatientCode != "123450" {
		t.Errorf("patient_code = %q, want resolved from key", tr.PatientCode)
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/transfusions",
		strings.Replace(body, key.String(), "not-a-uuid", 1))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad patient_key status = %d, want 400", rec.Code)
	}
}

func TestHandlerUpdateDanglingPatient(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/api/v1/transfusions", createBody)
	var tr Transfusion
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &tr); err != nil {
		t.Fatal(err)
	}

	body := strings.Replace(createBody, `"12345/0"`, `"99999/9"`, 1)
	body = strings.Replace(body, "{", `{"key": "`+tr.ID.String()+`",`, 1)
	rec = doJSON(e, http.MethodPut, "/api/v1/transfusions", body)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 for a missing patient on update", rec.Code)
	}
}

func TestHandlerGetUpdateDelete(t *testing.T) {
	e, _ := newTestServer(t)
	rec := doJSON(e, http.MethodPost, "/api/v1/transfusions", createBody)
	var tr Transfusion
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &tr); err != nil {
		t.Fatal(err)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/transfusions/"+tr.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	update := strings.Replace(createBody, `"code": "20240001"`,
		`"key": "`+tr.ID.String()+`", "code": "20240001"`, 1)
	update = strings.Replace(update, `["rt"]`, `["rt", "anvisa"]`, 1)
	rec = doJSON(e, http.MethodPut, "/api/v1/transfusions", update)
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodDelete, "/api/v1/transfusions/"+tr.ID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec = doJSON(e, http.MethodGet, "/api/v1/transfusions/"+tr.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func TestHandlerSearch(t *testing.T) {
	e, _ := newTestServer(t)
	doJSON(e, http.MethodPost, "/api/v1/transfusions", createBody)

	rec := doJSON(e, http.MethodGet, "/api/v1/transfusions/search?q=2024&fields=code", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/transfusions/search", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty query status = %d, want 400", rec.Code)
	}
}

func TestHandlerVocabularies(t *testing.T) {
	e, _ := newTestServer(t)
	cases := []struct {
		path string
		want int
	}{
		{"/api/v1/transfusions/locals", len(Locals)},
		{"/api/v1/transfusions/tags", len(Tags)},
		{"/api/v1/blood/types", len(patient.BloodTypes)},
		{"/api/v1/blood/contents", len(BloodContents)},
	}
	for _, tc := range cases {
		rec := doJSON(e, http.MethodGet, tc.path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s status = %d", tc.path, rec.Code)
		}
		var items []string
		if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &items); err != nil {
			t.Fatalf("%s decode: %v", tc.path, err)
		}
		if len(items) != tc.want {
			t.Errorf("%s items = %d, want %d", tc.path, len(items), tc.want)
		}
	}
}

func TestHandlerStats(t *testing.T) {
	e, _ := newTestServer(t)
	doJSON(e, http.MethodPost, "/api/v1/transfusions", createBody)

	rec := doJSON(e, http.MethodGet, "/api/v1/transfusions/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var data map[string]map[string]int64
	if err := json.Unmarshal(decodeEnvelope(t, rec).Data, &data); err != nil {
		t.Fatal(err)
	}
	if data["stats"]["all"] != 1 || data["stats"]["rt"] != 1 {
		t.Errorf("stats = %+v", data)
	}
}
