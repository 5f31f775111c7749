package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/krishi-mitra/backend/internal/ai"
	"github.com/krishi-mitra/backend/internal/auth"
	"github.com/krishi-mitra/backend/internal/diagnosis"
	"github.com/krishi-mitra/backend/internal/prediction"
	"github.com/krishi-mitra/backend/internal/storage"
	"github.com/krishi-mitra/backend/internal/storage/models"
)

type memStore struct {
	diagnoses map[string][]models.DiagnosisRecord
	prefs     map[string]models.UserPreferences
}

func newMemStore() *memStore {
	return &memStore{
		diagnoses: map[string][]models.DiagnosisRecord{},
		prefs:     map[string]models.UserPreferences{},
	}
}

func (m *memStore) SaveDiagnosis(ctx context.Context, identity string, rec *models.DiagnosisRecord) error {
	m.diagnoses[identity] = append([]models.DiagnosisRecord{*rec}, m.diagnoses[identity]...)
	return nil
}

func (m *memStore) ListDiagnoses(ctx context.Context, identity string) ([]models.DiagnosisRecord, error) {
	return m.diagnoses[identity], nil
}

func (m *memStore) ClearDiagnoses(ctx context.Context, identity string) error {
	delete(m.diagnoses, identity)
	return nil
}

func (m *memStore) GetPreferences(ctx context.Context, identity string) (models.UserPreferences, error) {
	if p, ok := m.prefs[identity]; ok {
		return p, nil
	}
	return models.DefaultPreferences(), nil
}

func (m *memStore) SavePreferences(ctx context.Context, identity string, prefs models.UserPreferences) error {
	m.prefs[identity] = prefs
	return nil
}

func (m *memStore) GetProfile(ctx context.Context, identity string) (*models.Profile, error) {
	return &models.Profile{ID: identity, Guest: true}, nil
}

func (m *memStore) UpdateProfile(ctx context.Context, identity string, profile *models.Profile) error {
	return nil
}

type cannedModel struct {
	reply string
	err   error
}

func (c *cannedModel) GenerateVision(ctx context.Context, prompt string, images []ai.ImagePart) (string, error) {
	return c.reply, c.err
}

const modelReply = `{
	"is_healthy": false,
	"confidence": 0.8,
	"en": {"disease_name": "Leaf Rust", "symptoms": ["spots"], "treatment": "t", "prevention": "p"},
	"hi": {"disease_name": "रोग", "symptoms": ["धब्बे"], "treatment": "उ", "prevention": "ब"}
}`

func testApp(model diagnosis.ModelClient, guestStore storage.Store) *fiber.App {
	svc := diagnosis.NewService(model, nil, nil, diagnosis.MalformedError)
	stores := storage.NewSelector(guestStore, guestStore)

	app := fiber.New()
	app.Use(auth.Middleware(nil))

	dh := NewDiagnosisHandler(svc, stores)
	uh := NewUserHandler(stores)

	api := app.Group("/api")
	api.Post("/diagnose", dh.HandleDiagnose)
	api.Post("/diagnose/batch", dh.HandleDiagnoseBatch)
	api.Get("/user/diagnoses", uh.GetDiagnoses)
	api.Delete("/user/diagnoses", uh.ClearDiagnoses)
	api.Get("/user/preferences", uh.GetPreferences)
	api.Put("/user/preferences", uh.UpdatePreferences)

	return app
}

func multipartImages(t *testing.T, field string, count int) (*bytes.Buffer, string) {
	t.Helper()

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for i := 0; i < count; i++ {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="leaf.jpg"`)
		hdr.Set("Content-Type", "image/jpeg")
		part, err := w.CreatePart(hdr)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write([]byte{0xFF, 0xD8, byte(i)})
	}
	w.Close()
	return body, w.FormDataContentType()
}

func TestHandleDiagnose_SavesAndEchoesSession(t *testing.T) {
	store := newMemStore()
	app := testApp(&cannedModel{reply: modelReply}, store)

	body, contentType := multipartImages(t, "image", 1)
	req := httptest.NewRequest(http.MethodPost, "/api/diagnose", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(auth.SessionHeader, "guest_test")

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if resp.Header.Get(auth.SessionHeader) != "guest_test" {
		t.Errorf("session header not echoed")
	}

	var result diagnosis.Result
	json.NewDecoder(resp.Body).Decode(&result)
	if result.En.DiseaseName != "Leaf Rust" {
		t.Errorf("disease = %q, want Leaf Rust", result.En.DiseaseName)
	}

	saved := store.diagnoses["guest_test"]
	if len(saved) != 1 || saved[0].DiseaseName != "Leaf Rust" {
		t.Errorf("diagnosis not persisted: %+v", saved)
	}
	if len(saved) == 1 && len(saved[0].Details) == 0 {
		t.Error("bilingual details not persisted")
	}
}

func TestHandleDiagnose_MissingImage(t *testing.T) {
	app := testApp(&cannedModel{reply: modelReply}, newMemStore())

	body, contentType := multipartImages(t, "wrong_field", 1)
	req := httptest.NewRequest(http.MethodPost, "/api/diagnose", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandleDiagnose_UpstreamFailure(t *testing.T) {
	app := testApp(&cannedModel{reply: "not json"}, newMemStore())

	body, contentType := multipartImages(t, "image", 1)
	req := httptest.NewRequest(http.MethodPost, "/api/diagnose", body)
	req.Header.Set("Content-Type", contentType)

	resp, err := app.Test(req, 5000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}

	var body2 struct {
		Error string `json:"error"`
	}
	json.NewDecoder(resp.Body).Decode(&body2)
	if body2.Error == "" {
		t.Error("error body missing message")
	}
}

func TestHandleDiagnoseBatch_PersistsSuccesses(t *testing.T) {
	store := newMemStore()
	app := testApp(&cannedModel{reply: modelReply}, store)

	body, contentType := multipartImages(t, "images", 3)
	req := httptest.NewRequest(http.MethodPost, "/api/diagnose/batch", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(auth.SessionHeader, "guest_test")

	resp, err := app.Test(req, 10000)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var outcome diagnosis.BatchOutcome
	json.NewDecoder(resp.Body).Decode(&outcome)
	if len(outcome.Results) != 3 || outcome.Failed != 0 {
		t.Errorf("outcome = %d results / %d failed, want 3 / 0", len(outcome.Results), outcome.Failed)
	}
	if len(store.diagnoses["guest_test"]) != 3 {
		t.Errorf("persisted %d records, want 3", len(store.diagnoses["guest_test"]))
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	app := testApp(&cannedModel{reply: modelReply}, newMemStore())

	payload, _ := json.Marshal(models.UserPreferences{Language: "hi"})
	req := httptest.NewRequest(http.MethodPut, "/api/user/preferences", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.SessionHeader, "guest_test")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d, want 200", resp.StatusCode)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/user/preferences", nil)
	req.Header.Set(auth.SessionHeader, "guest_test")

	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var prefs models.UserPreferences
	json.NewDecoder(resp.Body).Decode(&prefs)
	if prefs.Language != "hi" {
		t.Errorf("language = %q, want hi", prefs.Language)
	}
}

func TestUpdatePreferences_RejectsUnknownLanguage(t *testing.T) {
	app := testApp(&cannedModel{reply: modelReply}, newMemStore())

	req := httptest.NewRequest(http.MethodPut, "/api/user/preferences", bytes.NewReader([]byte(`{"language":"fr"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestHandlePredictYield_ValidatesFeatures(t *testing.T) {
	app := fiber.New()
	app.Use(auth.Middleware(nil))
	ph := NewPredictionHandler(stubPredictor{}, prediction.NewEstimator(&cannedModel{reply: `{}`}))
	app.Post("/api/predict/yield", ph.HandlePredictYield)

	req := httptest.NewRequest(http.MethodPost, "/api/predict/yield", bytes.NewReader([]byte(`{"Temperature_Celsius": 25}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for incomplete features", resp.StatusCode)
	}
}

type stubPredictor struct{}

func (stubPredictor) Predict(ctx context.Context, f prediction.Features) (*prediction.Result, error) {
	return &prediction.Result{PredictedYield: 2.5}, nil
}
