package internal

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamemixer/gamemixer-api/internal/models"
	"github.com/gamemixer/gamemixer-api/internal/notify"
	eventrepo "github.com/gamemixer/gamemixer-api/internal/repos/event/sqldb"
	recordrepo "github.com/gamemixer/gamemixer-api/internal/repos/record/sqldb"
	"github.com/gamemixer/gamemixer-api/internal/repos/sqltest"
)

const demoEventJSON = `{
	"title": "Demo",
	"time": {"start": "2025-01-01T10:00:00Z", "end": "2025-01-01T12:00:00Z"},
	"description": {"content": "x", "format": "plain"},
	"tags": ["a", "b"],
	"links": [{"type": "reg", "description": "sign up", "url": "https://x.test"}]
}`

type apiFixture struct {
	server *httptest.Server
	media  *fakeMedia
	mailer *fakeMailer
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

func newAPIFixture(t *testing.T, rateLimit models.RateLimitConfig) *apiFixture {
	db := sqltest.Open(t)
	logger := sqltest.Logger()
	media := newFakeMedia()
	mailer := &fakeMailer{}
	records := recordrepo.New(db, logger)
	messages := notify.NewMessages("Game Mixer", orgAddress)
	sessions, _ := newTestSessionService(t)

	h := MakeHTTPHandler(Services{
		Events:    NewEventService(eventrepo.New(db, logger), media, logger),
		Donations: NewDonationService(records, mailer, messages, logger),
		Payments:  NewPaymentService(records, mailer, messages, logger),
		Contacts:  NewContactService(records, mailer, messages, logger),
		Sessions:  sessions,
	}, rateLimit, logger)
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &apiFixture{server: srv, media: media, mailer: mailer}
}

func (f *apiFixture) do(t *testing.T, method, path, token, contentType string, body io.Reader) (*http.Response, envelope) {
	req, err := http.NewRequest(method, f.server.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (f *apiFixture) doJSON(t *testing.T, method, path, token, body string) (*http.Response, envelope) {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return f.do(t, method, path, token, "application/json", r)
}

func (f *apiFixture) login(t *testing.T) string {
	resp, env := f.doJSON(t, http.MethodPost, "/api/admin/login", "",
		`{"username": "admin", "password": "secret-password"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var info SessionInfo
	require.NoError(t, json.Unmarshal(env.Data, &info))
	require.NotEmpty(t, info.Token)
	return info.Token
}

func noRateLimit() models.RateLimitConfig {
	return models.RateLimitConfig{}
}

func TestHTTP_CreateEvent_Demo(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())
	token := f.login(t)

	resp, env := f.doJSON(t, http.MethodPost, "/api/events", token, demoEventJSON)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.True(t, env.Success)

	var ev models.Event
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	assert.NotEmpty(t, ev.ID)
	assert.ElementsMatch(t, []string{"a", "b"}, ev.Tags)
	require.Len(t, ev.Links, 1)
	assert.Equal(t, "https://x.test", ev.Links[0].URL)
	assert.Empty(t, ev.Images)

	// Public read
	resp, env = f.doJSON(t, http.MethodGet, "/api/events/"+ev.ID, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Event
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, "Demo", got.Title)

	resp, env = f.doJSON(t, http.MethodGet, "/api/events?tags=a,b", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var lst []models.Event
	require.NoError(t, json.Unmarshal(env.Data, &lst))
	assert.Len(t, lst, 1)

	resp, env = f.doJSON(t, http.MethodGet, "/api/events?tags=a,missing", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, string(env.Data))

	resp, env = f.doJSON(t, http.MethodGet, "/api/tags", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `["a","b"]`, string(env.Data))
}

func TestHTTP_EventSchedule(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())
	token := f.login(t)

	upcoming := strings.NewReplacer("2025-01-01T10", "2999-01-01T10", "2025-01-01T12", "2999-01-01T12").
		Replace(demoEventJSON)
	for _, body := range []string{demoEventJSON, upcoming} {
		resp, _ := f.doJSON(t, http.MethodPost, "/api/events", token, body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp, env := f.doJSON(t, http.MethodGet, "/api/events/schedule?tags=a", "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var schedule models.EventSchedule
	require.NoError(t, json.Unmarshal(env.Data, &schedule))
	require.Len(t, schedule.Upcoming, 1)
	require.Len(t, schedule.Past, 1)
	assert.Equal(t, 2999, schedule.Upcoming[0].TimeStart.Year())
	assert.Equal(t, models.EventDuration{Hours: 2}, schedule.Past[0].Duration)
	assert.Equal(t, "Demo", schedule.Past[0].Title)
}

func TestHTTP_EventNotFound(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())

	resp, env := f.doJSON(t, http.MethodGet, "/api/events/does-not-exist", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, "Event not found", env.Error)
	assert.Equal(t, ErrCodeEventNotFound, env.Code)
}

func TestHTTP_UnknownRoute(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())

	resp, env := f.doJSON(t, http.MethodGet, "/api/nothing-here", "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, ErrCodeRouteNotFound, env.Code)
}

func TestHTTP_AdminRoutesNeedToken(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())

	resp, env := f.doJSON(t, http.MethodPost, "/api/events", "", demoEventJSON)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, ErrCodeNotLoggedIn, env.Code)

	resp, env = f.doJSON(t, http.MethodGet, "/api/donations", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, ErrCodeInvalidToken, env.Code)

	resp, _ = f.doJSON(t, http.MethodDelete, "/api/events/x", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHTTP_Validation(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())
	token := f.login(t)

	resp, env := f.doJSON(t, http.MethodPost, "/api/events", token, `{
		"title": "",
		"time": {"start": "2025-01-01T12:00:00Z", "end": "2025-01-01T10:00:00Z"},
		"description": {"content": "x"}
	}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeValidationFailed, env.Code)
	var details []FieldError
	require.NoError(t, json.Unmarshal(env.Details, &details))
	fields := make([]string, len(details))
	for i, d := range details {
		fields[i] = d.Field
	}
	assert.Contains(t, fields, "title")
	assert.Contains(t, fields, "time.end")

	resp, env = f.doJSON(t, http.MethodPost, "/api/events", token, `{"title": `)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeIllegalJSON, env.Code)
}

func TestHTTP_EventMultipartUpload(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())
	token := f.login(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("data", demoEventJSON))
	for name, content := range map[string]string{"video": "movie.mp4", "images": "one.png"} {
		fw, err := mw.CreateFormFile(name, content)
		require.NoError(t, err)
		_, err = fw.Write([]byte("content of " + content))
		require.NoError(t, err)
	}
	fw, err := mw.CreateFormFile("images", "two.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("second picture"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, env := f.do(t, http.MethodPost, "/api/events", token, mw.FormDataContentType(), body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)

	var ev models.Event
	require.NoError(t, json.Unmarshal(env.Data, &ev))
	require.NotNil(t, ev.VideoID)
	assert.Len(t, ev.Images, 2)
	assert.Equal(t, "content of movie.mp4", f.media.uploaded[*ev.VideoID])
}

func TestHTTP_EventMultipartWithoutData(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())
	token := f.login(t)

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("other", "x"))
	require.NoError(t, mw.Close())

	resp, env := f.do(t, http.MethodPost, "/api/events", token, mw.FormDataContentType(), body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeRequiredFieldMissing, env.Code)
}

func TestHTTP_EventMultipartFileLimits(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())
	token := f.login(t)

	form := func(field string, count int) (*bytes.Buffer, string) {
		body := &bytes.Buffer{}
		mw := multipart.NewWriter(body)
		require.NoError(t, mw.WriteField("data", demoEventJSON))
		for i := 0; i < count; i++ {
			fw, err := mw.CreateFormFile(field, fmt.Sprintf("file%d.bin", i))
			require.NoError(t, err)
			_, err = fw.Write([]byte("x"))
			require.NoError(t, err)
		}
		require.NoError(t, mw.Close())
		return body, mw.FormDataContentType()
	}

	body, ct := form("images", maxImageFiles+1)
	resp, env := f.do(t, http.MethodPost, "/api/events", token, ct, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeIllegalValue, env.Code)

	body, ct = form("video", 2)
	resp, env = f.do(t, http.MethodPost, "/api/events", token, ct, body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, ErrCodeIllegalValue, env.Code)
	assert.Empty(t, f.media.uploaded)

	body, ct = form("images", maxImageFiles)
	resp, _ = f.do(t, http.MethodPost, "/api/events", token, ct, body)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestHTTP_UpdateAndDeleteEvent(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())
	token := f.login(t)

	_, env := f.doJSON(t, http.MethodPost, "/api/events", token, demoEventJSON)
	var ev models.Event
	require.NoError(t, json.Unmarshal(env.Data, &ev))

	updated := strings.Replace(demoEventJSON, `"Demo"`, `"Demo night"`, 1)
	resp, env := f.doJSON(t, http.MethodPut, "/api/events/"+ev.ID, token, updated)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got models.Event
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, ev.ID, got.ID)
	assert.Equal(t, "Demo night", got.Title)

	resp, env = f.doJSON(t, http.MethodDelete, "/api/events/"+ev.ID, token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, env.Success)
	assert.JSONEq(t, `{}`, string(env.Data))

	resp, _ = f.doJSON(t, http.MethodGet, "/api/events/"+ev.ID, "", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, env = f.doJSON(t, http.MethodDelete, "/api/events/"+ev.ID, token, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, ErrCodeEventNotFound, env.Code)
}

func TestHTTP_DonationFlow(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())

	resp, env := f.doJSON(t, http.MethodPost, "/api/donations/monetary", "",
		`{"amount": 25, "contactEmail": "donor@example.com"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var d models.Donation
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, models.StatusPending, d.Status)
	assert.Equal(t, models.PaymentMethodZelle, d.PaymentMethod)
	assert.Contains(t, f.mailer.recipients(), "donor@example.com")

	token := f.login(t)
	resp, env = f.doJSON(t, http.MethodPost, "/api/donations/"+d.ID+"/verify", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &d))
	assert.Equal(t, models.StatusVerified, d.Status)

	resp, env = f.doJSON(t, http.MethodPost, "/api/donations/"+d.ID+"/verify", token, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, ErrCodeAlreadyFinalized, env.Code)

	resp, env = f.doJSON(t, http.MethodGet, "/api/donations", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var lst []models.Donation
	require.NoError(t, json.Unmarshal(env.Data, &lst))
	assert.Len(t, lst, 1)
}

func TestHTTP_PaymentAndContact(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())

	resp, env := f.doJSON(t, http.MethodPost, "/api/payments", "", `{
		"amount": 40,
		"customerEmail": "buyer@example.com",
		"customerName": "Sam",
		"orderDetails": {"item": "ticket", "quantity": 2}
	}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var p models.Payment
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, models.StatusPending, p.Status)

	token := f.login(t)
	resp, env = f.doJSON(t, http.MethodPost, "/api/payments/"+p.ID+"/confirm", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, models.StatusCompleted, p.Status)

	resp, env = f.doJSON(t, http.MethodPost, "/api/contact", "",
		`{"name": "Kim", "email": "kim@example.com", "message": "Hello"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var c models.Contact
	require.NoError(t, json.Unmarshal(env.Data, &c))
	assert.Equal(t, models.DefaultContactCategory, c.Category)

	resp, _ = f.doJSON(t, http.MethodGet, "/api/contacts", "", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, env = f.doJSON(t, http.MethodGet, "/api/contacts", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var contacts []models.Contact
	require.NoError(t, json.Unmarshal(env.Data, &contacts))
	assert.Len(t, contacts, 1)
}

func TestHTTP_LoginLogout(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())

	resp, env := f.doJSON(t, http.MethodPost, "/api/admin/login", "",
		`{"username": "admin", "password": "wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, ErrCodeLoginFailed, env.Code)

	token := f.login(t)
	resp, env = f.doJSON(t, http.MethodGet, "/api/admin/me", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var u models.User
	require.NoError(t, json.Unmarshal(env.Data, &u))
	assert.Equal(t, "admin", u.Name)

	resp, _ = f.doJSON(t, http.MethodPost, "/api/admin/logout", token, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = f.doJSON(t, http.MethodGet, "/api/admin/me", token, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, ErrCodeInvalidToken, env.Code)
}

func TestHTTP_CORS(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())

	req, err := http.NewRequest(http.MethodOptions, f.server.URL+"/api/events", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://gamemixer.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Authorization")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)

	req, err = http.NewRequest(http.MethodGet, f.server.URL+"/api/tags", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://gamemixer.example")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHTTP_RateLimit(t *testing.T) {
	f := newAPIFixture(t, models.RateLimitConfig{Requests: 2, Window: time.Minute})
	body := `{"name": "Kim", "email": "kim@example.com", "message": "Hello"}`

	for i := 0; i < 2; i++ {
		resp, _ := f.doJSON(t, http.MethodPost, "/api/contact", "", body)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp, env := f.doJSON(t, http.MethodPost, "/api/contact", "", body)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.False(t, env.Success)
	assert.Equal(t, ErrCodeTooManyRequests, env.Code)

	// Reads are not limited
	resp, _ = f.doJSON(t, http.MethodGet, "/api/events", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTP_AliveAndMetrics(t *testing.T) {
	f := newAPIFixture(t, noRateLimit())

	resp, err := http.Get(f.server.URL + "/alive")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(f.server.URL + "/metrics")
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "gamemixer_http_requests_total")
}
