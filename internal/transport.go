package internal

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/gamemixer/gamemixer-api/internal/ctxhelper"
	"github.com/gamemixer/gamemixer-api/internal/log"
	"github.com/gamemixer/gamemixer-api/internal/models"
)

const (
	apiBasePath     = "/api"
	// Uploaded files above this size are buffered on disk instead of in memory
	maxUploadMemory = 32 << 20
	// Upper limits for the files of one event request
	maxVideoFiles   = 1
	maxImageFiles   = 10
)

// Defines an error that defines the HTTP status that should be returned
type httpStatuser interface {
	Status() int
}

// Defines an error that returns a machine-readable error code
type errorCoder interface {
	ErrorCode() string
}

// Defines an error that contains a data field with additional information
type dataBearer interface {
	Data() interface{}
}

type errorResponse struct {
	Success bool `json:"success"`
	// The human-readable error message
	Error string `json:"error"`
	// The machine-readable error code
	Code string `json:"code"`
	// Additional information like the fields failing validation
	Details interface{} `json:"details,omitempty"`
}

// Services bundles all services exposed via HTTP
type Services struct {
	Events    EventService
	Donations DonationService
	Payments  PaymentService
	Contacts  ContactService
	Sessions  SessionService
}

// MakeHTTPHandler creates the main HTTP handler for the Game Mixer API
func MakeHTTPHandler(s Services, rateLimit models.RateLimitConfig, logger *logrus.Entry) http.Handler {
	r := mux.NewRouter()
	r.Use(withRecovery(logger), withMetrics)

	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(encodeError),
		httptransport.ServerBefore(makeContextInjector(logger)),
		httptransport.ServerBefore(makeTokenDecoder(s.Sessions)),
		httptransport.ServerFinalizer(removeUploads),
	}
	// One limit per client shared by all public forms
	limit := makeRateLimiter(rateLimit)

	// -- Event service --------------------------------
	{
		evEp := MakeEventEndpoints(s.Events)

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/events").Handler(httptransport.NewServer(
			evEp.List,
			decodeEventListRequest,
			encodeJSONResponse,
			options...,
		))

		// Schedule - registered before Get, so "schedule" is not taken for an ID
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/schedule").Handler(httptransport.NewServer(
			evEp.Schedule,
			decodeEventListRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/events/{id}").Handler(httptransport.NewServer(
			evEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Create
		r.Methods(http.MethodPost).Path(apiBasePath + "/events").Handler(httptransport.NewServer(
			evEp.Create,
			decodeEventRequest,
			encodeJSONResponse,
			options...,
		))

		// Update
		r.Methods(http.MethodPut).Path(apiBasePath + "/events/{id}").Handler(httptransport.NewServer(
			evEp.Update,
			decodeEventUpdateRequest,
			encodeJSONResponse,
			options...,
		))

		// Delete
		r.Methods(http.MethodDelete).Path(apiBasePath + "/events/{id}").Handler(httptransport.NewServer(
			evEp.Delete,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Tags
		r.Methods(http.MethodGet).Path(apiBasePath + "/tags").Handler(httptransport.NewServer(
			evEp.Tags,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Donation service -----------------------------
	{
		dEp := MakeDonationEndpoints(s.Donations)

		// CreateMonetary
		r.Methods(http.MethodPost).Path(apiBasePath + "/donations/monetary").Handler(limit(httptransport.NewServer(
			dEp.CreateMonetary,
			decodeJSONRequest[models.MonetaryDonationRequest],
			encodeJSONResponse,
			options...,
		)))

		// CreateGoods
		r.Methods(http.MethodPost).Path(apiBasePath + "/donations/goods").Handler(limit(httptransport.NewServer(
			dEp.CreateGoods,
			decodeJSONRequest[models.GoodsDonationRequest],
			encodeJSONResponse,
			options...,
		)))

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/donations").Handler(httptransport.NewServer(
			dEp.List,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/donations/{id}").Handler(httptransport.NewServer(
			dEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Verify
		r.Methods(http.MethodPost).Path(apiBasePath + "/donations/{id}/verify").Handler(httptransport.NewServer(
			dEp.Verify,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Payment service ------------------------------
	{
		pEp := MakePaymentEndpoints(s.Payments)

		// Create
		r.Methods(http.MethodPost).Path(apiBasePath + "/payments").Handler(limit(httptransport.NewServer(
			pEp.Create,
			decodeJSONRequest[models.PaymentRequest],
			encodeJSONResponse,
			options...,
		)))

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/payments").Handler(httptransport.NewServer(
			pEp.List,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// Get
		r.Methods(http.MethodGet).Path(apiBasePath + "/payments/{id}").Handler(httptransport.NewServer(
			pEp.Get,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))

		// Confirm
		r.Methods(http.MethodPost).Path(apiBasePath + "/payments/{id}/confirm").Handler(httptransport.NewServer(
			pEp.Confirm,
			decodeIDFromPath,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Contact service ------------------------------
	{
		cEp := MakeContactEndpoints(s.Contacts)

		// Submit
		r.Methods(http.MethodPost).Path(apiBasePath + "/contact").Handler(limit(httptransport.NewServer(
			cEp.Submit,
			decodeJSONRequest[models.ContactRequest],
			encodeJSONResponse,
			options...,
		)))

		// List
		r.Methods(http.MethodGet).Path(apiBasePath + "/contacts").Handler(httptransport.NewServer(
			cEp.List,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))
	}

	// -- Session service ------------------------------
	{
		sEp := MakeSessionEndpoints(s.Sessions)

		// Login
		r.Methods(http.MethodPost).Path(apiBasePath + "/admin/login").Handler(limit(httptransport.NewServer(
			sEp.Login,
			decodeJSONRequest[loginRequest],
			encodeJSONResponse,
			options...,
		)))

		// Logout
		r.Methods(http.MethodPost).Path(apiBasePath + "/admin/logout").Handler(httptransport.NewServer(
			sEp.Logout,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// WhoAmI
		r.Methods(http.MethodGet).Path(apiBasePath + "/admin/me").Handler(httptransport.NewServer(
			sEp.WhoAmI,
			decodeNilRequest,
			encodeJSONResponse,
			options...,
		))

		// CreateAdmin
		r.Methods(http.MethodPost).Path(apiBasePath + "/admin/users").Handler(httptransport.NewServer(
			sEp.CreateAdmin,
			decodeJSONRequest[models.CreateUserRequest],
			encodeJSONResponse,
			options...,
		))
	}

	// Simple alive answer for checking if HTTP can be reached
	r.Methods(http.MethodGet).Path("/alive").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		data := map[string]bool{"ok": true}
		json.NewEncoder(w).Encode(data)
	})

	r.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.Handler())

	notFound := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		encodeError(r.Context(), MakeError(http.StatusNotFound, ErrCodeRouteNotFound, "Route not found"), w)
	})
	r.NotFoundHandler = notFound
	r.MethodNotAllowedHandler = notFound

	return withCORS(r)
}

// decodeNilRequest just does nothing with the request. It is used for endpoints that don't need anything to be passed
func decodeNilRequest(_ context.Context, r *http.Request) (request interface{}, err error) {
	return nil, nil
}

// decodeJSONRequest decodes the JSON body into a value of type T which is then passed on to the endpoint
func decodeJSONRequest[T any](_ context.Context, r *http.Request) (interface{}, error) {
	var req T
	if err := decodeJSONBody(r.Body, &req); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeJSONBody(body io.Reader, target interface{}) error {
	if err := json.NewDecoder(body).Decode(target); err != nil {
		return MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalJSON,
			fmt.Sprintf("Failed to decode JSON body: %v", err),
		)
	}
	return nil
}

// decodeEventListRequest reads the tag filter from the "tags" query parameter. Tags are separated by commas, the
// parameter may also be repeated
func decodeEventListRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var tags []string
	for _, value := range r.URL.Query()["tags"] {
		tags = append(tags, strings.Split(value, ",")...)
	}
	return eventListRequest{Tags: tags}, nil
}

// decodeEventRequest reads the event data either from a JSON body or from a multipart form. In the form, the field
// "data" carries the JSON, "video" an optional video file and "images" any number of pictures
func decodeEventRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var in EventInput
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := decodeJSONBody(r.Body, &in.Payload); err != nil {
			return nil, err
		}
		return in, nil
	}
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, MakeError(
			http.StatusBadRequest,
			ErrCodeIllegalValue,
			fmt.Sprintf("Failed to read multipart form: %v", err),
		)
	}
	data := r.MultipartForm.Value["data"]
	if len(data) == 0 || strings.TrimSpace(data[0]) == "" {
		return nil, MakeErrorWithData(
			http.StatusBadRequest,
			ErrCodeRequiredFieldMissing,
			"Event data missing",
			map[string]string{
				"field": "data",
			},
		)
	}
	if err := decodeJSONBody(strings.NewReader(data[0]), &in.Payload); err != nil {
		return nil, err
	}
	videos, images := r.MultipartForm.File["video"], r.MultipartForm.File["images"]
	if err := checkFileCount("video", len(videos), maxVideoFiles); err != nil {
		return nil, err
	}
	if err := checkFileCount("images", len(images), maxImageFiles); err != nil {
		return nil, err
	}
	if len(videos) > 0 {
		v := makeUpload(videos[0])
		in.Video = &v
	}
	for _, fh := range images {
		in.Images = append(in.Images, makeUpload(fh))
	}
	return in, nil
}

func checkFileCount(field string, count, max int) error {
	if count <= max {
		return nil
	}
	return MakeErrorWithData(
		http.StatusBadRequest,
		ErrCodeIllegalValue,
		fmt.Sprintf("At most %d file(s) allowed in field '%s'", max, field),
		map[string]interface{}{
			"field": field,
			"max":   max,
		},
	)
}

func makeUpload(fh *multipart.FileHeader) Upload {
	return Upload{
		FileName: fh.Filename,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// Decodes an event from an update request where the ID of the event is in the path
func decodeEventUpdateRequest(ctx context.Context, r *http.Request) (interface{}, error) {
	tmp, err := decodeEventRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	id, err := decodeIDFromPath(ctx, r)
	if err != nil {
		return nil, err
	}
	in := tmp.(EventInput)
	in.ID = id.(string)
	return in, nil
}

// Decodes an ID from the "id" path variable provided by GoRilla
func decodeIDFromPath(_ context.Context, r *http.Request) (interface{}, error) {
	id := strings.TrimSpace(mux.Vars(r)["id"])
	if id == "" {
		return nil, MakeError(http.StatusBadRequest, ErrCodeRequiredFieldMissing, "No ID provided")
	}
	return id, nil
}

// Encodes a typical JSON response
func encodeJSONResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if sc, ok := response.(httptransport.StatusCoder); ok {
		w.WriteHeader(sc.StatusCode())
	}
	return json.NewEncoder(w).Encode(response)
}

// Builds an error response based on the incoming error
func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	if err == nil {
		panic("encodeError with nil error")
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if st, ok := err.(httpStatuser); ok {
		w.WriteHeader(st.Status())
	} else {
		w.WriteHeader(http.StatusInternalServerError)
	}
	ret := errorResponse{
		Success: false,
		Error:   err.Error(),
		Code:    ErrCodeUnknown,
	}
	if cd, ok := err.(errorCoder); ok {
		ret.Code = cd.ErrorCode()
	}
	if db, ok := err.(dataBearer); ok {
		if data := db.Data(); data != nil {
			if err, ok := data.(error); ok {
				ret.Details = err.Error()
			} else {
				ret.Details = data
			}
		}
	}
	json.NewEncoder(w).Encode(&ret)
}

// makeTokenDecoder returns a function that is used in every HTTP call to check the access token sent by the client,
// if any. The result is stored in the context and evaluated by EnsureAdmin
func makeTokenDecoder(s SessionService) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			return ctx
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" || token == header {
			return context.WithValue(ctx, ctxhelper.KeyAuthError, ErrInvalidToken)
		}
		user, claims, err := s.Authenticate(ctx, token)
		if err != nil {
			return context.WithValue(ctx, ctxhelper.KeyAuthError, err)
		}
		ctx = context.WithValue(ctx, ctxhelper.KeyUser, *user)
		ctx = context.WithValue(ctx, ctxhelper.KeyClaims, claims)
		return ctxhelper.WithLogger(ctx, ctxhelper.Logger(ctx).WithField(log.FldUser, user.Name))
	}
}

func makeContextInjector(logger *logrus.Entry) httptransport.RequestFunc {
	return func(ctx context.Context, r *http.Request) context.Context {
		return ctxhelper.WithLogger(ctx, logger.WithFields(logrus.Fields{
			log.FldPath: r.URL.Path,
			log.FldIP:   clientIP(r),
		}))
	}
}

// clientIP returns the address of the client - the first X-Forwarded-For entry if we're behind a proxy
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if i := strings.LastIndex(r.RemoteAddr, ":"); i > 0 {
		return r.RemoteAddr[:i]
	}
	return r.RemoteAddr
}

// removeUploads deletes the temporary files of multipart uploads once the request has been answered
func removeUploads(_ context.Context, _ int, r *http.Request) {
	if r.MultipartForm != nil {
		r.MultipartForm.RemoveAll()
	}
}
