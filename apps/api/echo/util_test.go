package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"

	echoapi "github.com/cbc-edu/eduplatform/apps/api/echo"
	"github.com/cbc-edu/eduplatform/core"
	"github.com/cbc-edu/eduplatform/core/identity"
	"github.com/cbc-edu/eduplatform/core/payment"
	"github.com/cbc-edu/eduplatform/core/user"
	emailsvc "github.com/cbc-edu/eduplatform/services/email"
	logsvc "github.com/cbc-edu/eduplatform/services/logger"
	inmemdb "github.com/cbc-edu/eduplatform/storage/database/inmem"
	"github.com/cbc-edu/eduplatform/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	*echoapi.Server
	usrRepo     user.Repository
	payRepo     payment.Repository
	identitySvc *identity.Service
	gateway     *testutil.FakeGateway
}

func setup(t *testing.T) *testApp {
	t.Helper()
	emailsvc.ResetSentMessages()

	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	payRepo := inmemdb.NewPaymentRepository(db)

	// set up services
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	gateway := new(testutil.FakeGateway)
	identitySvc := identity.NewService(
		inmemdb.NewIdentityRepository(db), inmemdb.NewSessionStore(db), inmemdb.NewEventBus(), logger, conf)
	usrSvc := user.NewService(usrRepo, mailSvc, validate, conf)
	paySvc := payment.NewService(payRepo, gateway, mailSvc, validate, logger, conf)

	// set up server
	server := echoapi.NewServer(
		echoapi.ServerDeps{
			Conf:        conf,
			Logger:      logger,
			IdentitySvc: identitySvc,
			UserSvc:     usrSvc,
			PaymentSvc:  paySvc,
			Validate:    validate,
			Translator:  translator,
		},
	)
	return &testApp{
		Server:      server,
		usrRepo:     usrRepo,
		payRepo:     payRepo,
		identitySvc: identitySvc,
		gateway:     gateway,
	}
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

// getToken signs usr in, the password being "password".
func getToken(t *testing.T, app *testApp, usr user.User) string {
	t.Helper()
	_, token, err := app.identitySvc.SignIn(context.Background(), usr.Email, "password", "")
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj(): %v", err)
	}
	return data
}

func unmarshallObj(t *testing.T, data []byte, obj interface{}) {
	if err := json.Unmarshal(data, obj); err != nil {
		t.Fatalf("unmarshallObj(): %v", err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app *testApp, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
