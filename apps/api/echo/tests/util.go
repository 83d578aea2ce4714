package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"

	. "github.com/trezcool/quizdesk/apps/api/echo"
	"github.com/trezcool/quizdesk/core"
	"github.com/trezcool/quizdesk/core/credential"
	"github.com/trezcool/quizdesk/core/quiz"
	"github.com/trezcool/quizdesk/core/settings"
	appfs "github.com/trezcool/quizdesk/fs"
	"github.com/trezcool/quizdesk/services/email"
	"github.com/trezcool/quizdesk/services/events"
	"github.com/trezcool/quizdesk/services/logger"
	"github.com/trezcool/quizdesk/storage/database/inmem"
)

const (
	pwd      = "s3cretPass"
	college  = "nit-trichy"
	override = "c0ordinator-override"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type app struct {
	conf      *core.Config
	server    *Server
	credRepo  credential.Repository
	quizRepo  quiz.Repository
	settings  *settings.Service
	mailSvc   *emailsvc.ConsoleServiceMock
	publisher *eventsvc.PublisherMock
}

func setup(t *testing.T, configure ...func(*core.Config)) app {
	t.Helper()
	return setupWithCredentialRepo(t, nil, configure...)
}

// setupWithCredentialRepo is setup, with the credential service running on wrap(credRepo).
func setupWithCredentialRepo(
	t *testing.T,
	wrap func(credential.Repository) credential.Repository,
	configure ...func(*core.Config),
) app {
	t.Helper()
	conf := core.NewTestConfig()
	for _, fn := range configure {
		fn(conf)
	}
	logger := logsvc.NewRollbarLogger(log.Default(), conf)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	credential.InitValidators(validate, translator)
	quiz.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, appfs.FS, appfs.EmailTemplatesDir, logger)

	// set up DB & repos
	db := inmemdb.Open()
	a := app{
		conf:      conf,
		credRepo:  inmemdb.NewCredentialRepository(db),
		quizRepo:  inmemdb.NewQuizRepository(db),
		mailSvc:   emailsvc.NewConsoleServiceMock(conf),
		publisher: eventsvc.NewPublisherMock(),
	}

	// set up services
	quizSvc := quiz.NewService(a.quizRepo)
	a.settings = settings.NewService(inmemdb.NewSettingsRepository(db))
	if err := a.settings.SetOverridePassword(context.Background(), college, override); err != nil {
		t.Fatalf("setup() failed: %v", err)
	}

	// set up server
	credRepo := a.credRepo
	if wrap != nil {
		credRepo = wrap(credRepo)
	}
	a.server = NewServer(ServerDeps{
		Conf:          conf,
		Logger:        logger,
		Validate:      validate,
		Translator:    translator,
		CredentialSvc: credential.NewService(credRepo, quizSvc, a.mailSvc, a.publisher, logger),
		QuizSvc:       quizSvc,
		SettingsSvc:   a.settings,
	})
	return a
}

func (a app) serve(req *http.Request, rec *httptest.ResponseRecorder) {
	a.server.ServeHTTP(rec, req)
}

func (a app) reload(t *testing.T, id string) credential.Credential {
	t.Helper()
	cred, err := a.credRepo.GetCredential(context.Background(), credential.GetFilter{ID: id})
	if err != nil {
		t.Fatalf("reload() failed: %v", err)
	}
	return cred
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

func getToken(t *testing.T, conf *core.Config, cred credential.Credential) string {
	t.Helper()
	token, err := GenerateToken(conf, GetCredentialClaims(conf, cred))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func getAdminToken(t *testing.T, conf *core.Config) string {
	t.Helper()
	token, err := GenerateToken(conf, GetAdminClaims(conf, college))
	if err != nil {
		t.Fatalf("getAdminToken() failed: %v", err)
	}
	return token
}

func marshallObj(t *testing.T, obj interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

func marshallList(t *testing.T, objs ...interface{}) []byte {
	t.Helper()
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marshallList() failed: %v", err)
	}
	return data
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
	t.Helper()
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

func decodeToken(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decodeToken() failed: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("decodeToken(): empty token")
	}
	return resp.Token
}
