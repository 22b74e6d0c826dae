package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/campusmentor/campusmentor/apps/api/echo"
	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/certificate"
	"github.com/campusmentor/campusmentor/core/doubt"
	"github.com/campusmentor/campusmentor/core/ledger"
	"github.com/campusmentor/campusmentor/core/notification"
	"github.com/campusmentor/campusmentor/core/stats"
	"github.com/campusmentor/campusmentor/core/submission"
	"github.com/campusmentor/campusmentor/core/user"
	metricsvc "github.com/campusmentor/campusmentor/services/metrics"
	"github.com/campusmentor/campusmentor/storage/artifact"
	sqlxrepos "github.com/campusmentor/campusmentor/storage/database/sqlx"
	"github.com/campusmentor/campusmentor/testutil"
)

const pwd = "Xk9#mLp2qR"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	srv      Server
	conf     *core.Config
	clock    *testutil.Clock
	tokens   *TokenIssuer
	usrRepo  user.Repository
	doubts   *doubt.Service
	ldgr     *ledger.Service
	notifSvc *notification.Service
	uploads  *artifact.LocalStore
}

func setup(t *testing.T) *env {
	db := testutil.OpenDB(t)
	conf := core.NewTestConfig()
	clock := testutil.NewClock()
	logger := new(testutil.Logger)

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	usrRepo := sqlxrepos.NewUserRepository(db)
	usrSvc := user.NewService(usrRepo, validate, clock)
	notifSvc := notification.NewService(sqlxrepos.NewNotificationRepository(db), clock, logger)
	uploads := artifact.NewLocalStore(t.TempDir(), conf.Storage.BaseURL)
	certSvc := certificate.NewService(
		sqlxrepos.NewCertificateRepository(db), usrSvc, certificate.PDFRenderer{}, uploads, notifSvc,
		clock, logger, nil, certificate.Options{AppName: conf.AppName, Threshold: conf.CertificateThreshold},
	)
	ldgr := ledger.NewService(db, sqlxrepos.NewLedgerRepository(db), certSvc, clock, logger, nil, conf.CertificateThreshold)
	doubtSvc := doubt.NewService(
		db, sqlxrepos.NewDoubtRepository(db), usrSvc, ldgr, notifSvc, validate, clock, logger, nil,
		doubt.Options{Window: conf.Escalation.Window, RandIntn: func(int) int { return 0 }},
	)
	subSvc := submission.NewService(db, sqlxrepos.NewSubmissionRepository(db), usrSvc, ldgr, notifSvc, validate, clock)

	srv := NewServer(&Options{
		Conf:            conf,
		DisableReqLogs:  true,
		Logger:          logger,
		Clock:           clock,
		Validate:        validate,
		Translator:      translator,
		Metrics:         metricsvc.NewPrometheus(),
		DB:              db,
		Uploads:         uploads,
		UploadsDir:      uploads.Dir(),
		UserSvc:         usrSvc,
		DoubtSvc:        doubtSvc,
		SubmissionSvc:   subSvc,
		LedgerSvc:       ldgr,
		CertificateSvc:  certSvc,
		NotificationSvc: notifSvc,
		StatsSvc:        stats.NewService(sqlxrepos.NewStatsRepository(db)),
	})

	return &env{
		srv:      srv,
		conf:     conf,
		clock:    clock,
		tokens:   NewTokenIssuer(conf, clock),
		usrRepo:  usrRepo,
		doubts:   doubtSvc,
		ldgr:     ldgr,
		notifSvc: notifSvc,
		uploads:  uploads,
	}
}

func (e *env) createUser(t *testing.T, name, email string, role user.Role, department string) user.User {
	return testutil.CreateUser(t, e.usrRepo, name, email, role, department, pwd)
}

func (e *env) deactivate(t *testing.T, usr user.User) {
	if _, err := e.usrRepo.SetActive(context.Background(), usr.ID, false, e.clock.Now()); err != nil {
		t.Fatalf("deactivate() failed: %v", err)
	}
}

func (e *env) do(req *http.Request, rec *httptest.ResponseRecorder) *httptest.ResponseRecorder {
	e.srv.ServeHTTP(rec, req)
	return rec
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

type formFile struct {
	field, name string
	content     []byte
}

func newMultipartRequest(t *testing.T, path, token string, fields map[string]string, files ...formFile) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("newMultipartRequest() failed: %v", err)
		}
	}
	for _, f := range files {
		fw, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("newMultipartRequest() failed: %v", err)
		}
		_, _ = fw.Write(f.content)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("newMultipartRequest() failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, e *env, usr user.User) string {
	token, err := e.tokens.Token(usr)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), dest); err != nil {
		t.Fatalf("unmarshal(%s) failed: %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, e *env, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			checkCodeAndData(t, tt, e.do(req, rec))
		})
	}
}
