package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/alchemorsel/dietgen/internal/infrastructure/events"
	"github.com/alchemorsel/dietgen/internal/infrastructure/monitoring"
	"github.com/alchemorsel/dietgen/internal/infrastructure/security"
	"github.com/alchemorsel/dietgen/internal/ports/inbound"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) CreateJob(ctx context.Context, cmd inbound.CreateJobCommand) (*inbound.CreateJobResult, error) {
	args := m.Called(ctx, cmd)
	res, _ := args.Get(0).(*inbound.CreateJobResult)
	return res, args.Error(1)
}

func (m *mockService) CancelJob(ctx context.Context, jobID, userID string) error {
	return m.Called(ctx, jobID, userID).Error(0)
}

func (m *mockService) RecalculateDiet(ctx context.Context, dietID, userID string) (*diet.Diet, error) {
	args := m.Called(ctx, dietID, userID)
	d, _ := args.Get(0).(*diet.Diet)
	return d, args.Error(1)
}

func (m *mockService) GetJob(ctx context.Context, jobID, userID string) (*inbound.JobDTO, error) {
	args := m.Called(ctx, jobID, userID)
	d, _ := args.Get(0).(*inbound.JobDTO)
	return d, args.Error(1)
}

func (m *mockService) GetDiet(ctx context.Context, dietID, userID string) (*diet.Diet, error) {
	args := m.Called(ctx, dietID, userID)
	d, _ := args.Get(0).(*diet.Diet)
	return d, args.Error(1)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type ServerTestSuite struct {
	suite.Suite
	service *mockService
	events  *events.Dispatcher
	auth    *security.AuthService
	metrics *monitoring.PipelineMetrics
	db      pinger
	cfg     config.Config
	token   string
}

func (s *ServerTestSuite) SetupTest() {
	s.service = new(mockService)
	s.events = events.NewDispatcher(zap.NewNop())
	s.auth = security.NewAuthService(config.AuthConfig{JWTSecret: "server-test-secret", Issuer: "dietgen"}, zap.NewNop())
	s.metrics = monitoring.NewPipelineMetrics()
	s.db = pinger{}
	s.cfg = config.Config{
		App: config.AppConfig{Version: "1.2.3", Environment: "test"},
		Server: config.ServerConfig{
			AllowedOrigins:     []string{"*"},
			RateLimitPerMinute: 60,
			RateLimitBurst:     2,
		},
		Monitoring: config.MonitoringConfig{EnableMetrics: true},
	}

	var err error
	s.token, err = s.auth.GenerateAccessToken("user-1", "ana@example.com")
	s.Require().NoError(err)
}

func (s *ServerTestSuite) handler() http.Handler {
	return NewServer(s.cfg, Deps{
		Service:  s.service,
		Events:   s.events,
		Auth:     s.auth,
		Database: s.db,
		Metrics:  s.metrics,
	}, zap.NewNop()).Handler()
}

func (s *ServerTestSuite) do(method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	rec := httptest.NewRecorder()
	s.handler().ServeHTTP(rec, req)
	return rec
}

func (s *ServerTestSuite) errorCode(rec *httptest.ResponseRecorder) string {
	var body apperrors.ErrorResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &body))
	return string(body.Error.Code)
}

func (s *ServerTestSuite) TestCreateJobUsesCallerIdentity() {
	s.service.On("CreateJob", mock.Anything, mock.MatchedBy(func(cmd inbound.CreateJobCommand) bool {
		return cmd.UserID == "user-1" && len(cmd.SelectedGoals) == 1 && cmd.SelectedGoals[0] == "quero ganhar massa"
	})).Return(&inbound.CreateJobResult{Success: true, JobID: "job-1"}, nil)

	rec := s.do(http.MethodPost, "/api/v1/diet-jobs", `{"userId":"intruder","selectedGoals":["quero ganhar massa"]}`)

	s.Equal(http.StatusAccepted, rec.Code)
	s.Equal("/api/v1/diet-jobs/job-1", rec.Header().Get("Location"))
	var res inbound.CreateJobResult
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &res))
	s.True(res.Success)
	s.Equal("job-1", res.JobID)
	s.service.AssertExpectations(s.T())
}

func (s *ServerTestSuite) TestCreateJobRejectsBadBodies() {
	rec := s.do(http.MethodPost, "/api/v1/diet-jobs", `{"selectedGoals":`)
	s.Equal(http.StatusBadRequest, rec.Code)
	s.Equal(string(apperrors.CodeInvalidArgument), s.errorCode(rec))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/diet-jobs", strings.NewReader("goal=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec = httptest.NewRecorder()
	s.handler().ServeHTTP(rec, req)
	s.Equal(http.StatusBadRequest, rec.Code)

	s.service.AssertNotCalled(s.T(), "CreateJob", mock.Anything, mock.Anything)
}

func (s *ServerTestSuite) TestServiceErrorsMapToStatus() {
	s.service.On("GetJob", mock.Anything, "missing", "user-1").Return(nil, apperrors.NewNotFoundError("Pedido"))
	s.service.On("GetJob", mock.Anything, "theirs", "user-1").Return(nil, apperrors.NewForbiddenError(""))
	s.service.On("GetDiet", mock.Anything, "broken", "user-1").Return(nil, errors.New("disk on fire"))
	s.service.On("CancelJob", mock.Anything, "done", "user-1").Return(apperrors.NewConflictError("O pedido já foi finalizado."))

	rec := s.do(http.MethodGet, "/api/v1/diet-jobs/missing", "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal(string(apperrors.CodeNotFound), s.errorCode(rec))

	rec = s.do(http.MethodGet, "/api/v1/diet-jobs/theirs", "")
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/diets/broken", "")
	s.Equal(http.StatusInternalServerError, rec.Code)
	s.NotContains(rec.Body.String(), "disk on fire")
	s.Contains(rec.Body.String(), apperrors.GenericMessage)

	rec = s.do(http.MethodPost, "/api/v1/diet-jobs/done/cancel", "")
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *ServerTestSuite) TestGetJobCancelAndDiet() {
	s.service.On("GetJob", mock.Anything, "job-1", "user-1").Return(&inbound.JobDTO{
		ID: "job-1", Status: job.StatusSelecting, ProgressLog: []string{"a", "b"},
	}, nil)
	s.service.On("CancelJob", mock.Anything, "job-1", "user-1").Return(nil)
	s.service.On("GetDiet", mock.Anything, "diet-1", "user-1").Return(&diet.Diet{ID: "diet-1", TotalPrice: 120.5}, nil)
	s.service.On("RecalculateDiet", mock.Anything, "diet-1", "user-1").Return(&diet.Diet{ID: "diet-1", TotalPrice: 99.9}, nil)

	rec := s.do(http.MethodGet, "/api/v1/diet-jobs/job-1", "")
	s.Equal(http.StatusOK, rec.Code)
	var dto inbound.JobDTO
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &dto))
	s.Equal(job.StatusSelecting, dto.Status)
	s.Len(dto.ProgressLog, 2)

	rec = s.do(http.MethodPost, "/api/v1/diet-jobs/job-1/cancel", "")
	s.Equal(http.StatusAccepted, rec.Code)

	rec = s.do(http.MethodGet, "/api/v1/diets/diet-1", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"totalPrice":120.5`)

	rec = s.do(http.MethodPost, "/api/v1/diets/diet-1/recalculate", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"totalPrice":99.9`)
}

func (s *ServerTestSuite) TestAuthenticationRequired() {
	s.token = ""
	rec := s.do(http.MethodGet, "/api/v1/diet-jobs/job-1", "")
	s.Equal(http.StatusUnauthorized, rec.Code)
	s.Equal("UNAUTHENTICATED", s.errorCode(rec))

	s.token = "not-a-jwt"
	rec = s.do(http.MethodGet, "/api/v1/diet-jobs/job-1", "")
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *ServerTestSuite) TestCreateIsRateLimitedPerUser() {
	s.service.On("CreateJob", mock.Anything, mock.Anything).Return(&inbound.CreateJobResult{Success: true, JobID: "j"}, nil)
	h := s.handler()

	send := func() int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/diet-jobs", strings.NewReader(`{"selectedGoals":["x"]}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+s.token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	s.Equal(http.StatusAccepted, send())
	s.Equal(http.StatusAccepted, send())
	s.Equal(http.StatusTooManyRequests, send())
}

func (s *ServerTestSuite) TestHealthAndMetrics() {
	s.token = ""
	rec := s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"version":"1.2.3"`)
	s.Contains(rec.Body.String(), `"database":"up"`)

	s.db = pinger{err: errors.New("connection refused")}
	rec = s.do(http.MethodGet, "/health", "")
	s.Equal(http.StatusServiceUnavailable, rec.Code)
	s.Contains(rec.Body.String(), `"database":"down"`)

	rec = s.do(http.MethodGet, "/metrics", "")
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `dietgen_http_requests_total{method="GET",route="/health",status_code="200"} 1`)
}

func (s *ServerTestSuite) TestUnknownRoute() {
	rec := s.do(http.MethodGet, "/nope", "")
	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal(string(apperrors.CodeNotFound), s.errorCode(rec))
}

func (s *ServerTestSuite) TestStreamPushesSnapshotsUntilFinished() {
	running := &inbound.JobDTO{ID: "job-1", Status: job.StatusInterpreting, ProgressLog: []string{"a"}}
	done := &inbound.JobDTO{ID: "job-1", Status: job.StatusCompleted, Finished: true, DietID: "diet-1", ProgressLog: []string{"a", "b"}}
	s.service.On("GetJob", mock.Anything, "job-1", "user-1").Return(running, nil).Once()
	s.service.On("GetJob", mock.Anything, "job-1", "user-1").Return(done, nil)

	srv := httptest.NewServer(s.handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/diet-jobs/job-1/stream?access_token=" + s.token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first inbound.JobDTO
	s.Require().NoError(conn.ReadJSON(&first))
	s.Equal(job.StatusInterpreting, first.Status)

	// Events for other jobs are ignored.
	s.events.Dispatch(job.UpdatedEvent{JobID: "other", Status: job.StatusCompleted})
	s.events.Dispatch(job.FinishedEvent{JobID: "job-1", Status: job.StatusCompleted, DietID: "diet-1"})

	var last inbound.JobDTO
	s.Require().NoError(conn.ReadJSON(&last))
	s.True(last.Finished)
	s.Equal("diet-1", last.DietID)

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	s.Require().ErrorAs(err, &closeErr)
	s.Equal(websocket.CloseNormalClosure, closeErr.Code)
}

func (s *ServerTestSuite) TestStreamReloadsStepsCommittedElsewhere() {
	s.cfg.Server.StreamReloadInterval = 20 * time.Millisecond
	running := &inbound.JobDTO{ID: "job-1", Status: job.StatusConsulting, ProgressLog: []string{"a"}}
	done := &inbound.JobDTO{ID: "job-1", Status: job.StatusCompleted, Finished: true, DietID: "diet-1", ProgressLog: []string{"a", "b"}}
	s.service.On("GetJob", mock.Anything, "job-1", "user-1").Return(running, nil).Twice()
	s.service.On("GetJob", mock.Anything, "job-1", "user-1").Return(done, nil)

	srv := httptest.NewServer(s.handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/diet-jobs/job-1/stream?access_token=" + s.token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var first inbound.JobDTO
	s.Require().NoError(conn.ReadJSON(&first))
	s.Equal(job.StatusConsulting, first.Status)

	// No local event is dispatched; the reload alone delivers the result.
	var last inbound.JobDTO
	s.Require().NoError(conn.ReadJSON(&last))
	s.True(last.Finished)
	s.Equal("diet-1", last.DietID)
}

func (s *ServerTestSuite) TestStreamRejectsForeignJobBeforeUpgrade() {
	s.service.On("GetJob", mock.Anything, "job-2", "user-1").Return(nil, apperrors.NewForbiddenError(""))

	srv := httptest.NewServer(s.handler())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/diet-jobs/job-2/stream?access_token=" + s.token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().Error(err)
	s.Require().NotNil(resp)
	s.Equal(http.StatusForbidden, resp.StatusCode)
}

func TestServerTestSuite(t *testing.T) {
	suite.Run(t, new(ServerTestSuite))
}
