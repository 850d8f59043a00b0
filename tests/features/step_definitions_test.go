package features

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Jeffail/gabs/v2"
	"github.com/PaesslerAG/jsonpath"
	"github.com/cucumber/godog"

	"github.com/wes-dispatch/wes-dispatch/cmd/wes_dispatch/server"
	"github.com/wes-dispatch/wes-dispatch/internal/config"
	"github.com/wes-dispatch/wes-dispatch/internal/dispatcher"
	"github.com/wes-dispatch/wes-dispatch/internal/events"
	"github.com/wes-dispatch/wes-dispatch/internal/logging"
	"github.com/wes-dispatch/wes-dispatch/internal/runtimes"
	"github.com/wes-dispatch/wes-dispatch/internal/storage"
	"github.com/wes-dispatch/wes-dispatch/internal/validation"
)

var (
	// api is shared by all the scenarios of the suite
	api *apiFeature
)

type apiFeature struct {
	baseURL    *url.URL
	server     *server.Server
	httpServer *http.Server
	dispatcher *dispatcher.Dispatcher
	client     *http.Client
}

// scenarioConfig holds the state of one scenario so that scenarios do not
// overwrite each other's data.
type scenarioConfig struct {
	scenarioName string
	apiFeature   *apiFeature
	response     *http.Response
	body         []byte

	lastId string
}

func logDebug(format string, a ...any) {
	fmt.Printf(format, a...)
}

func checkBaseURL(uri *url.URL, from string) {
	if uri == nil {
		panic("Invalid baseURL: nil from " + from)
	}
	if uri.String() == "" {
		panic("Empty baseURL from  " + from)
	}
}

func createApiFeature() (*apiFeature, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	if serverURL := os.Getenv("SERVER_URL"); serverURL != "" {
		uri, err := url.Parse(serverURL)
		if err != nil {
			return nil, fmt.Errorf("Invalid SERVER_URL: %v", err)
		}
		checkBaseURL(uri, serverURL)
		return &apiFeature{client: client, baseURL: uri}, nil
	}

	port := 8080
	if sport := os.Getenv("PORT"); sport != "" {
		if eport, err := strconv.Atoi(sport); err != nil {
			logDebug("Invalid PORT: %v\n", err.Error())
		} else {
			port = eport
		}
	}

	uri := fmt.Sprintf("http://localhost:%d", port)
	baseURL, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("Invalid baseURL: %v", err)
	}
	checkBaseURL(baseURL, uri)

	api := &apiFeature{client: client, baseURL: baseURL}
	if err := api.startLocalServer(port); err != nil {
		return nil, err
	}
	return api, nil
}

func (a *apiFeature) startLocalServer(port int) error {
	logger, _, err := logging.NewLogger()
	if err != nil {
		return err
	}
	validate, err := validation.NewValidator()
	if err != nil {
		return fmt.Errorf("failed to create validator: %w", err)
	}
	// tests/config.yaml runs the engine locally
	serviceConfig, err := config.LoadConfig(logger, "0.0.1", "local", time.Now().Format(time.RFC3339), "..", "tests")
	if err != nil {
		return fmt.Errorf("failed to load service config: %w", err)
	}
	serviceConfig.Service.Port = port
	serviceConfig.Service.LocalMode = true

	store, err := storage.NewStorage(serviceConfig.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to create storage: %w", err)
	}
	logger.Info("Storage created.")

	runtime, err := runtimes.NewRuntime(logger, serviceConfig)
	if err != nil {
		return fmt.Errorf("failed to create runtime: %w", err)
	}

	a.dispatcher, err = dispatcher.New(logger, store, runtime, events.NoopSender{}, serviceConfig.GetDispatcherConfig())
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}

	a.server, err = server.NewServer(logger, serviceConfig, store, validate, a.dispatcher)
	if err != nil {
		return err
	}

	handler, err := a.server.SetupRoutes()
	if err != nil {
		return err
	}
	a.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: handler,
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return err
	}

	go func() {
		_ = a.httpServer.Serve(listener)
	}()

	return nil
}

func (a *apiFeature) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.httpServer != nil {
		_ = a.httpServer.Shutdown(ctx)
	}
	if a.dispatcher != nil {
		_ = a.dispatcher.Wait(ctx)
	}
}

func (tc *scenarioConfig) theServiceIsRunning(ctx context.Context) error {
	var err error
	for range 10 {
		if err = tc.checkHealthEndpoint(); err == nil {
			return nil
		}
		logDebug("Error checking health endpoint: %v\n", err.Error())
		time.Sleep(1 * time.Second)
	}
	return err
}

func (tc *scenarioConfig) checkHealthEndpoint() error {
	if err := tc.iSendARequestTo("GET", "/api/v1/health"); err != nil {
		return fmt.Errorf("failed to send health check request: %w for URL %s", err, tc.apiFeature.baseURL.String())
	}
	if tc.response.StatusCode != 200 {
		return fmt.Errorf("expected status 200, got %d", tc.response.StatusCode)
	}

	match := "\"status\":\"healthy\""
	if !strings.Contains(string(tc.body), match) {
		return fmt.Errorf("expected body to contain %s, got %s", match, string(tc.body))
	}

	return nil
}

func (tc *scenarioConfig) iSendARequestTo(method, path string) error {
	return tc.iSendARequestToWithBody(method, path, "")
}

func (tc *scenarioConfig) findFile(fileName string) (string, error) {
	file := filepath.Join("test_data", fileName)
	if _, err := os.Stat(file); os.IsNotExist(err) {
		path, _ := os.Getwd()
		return "", fmt.Errorf("test file %s not found in directory %s", fileName, path)
	}
	return file, nil
}

func (tc *scenarioConfig) getRequestBody(body string) (io.Reader, error) {
	if body == "" {
		return nil, nil
	}
	// this can be an inline body or a test file
	if strings.HasPrefix(body, "file:/") {
		filePath, err := tc.findFile(strings.TrimPrefix(body, "file:/"))
		if err != nil {
			return nil, err
		}
		return os.Open(filePath)
	}
	return strings.NewReader(body), nil
}

func (tc *scenarioConfig) iSendARequestToWithBody(method, path, body string) error {
	entity, err := tc.getRequestBody(body)
	if err != nil {
		return err
	}
	return tc.send(method, path, entity)
}

func (tc *scenarioConfig) send(method, path string, entity io.Reader) error {
	if strings.Contains(path, "{id}") {
		if tc.lastId == "" {
			return fmt.Errorf("last ID is not set")
		}
		path = strings.Replace(path, "{id}", tc.lastId, 1)
	}

	req, err := http.NewRequest(method, tc.apiFeature.baseURL.String()+path, entity)
	if err != nil {
		return err
	}
	if closer, ok := entity.(io.Closer); ok {
		defer closer.Close()
	}

	tc.response, err = tc.apiFeature.client.Do(req)
	if err != nil {
		return err
	}
	defer tc.response.Body.Close()

	tc.body, err = io.ReadAll(tc.response.Body)
	if err != nil {
		return err
	}

	if method == http.MethodPost && path == "/api/v1/runs" && tc.response.StatusCode == http.StatusOK {
		parsed, err := gabs.ParseJSON(tc.body)
		if err != nil {
			return err
		}
		id, ok := parsed.Path("run_id").Data().(string)
		if !ok || id == "" {
			return fmt.Errorf("response does not contain a run_id in response %s", string(tc.body))
		}
		tc.lastId = id
	}

	return nil
}

// iSubmitARunFor builds the submission from the base request in test_data and
// replaces its workflow url.
func (tc *scenarioConfig) iSubmitARunFor(workflowURL string) error {
	filePath, err := tc.findFile("run_request.json")
	if err != nil {
		return err
	}
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	request, err := gabs.ParseJSON(raw)
	if err != nil {
		return err
	}
	if _, err := request.Set(workflowURL, "workflow_url"); err != nil {
		return err
	}
	if _, err := request.Set(tc.scenarioName, "tags", "scenario"); err != nil {
		return err
	}
	return tc.send(http.MethodPost, "/api/v1/runs", strings.NewReader(request.String()))
}

func (tc *scenarioConfig) theRunShouldReachState(state string) error {
	deadline := time.Now().Add(10 * time.Second)
	for {
		if err := tc.iSendARequestTo(http.MethodGet, "/api/v1/runs/{id}"); err != nil {
			return err
		}
		current, err := tc.valueAt("$.state")
		if err == nil && current == state {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("run %s did not reach state %s, last response %s", tc.lastId, state, string(tc.body))
		}
		time.Sleep(200 * time.Millisecond)
	}
}

func (tc *scenarioConfig) theResponseStatusShouldBe(status int) error {
	if tc.response.StatusCode != status {
		return fmt.Errorf("expected status %d, got %d: %s", status, tc.response.StatusCode, string(tc.body))
	}
	return nil
}

func (tc *scenarioConfig) theResponseShouldBeJSON() error {
	contentType := tc.response.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		return fmt.Errorf("expected JSON content type, got %s", contentType)
	}

	var js any
	if err := json.Unmarshal(tc.body, &js); err != nil {
		return fmt.Errorf("response is not valid JSON: %v", err)
	}

	return nil
}

func (tc *scenarioConfig) valueAt(path string) (string, error) {
	var data any
	if err := json.Unmarshal(tc.body, &data); err != nil {
		return "", err
	}
	value, err := jsonpath.Get(path, data)
	if err != nil {
		return "", fmt.Errorf("path %s not found in response %s: %w", path, string(tc.body), err)
	}
	switch v := value.(type) {
	case string:
		return v, nil
	case []any:
		if len(v) == 1 {
			return fmt.Sprint(v[0]), nil
		}
	}
	return fmt.Sprint(value), nil
}

func (tc *scenarioConfig) theResponsePathShouldBe(path, expected string) error {
	value, err := tc.valueAt(path)
	if err != nil {
		return err
	}
	if value != expected {
		return fmt.Errorf("expected %s to be %s, got %s", path, expected, value)
	}
	return nil
}

func (tc *scenarioConfig) theResponsePathShouldContain(path, expected string) error {
	value, err := tc.valueAt(path)
	if err != nil {
		return err
	}
	if !strings.Contains(value, expected) {
		return fmt.Errorf("expected %s to contain %s, got %s", path, expected, value)
	}
	return nil
}

func (tc *scenarioConfig) theResponseShouldContain(key string) error {
	parsed, err := gabs.ParseJSON(tc.body)
	if err != nil {
		return err
	}
	if !parsed.ExistsP(key) {
		return fmt.Errorf("response does not contain key: %s", key)
	}
	return nil
}

func (tc *scenarioConfig) theResponseShouldContainPrometheusMetrics() error {
	bodyStr := string(tc.body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		return fmt.Errorf("response does not appear to be Prometheus metrics format")
	}
	return nil
}

func (tc *scenarioConfig) theMetricsShouldInclude(metricName string) error {
	if !strings.Contains(string(tc.body), metricName) {
		return fmt.Errorf("metrics do not include %s", metricName)
	}
	return nil
}

func (tc *scenarioConfig) saveScenarioName(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	tc.scenarioName = sc.Name
	return ctx, nil
}

func createScenarioConfig(apiConfig *apiFeature) *scenarioConfig {
	return &scenarioConfig{apiFeature: apiConfig}
}

func setUpTestConf() {
	apiFeature, err := createApiFeature()
	if err != nil {
		panic(fmt.Errorf("failed to create API feature: %v", err))
	}
	api = apiFeature
}

func waitForService() {
	tc := createScenarioConfig(api)
	if err := tc.theServiceIsRunning(context.Background()); err != nil {
		panic("Stopped API Tests. Service is not ready for testing.\n")
	}
}

func tidyUpTests() {
	if api != nil {
		api.cleanup()
	}
}

func InitializeTestSuite(ctx *godog.TestSuiteContext) {
	http.DefaultTransport.(*http.Transport).TLSClientConfig = &tls.Config{
		MinVersion: tls.VersionTLS12,
		//nolint:gosec
		InsecureSkipVerify: true,
	}

	ctx.BeforeSuite(setUpTestConf)
	ctx.BeforeSuite(waitForService)
	ctx.AfterSuite(tidyUpTests)
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := createScenarioConfig(api)

	ctx.Before(tc.saveScenarioName)

	ctx.Step(`^the service is running$`, tc.theServiceIsRunning)
	ctx.Step(`^I send a (GET|DELETE|POST|PUT) request to "([^"]*)"$`, tc.iSendARequestTo)
	ctx.Step(`^I send a (POST|PUT|PATCH) request to "([^"]*)" with body "([^"]*)"$`, tc.iSendARequestToWithBody)
	ctx.Step(`^I submit a run for workflow "([^"]*)"$`, tc.iSubmitARunFor)
	ctx.Step(`^the run should reach state "([^"]*)"$`, tc.theRunShouldReachState)
	ctx.Step(`^the response code should be (\d+)$`, tc.theResponseStatusShouldBe)
	ctx.Step(`^the response should be JSON$`, tc.theResponseShouldBeJSON)
	ctx.Step(`^the response path "([^"]*)" should be "([^"]*)"$`, tc.theResponsePathShouldBe)
	ctx.Step(`^the response path "([^"]*)" should contain "([^"]*)"$`, tc.theResponsePathShouldContain)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)
	ctx.Step(`^the response should contain Prometheus metrics$`, tc.theResponseShouldContainPrometheusMetrics)
	ctx.Step(`^the metrics should include "([^"]*)"$`, tc.theMetricsShouldInclude)
}
