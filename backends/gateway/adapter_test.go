package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-approvals/backends/devkit"
	"github.com/goliatone/go-approvals/core"
	goerrors "github.com/goliatone/go-errors"
)

func testGatewayConfig() core.GatewayConfig {
	cfg := core.DefaultConfig().Gateway
	cfg.DetailsURL = "https://gw.example/api-gateway/obremo-srv-cmn-transaction-services/ejlog/get?EJLogId"
	cfg.ApproveURL = "https://gw.example/api-gateway/obremo-srv-cmn-transaction-services/approve"
	cfg.AuthURL = "https://gw.example/auth/init"
	cfg.RefreshURL = "https://gw.example/auth/refresh"
	return cfg
}

func seededTokens(appIDs ...string) *core.TokenStore {
	tokens := core.NewTokenStore()
	for _, appID := range appIDs {
		tokens.SetToken(appID, "handoff-1")
	}
	return tokens
}

func newTestAdapter(t *testing.T, tokens *core.TokenStore, scripts ...devkit.TransportScript) (*Adapter, *devkit.FakeTransportAdapter) {
	t.Helper()
	fake := devkit.NewFakeTransportAdapter("rest", scripts...)
	adapter, err := NewAdapter(testGatewayConfig(), tokens, fake)
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	return adapter, fake
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestCoordinator_ConcurrentCallersShareOneBootstrap(t *testing.T) {
	tokens := seededTokens("SECSRV001")
	fake := devkit.NewFakeTransportAdapter("rest", devkit.TransportScript{
		Match:    "/auth/init",
		Response: devkit.JSONResponse(http.StatusOK, `{"access_token":"jwt-1"}`),
	})
	fake.Hold()
	coordinator := NewCoordinator(testGatewayConfig(), tokens, fake)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- coordinator.EnsureBootstrap(context.Background(), BootstrapRequest{AppID: "SECSRV001"})
		}()
	}
	waitFor(t, func() bool { return len(fake.Requests()) == 1 })
	if !coordinator.State("SECSRV001").InFlight {
		t.Fatalf("expected in-flight state while upstream call is pending")
	}
	fake.Release()
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected bootstrap error: %v", err)
		}
	}
	if got := len(fake.Requests()); got != 1 {
		t.Fatalf("expected exactly one init call, got %d", got)
	}
	state := coordinator.State("SECSRV001")
	if !state.Initialized || state.InFlight || state.LastInitAt.IsZero() {
		t.Fatalf("unexpected state %#v", state)
	}
	record, ok := tokens.Credential(core.SessionKey("SECSRV001"))
	if !ok || record.Value != "jwt-1" || record.Class != core.CredentialClassDerivedSession {
		t.Fatalf("expected derived session token stored, got %#v", record)
	}

	request := fake.Requests()[0]
	if request.Method != http.MethodPost || string(request.Body) != "{}" {
		t.Fatalf("unexpected init request %#v", request)
	}
	for key, want := range map[string]string{
		"appId":            "SECSRV001",
		"callBackToken":    "handoff-1",
		"branchCode":       "000",
		"sourceCode":       "FCUBS",
		"userId":           "TRAINEE2",
		"entityId":         "DEFAULTENTITY",
		"multiEntityAdmin": "N",
	} {
		if request.Headers[key] != want {
			t.Fatalf("expected header %s=%q, got %q", key, want, request.Headers[key])
		}
	}
}

func TestCoordinator_CancelledWaiterDoesNotCancelSharedCall(t *testing.T) {
	tokens := seededTokens("SECSRV001")
	fake := devkit.NewFakeTransportAdapter("rest")
	fake.Hold()
	coordinator := NewCoordinator(testGatewayConfig(), tokens, fake)

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		first <- coordinator.EnsureBootstrap(ctx, BootstrapRequest{AppID: "SECSRV001"})
	}()
	waitFor(t, func() bool { return len(fake.Requests()) == 1 })
	cancel()
	if err := <-first; err != context.Canceled {
		t.Fatalf("expected cancelled waiter, got %v", err)
	}

	second := make(chan error, 1)
	go func() {
		second <- coordinator.EnsureBootstrap(context.Background(), BootstrapRequest{AppID: "SECSRV001"})
	}()
	fake.Release()
	if err := <-second; err != nil {
		t.Fatalf("expected shared call to complete, got %v", err)
	}
	if got := len(fake.Requests()); got != 1 {
		t.Fatalf("expected one init call, got %d", got)
	}
	if !coordinator.State("SECSRV001").Initialized {
		t.Fatalf("expected initialised state")
	}
}

func TestCoordinator_FailedBootstrapIsRetriedLater(t *testing.T) {
	tokens := seededTokens("SECSRV001")
	fake := devkit.NewFakeTransportAdapter("rest",
		devkit.TransportScript{Response: devkit.JSONResponse(http.StatusInternalServerError, `{"error":"boom"}`)},
		devkit.TransportScript{Response: devkit.JSONResponse(http.StatusOK, `not-json`)},
	)
	coordinator := NewCoordinator(testGatewayConfig(), tokens, fake)

	err := coordinator.EnsureBootstrap(context.Background(), BootstrapRequest{AppID: "SECSRV001"})
	if !core.IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if coordinator.State("SECSRV001").Initialized {
		t.Fatalf("expected state to stay uninitialised after failure")
	}
	if err := coordinator.EnsureBootstrap(context.Background(), BootstrapRequest{AppID: "SECSRV001"}); err != nil {
		t.Fatalf("expected second bootstrap to succeed with a non-JSON body: %v", err)
	}
	if !coordinator.State("SECSRV001").Initialized {
		t.Fatalf("expected initialised state")
	}
}

func TestCoordinator_BootstrapExpiresAfterTTL(t *testing.T) {
	tokens := seededTokens("SECSRV001")
	fake := devkit.NewFakeTransportAdapter("rest")
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	coordinator := NewCoordinator(testGatewayConfig(), tokens, fake,
		WithCoordinatorClock(func() time.Time { return current }),
	)
	ctx := context.Background()

	if err := coordinator.EnsureBootstrap(ctx, BootstrapRequest{AppID: "SECSRV001"}); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	current = current.Add(30 * time.Minute)
	if err := coordinator.EnsureBootstrap(ctx, BootstrapRequest{AppID: "SECSRV001"}); err != nil {
		t.Fatalf("bootstrap within ttl: %v", err)
	}
	if got := len(fake.RequestsTo("/auth/init")); got != 1 {
		t.Fatalf("expected a fresh bootstrap to be reused, got %d init calls", got)
	}

	current = current.Add(26 * time.Minute)
	if err := coordinator.EnsureBootstrap(ctx, BootstrapRequest{AppID: "SECSRV001"}); err != nil {
		t.Fatalf("bootstrap after ttl: %v", err)
	}
	if got := len(fake.RequestsTo("/auth/init")); got != 2 {
		t.Fatalf("expected a second init call after 56m, got %d", got)
	}
	if state := coordinator.State("SECSRV001"); !state.LastInitAt.Equal(current) {
		t.Fatalf("expected last init time to move forward, got %s", state.LastInitAt)
	}
}

func TestCoordinator_FailedRebootstrapClearsInitialized(t *testing.T) {
	tokens := seededTokens("SECSRV001")
	fake := devkit.NewFakeTransportAdapter("rest",
		devkit.TransportScript{Response: devkit.JSONResponse(http.StatusOK, `{}`)},
		devkit.TransportScript{Response: devkit.JSONResponse(http.StatusBadGateway, `down`)},
	)
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	coordinator := NewCoordinator(testGatewayConfig(), tokens, fake,
		WithCoordinatorClock(func() time.Time { return current }),
		WithCoordinatorTTL(time.Minute),
	)
	ctx := context.Background()

	if err := coordinator.EnsureBootstrap(ctx, BootstrapRequest{AppID: "SECSRV001"}); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}
	current = current.Add(2 * time.Minute)
	if err := coordinator.EnsureBootstrap(ctx, BootstrapRequest{AppID: "SECSRV001"}); !core.IsTransportError(err) {
		t.Fatalf("expected transport error on re-bootstrap, got %v", err)
	}
	if coordinator.State("SECSRV001").Initialized {
		t.Fatalf("expected failed re-bootstrap to clear the initialised flag")
	}
}

func TestCoordinator_BootstrapWithoutHandoffMakesNoCall(t *testing.T) {
	fake := devkit.NewFakeTransportAdapter("rest")
	coordinator := NewCoordinator(testGatewayConfig(), core.NewTokenStore(), fake)

	err := coordinator.EnsureBootstrap(context.Background(), BootstrapRequest{AppID: "SECSRV001"})
	if !core.IsAuthenticationError(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if len(fake.Requests()) != 0 {
		t.Fatalf("expected no network calls")
	}
}

func TestCoordinator_ResetBootstrapState(t *testing.T) {
	tokens := seededTokens("SECSRV001", "SRVBRANCHCOMMON")
	fake := devkit.NewFakeTransportAdapter("rest")
	coordinator := NewCoordinator(testGatewayConfig(), tokens, fake)
	ctx := context.Background()

	for _, appID := range []string{"SECSRV001", "SRVBRANCHCOMMON"} {
		if err := coordinator.EnsureBootstrap(ctx, BootstrapRequest{AppID: appID}); err != nil {
			t.Fatalf("bootstrap %s: %v", appID, err)
		}
	}
	coordinator.ResetBootstrapState("SECSRV001")
	if coordinator.State("SECSRV001").Initialized || !coordinator.State("SRVBRANCHCOMMON").Initialized {
		t.Fatalf("expected single app id reset")
	}
	coordinator.ResetBootstrapState("")
	if coordinator.State("SRVBRANCHCOMMON").Initialized {
		t.Fatalf("expected full reset")
	}
	if err := coordinator.EnsureBootstrap(ctx, BootstrapRequest{AppID: "SECSRV001"}); err != nil {
		t.Fatalf("bootstrap after reset: %v", err)
	}
	if got := len(fake.Requests()); got != 3 {
		t.Fatalf("expected bootstrap to run again after reset, got %d calls", got)
	}
}

func TestCoordinator_RefreshJWT(t *testing.T) {
	tokens := seededTokens("SECSRV001")
	tokens.SetToken(core.SessionKey("SECSRV001"), "jwt-old")
	fake := devkit.NewFakeTransportAdapter("rest", devkit.TransportScript{
		Match:    "/auth/refresh",
		Response: devkit.JSONResponse(http.StatusOK, `{"token":"jwt-new"}`),
	})
	coordinator := NewCoordinator(testGatewayConfig(), tokens, fake)

	token, ok := coordinator.RefreshJWT(context.Background(), BootstrapRequest{AppID: "SECSRV001", MultiEntityAdmin: "Y"})
	if !ok || token != "jwt-new" {
		t.Fatalf("expected refreshed token, got %q ok=%v", token, ok)
	}
	stored, err := tokens.GetToken(core.SessionKey("SECSRV001"))
	if err != nil || stored != "jwt-new" {
		t.Fatalf("expected stored session token, got %q err=%v", stored, err)
	}
	request := fake.Requests()[0]
	if request.Method != http.MethodGet {
		t.Fatalf("expected GET refresh, got %s", request.Method)
	}
	if request.Headers["Authorization"] != "Bearer jwt-old" {
		t.Fatalf("expected previous session bearer, got %q", request.Headers["Authorization"])
	}
	if request.Headers["multiEntityAdmin"] != "N" {
		t.Fatalf("expected refresh to force multiEntityAdmin=N")
	}
}

func TestCoordinator_RefreshJWTFailures(t *testing.T) {
	cases := []struct {
		name     string
		tokens   *core.TokenStore
		response core.TransportResponse
		calls    int
	}{
		{name: "no handoff", tokens: core.NewTokenStore(), response: devkit.JSONResponse(http.StatusOK, `{"token":"x"}`), calls: 0},
		{name: "upstream error", tokens: seededTokens("SECSRV001"), response: devkit.JSONResponse(http.StatusUnauthorized, `{}`), calls: 1},
		{name: "no token field", tokens: seededTokens("SECSRV001"), response: devkit.JSONResponse(http.StatusOK, `{"status":"ok"}`), calls: 1},
		{name: "non json", tokens: seededTokens("SECSRV001"), response: devkit.JSONResponse(http.StatusOK, `<html></html>`), calls: 1},
	}
	for _, tc := range cases {
		fake := devkit.NewFakeTransportAdapter("rest", devkit.TransportScript{Response: tc.response})
		coordinator := NewCoordinator(testGatewayConfig(), tc.tokens, fake)
		token, ok := coordinator.RefreshJWT(context.Background(), BootstrapRequest{AppID: "SECSRV001"})
		if ok || token != "" {
			t.Fatalf("%s: expected refresh failure, got %q", tc.name, token)
		}
		if got := len(fake.Requests()); got != tc.calls {
			t.Fatalf("%s: expected %d calls, got %d", tc.name, tc.calls, got)
		}
	}
}

func TestAdapter_FetchDetailsWithoutHandoffMakesNoCall(t *testing.T) {
	adapter, fake := newTestAdapter(t, core.NewTokenStore())
	_, err := adapter.FetchDetails(context.Background(), core.DetailsRequest{RecordID: "EJ1"})
	if !core.IsAuthenticationError(err) {
		t.Fatalf("expected authentication error, got %v", err)
	}
	if len(fake.Requests()) != 0 {
		t.Fatalf("expected no network calls, got %d", len(fake.Requests()))
	}
}

func TestAdapter_FetchDetailsRequiresRecordID(t *testing.T) {
	adapter, fake := newTestAdapter(t, seededTokens("SECSRV001"))
	_, err := adapter.FetchDetails(context.Background(), core.DetailsRequest{Branch: "000"})
	if !core.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(fake.Requests()) != 0 {
		t.Fatalf("expected no network calls")
	}
}

func TestAdapter_FetchDetailsRefreshesOnceAfterUnauthorized(t *testing.T) {
	adapter, fake := newTestAdapter(t, seededTokens("SECSRV001"),
		devkit.TransportScript{Match: "/auth/init", Response: devkit.JSONResponse(http.StatusOK, `{}`)},
		devkit.TransportScript{Match: "/ejlog/", Response: devkit.JSONResponse(http.StatusUnauthorized, `{"message":"expired"}`)},
		devkit.TransportScript{Match: "/auth/refresh", Response: devkit.JSONResponse(http.StatusOK, `{"token":"jwt-2"}`)},
		devkit.TransportScript{Match: "/ejlog/", Response: devkit.JSONResponse(http.StatusOK, `{"data":{"functionCode":"FC1"}}`)},
	)

	details, err := adapter.FetchDetails(context.Background(), core.DetailsRequest{RecordID: "EJ1"})
	if err != nil {
		t.Fatalf("fetch details: %v", err)
	}
	nested, ok := details.Data["data"].(map[string]any)
	if !ok || nested["functionCode"] != "FC1" {
		t.Fatalf("unexpected details %#v", details.Data)
	}

	detailsCalls := fake.RequestsTo("/ejlog/")
	if len(detailsCalls) != 2 {
		t.Fatalf("expected two details calls, got %d", len(detailsCalls))
	}
	if got := len(fake.RequestsTo("/auth/refresh")); got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}
	if detailsCalls[1].Headers["Authorization"] != "Bearer jwt-2" {
		t.Fatalf("expected retry to carry refreshed session, got %q", detailsCalls[1].Headers["Authorization"])
	}
	if detailsCalls[0].URL != "https://gw.example/api-gateway/obremo-srv-cmn-transaction-services/ejlog/get?EJLogId=EJ1" {
		t.Fatalf("unexpected details url %q", detailsCalls[0].URL)
	}
	if detailsCalls[0].Headers["appId"] != "SRVCMNTXN" || detailsCalls[0].Headers["callBackToken"] != "handoff-1" {
		t.Fatalf("unexpected details headers %#v", detailsCalls[0].Headers)
	}
}

func TestAdapter_FetchDetailsFailsAfterSecondUnauthorized(t *testing.T) {
	adapter, fake := newTestAdapter(t, seededTokens("SECSRV001"),
		devkit.TransportScript{Match: "/auth/init", Response: devkit.JSONResponse(http.StatusOK, `{}`)},
		devkit.TransportScript{Match: "/auth/refresh", Response: devkit.JSONResponse(http.StatusOK, `{"token":"jwt-2"}`)},
		devkit.TransportScript{Match: "/ejlog/", Response: devkit.JSONResponse(http.StatusUnauthorized, `first`)},
		devkit.TransportScript{Match: "/ejlog/", Response: devkit.JSONResponse(http.StatusUnauthorized, `second`)},
	)

	_, err := adapter.FetchDetails(context.Background(), core.DetailsRequest{RecordID: "EJ1"})
	if core.TransportStatus(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 transport error, got %v", err)
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) || richErr.Metadata["body_excerpt"] != "second" {
		t.Fatalf("expected the second 401 to surface, got %v", err)
	}
	if got := len(fake.RequestsTo("/ejlog/")); got != 2 {
		t.Fatalf("expected exactly two details calls, got %d", got)
	}
	if got := len(fake.RequestsTo("/auth/refresh")); got != 1 {
		t.Fatalf("expected one refresh call, got %d", got)
	}
}

func TestAdapter_FetchDetailsStopsWhenRefreshFails(t *testing.T) {
	adapter, fake := newTestAdapter(t, seededTokens("SECSRV001"),
		devkit.TransportScript{Match: "/auth/init", Response: devkit.JSONResponse(http.StatusOK, `{}`)},
		devkit.TransportScript{Match: "/auth/refresh", Response: devkit.JSONResponse(http.StatusInternalServerError, `{}`)},
		devkit.TransportScript{Match: "/ejlog/", Response: devkit.JSONResponse(http.StatusUnauthorized, `{}`)},
	)

	_, err := adapter.FetchDetails(context.Background(), core.DetailsRequest{RecordID: "EJ1"})
	if core.TransportStatus(err) != http.StatusUnauthorized {
		t.Fatalf("expected first 401 error, got %v", err)
	}
	if got := len(fake.RequestsTo("/ejlog/")); got != 1 {
		t.Fatalf("expected a single details call, got %d", got)
	}
}

func TestAdapter_FetchDetailsDoesNotRefreshOnServerError(t *testing.T) {
	adapter, fake := newTestAdapter(t, seededTokens("SECSRV001"),
		devkit.TransportScript{Match: "/ejlog/", Response: devkit.JSONResponse(http.StatusInternalServerError, `oops`)},
	)

	_, err := adapter.FetchDetails(context.Background(), core.DetailsRequest{RecordID: "EJ1"})
	if core.TransportStatus(err) != http.StatusInternalServerError {
		t.Fatalf("expected 500 transport error, got %v", err)
	}
	if got := len(fake.RequestsTo("/auth/refresh")); got != 0 {
		t.Fatalf("expected no refresh on server error, got %d", got)
	}
	if got := len(fake.RequestsTo("/ejlog/")); got != 1 {
		t.Fatalf("expected one details call, got %d", got)
	}
}

func TestAdapter_ApproveBuildsPayloadFromDetails(t *testing.T) {
	adapter, fake := newTestAdapter(t, seededTokens("SECSRV001", "SRVBRANCHCOMMON"),
		devkit.TransportScript{Match: "/ejlog/", Response: devkit.JSONResponse(http.StatusOK, `{"data":{"functionCode":"FC1","subScreenClass":"SUB1","txnRefNo":"TXN9"}}`)},
		devkit.TransportScript{Match: "/approve", Response: devkit.JSONResponse(http.StatusOK, `{"status":"ok"}`)},
	)

	result, err := adapter.ExecuteAction(context.Background(), core.ActionApprove, core.ActionPayload{
		RecordID: "EJ42",
		UserID:   "SUP1",
		Cookie:   "sid=abc",
	})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	data, ok := result.Data.(map[string]any)
	if !ok || data["status"] != "ok" || result.Kind != core.ActionApprove || result.Backend != core.BackendGateway {
		t.Fatalf("unexpected result %#v", result)
	}

	approvals := fake.RequestsTo("/approve")
	if len(approvals) != 1 {
		t.Fatalf("expected one approve call, got %d", len(approvals))
	}
	request := approvals[0]
	if request.Method != http.MethodPost {
		t.Fatalf("expected POST, got %s", request.Method)
	}
	body := map[string]any{}
	if err := json.Unmarshal(request.Body, &body); err != nil {
		t.Fatalf("decode approve body: %v", err)
	}
	for key, want := range map[string]string{
		"functionCode":   "FC1",
		"subScreenClass": "SUB1",
		"ejId":           "EJ42",
		"authorizerRole": "RETAIL_MANAGER",
		"txnRefNumber":   "TXN9",
		"supervisorId":   "SUP1",
	} {
		if body[key] != want {
			t.Fatalf("expected body %s=%q, got %v", key, want, body[key])
		}
	}
	for key, want := range map[string]string{
		"appId":         "SRVBRANCHCOMMON",
		"callBackToken": "handoff-1",
		"Cookie":        "sid=abc",
		"userId":        "SUP1",
		"branchCode":    "000",
	} {
		if request.Headers[key] != want {
			t.Fatalf("expected header %s=%q, got %q", key, want, request.Headers[key])
		}
	}
}

func TestAdapter_ApproveIsNotRetried(t *testing.T) {
	adapter, fake := newTestAdapter(t, seededTokens("SECSRV001", "SRVBRANCHCOMMON"),
		devkit.TransportScript{Match: "/ejlog/", Response: devkit.JSONResponse(http.StatusOK, `{"functionCode":"FC1"}`)},
		devkit.TransportScript{Match: "/approve", Response: devkit.JSONResponse(http.StatusUnauthorized, `{}`)},
	)

	_, err := adapter.ExecuteAction(context.Background(), core.ActionApprove, core.ActionPayload{RecordID: "EJ42"})
	if core.TransportStatus(err) != http.StatusUnauthorized {
		t.Fatalf("expected 401 error, got %v", err)
	}
	if got := len(fake.RequestsTo("/approve")); got != 1 {
		t.Fatalf("expected a single approve call, got %d", got)
	}
	if got := len(fake.RequestsTo("/auth/refresh")); got != 0 {
		t.Fatalf("expected no refresh on approve, got %d", got)
	}
}

func TestAdapter_ApproveAcceptsLowerCaseKind(t *testing.T) {
	adapter, fake := newTestAdapter(t, seededTokens("SECSRV001", "SRVBRANCHCOMMON"),
		devkit.TransportScript{Match: "/ejlog/", Response: devkit.JSONResponse(http.StatusOK, `{"functionCode":"FC1"}`)},
		devkit.TransportScript{Match: "/approve", Response: devkit.JSONResponse(http.StatusOK, `{"status":"ok"}`)},
	)
	result, err := adapter.ExecuteAction(context.Background(), core.ActionKind(" approve "), core.ActionPayload{RecordID: "EJ42"})
	if err != nil {
		t.Fatalf("expected lower-case kind to approve, got %v", err)
	}
	if result.Kind != core.ActionApprove {
		t.Fatalf("expected normalised kind in result, got %q", result.Kind)
	}
	if got := len(fake.RequestsTo("/approve")); got != 1 {
		t.Fatalf("expected one approve call, got %d", got)
	}
}

func TestAdapter_CashWithdrawalUnsupported(t *testing.T) {
	adapter, fake := newTestAdapter(t, seededTokens("SECSRV001"))
	_, err := adapter.ExecuteAction(context.Background(), core.ActionCashWithdrawal, core.ActionPayload{RecordID: "EJ1"})
	if !core.IsUnsupportedActionError(err) {
		t.Fatalf("expected unsupported action error, got %v", err)
	}
	if len(fake.Requests()) != 0 {
		t.Fatalf("expected no network calls")
	}
}

func TestAdapter_ResetDelegatesToCoordinator(t *testing.T) {
	adapter, _ := newTestAdapter(t, seededTokens("SECSRV001"))
	if err := adapter.Coordinator().EnsureBootstrap(context.Background(), BootstrapRequest{AppID: "SECSRV001"}); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	adapter.ResetBootstrapState("")
	if adapter.Coordinator().State("SECSRV001").Initialized {
		t.Fatalf("expected reset state")
	}
}
