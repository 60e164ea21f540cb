package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-approvals/command"
	"github.com/goliatone/go-approvals/core"
	"github.com/goliatone/go-approvals/query"
	"github.com/goliatone/go-approvals/transport"
	gocmd "github.com/goliatone/go-command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/gorilla/mux"
)

const (
	UserCookieName       = "dashboard_user"
	DefaultLoginRedirect = "/test"

	userCookieMaxAge = 7 * 24 * 60 * 60
	maxBodyBytes     = 1 << 20
)

// Handler serves the approval dashboard API. Every route goes through the
// command and query handlers rather than the service directly.
type Handler struct {
	handoff    *command.StoreHandoffCommand
	action     *command.ExecuteActionCommand
	logout     *command.LogoutCommand
	invalidate *command.InvalidateSessionsCommand

	details  *query.FetchDetailsQuery
	pending  *query.ListPendingQuery
	activity *query.ListActivityQuery
	tokens   *query.ListTokensQuery

	logger        core.Logger
	now           func() time.Time
	loginRedirect string
}

type Option func(*Handler)

func WithLogger(logger core.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// WithLoginRedirect sets the path browsers land on after a form login.
func WithLoginRedirect(path string) Option {
	return func(h *Handler) {
		if trimmed := strings.TrimSpace(path); trimmed != "" {
			h.loginRedirect = trimmed
		}
	}
}

func NewHandler(service core.ApprovalService, opts ...Option) (*Handler, error) {
	if service == nil {
		return nil, fmt.Errorf("httpapi: approval service is required")
	}
	h := &Handler{
		handoff:       command.NewStoreHandoffCommand(service),
		action:        command.NewExecuteActionCommand(service),
		logout:        command.NewLogoutCommand(service),
		invalidate:    command.NewInvalidateSessionsCommand(service),
		details:       query.NewFetchDetailsQuery(service),
		pending:       query.NewListPendingQuery(service),
		activity:      query.NewListActivityQuery(service),
		tokens:        query.NewListTokensQuery(service),
		logger:        glog.Nop(),
		now:           time.Now,
		loginRedirect: DefaultLoginRedirect,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h, nil
}

// NewRouter registers every route on a gorilla router wrapped with request id,
// logging and recovery middleware.
func NewRouter(h *Handler) http.Handler {
	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/login", h.Login).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", h.LoginMethodNotAllowed).Methods(http.MethodGet)
	api.HandleFunc("/auth/logout", h.Logout).Methods(http.MethodPost)
	api.HandleFunc("/auth/sessions/invalidate", h.InvalidateSessions).Methods(http.MethodPost)
	api.HandleFunc("/auth/tokens", h.ListTokens).Methods(http.MethodGet)
	api.HandleFunc("/approvals", h.ListPending).Methods(http.MethodGet)
	api.HandleFunc("/approvals/details", h.FetchDetails).Methods(http.MethodPost)
	api.HandleFunc("/approvals/approve", h.ExecuteAction).Methods(http.MethodPost)
	api.HandleFunc("/activity", h.ListActivity).Methods(http.MethodGet)
	api.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusNotFound, "not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	// Recovery innermost so panics are caught before logging.
	router.Use(requestIDMiddleware, loggingMiddleware(h.logger), recoveryMiddleware(h.logger))
	return router
}

type loginBody struct {
	Username string   `json:"username"`
	UserID   string   `json:"userId"`
	Token    string   `json:"token"`
	AppIDs   []string `json:"appIds"`
}

// Login records the dashboard user in a cookie. A token in the body is handed
// off to the credential store for the configured application identities.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, err := readLoginBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	user := firstNonEmpty(body.Username, body.UserID)
	if user == "" {
		writeMessage(w, http.StatusBadRequest, "Username or userId is required")
		return
	}

	if token := strings.TrimSpace(body.Token); token != "" {
		msg := command.StoreHandoffMessage{Request: core.HandoffRequest{
			AppIDs: body.AppIDs,
			Token:  token,
			UserID: user,
		}}
		if err := runValidated(r.Context(), msg, func(ctx context.Context) error {
			return h.handoff.Execute(ctx, msg)
		}); err != nil {
			writeError(w, err)
			return
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     UserCookieName,
		Value:    user,
		Path:     "/",
		MaxAge:   userCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	if strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, h.redirectURL(r), http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Success: true, User: user})
}

func (h *Handler) LoginMethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusMethodNotAllowed, "Method not allowed. Use POST to login.")
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	msg := command.LogoutMessage{}
	if err := runValidated(r.Context(), msg, func(ctx context.Context) error {
		return h.logout.Execute(ctx, msg)
	}); err != nil {
		writeError(w, err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     UserCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: map[string]any{}})
}

func (h *Handler) InvalidateSessions(w http.ResponseWriter, r *http.Request) {
	msg := command.InvalidateSessionsMessage{}
	collector := gocmd.NewResult[int]()
	ctx := gocmd.ContextWithResult(r.Context(), collector)
	if err := runValidated(ctx, msg, func(ctx context.Context) error {
		return h.invalidate.Execute(ctx, msg)
	}); err != nil {
		writeError(w, err)
		return
	}
	removed, _ := collector.Load()
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: map[string]int{"removed": removed}})
}

func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.tokens.Query(r.Context(), query.ListTokensMessage{})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: toTokenResponses(tokens)})
}

// ListPending returns the filtered pending list as a bare array.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	msg := query.ListPendingMessage{Filter: core.PendingFilter{
		System: values.Get("system"),
		Module: values.Get("module"),
		Branch: values.Get("branch"),
		Status: values.Get("status"),
	}}
	if err := msg.Validate(); err != nil {
		writeError(w, err)
		return
	}
	items, err := h.pending.Query(r.Context(), msg)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("list pending failed", "error", err)
		writeError(w, err)
		return
	}
	if items == nil {
		items = []core.PendingApproval{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) FetchDetails(w http.ResponseWriter, r *http.Request) {
	body, err := readObjectBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	payload := actionPayload(r, body)
	msg := query.FetchDetailsMessage{Request: payload.DetailsRequest(transport.FirstString(body, "system"))}
	if err := msg.Validate(); err != nil {
		writeError(w, err)
		return
	}
	details, err := h.details.Query(r.Context(), msg)
	if err != nil {
		h.logger.WithContext(r.Context()).Error("fetch details failed", "system", msg.Request.System, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: details.Data})
}

// ExecuteAction runs an action against the resolved backend. The action type
// defaults to APPROVE.
func (h *Handler) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	body, err := readObjectBody(r)
	if err != nil {
		writeError(w, err)
		return
	}
	kind := core.ActionKind(strings.ToUpper(firstNonEmpty(transport.FirstString(body, "actionType"), string(core.ActionApprove))))
	msg := command.ExecuteActionMessage{Request: core.ActionRequest{
		System:  transport.FirstString(body, "system"),
		Kind:    kind,
		Payload: actionPayload(r, body),
	}}

	collector := gocmd.NewResult[core.ActionResult]()
	ctx := gocmd.ContextWithResult(r.Context(), collector)
	if err := runValidated(ctx, msg, func(ctx context.Context) error {
		return h.action.Execute(ctx, msg)
	}); err != nil {
		h.logger.WithContext(r.Context()).Error("execute action failed", "system", msg.Request.System, "action", string(kind), "error", err)
		writeError(w, err)
		return
	}
	result, _ := collector.Load()
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: result.Data})
}

func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	filter, err := parseActivityFilter(r.URL.Query())
	if err != nil {
		writeError(w, err)
		return
	}
	msg := query.ListActivityMessage{Filter: filter}
	if err := msg.Validate(); err != nil {
		writeError(w, err)
		return
	}
	page, err := h.activity.Query(r.Context(), msg)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dataResponse{Success: true, Data: toActivityPageResponse(page)})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   h.now().UTC().Format(time.RFC3339),
	})
}

func runValidated(ctx context.Context, msg interface{ Validate() error }, run func(context.Context) error) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return run(ctx)
}

func (h *Handler) redirectURL(r *http.Request) string {
	proto := strings.TrimSpace(r.Header.Get("X-Forwarded-Proto"))
	if proto == "" {
		proto = "https"
	}
	return proto + "://" + r.Host + h.loginRedirect
}

func readLoginBody(r *http.Request) (loginBody, error) {
	var body loginBody
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			return body, core.NewValidationError("body", "login body must be valid JSON")
		}
		return body, nil
	}

	r.Body = http.MaxBytesReader(nil, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		return body, core.NewValidationError("body", "login form could not be parsed")
	}
	body.Username = r.PostForm.Get("username")
	body.UserID = firstNonEmpty(r.PostForm.Get("UserId"), r.PostForm.Get("userId"))
	body.Token = r.PostForm.Get("token")
	body.AppIDs = splitList(r.PostForm.Get("appIds"))
	return body, nil
}

func readObjectBody(r *http.Request) (map[string]any, error) {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.UseNumber()
	body := map[string]any{}
	if err := decoder.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, core.NewValidationError("body", "request body must be a JSON object")
	}
	return body, nil
}

// actionPayload reads the dashboard field names. The user falls back to the
// login cookie when the body omits it.
func actionPayload(r *http.Request, body map[string]any) core.ActionPayload {
	userID := transport.FirstString(body, "userId", "user_id")
	if userID == "" {
		if cookie, err := r.Cookie(UserCookieName); err == nil {
			userID = strings.TrimSpace(cookie.Value)
		}
	}
	return core.ActionPayload{
		RecordID: transport.FirstString(body, "ejLogId", "recordId"),
		Branch:   transport.FirstString(body, "brn", "branch"),
		Account:  transport.FirstString(body, "acc", "account"),
		UserID:   userID,
		Cookie:   transport.FirstString(body, "cookie"),
		Metadata: body,
	}
}

func parseActivityFilter(values url.Values) (core.ActivityFilter, error) {
	filter := core.ActivityFilter{
		Backend:  strings.TrimSpace(values.Get("backend")),
		Action:   strings.TrimSpace(values.Get("action")),
		Actor:    strings.TrimSpace(values.Get("actor")),
		RecordID: strings.TrimSpace(values.Get("record_id")),
		Status:   core.ActivityStatus(strings.TrimSpace(values.Get("status"))),
	}
	var err error
	if filter.From, err = parseTimeParam(values, "from"); err != nil {
		return filter, err
	}
	if filter.To, err = parseTimeParam(values, "to"); err != nil {
		return filter, err
	}
	if filter.Page, err = parseIntParam(values, "page"); err != nil {
		return filter, err
	}
	if filter.PerPage, err = parseIntParam(values, "per_page"); err != nil {
		return filter, err
	}
	return filter, nil
}

func parseTimeParam(values url.Values, key string) (*time.Time, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, core.NewValidationError(key, key+" must be an RFC3339 timestamp")
	}
	return &parsed, nil
}

func parseIntParam(values url.Values, key string) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, core.NewValidationError(key, key+" must be an integer")
	}
	return parsed, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
