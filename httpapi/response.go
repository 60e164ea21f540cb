package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/goliatone/go-approvals/core"
)

// writeJSON marshals v and writes it with the given status. A marshal failure
// becomes a 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError maps err through the service error envelope and writes the
// resulting status, message and text code.
func writeError(w http.ResponseWriter, err error) {
	mapped := core.MapError(err)
	status := mapped.Code
	if status < 400 || status > 599 {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorResponse{
		Success:  false,
		Error:    mapped.Message,
		TextCode: mapped.TextCode,
	})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

type errorResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	TextCode string `json:"text_code,omitempty"`
}

type dataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type loginResponse struct {
	Success bool   `json:"success"`
	User    string `json:"user"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

type ActivityEntryResponse struct {
	ID        string         `json:"id"`
	Backend   string         `json:"backend"`
	Action    string         `json:"action"`
	RecordID  string         `json:"record_id,omitempty"`
	Branch    string         `json:"branch,omitempty"`
	Actor     string         `json:"actor"`
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at"`
}

type ActivityPageResponse struct {
	Items      []ActivityEntryResponse `json:"items"`
	Page       int                     `json:"page"`
	PerPage    int                     `json:"per_page"`
	Total      int                     `json:"total"`
	HasNext    bool                    `json:"has_next"`
	NextCursor string                  `json:"next_cursor,omitempty"`
}

type TokenResponse struct {
	SubjectID        string `json:"subject_id"`
	Class            string `json:"class"`
	ExpiresInMinutes int    `json:"expires_in_minutes"`
}

func toActivityPageResponse(page core.ActivityPage) ActivityPageResponse {
	items := make([]ActivityEntryResponse, 0, len(page.Items))
	for _, entry := range page.Items {
		items = append(items, ActivityEntryResponse{
			ID:        entry.ID,
			Backend:   entry.Backend,
			Action:    entry.Action,
			RecordID:  entry.RecordID,
			Branch:    entry.Branch,
			Actor:     entry.Actor,
			Status:    string(entry.Status),
			Error:     entry.Error,
			Metadata:  entry.Metadata,
			CreatedAt: entry.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return ActivityPageResponse{
		Items:      items,
		Page:       page.Page,
		PerPage:    page.PerPage,
		Total:      page.Total,
		HasNext:    page.HasNext,
		NextCursor: page.NextCursor,
	}
}

func toTokenResponses(tokens []core.TokenInfo) []TokenResponse {
	out := make([]TokenResponse, 0, len(tokens))
	for _, token := range tokens {
		out = append(out, TokenResponse{
			SubjectID:        token.SubjectID,
			Class:            string(token.Class),
			ExpiresInMinutes: token.ExpiresInMinutes,
		})
	}
	return out
}
