package core

import "time"

type PendingApproval struct {
	SourceSystem  string  `json:"sourceSystem"`
	Module        string  `json:"module"`
	TxnID         string  `json:"txnId"`
	AccountNumber string  `json:"accountNumber"`
	CustomerName  string  `json:"customerName"`
	Amount        float64 `json:"amount"`
	Branch        string  `json:"branch"`
	Status        string  `json:"status"`
	AgeMinutes    int     `json:"ageMinutes"`
	Priority      string  `json:"priority"`
	Initiator     string  `json:"initiator"`
	Timestamp     string  `json:"timestamp"`
	Brn           string  `json:"brn,omitempty"`
	Acc           string  `json:"acc,omitempty"`
	EJLogID       string  `json:"ejLogId,omitempty"`
}

// PendingFilter narrows a pending list. Empty values and the "(All)" marker
// match everything; Status also treats "(Pending)" as a wildcard.
type PendingFilter struct {
	System string
	Module string
	Branch string
	Status string
}

type ActivityStatus string

const (
	ActivityStatusOK     ActivityStatus = "ok"
	ActivityStatusFailed ActivityStatus = "failed"
)

type ActivityEntry struct {
	ID        string
	Backend   string
	Action    string
	RecordID  string
	Branch    string
	Actor     string
	Status    ActivityStatus
	Error     string
	Metadata  map[string]any
	CreatedAt time.Time
}

type ActivityFilter struct {
	Backend  string
	Action   string
	Actor    string
	RecordID string
	Status   ActivityStatus
	From     *time.Time
	To       *time.Time
	Page     int
	PerPage  int
}

type ActivityPage struct {
	Items      []ActivityEntry
	Page       int
	PerPage    int
	Total      int
	HasNext    bool
	NextCursor string
}

type ActivityRetentionPolicy struct {
	TTL    time.Duration
	RowCap int
}
