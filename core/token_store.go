package core

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

const (
	// UniversalSubject is the fallback slot every SetToken call overwrites.
	UniversalSubject = "__HANDOFF_TOKEN__"
	// SessionSuffix marks derived-session entries.
	SessionSuffix = "_JWT"
)

type CredentialClass string

const (
	CredentialClassHandoff        CredentialClass = "handoff"
	CredentialClassDerivedSession CredentialClass = "derived-session"
)

// Credential is an immutable cache record. The store replaces records
// wholesale and hands out copies.
type Credential struct {
	SubjectID string
	Value     string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Class     CredentialClass
}

func (c Credential) ValidAt(now time.Time) bool {
	return strings.TrimSpace(c.Value) != "" && c.ExpiresAt.After(now)
}

type TokenInfo struct {
	SubjectID        string
	Class            CredentialClass
	ExpiresInMinutes int
}

type TokenStoreOption func(*TokenStore)

func WithTokenTTL(ttl time.Duration) TokenStoreOption {
	return func(s *TokenStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithTokenClock(nowFn func() time.Time) TokenStoreOption {
	return func(s *TokenStore) {
		if nowFn != nil {
			s.nowFn = nowFn
		}
	}
}

func WithTokenLogger(logger Logger) TokenStoreOption {
	return func(s *TokenStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// TokenStore caches short lived gateway credentials keyed by application
// identity. It never fetches or regenerates credentials.
type TokenStore struct {
	mu      sync.RWMutex
	entries map[string]Credential
	ttl     time.Duration
	nowFn   func() time.Time
	logger  Logger
}

func NewTokenStore(opts ...TokenStoreOption) *TokenStore {
	store := &TokenStore{
		entries: map[string]Credential{},
		ttl:     DefaultCredentialTTL,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	return store
}

func SessionKey(subjectID string) string {
	return strings.TrimSpace(subjectID) + SessionSuffix
}

func classForSubject(subjectID string) CredentialClass {
	if strings.HasSuffix(subjectID, SessionSuffix) {
		return CredentialClassDerivedSession
	}
	return CredentialClassHandoff
}

// SetToken stores value under subjectID and under the universal slot.
func (s *TokenStore) SetToken(subjectID string, value string) {
	if s == nil {
		return
	}
	subjectID = strings.TrimSpace(subjectID)
	now := s.now()
	record := Credential{
		SubjectID: subjectID,
		Value:     value,
		IssuedAt:  now,
		ExpiresAt: now.Add(s.ttl),
		Class:     classForSubject(subjectID),
	}
	universal := record
	universal.SubjectID = UniversalSubject

	s.mu.Lock()
	s.entries[subjectID] = record
	s.entries[UniversalSubject] = universal
	s.mu.Unlock()

	s.logInfo("token stored", "subject_id", subjectID, "class", string(record.Class))
}

// GetToken returns the subject's unexpired value, falling back to the
// universal slot. A universal hit is cached under the subject.
func (s *TokenStore) GetToken(subjectID string) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: token store is nil")
	}
	subjectID = strings.TrimSpace(subjectID)
	now := s.now()

	s.mu.RLock()
	cached, ok := s.entries[subjectID]
	s.mu.RUnlock()
	if ok && cached.ValidAt(now) {
		return cached.Value, nil
	}

	s.mu.Lock()
	cached, ok = s.entries[subjectID]
	if ok && cached.ValidAt(now) {
		s.mu.Unlock()
		return cached.Value, nil
	}
	universal, hasUniversal := s.entries[UniversalSubject]
	if hasUniversal && universal.ValidAt(now) {
		promoted := universal
		promoted.SubjectID = subjectID
		s.entries[subjectID] = promoted
		s.mu.Unlock()
		s.logInfo("token promoted from universal slot", "subject_id", subjectID)
		return promoted.Value, nil
	}
	s.mu.Unlock()

	s.logError("no valid token", "subject_id", subjectID)
	return "", NewAuthenticationError(subjectID, fmt.Sprintf(
		"session token expired or missing for %s; reopen the dashboard from the core banking UI to re-authenticate",
		subjectID,
	))
}

// HasValidToken reports whether GetToken would succeed, without promoting.
// An empty subject checks the universal slot only.
func (s *TokenStore) HasValidToken(subjectID string) bool {
	if s == nil {
		return false
	}
	subjectID = strings.TrimSpace(subjectID)
	now := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if subjectID != "" {
		if cached, ok := s.entries[subjectID]; ok && cached.ValidAt(now) {
			return true
		}
	}
	universal, ok := s.entries[UniversalSubject]
	return ok && universal.ValidAt(now)
}

func (s *TokenStore) ClearTokens() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.entries = map[string]Credential{}
	s.mu.Unlock()
	s.logInfo("all tokens cleared")
}

// ClearJWTTokens drops derived-session entries and keeps handoff entries.
func (s *TokenStore) ClearJWTTokens() int {
	if s == nil {
		return 0
	}
	removed := 0
	s.mu.Lock()
	for key := range s.entries {
		if strings.HasSuffix(key, SessionSuffix) {
			delete(s.entries, key)
			removed++
		}
	}
	s.mu.Unlock()
	s.logInfo("session tokens cleared", "removed", removed)
	return removed
}

func (s *TokenStore) Credential(subjectID string) (Credential, bool) {
	if s == nil {
		return Credential{}, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.entries[strings.TrimSpace(subjectID)]
	return record, ok
}

// Snapshot lists stored subjects without exposing credential values.
func (s *TokenStore) Snapshot() []TokenInfo {
	if s == nil {
		return []TokenInfo{}
	}
	now := s.now()
	s.mu.RLock()
	out := make([]TokenInfo, 0, len(s.entries))
	for key, record := range s.entries {
		minutes := int(record.ExpiresAt.Sub(now).Round(time.Minute) / time.Minute)
		if minutes < 0 {
			minutes = 0
		}
		out = append(out, TokenInfo{SubjectID: key, Class: record.Class, ExpiresInMinutes: minutes})
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out
}

func (s *TokenStore) now() time.Time {
	if s.nowFn == nil {
		return time.Now().UTC()
	}
	return s.nowFn()
}

func (s *TokenStore) logInfo(message string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.WithContext(context.Background()).Info("token store: "+message, args...)
}

func (s *TokenStore) logError(message string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.WithContext(context.Background()).Error("token store: "+message, args...)
}
