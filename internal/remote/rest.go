package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/campuskit/attendsync/internal/types"
)

const recordsTable = "attendance_records"

// RESTStore is a PostgREST-style HTTP client for the attendance table:
// lookups are GETs with eq. filters, inserts are POSTs, and the
// database's unique constraint surfaces as HTTP 409 or error code
// 23505 in the response body.
type RESTStore struct {
	baseURL    string
	apiKey     string
	session    *Session
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// NewRESTStore creates a client for the backend at baseURL.
func NewRESTStore(baseURL, apiKey string, session *Session, logger *slog.Logger) *RESTStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &RESTStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		session: session,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.With("component", "remote"),
		now:    time.Now,
	}
}

// restError is the PostgREST error body.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// insertBody adds the server-side marked_at field to a mark.
type insertBody struct {
	types.AttendanceMark
	MarkedAt string `json:"marked_at"`
}

// FindRecord implements Store.
func (s *RESTStore) FindRecord(ctx context.Context, studentID, subjectID, date string) (*types.AttendanceRecord, error) {
	params := url.Values{}
	params.Set("student_id", "eq."+studentID)
	params.Set("subject_id", "eq."+subjectID)
	params.Set("date", "eq."+date)
	params.Set("limit", "1")

	req, err := s.newRequest(ctx, http.MethodGet, recordsTable+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.statusError(resp)
	}

	var records []types.AttendanceRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// InsertRecord implements Store.
func (s *RESTStore) InsertRecord(ctx context.Context, mark types.AttendanceMark) error {
	body, err := json.Marshal(insertBody{
		AttendanceMark: mark,
		MarkedAt:       s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	req, err := s.newRequest(ctx, http.MethodPost, recordsTable, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusConflict:
		return ErrConflict
	default:
		return s.statusError(resp)
	}
}

func (s *RESTStore) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	if s.session != nil && s.session.Expired(s.now()) {
		// Treated as transient: once the app re-authenticates, the
		// next drain picks the items up.
		return nil, fmt.Errorf("%w: session token expired", ErrUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+"/rest/v1/"+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}
	if s.session != nil {
		if tok := s.session.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	return req, nil
}

// statusError maps a non-success response onto the error taxonomy.
func (s *RESTStore) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var re restError
	if json.Unmarshal(body, &re) == nil && re.Code == "23505" {
		// Unique constraint violation reported in the body rather than
		// the status line.
		return ErrConflict
	}

	msg := strings.TrimSpace(re.Message)
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg)
	case resp.StatusCode == http.StatusUnauthorized:
		// Stale credentials, recoverable after re-auth.
		return fmt.Errorf("%w: status 401: %s", ErrUnavailable, msg)
	default:
		return fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, msg)
	}
}
