package trino

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/trinodb/trino-go-client/internal/wire"
)

// QueryState is the statement's lifecycle state machine from spec §4.3:
// RUNNING is the only non-terminal state; every other state is monotonic
// and reached at most once via compare-and-swap.
type QueryState int32

// QueryState values.
const (
	StateRunning QueryState = iota
	StateFinished
	StateClientError
	StateClientAborted
)

func (s QueryState) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateFinished:
		return "FINISHED"
	case StateClientError:
		return "CLIENT_ERROR"
	case StateClientAborted:
		return "CLIENT_ABORTED"
	default:
		return "UNKNOWN"
	}
}

// StatementClient drives one statement through the paged
// submit/advance/cancel/finish protocol described in spec §4.1 and
// §4.3. It owns the coordinator's continuation chain and the session
// mutations observed along the way; it does not itself decide when to
// poll again, leaving pacing to the PageQueue that calls Advance.
//
// Grounded on the teacher's snowflakeRestful continuation-token loop in
// restful.go, generalized from Snowflake's single query-status poll to
// Trino's per-page nextUri chain.
type StatementClient struct {
	transport *HTTPTransport
	headers   ProtocolHeaders
	auth      Auth

	statementTimeout time.Duration
	deadline         time.Time

	state int32 // QueryState, accessed via atomic

	mu           sync.Mutex
	session      SessionState
	pendingDelta *SessionDelta
	queryID      string
	infoURI      string
	nextURI      string
	finished     bool
}

// NewStatementClient constructs a client for one statement submission.
// The supplied session is the snapshot in effect when the statement is
// submitted; it is never mutated in place (see SessionState.Merge).
func NewStatementClient(transport *HTTPTransport, headers ProtocolHeaders, auth Auth, session SessionState, statementTimeout time.Duration) *StatementClient {
	c := &StatementClient{
		transport:        transport,
		headers:          headers,
		auth:             auth,
		session:          session,
		pendingDelta:     newSessionDelta(),
		statementTimeout: statementTimeout,
	}
	if statementTimeout > 0 {
		c.deadline = time.Now().Add(statementTimeout)
	}
	return c
}

// State returns the client's current lifecycle state.
func (c *StatementClient) State() QueryState {
	return QueryState(atomic.LoadInt32(&c.state))
}

// IsTimedOut reports whether the configured StatementTimeout has
// elapsed. A zero StatementTimeout never times out.
func (c *StatementClient) IsTimedOut() bool {
	if c.statementTimeout <= 0 {
		return false
	}
	return time.Now().After(c.deadline)
}

func (c *StatementClient) transitionTo(target QueryState) bool {
	for {
		cur := atomic.LoadInt32(&c.state)
		if QueryState(cur) != StateRunning {
			return false // terminal states never move again
		}
		if atomic.CompareAndSwapInt32(&c.state, cur, int32(target)) {
			return true
		}
	}
}

// SubmitInitial POSTs sql to /v1/statement and returns the first page.
// Per spec §3's "exactly one of user or auth" invariant, the effective
// user is resolved from the session/auth pair at submission time, once.
// extraHeaders, when non-nil, is merged on top of the standard request
// headers for this call only — used by Client.Execute to attach
// RequestPreparedStatement when the statement was rewritten to
// `EXECUTE <fresh-id> USING …` for bound parameters.
func (c *StatementClient) SubmitInitial(ctx context.Context, sql string, extraHeaders map[string]string) (*wire.Page, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	endpoint := strings.TrimRight(session.ServerURL, "/") + "/v1/statement"
	hdrs := c.buildRequestHeaders(session)
	for k, v := range extraHeaders {
		hdrs[k] = v
	}

	res, err := c.transport.Do(ctx, http.MethodPost, endpoint, []byte(sql), hdrs)
	if err != nil {
		c.transitionTo(StateClientError)
		return nil, err
	}
	return c.consumeResponse(res)
}

// Advance issues one GET against the current continuation URI. It
// returns (nil, nil) once the chain is exhausted (no NextURI and no
// error), signaling the caller (a PageQueue's fetch loop) to call
// Finish. Pacing between calls is the caller's responsibility, per
// spec §4.2's adaptive backoff living in the queue rather than here.
func (c *StatementClient) Advance(ctx context.Context) (*wire.Page, error) {
	c.mu.Lock()
	next := c.nextURI
	c.mu.Unlock()

	if next == "" {
		return nil, nil
	}
	if c.IsTimedOut() {
		_ = c.Cancel(reasonTimeout)
		return nil, newTimeoutError(fmt.Sprintf("statement %s exceeded its timeout", c.QueryID()))
	}

	requestURI := withTargetResultSize(next)
	hdrs := c.buildRequestHeaders(c.currentSession())

	res, err := c.transport.Do(ctx, http.MethodGet, requestURI, nil, hdrs)
	if err != nil {
		c.transitionTo(StateClientError)
		return nil, err
	}
	return c.consumeResponse(res)
}

// withTargetResultSize appends targetResultSize=5MB to a continuation
// URI whose path is on the /v1/statement/executing/ segment, matching
// the reference implementation's undocumented behavior of requesting
// larger pages once the query has moved past queuing, per spec §4.1.
func withTargetResultSize(rawURL string) string {
	if !strings.Contains(rawURL, "/executing/") {
		return rawURL
	}
	if strings.Contains(rawURL, "targetResultSize=") {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + targetResultSizeParam
}

// reasonTimeout is the cancellation reason recorded when Advance
// observes an elapsed StatementTimeout, per spec §4.1's "cancel with
// reason TIMEOUT".
const reasonTimeout = "TIMEOUT"

// Cancel issues a DELETE against the current continuation URI (or the
// info URI if no page has been fetched yet) using a context detached
// from ctx's cancellation, so a caller that cancels ctx to stop reading
// still gets a best-effort cancellation delivered to the coordinator.
func (c *StatementClient) Cancel(reason string) error {
	if !c.transitionTo(StateClientAborted) {
		return nil // already terminal; cancellation would be a no-op
	}
	c.mu.Lock()
	target := c.nextURI
	if target == "" {
		target = c.infoURI
	}
	c.mu.Unlock()
	if target == "" {
		return nil // never got a URI to cancel
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := c.transport.Do(ctx, http.MethodDelete, target, nil, c.buildRequestHeaders(c.currentSession()))
	if err != nil {
		return newCancellationError(reason)
	}
	return nil
}

// Finish applies the session mutations accumulated across every page
// observed so far, atomically, and transitions the client to FINISHED.
// Per spec invariant 5, mutations are never visible mid-query; Finish
// is the only place SessionState advances.
func (c *StatementClient) Finish() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.finished {
		c.session = c.session.Merge(c.pendingDelta)
		c.pendingDelta = newSessionDelta()
		c.finished = true
	}
	c.transitionTo(StateFinished)
	return c.session
}

// InfoURI returns the coordinator's human-readable query info page URL,
// populated once the first page has been received.
func (c *StatementClient) InfoURI() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.infoURI
}

// QueryID returns the coordinator-assigned query identifier, populated
// once the first page has been received.
func (c *StatementClient) QueryID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queryID
}

// currentSession returns the session snapshot in effect right now,
// which does not yet include mutations pending until Finish.
func (c *StatementClient) currentSession() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *StatementClient) consumeResponse(res *httpResult) (*wire.Page, error) {
	var page wire.Page
	dec := json.NewDecoder(bytes.NewReader(res.Body))
	dec.UseNumber() // preserve bigint precision beyond float64's 53-bit mantissa
	if err := dec.Decode(&page); err != nil {
		c.transitionTo(StateClientError)
		return nil, newDecodeError("", "malformed statement response body", err)
	}

	delta, err := parseResponseHeaders(res.Header, c.headers)
	if err != nil {
		c.transitionTo(StateClientError)
		return nil, err
	}
	if len(page.AddedPreparedStatements) > 0 {
		for k, v := range page.AddedPreparedStatements {
			delta.AddedPreparedStatements[k] = v
		}
	}
	if len(page.DeallocatedPreparedStatements) > 0 {
		delta.DeallocatedStatements = append(delta.DeallocatedStatements, page.DeallocatedPreparedStatements...)
	}

	c.mu.Lock()
	if c.queryID == "" {
		c.queryID = page.ID
		c.infoURI = page.InfoURI
	}
	c.nextURI = page.NextURI
	c.pendingDelta.merge(delta)
	c.mu.Unlock()

	if page.Error != nil {
		c.transitionTo(StateClientError)
		var loc *ErrorLocation
		if page.Error.Location != nil {
			loc = &ErrorLocation{LineNumber: page.Error.Location.LineNumber, ColumnNumber: page.Error.Location.ColumnNumber}
		}
		return &page, newServerError(page.Error.Message, "", page.Error.ErrorName, page.Error.ErrorType, page.Error.ErrorCode, loc, convertFailureInfo(page.Error.FailureInfo))
	}
	return &page, nil
}

func convertFailureInfo(fi *wire.FailureInfo) *FailureInfo {
	if fi == nil {
		return nil
	}
	out := &FailureInfo{Type: fi.Type, Message: fi.Message}
	if fi.Location != nil {
		out.Location = &ErrorLocation{LineNumber: fi.Location.LineNumber, ColumnNumber: fi.Location.ColumnNumber}
	}
	for _, frame := range fi.Stack {
		out.Stack = append(out.Stack, StackFrame(frame))
	}
	for _, s := range fi.Suppressed {
		out.Suppressed = append(out.Suppressed, convertFailureInfo(s))
	}
	out.Cause = convertFailureInfo(fi.Cause)
	return out
}

// buildRequestHeaders assembles the full request header set from a
// session snapshot, per the wire layout in spec §3/§4.5.
func (c *StatementClient) buildRequestHeaders(session SessionState) map[string]string {
	h := map[string]string{}
	identity := ""
	if c.auth != nil {
		identity = c.auth.Identity()
	}
	h[c.headers.User] = session.EffectiveUser(identity)
	h[c.headers.ClientCapabilities] = clientCapabilityParametricDateTime

	if session.Source != "" {
		h[c.headers.Source] = session.Source
	} else {
		h[c.headers.Source] = DefaultAgent
	}
	if session.Catalog != "" {
		h[c.headers.Catalog] = session.Catalog
	}
	if session.Schema != "" {
		h[c.headers.Schema] = session.Schema
	}
	if session.Path != "" {
		h[c.headers.Path] = session.Path
	}
	if session.TimeZone != "" {
		h[c.headers.TimeZone] = session.TimeZone
	}
	if session.Locale != "" {
		h[c.headers.Language] = session.Locale
	}
	if session.TraceToken != "" {
		h[c.headers.TraceToken] = session.TraceToken
	} else {
		h[c.headers.TraceToken] = newTraceToken()
	}
	if len(session.ClientTags) > 0 {
		h[c.headers.ClientTags] = strings.Join(session.ClientTags, ",")
	}
	if session.TransactionID != "" {
		h[c.headers.TransactionID] = session.TransactionID
	}

	if len(session.Properties) > 0 {
		h[c.headers.Session] = joinURLEncodedKV(session.Properties)
	}
	if len(session.ResourceEstimates) > 0 {
		h[c.headers.ResourceEstimate] = joinURLEncodedKV(session.ResourceEstimates)
	}
	if len(session.ExtraCredentials) > 0 {
		h[c.headers.ExtraCredential] = joinURLEncodedKV(session.ExtraCredentials)
	}
	if len(session.PreparedStatements) > 0 {
		h[c.headers.PreparedStatement] = joinURLEncodedKV(session.PreparedStatements)
	}
	if len(session.Roles) > 0 {
		roles := make(map[string]string, len(session.Roles))
		for catalog, role := range session.Roles {
			roles[catalog] = role.String()
		}
		h[c.headers.Role] = joinURLEncodedKV(roles)
	}
	for k, v := range session.ExtraHeaders {
		h[k] = v
	}
	return h
}

func joinURLEncodedKV(m map[string]string) string {
	parts := make([]string, 0, len(m))
	for k, v := range m {
		parts = append(parts, k+"="+url.QueryEscape(v))
	}
	return strings.Join(parts, ",")
}

// parseResponseHeaders decodes the coordinator's session-mutation
// headers into a SessionDelta, per spec §4.5.
func parseResponseHeaders(header http.Header, h ProtocolHeaders) (*SessionDelta, error) {
	delta := newSessionDelta()

	if v := header.Get(h.SetCatalog); v != "" {
		delta.SetCatalog = &v
	}
	if v := header.Get(h.SetSchema); v != "" {
		delta.SetSchema = &v
	}
	if v := header.Get(h.SetPath); v != "" {
		delta.SetPath = &v
	}
	if v := header.Get(h.SetAuthorizationUser); v != "" {
		delta.SetAuthorizationUser = &v
	}
	if header.Get(h.ResetAuthorizationUser) != "" {
		delta.ResetAuthorizationUser = true
	}

	for _, entry := range header.Values(h.SetSession) {
		k, v, err := parseSetSessionHeader(entry)
		if err != nil {
			return nil, newProtocolError("malformed "+h.SetSession+" header", 0, entry, err)
		}
		delta.AddedProperties[k] = v
	}
	for _, entry := range header.Values(h.AddedPrepare) {
		k, v, err := parseSetSessionHeader(entry)
		if err != nil {
			return nil, newProtocolError("malformed "+h.AddedPrepare+" header", 0, entry, err)
		}
		delta.AddedPreparedStatements[k] = v
	}
	for _, entry := range header.Values(h.DeallocatedPrepare) {
		delta.DeallocatedStatements = append(delta.DeallocatedStatements, entry)
	}
	return delta, nil
}

// newTraceToken generates a fresh random trace token when the caller
// did not supply one, using a v4 UUID the same way the teacher derives
// its per-request identifiers.
func newTraceToken() string {
	return uuid.New().String()
}

// freshPreparedStatementID generates the "fresh-id" spec §4.1 requires
// for a parameterized EXECUTE: a server-namespace prefix concatenated
// with a 128-bit random token, stripped of separators.
func freshPreparedStatementID(ns HeaderNamespace) string {
	return serverNamespacePrefix(ns) + strings.ReplaceAll(uuid.New().String(), "-", "")
}

// serverNamespacePrefix derives a bare, lowercase identifier from a
// header namespace, e.g. "X-Trino-" -> "trino".
func serverNamespacePrefix(ns HeaderNamespace) string {
	s := strings.TrimPrefix(string(ns), "X-")
	s = strings.TrimSuffix(s, "-")
	return strings.ToLower(s)
}
