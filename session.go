package trino

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// RoleSelector is how a caller selects a role for a catalog: ROLE (named
// role), ALL, or NONE.
type RoleSelector string

// Role selector kinds understood by X-Trino-Role.
const (
	RoleKindRole RoleSelector = "ROLE"
	RoleKindAll  RoleSelector = "ALL"
	RoleKindNone RoleSelector = "NONE"
)

// SelectedRole names the role to assume for one catalog.
type SelectedRole struct {
	Kind  RoleSelector
	Value string // role name; empty for ALL/NONE
}

func (r SelectedRole) String() string {
	if r.Kind == RoleKindRole {
		return fmt.Sprintf("ROLE:%s", r.Value)
	}
	return string(r.Kind)
}

// SessionState is the mutable configuration carried on every request.
// It is only ever mutated through Merge, which returns a new value; the
// zero value is never mutated in place, matching spec §4.5's
// copy-on-write contract.
type SessionState struct {
	ServerURL string

	// Exactly one of User or an auth collaborator identifying the
	// caller must be present; DefaultAgent is used if neither is.
	User             string
	Catalog          string
	Schema           string
	Path             string
	TransactionID    string
	TimeZone         string
	Locale           string
	Source           string
	TraceToken       string
	ClientTags       []string
	SourceAgent      string
	Compression      bool

	TLSTrustPEM []byte

	// PreparedStatements maps a caller-assigned name to the SQL text it
	// was prepared from.
	PreparedStatements map[string]string
	// Properties maps a session property name to its (already
	// URL-decoded) value.
	Properties map[string]string
	// ResourceEstimates maps a resource name (e.g. EXECUTION_TIME) to
	// its estimate string.
	ResourceEstimates map[string]string
	// ExtraCredentials maps a credential name to its value.
	ExtraCredentials map[string]string
	// Roles maps a catalog name to the role selected for it.
	Roles map[string]SelectedRole
	// ExtraHeaders are additional custom headers attached verbatim to
	// every request.
	ExtraHeaders map[string]string
}

// DefaultAgent is the client identity attached when neither User nor an
// auth collaborator supplies one.
const DefaultAgent = "trino-go-client"

// EffectiveUser returns the caller identity to present on the wire,
// applying the "exactly one of user or auth must identify the caller"
// invariant from spec §3: an explicit User wins, an auth collaborator's
// identity is used next, and DefaultAgent is the fallback.
func (s SessionState) EffectiveUser(authIdentity string) string {
	if s.User != "" {
		return s.User
	}
	if authIdentity != "" {
		return authIdentity
	}
	return DefaultAgent
}

// clone performs a shallow copy sufficient for copy-on-write semantics:
// map/slice fields are copied so a later Merge on the copy cannot mutate
// a snapshot a concurrent reader may still be holding.
func (s SessionState) clone() SessionState {
	c := s
	c.ClientTags = append([]string(nil), s.ClientTags...)
	c.PreparedStatements = copyStringMap(s.PreparedStatements)
	c.Properties = copyStringMap(s.Properties)
	c.ResourceEstimates = copyStringMap(s.ResourceEstimates)
	c.ExtraCredentials = copyStringMap(s.ExtraCredentials)
	c.ExtraHeaders = copyStringMap(s.ExtraHeaders)
	c.Roles = make(map[string]SelectedRole, len(s.Roles))
	for k, v := range s.Roles {
		c.Roles[k] = v
	}
	return c
}

func copyStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

// SessionDelta is produced by parsing response headers during a query
// and applied atomically at Finish.
type SessionDelta struct {
	SetCatalog *string
	SetSchema  *string
	SetPath    *string

	SetAuthorizationUser   *string
	ResetAuthorizationUser bool

	AddedProperties         map[string]string
	AddedPreparedStatements map[string]string
	DeallocatedStatements   []string
}

// newSessionDelta returns an empty, ready-to-accumulate delta.
func newSessionDelta() *SessionDelta {
	return &SessionDelta{
		AddedProperties:         map[string]string{},
		AddedPreparedStatements: map[string]string{},
	}
}

// merge folds another delta observed on a later response into this one.
// Later single-valued assignments win; added/deallocated entries
// accumulate.
func (d *SessionDelta) merge(other *SessionDelta) {
	if other.SetCatalog != nil {
		d.SetCatalog = other.SetCatalog
	}
	if other.SetSchema != nil {
		d.SetSchema = other.SetSchema
	}
	if other.SetPath != nil {
		d.SetPath = other.SetPath
	}
	if other.SetAuthorizationUser != nil {
		d.SetAuthorizationUser = other.SetAuthorizationUser
	}
	if other.ResetAuthorizationUser {
		d.ResetAuthorizationUser = true
	}
	for k, v := range other.AddedProperties {
		d.AddedProperties[k] = v
	}
	for k, v := range other.AddedPreparedStatements {
		d.AddedPreparedStatements[k] = v
	}
	d.DeallocatedStatements = append(d.DeallocatedStatements, other.DeallocatedStatements...)
}

// Merge applies delta to s and returns the resulting SessionState. s is
// left unmodified. Per spec §4.5 / §8 invariant 5: Merge(empty) is the
// identity; added properties and prepared statements never overwrite an
// existing key; deallocated names are removed; a reset-authorization-user
// flag always clears the field, regardless of a concurrent set.
func (s SessionState) Merge(delta *SessionDelta) SessionState {
	if delta == nil {
		return s
	}
	next := s.clone()

	if delta.SetCatalog != nil {
		next.Catalog = *delta.SetCatalog
	}
	if delta.SetSchema != nil {
		next.Schema = *delta.SetSchema
	}
	if delta.SetPath != nil {
		next.Path = *delta.SetPath
	}

	if delta.ResetAuthorizationUser {
		next.User = ""
	} else if delta.SetAuthorizationUser != nil {
		next.User = *delta.SetAuthorizationUser
	}

	if next.Properties == nil {
		next.Properties = map[string]string{}
	}
	for k, v := range delta.AddedProperties {
		if _, exists := next.Properties[k]; !exists {
			next.Properties[k] = v
		}
	}

	if next.PreparedStatements == nil {
		next.PreparedStatements = map[string]string{}
	}
	for k, v := range delta.AddedPreparedStatements {
		if _, exists := next.PreparedStatements[k]; !exists {
			next.PreparedStatements[k] = v
		}
	}

	for _, name := range delta.DeallocatedStatements {
		delete(next.PreparedStatements, name)
	}

	return next
}

// Snapshot serializes s to JSON, letting a long-lived caller persist its
// session (catalog/schema/properties/roles) across a process restart the
// way the teacher persists connection configuration in
// connection_configuration.go, applied here to session properties
// instead of connection parameters.
func (s SessionState) Snapshot() ([]byte, error) {
	return json.Marshal(s)
}

// RestoreSnapshot decodes a session previously produced by Snapshot.
func RestoreSnapshot(data []byte) (SessionState, error) {
	var s SessionState
	if err := json.Unmarshal(data, &s); err != nil {
		return SessionState{}, fmt.Errorf("trino: invalid session snapshot: %w", err)
	}
	return s, nil
}

// parseSetSessionHeader decodes one repeated key=url(value) response
// header entry into (key, decoded value).
func parseSetSessionHeader(entry string) (string, string, error) {
	return splitURLEncodedKV(entry)
}

func splitURLEncodedKV(entry string) (string, string, error) {
	for i := 0; i < len(entry); i++ {
		if entry[i] == '=' {
			key := entry[:i]
			val, err := url.QueryUnescape(entry[i+1:])
			if err != nil {
				return "", "", fmt.Errorf("malformed header entry %q: %w", entry, err)
			}
			return key, val, nil
		}
	}
	return "", "", fmt.Errorf("malformed header entry %q: missing '='", entry)
}
