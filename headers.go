package trino

import "fmt"

// HeaderNamespace names the request/response header set for a server
// variant. Trino uses "X-Trino-"; Presto-derived forks use "X-Presto-".
// The core is deliberately server-agnostic about the prefix, following
// the teacher's pattern of namespacing every wire-level constant instead
// of hard-coding a single vendor string (see gosnowflake's
// headerSnowflakeToken-style constants).
type HeaderNamespace string

// DefaultHeaderNamespace is the namespace used when a Config does not
// specify one.
const DefaultHeaderNamespace HeaderNamespace = "X-Trino-"

// ProtocolHeaders is the resolved set of request and response header
// names for a given namespace.
type ProtocolHeaders struct {
	ns HeaderNamespace

	// request headers
	User                 string
	Source               string
	ClientInfo           string
	ClientTags           string
	TraceToken           string
	Catalog              string
	Schema               string
	Path                 string
	TimeZone             string
	Language             string
	Session              string
	ResourceEstimate     string
	Role                 string
	ExtraCredential      string
	PreparedStatement    string
	TransactionID        string
	ClientCapabilities   string

	// response headers
	SetCatalog                string
	SetSchema                 string
	SetPath                   string
	SetAuthorizationUser      string
	ResetAuthorizationUser    string
	SetSession                string
	AddedPrepare              string
	DeallocatedPrepare        string
}

// NewProtocolHeaders resolves the full header set for a namespace. Empty
// namespace falls back to DefaultHeaderNamespace.
func NewProtocolHeaders(ns HeaderNamespace) ProtocolHeaders {
	if ns == "" {
		ns = DefaultHeaderNamespace
	}
	h := func(suffix string) string { return fmt.Sprintf("%s%s", ns, suffix) }
	return ProtocolHeaders{
		ns: ns,

		User:               h("User"),
		Source:             h("Source"),
		ClientInfo:         h("Client-Info"),
		ClientTags:         h("Client-Tags"),
		TraceToken:         h("Trace-Token"),
		Catalog:            h("Catalog"),
		Schema:             h("Schema"),
		Path:               h("Path"),
		TimeZone:           h("Time-Zone"),
		Language:           h("Language"),
		Session:            h("Session"),
		ResourceEstimate:   h("Resource-Estimate"),
		Role:               h("Role"),
		ExtraCredential:    h("Extra-Credential"),
		PreparedStatement:  h("Prepared-Statement"),
		TransactionID:      h("Transaction-Id"),
		ClientCapabilities: h("Client-Capabilities"),

		SetCatalog:             h("Set-Catalog"),
		SetSchema:              h("Set-Schema"),
		SetPath:                h("Set-Path"),
		SetAuthorizationUser:   h("Set-Authorization-User"),
		ResetAuthorizationUser: h("Reset-Authorization-User"),
		SetSession:             h("Set-Session"),
		AddedPrepare:           h("Added-Prepare"),
		DeallocatedPrepare:     h("Deallocated-Prepare"),
	}
}

// clientCapabilityParametricDateTime must always be advertised; the codec
// relies on the server honoring it for timestamp-with-time-zone precision.
const clientCapabilityParametricDateTime = "PARAMETRIC_DATETIME"
