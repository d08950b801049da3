package trino

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProtocolHeadersDefaultNamespace(t *testing.T) {
	h := NewProtocolHeaders("")
	assert.Equal(t, "X-Trino-User", h.User)
	assert.Equal(t, "X-Trino-Catalog", h.Catalog)
	assert.Equal(t, "X-Trino-Set-Session", h.SetSession)
}

func TestNewProtocolHeadersCustomNamespace(t *testing.T) {
	h := NewProtocolHeaders("X-Presto-")
	assert.Equal(t, "X-Presto-User", h.User)
	assert.Equal(t, "X-Presto-Catalog", h.Catalog)
}

// TestNewProtocolHeadersDistinguishesSetAndResetUser guards against the
// probable bug in the reference implementation where set/reset
// authorization-user share one header name.
func TestNewProtocolHeadersDistinguishesSetAndResetUser(t *testing.T) {
	h := NewProtocolHeaders("")
	assert.NotEqual(t, h.SetAuthorizationUser, h.ResetAuthorizationUser)
}
