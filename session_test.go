package trino

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStateMergeIsCopyOnWrite(t *testing.T) {
	base := SessionState{Catalog: "hive", Properties: map[string]string{}}
	catalog := "iceberg"
	delta := &SessionDelta{SetCatalog: &catalog, AddedProperties: map[string]string{"a": "1"}}

	next := base.Merge(delta)

	assert.Equal(t, "hive", base.Catalog, "base must be unmodified")
	assert.Equal(t, "iceberg", next.Catalog)
	assert.Empty(t, base.Properties)
	assert.Equal(t, "1", next.Properties["a"])
}

func TestSessionStateMergeEmptyDeltaIsIdentity(t *testing.T) {
	base := SessionState{Catalog: "hive", Schema: "default"}
	next := base.Merge(newSessionDelta())
	assert.Equal(t, base.Catalog, next.Catalog)
	assert.Equal(t, base.Schema, next.Schema)
}

func TestSessionStateMergeNeverOverwritesExistingProperty(t *testing.T) {
	base := SessionState{Properties: map[string]string{"a": "orig"}}
	delta := newSessionDelta()
	delta.AddedProperties["a"] = "new"

	next := base.Merge(delta)
	assert.Equal(t, "orig", next.Properties["a"])
}

func TestSessionStateMergeDeallocatesPreparedStatements(t *testing.T) {
	base := SessionState{PreparedStatements: map[string]string{"s1": "SELECT 1", "s2": "SELECT 2"}}
	delta := newSessionDelta()
	delta.DeallocatedStatements = []string{"s1"}

	next := base.Merge(delta)
	_, exists := next.PreparedStatements["s1"]
	assert.False(t, exists)
	assert.Equal(t, "SELECT 2", next.PreparedStatements["s2"])
}

func TestSessionStateMergeResetAuthorizationUserWinsOverConcurrentSet(t *testing.T) {
	base := SessionState{User: "alice"}
	setUser := "bob"
	delta := &SessionDelta{SetAuthorizationUser: &setUser, ResetAuthorizationUser: true}

	next := base.Merge(delta)
	assert.Equal(t, "", next.User)
}

func TestSessionDeltaMergeLaterAssignmentWins(t *testing.T) {
	d := newSessionDelta()
	first := "a"
	second := "b"
	d.merge(&SessionDelta{SetCatalog: &first, AddedProperties: map[string]string{}, AddedPreparedStatements: map[string]string{}})
	d.merge(&SessionDelta{SetCatalog: &second, AddedProperties: map[string]string{}, AddedPreparedStatements: map[string]string{}})
	require.NotNil(t, d.SetCatalog)
	assert.Equal(t, "b", *d.SetCatalog)
}

func TestEffectiveUserPrecedence(t *testing.T) {
	assert.Equal(t, "explicit", SessionState{User: "explicit"}.EffectiveUser("from-auth"))
	assert.Equal(t, "from-auth", SessionState{}.EffectiveUser("from-auth"))
	assert.Equal(t, DefaultAgent, SessionState{}.EffectiveUser(""))
}

func TestParseSetSessionHeader(t *testing.T) {
	k, v, err := parseSetSessionHeader("query_max_run_time=1h")
	require.NoError(t, err)
	assert.Equal(t, "query_max_run_time", k)
	assert.Equal(t, "1h", v)

	k, v, err = parseSetSessionHeader("greeting=hello%20world")
	require.NoError(t, err)
	assert.Equal(t, "greeting", k)
	assert.Equal(t, "hello world", v)
}

func TestParseSetSessionHeaderMissingEquals(t *testing.T) {
	_, _, err := parseSetSessionHeader("malformed")
	require.Error(t, err)
}
