package trino

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinodb/trino-go-client/internal/wire"
)

func TestNewClientRequiresServerURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	var progErr *ProgrammingError
	require.ErrorAs(t, err, &progErr)
}

func TestNewClientRequiresScheme(t *testing.T) {
	_, err := NewClient(Config{ServerURL: "coordinator:8080"})
	require.Error(t, err)
}

func TestClientExecuteReadsAllRows(t *testing.T) {
	srv := newPagedTestServer(t, 3)
	defer srv.Close()

	client, err := NewClient(Config{ServerURL: srv.URL, User: "alice"})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.Execute(ctx, "SELECT n")
	require.NoError(t, err)
	defer stream.Dispose()

	require.NoError(t, stream.WaitForColumns(ctx))
	var rowCount int
	err = stream.ReadToEnd(ctx, func(r Row) error {
		rowCount++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, rowCount)
}

type capturedRequest struct {
	body           string
	preparedHeader string
}

func TestClientExecuteWithParametersRewritesToFreshIDExecuteUsing(t *testing.T) {
	captured := make(chan capturedRequest, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/statement", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		captured <- capturedRequest{body: string(body), preparedHeader: r.Header.Get("X-Trino-Prepared-Statement")}
		writePage(t, w, wire.Page{ID: "q1"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(Config{ServerURL: srv.URL})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	local := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	offset := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	stream, err := client.Execute(ctx, "select * from t where x = ? and y = ?", LocalDateTime(local), OffsetDateTime(offset))
	require.NoError(t, err)
	defer stream.Dispose()

	var req capturedRequest
	select {
	case req = <-captured:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the initial request")
	}

	require.True(t, strings.HasPrefix(req.body, "EXECUTE trino"))
	require.Contains(t, req.body, " USING timestamp '2024-01-01 00:00:00.000', \"timestamp with time zone\" '2024-01-01 00:00:00.000 +00:00'")

	require.NotEmpty(t, req.preparedHeader)
	parts := strings.SplitN(req.preparedHeader, "=", 2)
	require.Len(t, parts, 2)
	assert.True(t, strings.HasPrefix(req.body, "EXECUTE "+parts[0]+" USING"))
	decoded, err := url.QueryUnescape(parts[1])
	require.NoError(t, err)
	assert.Equal(t, "select * from t where x = ? and y = ?", decoded)
}

func TestClientExecuteDiscardNeverBuffersRows(t *testing.T) {
	srv := newPagedTestServer(t, 3)
	defer srv.Close()

	client, err := NewClient(Config{ServerURL: srv.URL})
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := client.ExecuteDiscard(ctx, "SET SESSION query_max_run_time = '1h'")
	require.NoError(t, err)
	defer stream.Dispose()

	require.Eventually(t, func() bool {
		return stream.IsFinished()
	}, 5*time.Second, 10*time.Millisecond)

	assert.False(t, stream.HasData())
	ok, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClientSessionReflectsMutationsAfterFinish(t *testing.T) {
	srv := newPagedTestServer(t, 1)
	defer srv.Close()

	client, err := NewClient(Config{ServerURL: srv.URL})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.Execute(ctx, "SELECT n")
	require.NoError(t, err)
	require.NoError(t, stream.ReadToEnd(ctx, func(Row) error { return nil }))

	// ReadToEnd exhausted the stream, which drives the fetch loop to
	// Finish; Session() should now reflect the (empty, in this fixture)
	// mutation set without a further explicit call.
	_ = client.Session()
}
