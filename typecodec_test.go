package trino

import (
	"bytes"
	"encoding/json"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinodb/trino-go-client/internal/wire"
)

func TestParseLogicalType(t *testing.T) {
	cases := []struct {
		raw  string
		want LogicalType
	}{
		{"bigint", LogicalType{Base: "bigint", Precision: -1, Scale: -1}},
		{"decimal(24,10)", LogicalType{Base: "decimal", Precision: 24, Scale: 10}},
		{"decimal(5)", LogicalType{Base: "decimal", Precision: 5, Scale: 0}},
		{"varchar(10)", LogicalType{Base: "varchar", Precision: 10, Scale: -1}},
		{"timestamp with time zone", LogicalType{Base: "timestamp with time zone", Precision: -1, Scale: -1}},
		{"timestamp(3) with time zone", LogicalType{Base: "timestamp with time zone", Precision: 3, Scale: -1}},
		{"time with time zone", LogicalType{Base: "time with time zone", Precision: -1, Scale: -1}},
		{"time(3) with time zone", LogicalType{Base: "time with time zone", Precision: 3, Scale: -1}},
		{"timestamp(3)", LogicalType{Base: "timestamp", Precision: 3, Scale: -1}},
	}
	for _, tc := range cases {
		got, err := ParseLogicalType(tc.raw)
		require.NoError(t, err)
		assert.Equal(t, tc.want.Base, got.Base)
		assert.Equal(t, tc.want.Precision, got.Precision)
		assert.Equal(t, tc.want.Scale, got.Scale)
	}
}

func TestParseLogicalTypeNested(t *testing.T) {
	got, err := ParseLogicalType("array(map(varchar,decimal(24,10)))")
	require.NoError(t, err)
	assert.Equal(t, "array", got.Base)
	require.Len(t, got.Params, 1)
	mapType := got.Params[0]
	assert.Equal(t, "map", mapType.Base)
	require.Len(t, mapType.Params, 2)
	assert.Equal(t, "varchar", mapType.Params[0].Base)
	assert.Equal(t, "decimal", mapType.Params[1].Base)
	assert.Equal(t, 24, mapType.Params[1].Precision)
	assert.Equal(t, 10, mapType.Params[1].Scale)
}

func TestSplitTopLevelCommas(t *testing.T) {
	got := splitTopLevelCommas("varchar,decimal(24,10),array(bigint)")
	assert.Equal(t, []string{"varchar", "decimal(24,10)", "array(bigint)"}, got)
}

func TestDecodeValueScalars(t *testing.T) {
	v, err := DecodeValue(float64(42), "bigint")
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = DecodeValue(true, "boolean")
	require.NoError(t, err)
	assert.Equal(t, true, v)

	v, err = DecodeValue("123.4500", "decimal(6,4)")
	require.NoError(t, err)
	dec, ok := v.(Decimal)
	require.True(t, ok)
	assert.Equal(t, "123.4500", dec.String())
}

// TestDecodeValueBigintFullRangeSurvivesJSONRoundTrip guards against the
// classic float64-mantissa truncation: a bigint near math.MaxInt64 must
// come out exact, which only holds if the page is decoded with
// json.Decoder.UseNumber rather than encoding/json's default float64.
func TestDecodeValueBigintFullRangeSurvivesJSONRoundTrip(t *testing.T) {
	const want int64 = 9223372036854775807 // math.MaxInt64, well beyond 2^53
	body := []byte(`{"id":"q1","data":[[9223372036854775807]]}`)

	var page wire.Page
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&page))

	v, err := DecodeValue(page.Data[0][0], "bigint")
	require.NoError(t, err)
	assert.Equal(t, want, v)

	// The naive path (default json.Unmarshal into interface{}) is lossy;
	// this documents why UseNumber is required rather than incidental.
	var lossy wire.Page
	require.NoError(t, json.Unmarshal(body, &lossy))
	f, ok := lossy.Data[0][0].(float64)
	require.True(t, ok)
	assert.NotEqual(t, want, int64(f))
}

func TestDecodeValueDoubleAndRealAcceptJSONNumber(t *testing.T) {
	v, err := DecodeValue(json.Number("3.5"), "double")
	require.NoError(t, err)
	assert.Equal(t, 3.5, v)

	v, err = DecodeValue(json.Number("2.5"), "real")
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), v)

	v, err = DecodeValue("NaN", "double")
	require.NoError(t, err)
	assert.True(t, math.IsNaN(v.(float64)))
}

func TestDecodeValueArray(t *testing.T) {
	v, err := DecodeValue([]any{float64(1), float64(2), float64(3)}, "array(integer)")
	require.NoError(t, err)
	got, ok := v.([]any)
	require.True(t, ok)
	require.Len(t, got, 3)
	assert.Equal(t, int32(1), got[0])
}

func TestDecodeValueRow(t *testing.T) {
	v, err := DecodeValue([]any{"a", float64(1)}, "row(varchar,bigint)")
	require.NoError(t, err)
	got, ok := v.([]any)
	require.True(t, ok)
	assert.Equal(t, "a", got[0])
	assert.Equal(t, int64(1), got[1])
}

func TestDecodeValueMap(t *testing.T) {
	v, err := DecodeValue(map[string]any{"x": float64(1)}, "map(varchar,integer)")
	require.NoError(t, err)
	got, ok := v.(map[any]any)
	require.True(t, ok)
	assert.Equal(t, int32(1), got["x"])
}

func TestDecodeValueVarbinary(t *testing.T) {
	v, err := DecodeValue("aGVsbG8=", "varbinary")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), v)
}

func TestDecodeValueTimestampWithTimeZoneAppliesColumnPrecision(t *testing.T) {
	v, err := DecodeValue("2023-04-04 01:02:03.004567 UTC", "timestamp(3) with time zone")
	require.NoError(t, err)
	ts, ok := v.(time.Time)
	require.True(t, ok)
	assert.Equal(t, 5*int(time.Millisecond), ts.Nanosecond())
}

func TestDecodeValueRejectsTypeMismatch(t *testing.T) {
	_, err := DecodeValue(float64(1), "boolean")
	require.Error(t, err)
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
}

func TestParseDecimalPreservesNegativeZero(t *testing.T) {
	d, err := ParseDecimal("-0.50")
	require.NoError(t, err)
	assert.True(t, d.Negative())
	assert.Equal(t, "-0.50", d.String())
}

func TestNewDecimalRoundTrip(t *testing.T) {
	d := NewDecimal(big.NewInt(12345), 2, false)
	assert.Equal(t, "123.45", d.String())
	f := d.Float64()
	assert.InDelta(t, 123.45, f, 0.0001)
}
