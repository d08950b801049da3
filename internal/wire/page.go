// Package wire holds the JSON shapes exchanged with the coordinator, kept
// separate from decoding/session logic the way the teacher splits
// internal/query's response types from the driver package that
// interprets them.
package wire

import (
	"encoding/json"
	"math"
	"strconv"
)

// TypeSignature mirrors the coordinator's typeSignature object attached
// to each column, matching the shape observed in the Presto/Trino wire
// format (arguments are opaque to this client; only RawType is used).
type TypeSignature struct {
	RawType          string        `json:"rawType"`
	TypeArguments    []interface{} `json:"typeArguments,omitempty"`
	LiteralArguments []interface{} `json:"literalArguments,omitempty"`
	Arguments        []interface{} `json:"arguments,omitempty"`
}

// Column describes one result column.
type Column struct {
	Name          string        `json:"name"`
	Type          string        `json:"type"`
	TypeSignature TypeSignature `json:"typeSignature"`
}

// StageStats is the per-stage breakdown embedded in Stats.rootStage. Its
// shape is preserved verbatim but is not otherwise interpreted by the
// core.
type StageStats struct {
	StageID         string        `json:"stageId"`
	State           string        `json:"state"`
	Done            bool          `json:"done"`
	Nodes           int           `json:"nodes"`
	TotalSplits     int           `json:"totalSplits"`
	QueuedSplits    int           `json:"queuedSplits"`
	RunningSplits   int           `json:"runningSplits"`
	CompletedSplits int           `json:"completedSplits"`
	CPUTimeMillis   int64         `json:"cpuTimeMillis"`
	WallTimeMillis  int64         `json:"wallTimeMillis"`
	ProcessedRows   int64         `json:"processedRows"`
	ProcessedBytes  int64         `json:"processedBytes"`
	SubStages       []*StageStats `json:"subStages,omitempty"`
}

// Stats is one page's query-progress snapshot.
type Stats struct {
	State             string `json:"state"`
	Queued            bool   `json:"queued"`
	Scheduled         bool   `json:"scheduled"`
	Nodes             int    `json:"nodes"`
	TotalSplits       int    `json:"totalSplits"`
	QueuedSplits      int    `json:"queuedSplits"`
	RunningSplits     int    `json:"runningSplits"`
	CompletedSplits   int    `json:"completedSplits"`
	CPUTimeMillis     int64  `json:"cpuTimeMillis"`
	WallTimeMillis    int64  `json:"wallTimeMillis"`
	QueuedTimeMillis  int64  `json:"queuedTimeMillis"`
	ElapsedTimeMillis int64  `json:"elapsedTimeMillis"`
	ProcessedRows     int64  `json:"processedRows"`
	ProcessedBytes    int64  `json:"processedBytes"`
	PeakMemoryBytes   int64  `json:"peakMemoryBytes"`
	SpilledBytes      int64  `json:"spilledBytes"`
	RootStage         *StageStats `json:"rootStage,omitempty"`

	// ProgressPercentage arrives as a JSON number once stats are
	// available, or the literal string "NaN" before they are.
	ProgressPercentage Percentage `json:"progressPercentage,omitempty"`
}

// Percentage decodes progressPercentage's dual wire representation: a
// JSON number, or the string "NaN" while the coordinator hasn't yet
// estimated progress. It round-trips back the same way it arrived: NaN
// serializes as the JSON string "NaN", any other value as a number.
type Percentage float64

func (p *Percentage) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = Percentage(math.NaN())
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*p = Percentage(f)
		return nil
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*p = Percentage(f)
	return nil
}

func (p Percentage) MarshalJSON() ([]byte, error) {
	f := float64(p)
	if math.IsNaN(f) {
		return json.Marshal("NaN")
	}
	return json.Marshal(f)
}

// ErrorLocation is a line/column pointer into the submitted SQL text.
type ErrorLocation struct {
	LineNumber   int `json:"lineNumber"`
	ColumnNumber int `json:"columnNumber"`
}

// FailureInfo is the (possibly cyclic, via Cause/Suppressed) server-side
// failure tree.
type FailureInfo struct {
	Type       string           `json:"type"`
	Message    string           `json:"message"`
	Location   *ErrorLocation   `json:"errorLocation,omitempty"`
	Stack      []string         `json:"stack,omitempty"`
	Suppressed []*FailureInfo   `json:"suppressed,omitempty"`
	Cause      *FailureInfo     `json:"cause,omitempty"`
}

// Error is the error object embedded in a page when a statement fails.
type Error struct {
	Message     string         `json:"message"`
	ErrorCode   int            `json:"errorCode"`
	ErrorName   string         `json:"errorName"`
	ErrorType   string         `json:"errorType"`
	Location    *ErrorLocation `json:"errorLocation,omitempty"`
	FailureInfo *FailureInfo   `json:"failureInfo,omitempty"`
}

// Page is one HTTP response in the continuation chain.
type Page struct {
	ID      string          `json:"id"`
	InfoURI string          `json:"infoUri"`
	NextURI string          `json:"nextUri,omitempty"`
	Columns []Column        `json:"columns,omitempty"`
	Data    [][]interface{} `json:"data,omitempty"`
	Stats   *Stats          `json:"stats"`
	Error   *Error          `json:"error,omitempty"`

	AddedPreparedStatements       map[string]string `json:"addedPreparedStatements,omitempty"`
	DeallocatedPreparedStatements []string          `json:"deallocatedPreparedStatements,omitempty"`
}
