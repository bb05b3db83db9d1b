// Package control parses and routes the JSON control messages the backend
// interleaves with binary audio frames on the transport's text stream.
//
// Every message is an envelope tagged with a discriminator — `query_type`
// for most categories, `type` for RAG context. The set of categories is an
// evolving backend contract: unknown tags are ignored (logged at debug),
// never treated as errors.
package control

import (
	"encoding/json"
	"fmt"
)

// Category identifies one control message kind, as carried in the
// envelope's discriminator field.
type Category string

// Categories emitted by the current backend.
const (
	// Chart configurations, rendered by whatever front end consumes them.
	AggregationLevel1   Category = "aggregation_level_1"
	AggregationLevel2   Category = "aggregation_level_2"
	UserPortfolio       Category = "user_portfolio"
	RelativePerformance Category = "relative_performance"
	PortfolioBenchmark  Category = "portfolio_benchmark"
	RiskAnalysis        Category = "risk_analysis"
	ReturnsAttribution  Category = "returns_attribution"

	// Event and document categories.
	SessionLogs   Category = "session_logs"
	News          Category = "news"
	FundFactSheet Category = "fund_fact_sheet"
	TradeResponse Category = "trade_response"
	RAGResponse   Category = "rag_response"
	RAGContext    Category = "rag_context"
)

// IsChartConfig reports whether c is one of the chart-configuration
// categories.
func (c Category) IsChartConfig() bool {
	switch c {
	case AggregationLevel1, AggregationLevel2, UserPortfolio,
		RelativePerformance, PortfolioBenchmark, RiskAnalysis, ReturnsAttribution:
		return true
	}
	return false
}

// invalidatesBalance reports whether a message of this category means the
// user's cash balance may have changed (a trade settled or the portfolio
// was refreshed).
func (c Category) invalidatesBalance() bool {
	return c == TradeResponse || c == UserPortfolio
}

// Envelope is one parsed control message. The payload stays opaque
// ([Envelope.Raw]) — handlers decode the parts they care about.
type Envelope struct {
	QueryType string `json:"query_type"`
	Type      string `json:"type"`

	// Raw is the complete original message.
	Raw json.RawMessage `json:"-"`
}

// Parse decodes the envelope discriminators from one text message.
func Parse(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("control: parse envelope: %w", err)
	}
	env.Raw = append(json.RawMessage(nil), data...)
	return env, nil
}

// Category returns the envelope's discriminator: query_type when present,
// otherwise type. Empty when the message carries neither.
func (e Envelope) Category() Category {
	if e.QueryType != "" {
		return Category(e.QueryType)
	}
	return Category(e.Type)
}

// SessionLogEntry is the payload of a session_logs message.
type SessionLogEntry struct {
	Type     string `json:"type"`
	Datetime string `json:"datetime"`
	Message  string `json:"message"`
}

// SessionLog decodes the envelope as a session_logs message.
func (e Envelope) SessionLog() (SessionLogEntry, error) {
	var body struct {
		Data SessionLogEntry `json:"data"`
	}
	if err := json.Unmarshal(e.Raw, &body); err != nil {
		return SessionLogEntry{}, fmt.Errorf("control: decode session log: %w", err)
	}
	return body.Data, nil
}
