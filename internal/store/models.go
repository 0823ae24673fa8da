// Package store holds the persistence layer: gorm models, the database
// connection, migrations, and per-entity repositories providing the bulk
// upsert / conflict-ignore / savepoint primitives the rest of the pipeline
// depends on.
package store

import (
	"time"
)

// Outcome is one side of a market. It is not a normalized table: it lives
// serialized inside Market.Outcomes, matching the original Python model's
// plain JSON column (original_source/backend/models/market.py) and
// avoiding an outcome-per-row join for a value that never changes
// independently of its parent market.
type Outcome struct {
	Name    string  `json:"name"`
	TokenID string  `json:"token_id"`
	Price   float64 `json:"price"`
}

// HasValidToken reports whether the outcome carries a valid token id
// (§3 invariant: length >= 10).
func (o Outcome) HasValidToken() bool {
	return len(o.TokenID) >= 10
}

// Market is the market-metadata row, refreshed by the market collector.
type Market struct {
	ID              string         `gorm:"primaryKey;type:varchar(128)" json:"id"`
	Question        string         `json:"question"`
	EndDate         *time.Time     `json:"end_date"`
	Active          bool           `gorm:"index" json:"active"`
	EnableOrderBook bool           `gorm:"index;column:enable_order_book" json:"enable_order_book"`
	Volume          float64        `json:"volume"`
	Liquidity       float64        `json:"liquidity"`
	Category        string         `gorm:"index" json:"category"`
	Outcomes        JSONSlice[Outcome] `gorm:"type:jsonb" json:"outcomes"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func (Market) TableName() string { return "markets" }

// IsBinary reports whether the market has exactly two outcomes with valid
// token ids (§4.4.d precondition).
func (m Market) IsBinary() bool {
	if len(m.Outcomes) != 2 {
		return false
	}
	return m.Outcomes[0].HasValidToken() && m.Outcomes[1].HasValidToken()
}

// OrderBookSnapshot is an immutable, append-only historical metrics record
// for one token at one point in time. Raw ladders are never stored here
// (§3).
type OrderBookSnapshot struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	TokenID      string    `gorm:"index:idx_snap_token_ts,priority:1;type:varchar(128)" json:"token_id"`
	MarketID     string    `gorm:"index;type:varchar(128)" json:"market_id"`
	Timestamp    time.Time `gorm:"index:idx_snap_token_ts,priority:2" json:"timestamp"`
	BestBid      float64   `json:"best_bid"`
	BestAsk      float64   `json:"best_ask"`
	Spread       float64   `json:"spread"`
	SpreadPct    float64   `json:"spread_pct"`
	Mid          float64   `json:"mid"`
	BidDepth1Pct float64   `json:"bid_depth_1pct"`
	AskDepth1Pct float64   `json:"ask_depth_1pct"`
	BidDepth5Pct float64   `json:"bid_depth_5pct"`
	AskDepth5Pct float64   `json:"ask_depth_5pct"`
	Imbalance    float64   `json:"imbalance"`
}

func (OrderBookSnapshot) TableName() string { return "order_book_snapshots" }

// Level is one price/size rung of an order book ladder.
type Level struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBookLatestRaw holds the full bid/ask ladder for one token, upserted
// on every fetch so row count tracks token count rather than history (§3).
type OrderBookLatestRaw struct {
	TokenID   string             `gorm:"primaryKey;type:varchar(128)" json:"token_id"`
	MarketID  string             `gorm:"index;type:varchar(128)" json:"market_id"`
	Bids      JSONSlice[Level]   `gorm:"type:jsonb" json:"bids"`
	Asks      JSONSlice[Level]   `gorm:"type:jsonb" json:"asks"`
	Timestamp time.Time          `json:"timestamp"`
}

func (OrderBookLatestRaw) TableName() string { return "order_book_latest_raw" }

// Trade is a single upstream trade, deduplicated by id (§3).
type Trade struct {
	ID           string    `gorm:"primaryKey;type:varchar(128)" json:"id"`
	TokenID      string    `gorm:"index:idx_trade_token_ts,priority:1;type:varchar(128)" json:"token_id"`
	MarketID     string    `gorm:"index;type:varchar(128)" json:"market_id"`
	Price        float64   `json:"price"`
	Size         float64   `json:"size"`
	Side         *string   `gorm:"type:varchar(8)" json:"side"`
	Timestamp    time.Time `gorm:"index:idx_trade_token_ts,priority:2" json:"timestamp"`
	Maker        *string   `json:"maker,omitempty"`
	Taker        *string   `json:"taker,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func (Trade) TableName() string { return "trades" }

// AlertKind enumerates the polymorphic alert families (§3).
type AlertKind string

const (
	AlertVolumeSpike AlertKind = "volume_spike"
	AlertSpread      AlertKind = "spread_alert"
	AlertMMPullback  AlertKind = "mm_pullback"
	AlertArbitrage   AlertKind = "arbitrage"
)

// AlertSeverity mirrors apperrors.Severity but is kept as its own type so
// store has no dependency on the error package.
type AlertSeverity string

const (
	SeverityLow    AlertSeverity = "low"
	SeverityMedium AlertSeverity = "medium"
	SeverityHigh   AlertSeverity = "high"
)

// Alert is the polymorphic record produced by analyzers. Exactly one of
// MarketID / RelatedMarketIDs is populated (§3 invariant). DedupKey backs
// the per-kind uniqueness constraint enforced by a partial unique index
// (kind, dedup_key) WHERE is_active, so dedup is "insert and handle
// conflict", not "check then insert" (Design Notes).
type Alert struct {
	ID               string                       `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Kind             AlertKind                    `gorm:"index;type:varchar(32)" json:"kind"`
	Severity         AlertSeverity                `gorm:"type:varchar(16)" json:"severity"`
	Title            string                       `json:"title"`
	Description      string                       `json:"description"`
	MarketID         *string              `gorm:"index;type:varchar(128)" json:"market_id,omitempty"`
	RelatedMarketIDs JSONSlice[string]    `gorm:"type:jsonb" json:"related_market_ids,omitempty"`
	Data             JSONDoc              `gorm:"type:jsonb" json:"data"`
	DedupKey         string               `gorm:"type:varchar(256)" json:"dedup_key"`
	IsActive         bool                 `gorm:"index" json:"is_active"`
	CreatedAt        time.Time            `json:"created_at"`
	DismissedAt      *time.Time           `json:"dismissed_at,omitempty"`
	ExpiresAt        *time.Time           `gorm:"index" json:"expires_at,omitempty"`
}

func (Alert) TableName() string { return "alerts" }

// RelationshipKind enumerates cross-market relationship edges (§3).
type RelationshipKind string

const (
	RelationMutuallyExclusive RelationshipKind = "mutually_exclusive"
	RelationConditional       RelationshipKind = "conditional"
	RelationTimeSequence      RelationshipKind = "time_sequence"
	RelationSubset            RelationshipKind = "subset"
)

// MarketRelationship is a declared or confirmed edge between two markets.
// Uniqueness on (parent, child, kind) (§3).
type MarketRelationship struct {
	ID             uint64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind           RelationshipKind `gorm:"uniqueIndex:idx_relationship_triple;type:varchar(32)" json:"kind"`
	ParentMarketID string           `gorm:"uniqueIndex:idx_relationship_triple;type:varchar(128)" json:"parent_market_id"`
	ChildMarketID  string           `gorm:"uniqueIndex:idx_relationship_triple;type:varchar(128)" json:"child_market_id"`
	GroupID        *string          `gorm:"index;type:varchar(128)" json:"group_id,omitempty"`
	Confidence     float64          `json:"confidence"`
	Notes          string           `json:"notes"`
	CreatedAt      time.Time        `json:"created_at"`
}

func (MarketRelationship) TableName() string { return "market_relationships" }

// PeriodType enumerates the volume-stats aggregation windows (§3).
type PeriodType string

const (
	PeriodHour PeriodType = "hour"
	PeriodDay  PeriodType = "day"
	PeriodWeek PeriodType = "week"
)

// VolumeStats is a pre-aggregated volume window per (token, period_start,
// period_type), unique on that triple (§3).
type VolumeStats struct {
	ID          uint64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TokenID     string     `gorm:"uniqueIndex:idx_volstats_window;type:varchar(128)" json:"token_id"`
	PeriodType  PeriodType `gorm:"uniqueIndex:idx_volstats_window;type:varchar(16)" json:"period_type"`
	PeriodStart time.Time  `gorm:"uniqueIndex:idx_volstats_window" json:"period_start"`
	Volume      float64    `json:"volume"`
	TradeCount  int        `json:"trade_count"`
	AvgSize     float64    `json:"avg_size"`
	OpenPrice   float64    `json:"open_price"`
	HighPrice   float64    `json:"high_price"`
	LowPrice    float64    `json:"low_price"`
	ClosePrice  float64    `json:"close_price"`
	BuyVolume   float64    `json:"buy_volume"`
	SellVolume  float64    `json:"sell_volume"`
}

func (VolumeStats) TableName() string { return "volume_stats" }

// JobStatus enumerates a JobRun's lifecycle (§3, §8 invariant 4).
type JobStatus string

const (
	JobRunning JobStatus = "running"
	JobSuccess JobStatus = "success"
	JobFailed  JobStatus = "failed"
)

// JobRun is a per-invocation scheduler observability record.
type JobRun struct {
	ID               string     `gorm:"primaryKey;type:varchar(64)" json:"id"`
	JobID            string     `gorm:"index:idx_jobrun_job_started,priority:1;type:varchar(64)" json:"job_id"`
	StartedAt        time.Time  `gorm:"index:idx_jobrun_job_started,priority:2" json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	Status           JobStatus  `gorm:"type:varchar(16)" json:"status"`
	ErrorMessage     *string    `json:"error_message,omitempty"`
	RecordsProcessed *int       `json:"records_processed,omitempty"`
}

func (JobRun) TableName() string { return "job_runs" }
