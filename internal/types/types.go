package types

// AnalyticsReportRequest addresses one published report. Period defaults to
// the full-history window when the query parameter is omitted.
type AnalyticsReportRequest struct {
	Symbol     string `path:"symbol"`
	ReportType string `path:"reportType"`
	Period     string `form:"period,default=ytd"`
}

// AnalyticsIndexRequest asks which reports exist for a symbol.
type AnalyticsIndexRequest struct {
	Symbol string `path:"symbol"`
}

// AnalyticsIndexResponse lists the published periods per report type.
// LastPublished is the RFC3339 time of the asset's most recent publish,
// empty when the engine has never completed a run for it.
type AnalyticsIndexResponse struct {
	Symbol        string              `json:"symbol"`
	LastPublished string              `json:"last_published,omitempty"`
	Available     map[string][]string `json:"available"`
}

// AssetsResponse describes the configured sync universe. Sync carries one
// entry per asset the engine has touched at least once.
type AssetsResponse struct {
	Assets   []string                  `json:"assets"`
	Timezone string                    `json:"timezone,omitempty"`
	Interval string                    `json:"interval,omitempty"`
	Sync     map[string]AssetSyncState `json:"sync,omitempty"`
}

// AssetSyncState reports an asset's ingest and build progress from its
// cursor row. LastIngested is the newest stored candle open time in unix
// milliseconds; LastProcessedDate the newest built session, empty before
// the first build.
type AssetSyncState struct {
	LastIngested      int64  `json:"last_ingested"`
	LastProcessedDate string `json:"last_processed_date,omitempty"`
}

// HealthResponse reports per-dependency reachability. Status is "ok" only
// when every configured dependency answers.
type HealthResponse struct {
	Status   string `json:"status"`
	Postgres string `json:"postgres"`
	Redis    string `json:"redis"`
}

// ErrorResponse is the body of non-2xx replies.
type ErrorResponse struct {
	Error string `json:"error"`
}
