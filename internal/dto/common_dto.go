package dto

type ErrorResponse struct {
	Error   bool              `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Disk      *DiskUsage        `json:"disk,omitempty"`
}

type DiskUsage struct {
	Path        string  `json:"path"`
	UsedPercent float64 `json:"used_percent"`
	FreeBytes   uint64  `json:"free_bytes"`
}

type StatsResponse struct {
	TotalGenerations int64            `json:"total_generations"`
	Today            int64            `json:"today"`
	ThisWeek         int64            `json:"this_week"`
	ByIndustry       map[string]int64 `json:"by_industry"`
	Enabled          bool             `json:"enabled"`
}
