package server

// ScanRequest is the payload of POST /scan.
type ScanRequest struct {
	TargetURL string `json:"target_url"`

	// ScanLevel bounds the candidate slugs probed; -1 probes all. Omitted
	// means the server's configured level.
	ScanLevel *int `json:"scan_level,omitempty"`
}

// StartBuildRequest is the payload of POST /builder/jobs. Empty fields take
// the builder defaults. sort_by and total_plugins are accepted as aliases of
// sort and total.
type StartBuildRequest struct {
	Sort         string `json:"sort"`
	Total        int    `json:"total"`
	SortBy       string `json:"sort_by"`
	TotalPlugins int    `json:"total_plugins"`
}

func (r StartBuildRequest) mode() string {
	if r.Sort != "" {
		return r.Sort
	}
	return r.SortBy
}

func (r StartBuildRequest) total() int {
	if r.Total != 0 {
		return r.Total
	}
	return r.TotalPlugins
}

// ErrorResponse is a uniform error payload returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
}
