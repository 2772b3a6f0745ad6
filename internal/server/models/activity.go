package models

import "time"

// ActivityKind tags the origin of an activity feed entry.
type ActivityKind string

const (
	ActivityUpload   ActivityKind = "upload"
	ActivityShare    ActivityKind = "share"
	ActivityDownload ActivityKind = "download"
)

// Activity is a single entry of the derived recent-activity view.
type Activity struct {
	Kind        ActivityKind
	Description string
	Timestamp   time.Time
}

// DashboardStats aggregates per-owner totals shown on the dashboard.
type DashboardStats struct {
	TotalFiles     int64
	TotalShared    int64
	TotalDownloads int64
	Recent         []Activity
}
