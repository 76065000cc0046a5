package models

import "time"

// ConnectionStats is derived telemetry for the current session. The zero
// value is the reset record.
type ConnectionStats struct {
	BytesIn       uint64
	BytesOut      uint64
	DownloadSpeed float64 // bytes/sec
	UploadSpeed   float64 // bytes/sec
	DataUsed      uint64
	ConnectedTime time.Duration
	IPAddress     string
	LastHandshake time.Time
}

func (s ConnectionStats) IsZero() bool {
	return s == ConnectionStats{}
}
