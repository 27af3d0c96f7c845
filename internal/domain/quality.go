package domain

import "time"

// QualityLevel is a coarse 0 (unusable) to 4 (excellent) link rating.
type QualityLevel int

const (
	QualityUnusable  QualityLevel = 0
	QualityBad       QualityLevel = 1
	QualityPoor      QualityLevel = 2
	QualityGood      QualityLevel = 3
	QualityExcellent QualityLevel = 4
)

type Bandwidth struct {
	Upload   float64 `json:"upload"`
	Download float64 `json:"download"`
}

// NetworkQuality is a point-in-time snapshot. No history is kept here.
type NetworkQuality struct {
	Level      QualityLevel  `json:"level"`
	Latency    time.Duration `json:"latency"`
	Jitter     time.Duration `json:"jitter"`
	PacketLoss float64       `json:"packetLoss"`
	Bandwidth  Bandwidth     `json:"bandwidth"`
	SampledAt  time.Time     `json:"sampledAt"`
}
