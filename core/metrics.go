package core

import "time"

// Metrics receives domain events worth counting.
type Metrics interface {
	PointsAwarded(action string, points int)
	CertificateIssued()
	DoubtEscalated()
	SweepCompleted(escalated, failed int, took time.Duration)
}

// NopMetrics discards every event.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) PointsAwarded(string, int)              {}
func (NopMetrics) CertificateIssued()                     {}
func (NopMetrics) DoubtEscalated()                        {}
func (NopMetrics) SweepCompleted(int, int, time.Duration) {}
