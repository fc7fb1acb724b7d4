package hub

import (
	"Outreach/internal/chat"
)

// StatsSource is the part of the session the monitor reads.
type StatsSource interface {
	Stats() chat.Stats
}

// FeedStats describes the UI push feed.
type FeedStats struct {
	Online     int64 `json:"online"`
	Accepted   int64 `json:"accepted"`
	FramesSent int64 `json:"framesSent"`
	Dropped    int64 `json:"dropped"`
	Kicked     int64 `json:"kicked"`
}

type MonitorResponse struct {
	Status  string     `json:"status"`
	Session chat.Stats `json:"session"`
	Feed    FeedStats  `json:"feed"`
}

// MonitorService provides methods to gather session and feed statistics
type MonitorService struct {
	session StatsSource
	hub     *Hub
}

// NewMonitorService creates a new monitor service. hub may be nil.
func NewMonitorService(session StatsSource, hub *Hub) *MonitorService {
	return &MonitorService{session: session, hub: hub}
}

// GetStats gathers and returns all statistics
func (ms *MonitorService) GetStats() MonitorResponse {
	session := ms.session.Stats()

	// Determine overall health status
	status := "healthy"
	switch {
	case !session.Connected && session.Connects == 0:
		status = "offline"
	case !session.Connected:
		status = "reconnecting"
	}

	return MonitorResponse{
		Status:  status,
		Session: session,
		Feed:    ms.getFeedStats(),
	}
}

func (ms *MonitorService) getFeedStats() FeedStats {
	if ms.hub == nil {
		return FeedStats{}
	}
	return FeedStats{
		Online:     ms.hub.online.Load(),
		Accepted:   ms.hub.accepted.Load(),
		FramesSent: ms.hub.sent.Load(),
		Dropped:    ms.hub.dropped.Load(),
		Kicked:     ms.hub.kicked.Load(),
	}
}
