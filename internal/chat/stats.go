package chat

import "time"

// Stats are the session counters served by the monitor endpoint.
type Stats struct {
	Connected            bool           `json:"connected"`
	Connects             int            `json:"connects"`
	Disconnects          int            `json:"disconnects"`
	LastStateChange      time.Time      `json:"lastStateChange,omitempty"`
	Received             map[string]int `json:"received"`
	Emitted              map[string]int `json:"emitted"`
	ChannelErrors        map[string]int `json:"channelErrors"`
	LastChannelError     string         `json:"lastChannelError,omitempty"`
	FetchFailures        int            `json:"fetchFailures"`
	StaleFetches         int            `json:"staleFetches"`
	UnknownConversations int            `json:"unknownConversations"`
	Promotions           int            `json:"promotions"`
	ActiveConversation   string         `json:"activeConversation,omitempty"`
	Conversations        int            `json:"conversations"`
	Placeholders         int            `json:"placeholders"`
	Messages             int            `json:"messages"`
	Typing               int            `json:"typing"`
}

func newStats() Stats {
	return Stats{
		Received:      make(map[string]int),
		Emitted:       make(map[string]int),
		ChannelErrors: make(map[string]int),
	}
}

func (st *Stats) recordState(connected bool, at time.Time) {
	if connected {
		st.Connects++
	} else {
		st.Disconnects++
	}
	st.LastStateChange = at
}

func (st Stats) clone() Stats {
	cp := st
	cp.Received = copyCounts(st.Received)
	cp.Emitted = copyCounts(st.Emitted)
	cp.ChannelErrors = copyCounts(st.ChannelErrors)
	return cp
}

func copyCounts(m map[string]int) map[string]int {
	cp := make(map[string]int, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
