package model

import "time"

// Predicate is a client-supplied filter over the stream's event set (§4.7).
type Predicate struct {
	MinSeverity float64  `json:"minSeverity,omitempty"`
	Types       []string `json:"types,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Match reports whether an event satisfies every predicate dimension that
// was supplied (zero-value dimensions are treated as "no constraint").
func (p Predicate) Match(ev StreamEvent) bool {
	if p.MinSeverity > 0 {
		var sev float64
		switch v := ev.Payload["severity"].(type) {
		case float64:
			sev = v
		case int:
			sev = float64(v)
		default:
			return false
		}
		if sev < p.MinSeverity {
			return false
		}
	}
	if len(p.Types) > 0 {
		found := false
		for _, t := range p.Types {
			if t == ev.Type {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(p.Tags) > 0 {
		tags, _ := ev.Payload["tags"].([]string)
		found := false
		for _, want := range p.Tags {
			for _, have := range tags {
				if want == have {
					found = true
					break
				}
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// StreamEvent is one buffered entry in the replay ring and one frame on the
// wire (§3, §6 wire protocol).
type StreamEvent struct {
	ID        string         `json:"id"`
	Channel   string         `json:"channel"`
	Timestamp time.Time      `json:"timestamp"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload"`
}

// Subscriber is a connected stream client (§3). Writer is kept opaque at
// the model layer; internal/stream binds it to an http.ResponseWriter.
type Subscriber struct {
	ID                 string
	SubscribedChannels  []string
	Filter              Predicate
	ConnectedAt         time.Time
	LastHeartbeat       time.Time
}

// WantsChannel reports whether ch is in the subscriber's channel list. An
// empty list means "all channels".
func (s Subscriber) WantsChannel(ch string) bool {
	if len(s.SubscribedChannels) == 0 {
		return true
	}
	for _, c := range s.SubscribedChannels {
		if c == ch {
			return true
		}
	}
	return false
}
