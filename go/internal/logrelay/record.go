package logrelay

import (
	"math"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/Graylog2/go-gelf.v2/gelf"
)

// DefaultContainer tags records from senders that did not name their container.
const DefaultContainer = "sprint-racebot-logging"

const containerField = "_container_name"

// Record is a log line received from a container.
type Record struct {
	Message     string         `json:"message"`
	Full        string         `json:"full,omitempty"`
	Container   string         `json:"container"`
	Application string         `json:"application"`
	Host        string         `json:"host"`
	Level       int32          `json:"level"`
	Timestamp   time.Time      `json:"timestamp"`
	Fields      map[string]any `json:"fields,omitempty"`
}

// FromGELF converts a GELF message. Extra fields keep their names without the
// leading underscore.
func FromGELF(m *gelf.Message, application string) Record {
	r := Record{
		Message:     m.Short,
		Full:        m.Full,
		Container:   DefaultContainer,
		Application: application,
		Host:        m.Host,
		Level:       m.Level,
		Timestamp:   fromUnix(m.TimeUnix),
	}

	for k, v := range m.Extra {
		if k == containerField {
			if name, ok := v.(string); ok && name != "" {
				r.Container = name
			}
			continue
		}
		if r.Fields == nil {
			r.Fields = make(map[string]any, len(m.Extra))
		}
		if len(k) > 1 && k[0] == '_' {
			k = k[1:]
		}
		r.Fields[k] = v
	}
	return r
}

func fromUnix(ts float64) time.Time {
	if ts <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(ts)
	return time.Unix(int64(sec), int64(frac*float64(time.Second))).UTC()
}

// syslog severities
const (
	levelErr     = 3
	levelWarning = 4
	levelDebug   = 7
)

// ZerologLevel maps a syslog severity to a zerolog level.
func (r Record) ZerologLevel() zerolog.Level {
	switch {
	case r.Level <= levelErr:
		return zerolog.ErrorLevel
	case r.Level == levelWarning:
		return zerolog.WarnLevel
	case r.Level >= levelDebug:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}
