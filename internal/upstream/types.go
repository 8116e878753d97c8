package upstream

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"bdsgp/internal/history"
)

// FlexInt decodes the loosely typed counters the directory API returns:
// numbers, numeric strings, booleans and null all map to an int. Strings
// are read like parseInt, so "12 players" is 12 and "n/a" is 0.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")), bytes.Equal(data, []byte("false")):
		*f = 0
		return nil
	case bytes.Equal(data, []byte("true")):
		*f = 1
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexInt(leadingInt(s))
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = FlexInt(int(n))
	return nil
}

func leadingInt(s string) int {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// Server is one directory entry.
type Server struct {
	UUID           string         `json:"uuid"`
	Name           string         `json:"name"`
	Introduce      string         `json:"introduce"`
	Host           string         `json:"host"`
	Port           FlexInt        `json:"port"`
	Online         bool           `json:"online"`
	PlayerCount    FlexInt        `json:"player_count"`
	MaxPlayers     FlexInt        `json:"max_players"`
	Motd           string         `json:"motd"`
	Image          string         `json:"image,omitempty"`
	LastStatusTime string         `json:"last_status_time"`
	CreatedAt      string         `json:"created_at"`
	StatusHistory  []StatusRecord `json:"status_history,omitempty"`
}

// Address is host:port, or just host when no port is known.
func (s Server) Address() string {
	if s.Port <= 0 {
		return s.Host
	}
	return s.Host + ":" + strconv.Itoa(int(s.Port))
}

// StatusRecord is one entry of a server's status_history.
type StatusRecord struct {
	QueryTime   string  `json:"query_time"`
	PlayerCount FlexInt `json:"player_count"`
}

var queryTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseQueryTime reads the timestamp formats seen in status_history. Zone-less
// values are interpreted in loc.
func ParseQueryTime(raw string, loc *time.Location) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range queryTimeLayouts {
		if ts, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Sample converts the record for the history merger.
func (r StatusRecord) Sample(loc *time.Location) (history.Sample, bool) {
	ts, ok := ParseQueryTime(r.QueryTime, loc)
	if !ok {
		return history.Sample{}, false
	}
	return history.Sample{Timestamp: ts, Value: float64(r.PlayerCount)}, true
}

// Samples converts every parsable record, dropping the rest.
func Samples(records []StatusRecord, loc *time.Location) []history.Sample {
	out := make([]history.Sample, 0, len(records))
	for _, rec := range records {
		if s, ok := rec.Sample(loc); ok {
			out = append(out, s)
		}
	}
	return out
}

// MOTDInfo is the live query result from the MOTD API.
type MOTDInfo struct {
	Status    string  `json:"status"`
	Motd      string  `json:"motd"`
	Agreement FlexInt `json:"agreement"`
	Version   string  `json:"version"`
	Online    FlexInt `json:"online"`
	Max       FlexInt `json:"max"`
	Gamemode  string  `json:"gamemode"`
	Delay     FlexInt `json:"delay"`
}

// IsOnline reports whether the query saw the server up.
func (m MOTDInfo) IsOnline() bool {
	return strings.EqualFold(m.Status, "online")
}

func (m *MOTDInfo) clean() {
	m.Status = cleanField(m.Status)
	m.Motd = cleanField(m.Motd)
	m.Gamemode = cleanField(m.Gamemode)
	m.Version = cleanField(m.Version)
}

func cleanField(s string) string {
	return strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
}
