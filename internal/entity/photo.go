package entity

import "time"

// Photo is one image uploaded to the hosted media store.
// RetrievalURL is the authoritative link returned by the host; it is never derived from ID.
type Photo struct {
	ID           string `json:"identifier"`
	RetrievalURL string `json:"retrievalUrl"`
	Timestamp    string `json:"timestamp"` // RFC 3339
}

// Group is the ordered set of photos printed on one receipt.
type Group struct {
	ID        string  `json:"groupId"`
	Photos    []Photo `json:"members"`
	Timestamp string  `json:"timestamp"` // RFC 3339
}

// FormatTimestamp renders t the way records store it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Time parses the stored timestamp.
func (p Photo) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, p.Timestamp)
}

// Time parses the stored timestamp.
func (g Group) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, g.Timestamp)
}

// Primary returns the first photo of the group, which names the receipt.
func (g Group) Primary() (Photo, bool) {
	if len(g.Photos) == 0 {
		return Photo{}, false
	}
	return g.Photos[0], true
}
