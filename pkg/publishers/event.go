package publishers

import (
	"time"

	"github.com/samvad-hq/pubsync/internal/domain"
)

// Event announces a publication that appeared on the page for the first time.
type Event struct {
	Source      string             `json:"source"`
	Key         string             `json:"key"`
	Publication domain.Publication `json:"publication"`
	Link        string             `json:"link,omitempty"`
	AnnouncedAt time.Time          `json:"announced_at"`
}

// NewEvent builds the announcement for pub, produced by source.
func NewEvent(source string, pub domain.Publication, link string) Event {
	return Event{
		Source:      source,
		Key:         pub.Key(),
		Publication: pub,
		Link:        link,
		AnnouncedAt: time.Now().UTC(),
	}
}

// attributes are the routing attributes queue sinks attach to a message.
func (e Event) attributes() map[string]string {
	attrs := map[string]string{"publication_key": e.Key}
	if e.Source != "" {
		attrs["source"] = e.Source
	}
	if e.Publication.Year != "" {
		attrs["year"] = e.Publication.Year
	}
	return attrs
}
