// Package links builds and parses the shareable viewing links printed on receipts.
//
//	single photo:  <origin>/photo/<id>?url=<retrieval url>
//	receipt group: <origin>/photo/<group id>?receiptId=<group id>
package links

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

const photoPrefix = "/photo/"

// Kind distinguishes the two link variants.
type Kind int

const (
	KindSingle Kind = iota + 1
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindGroup:
		return "group"
	default:
		return "unknown"
	}
}

// Link is a parsed viewing link.
type Link struct {
	Kind Kind
	// ID is the path identifier: the photo id, or the group id for group links.
	ID string
	// RetrievalURL is set for single-photo links only.
	RetrievalURL string
	// GroupID is set for group links only.
	GroupID string
}

var ErrNotViewingLink = errors.New("not a viewing link")

// Single builds the single-photo link. retrievalURL must be the URL the media host returned.
func Single(origin, id, retrievalURL string) string {
	return strings.TrimRight(origin, "/") + photoPrefix + url.PathEscape(id) + "?url=" + url.QueryEscape(retrievalURL)
}

// Group builds the receipt-group link.
func Group(origin, groupID string) string {
	return strings.TrimRight(origin, "/") + photoPrefix + url.PathEscape(groupID) + "?receiptId=" + url.QueryEscape(groupID)
}

// Parse decodes either link variant. A receiptId parameter wins over url.
func Parse(raw string) (Link, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Link{}, fmt.Errorf("%w: %v", ErrNotViewingLink, err)
	}
	return FromURL(u)
}

// FromURL decodes an already-parsed request or link URL.
func FromURL(u *url.URL) (Link, error) {
	escaped := u.EscapedPath()
	idx := strings.LastIndex(escaped, photoPrefix)
	if idx < 0 {
		return Link{}, fmt.Errorf("%w: path %q", ErrNotViewingLink, u.Path)
	}
	seg := escaped[idx+len(photoPrefix):]
	seg = strings.TrimSuffix(seg, "/")
	if seg == "" || strings.Contains(seg, "/") {
		return Link{}, fmt.Errorf("%w: path %q", ErrNotViewingLink, u.Path)
	}
	id, err := url.PathUnescape(seg)
	if err != nil {
		return Link{}, fmt.Errorf("%w: %v", ErrNotViewingLink, err)
	}

	q := u.Query()
	if gid := q.Get("receiptId"); gid != "" {
		return Link{Kind: KindGroup, ID: id, GroupID: gid}, nil
	}
	return Link{Kind: KindSingle, ID: id, RetrievalURL: q.Get("url")}, nil
}
