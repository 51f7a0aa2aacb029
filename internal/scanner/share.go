package scanner

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	shareAttr   = "data-open-share"
	shareSelect = "[data-open-share]:not([data-open-share-node])"
	dynamicAttr = "data-open-share-dynamic"
)

// shareFields are the optional data-open-share-* attributes carried into
// ShareData, keyed by their camelCase name.
var shareFields = []string{
	"url", "text", "via", "hashtags", "tweet-id", "related", "screen-name",
	"user-id", "link", "picture", "caption", "description", "user", "video",
	"username", "title", "media", "to", "subject", "body", "ios",
}

// DefaultShareTypes lists the share transforms a page may reference.
var DefaultShareTypes = []string{
	"blogger", "buffer", "codepen", "delicious", "dribbble", "email",
	"facebook", "facebookSend", "github", "githubFork", "githubIssue",
	"githubWatch", "google", "googleMaps", "googleSearch", "instagram",
	"linkedin", "paypal", "pinterest", "reddit", "sms", "snapchat",
	"stumbleupon", "tumblr", "twitter", "twitterFollow", "twitterLike",
	"twitterRetweet", "vimeo", "whatsapp", "youtube", "youtubeSubscribe",
}

// ShareData holds the non-empty share attributes of a node.
type ShareData map[string]string

// ShareNode is an initialized share element.
type ShareNode struct {
	Type    string    `json:"type"`
	Dynamic bool      `json:"dynamic,omitempty"`
	Data    ShareData `json:"data"`
}

// CamelCase converts a dash-case type such as "twitter-follow-me" to
// "twitterFollowMe".
func CamelCase(s string) string {
	parts := strings.Split(strings.TrimSpace(s), "-")
	var b strings.Builder
	for i, part := range parts {
		if part == "" {
			continue
		}
		if i == 0 || b.Len() == 0 {
			b.WriteString(part)
			continue
		}
		b.WriteString(strings.ToUpper(part[:1]))
		b.WriteString(part[1:])
	}
	return b.String()
}

func (s *Scanner) initShareNode(sel *goquery.Selection) (ShareNode, error) {
	raw, _ := sel.Attr(shareAttr)
	typ := CamelCase(raw)
	if _, ok := s.shareTypes[typ]; !ok {
		return ShareNode{}, fmt.Errorf("%q is an invalid share type", raw)
	}

	node := ShareNode{Type: typ, Data: shareData(sel)}
	if v, ok := sel.Attr(dynamicAttr); ok && v != "" {
		node.Dynamic = true
	}
	sel.SetAttr(nodeAttr, typ)
	return node, nil
}

func shareData(sel *goquery.Selection) ShareData {
	data := ShareData{}
	for _, field := range shareFields {
		v, ok := sel.Attr(shareAttr + "-" + field)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		data[CamelCase(field)] = strings.TrimSpace(v)
	}
	return data
}
