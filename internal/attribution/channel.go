package attribution

import "strings"

// Channel is the marketing channel a source/medium pair belongs to.
type Channel string

const (
	ChannelPaid     Channel = "paid"
	ChannelEmail    Channel = "email"
	ChannelSocial   Channel = "social"
	ChannelOrganic  Channel = "organic"
	ChannelReferral Channel = "referral"
	ChannelDirect   Channel = "direct"
	ChannelOther    Channel = "other"
)

var channelIcons = map[Channel]string{
	ChannelPaid:     "💰",
	ChannelEmail:    "✉️",
	ChannelSocial:   "📱",
	ChannelOrganic:  "🔍",
	ChannelReferral: "🔗",
	ChannelDirect:   "🎯",
	ChannelOther:    "🌐",
}

var (
	socialSources = map[string]bool{
		"facebook":  true,
		"twitter":   true,
		"instagram": true,
		"linkedin":  true,
		"pinterest": true,
	}
	searchSources = map[string]bool{
		"google":     true,
		"bing":       true,
		"yahoo":      true,
		"duckduckgo": true,
	}
)

// ClassifyChannel maps a GA4 session source and medium to a channel. The
// medium decides first; the source is only consulted when the medium is not
// recognised.
func ClassifyChannel(source, medium string) Channel {
	src := strings.ToLower(source)
	med := strings.ToLower(medium)

	switch {
	case strings.Contains(med, "cpc"), strings.Contains(med, "paid"):
		return ChannelPaid
	case strings.Contains(med, "email"):
		return ChannelEmail
	case strings.Contains(med, "social"):
		return ChannelSocial
	case med == "organic":
		return ChannelOrganic
	case med == "referral":
		return ChannelReferral
	case src == "(direct)" && med == "(none)":
		return ChannelDirect
	}

	switch {
	case socialSources[src]:
		return ChannelSocial
	case searchSources[src]:
		return ChannelOrganic
	}
	return ChannelOther
}

// Icon returns the emoji shown next to the channel in tables.
func (c Channel) Icon() string {
	if icon, ok := channelIcons[c]; ok {
		return icon
	}
	return channelIcons[ChannelOther]
}
