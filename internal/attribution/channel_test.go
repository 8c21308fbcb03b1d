package attribution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyChannel(t *testing.T) {
	tests := []struct {
		source string
		medium string
		want   Channel
	}{
		{"google", "cpc", ChannelPaid},
		{"facebook", "paid_social", ChannelPaid},
		{"newsletter", "email", ChannelEmail},
		{"linkedin", "social", ChannelSocial},
		{"google", "organic", ChannelOrganic},
		{"Google", "Organic", ChannelOrganic},
		{"news.example.com", "referral", ChannelReferral},
		{"(direct)", "(none)", ChannelDirect},
		{"instagram", "(not set)", ChannelSocial},
		{"duckduckgo", "(not set)", ChannelOrganic},
		{"partner", "affiliate", ChannelOther},
	}

	for _, tt := range tests {
		t.Run(tt.source+"/"+tt.medium, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyChannel(tt.source, tt.medium))
		})
	}
}

func TestChannelIcon(t *testing.T) {
	assert.Equal(t, "🔍", ChannelOrganic.Icon())
	assert.Equal(t, "🎯", ChannelDirect.Icon())
	assert.Equal(t, "🌐", Channel("unknown").Icon())
}
