package domain

import (
	"reflect"
	"testing"
)

func TestParseChannels(t *testing.T) {
	cases := map[string][]Channel{
		"sms":                {ChannelSMS},
		"sms,whatsapp,email": {ChannelSMS, ChannelWhatsApp, ChannelEmail},
		" Email , SMS ":      {ChannelEmail, ChannelSMS},
		"sms,sms,sms":        {ChannelSMS},
		"":                   {ChannelSMS},
		"fax,pigeon":         {ChannelSMS},
		"whatsapp,fax":       {ChannelWhatsApp},
	}
	for raw, expected := range cases {
		got := ParseChannels(raw)
		if !reflect.DeepEqual(got, expected) {
			t.Fatalf("для %q ожидали %v, получили %v", raw, expected, got)
		}
	}
}

func TestNormalizeChannelsDefaultsToSMS(t *testing.T) {
	got := NormalizeChannels(nil)
	if !reflect.DeepEqual(got, []Channel{ChannelSMS}) {
		t.Fatalf("ожидали {sms}, получили %v", got)
	}
	got = NormalizeChannels([]Channel{"FAX"})
	if !reflect.DeepEqual(got, []Channel{ChannelSMS}) {
		t.Fatalf("ожидали {sms} для неизвестного канала, получили %v", got)
	}
}

func TestJoinChannelsRoundTrip(t *testing.T) {
	channels := []Channel{ChannelWhatsApp, ChannelEmail}
	joined := JoinChannels(channels)
	if joined != "whatsapp,email" {
		t.Fatalf("ожидали whatsapp,email, получили %s", joined)
	}
	if !reflect.DeepEqual(ParseChannels(joined), channels) {
		t.Fatalf("раунд-трип списка каналов сломан")
	}
}

func TestParseTier(t *testing.T) {
	cases := map[string]Tier{
		"essential": TierEssential,
		"ELITE":     TierElite,
		"free":      TierFree,
		"":          TierFree,
		"platinum":  TierFree,
	}
	for raw, expected := range cases {
		if got := ParseTier(raw); got != expected {
			t.Fatalf("для %q ожидали %s, получили %s", raw, expected, got)
		}
	}
	if TierFree.Paid() {
		t.Fatalf("FREE не должен считаться платным")
	}
	if !TierEssential.Paid() || !TierElite.Paid() {
		t.Fatalf("платные тарифы должны считаться платными")
	}
}
