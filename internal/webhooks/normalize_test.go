package webhooks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWAHAFilters(t *testing.T) {
	cases := []struct {
		name  string
		body  string
		phone string
	}{
		{"direct chat", `{"event":"message","session":"s","payload":{"id":"1","from":"2250701020304@c.us","body":"hi"}}`, "2250701020304"},
		{"whatsapp net suffix", `{"event":"message","session":"s","payload":{"id":"1","from":"2250701020304@s.whatsapp.net","body":"hi"}}`, "2250701020304"},
		{"multi device id", `{"event":"message","session":"s","payload":{"id":"1","from":"2250701020304:17@c.us","body":"hi"}}`, "2250701020304"},
		{"own message", `{"event":"message","session":"s","payload":{"id":"1","from":"2250701020304@c.us","fromMe":true,"body":"hi"}}`, ""},
		{"group", `{"event":"message","session":"s","payload":{"id":"1","from":"120363@g.us","body":"hi"}}`, ""},
		{"status broadcast", `{"event":"message","session":"s","payload":{"id":"1","from":"status@broadcast","body":"hi"}}`, ""},
		{"broadcast flag", `{"event":"message","session":"s","payload":{"id":"1","from":"2250701020304@c.us","broadcast":true,"body":"hi"}}`, ""},
		{"media only", `{"event":"message","session":"s","payload":{"id":"1","from":"2250701020304@c.us","hasMedia":true,"body":""}}`, ""},
		{"ack event", `{"event":"message.ack","session":"s","payload":{"id":"1","from":"2250701020304@c.us","body":"hi"}}`, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msgs, err := ParseWAHA([]byte(tc.body))
			require.NoError(t, err)
			if tc.phone == "" {
				assert.Empty(t, msgs)
				return
			}
			require.Len(t, msgs, 1)
			assert.Equal(t, tc.phone, msgs[0].From)
			assert.Equal(t, "s", msgs[0].RoutingKey)
		})
	}
}

func TestParseCloudBatchAndReplies(t *testing.T) {
	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{
		"metadata":{"display_phone_number":"225 07 00 00 00 01","phone_number_id":"998"},
		"messages":[
			{"id":"a","from":"2250701020304","type":"text","text":{"body":" 2 riz "}},
			{"id":"b","from":"2250701020304","type":"interactive","interactive":{"button_reply":{"title":"OUI"}}},
			{"id":"c","from":"2250701020304","type":"button","button":{"text":"Catalogue"}},
			{"id":"d","from":"2250701020304","type":"image"}
		]}}]}]}`

	msgs, err := ParseCloud([]byte(body))
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "2 riz", msgs[0].Text)
	assert.Equal(t, "OUI", msgs[1].Text)
	assert.Equal(t, "Catalogue", msgs[2].Text)
	for _, m := range msgs {
		assert.Equal(t, "2250700000001", m.RoutingKey)
	}
}

func TestParseCloudStatusCallback(t *testing.T) {
	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"metadata":{"phone_number_id":"998"},"statuses":[{"id":"x","status":"read"}]}}]}]}`
	msgs, err := ParseCloud([]byte(body))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := ParseCloud([]byte("not json"))
	assert.Error(t, err)
	_, err = ParseWAHA([]byte("[]"))
	assert.Error(t, err)
}
