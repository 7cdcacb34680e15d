package feishu

import (
	"testing"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
)

func strPtr(s string) *string { return &s }

func newEvent(senderType, msgType, content string, mentions ...*larkim.MentionEvent) *larkim.P2MessageReceiveV1 {
	return &larkim.P2MessageReceiveV1{
		Event: &larkim.P2MessageReceiveV1Data{
			Sender: &larkim.EventSender{
				SenderId:   &larkim.UserId{OpenId: strPtr("ou_alice")},
				SenderType: strPtr(senderType),
			},
			Message: &larkim.EventMessage{
				MessageId:   strPtr("om_1"),
				ChatId:      strPtr("oc_chat"),
				ChatType:    strPtr("group"),
				MessageType: strPtr(msgType),
				Content:     strPtr(content),
				CreateTime:  strPtr("1700000000000"),
				Mentions:    mentions,
			},
		},
	}
}

func TestParseEventText(t *testing.T) {
	event := newEvent("user", "text", `{"text":"@_user_1 what is 12*7?"}`, &larkim.MentionEvent{
		Key:  strPtr("@_user_1"),
		Name: strPtr("ButlerBot"),
	})

	msg, ok := ParseEvent(event)
	if !ok {
		t.Fatal("expected message to be accepted")
	}
	if msg.Content != "@ButlerBot what is 12*7?" {
		t.Errorf("Content = %q", msg.Content)
	}
	if msg.ChatID != "oc_chat" || msg.SenderID != "ou_alice" || msg.MsgID != "om_1" {
		t.Errorf("unexpected ids %+v", msg)
	}
	if msg.CreateTime != 1700000000000 {
		t.Errorf("CreateTime = %d", msg.CreateTime)
	}
}

func TestParseEventPost(t *testing.T) {
	content := `{"title":"Question","content":[[{"tag":"at","user_id":"@_user_1"},{"tag":"text","text":" sum of 2 and 2"}],[{"tag":"img","image_key":"img_1"}]]}`
	event := newEvent("user", "post", content, &larkim.MentionEvent{
		Key:  strPtr("@_user_1"),
		Name: strPtr("ButlerBot"),
	})

	msg, ok := ParseEvent(event)
	if !ok {
		t.Fatal("expected post to be accepted")
	}
	if msg.Content != "Question\n@ButlerBot sum of 2 and 2" {
		t.Errorf("Content = %q", msg.Content)
	}
}

func TestParseEventRejects(t *testing.T) {
	tests := []struct {
		name  string
		event *larkim.P2MessageReceiveV1
	}{
		{"nil event", nil},
		{"app sender", newEvent("app", "text", `{"text":"hello"}`)},
		{"image", newEvent("user", "image", `{"image_key":"img_1"}`)},
		{"bad json", newEvent("user", "text", `not json`)},
		{"empty text", newEvent("user", "text", `{"text":"   "}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, ok := ParseEvent(tt.event); ok {
				t.Error("expected event to be dropped")
			}
		})
	}
}
