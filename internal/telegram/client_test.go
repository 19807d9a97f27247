package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/giftgate/giftbot/internal/membership"
)

type recordedCall struct {
	method string
	params map[string]any
}

type fakeBotAPI struct {
	t       *testing.T
	mu      sync.Mutex
	calls   []recordedCall
	replies map[string]string
}

func newFakeBotAPI(t *testing.T, replies map[string]string) (*fakeBotAPI, *Client) {
	t.Helper()
	fake := &fakeBotAPI{t: t, replies: replies}
	srv := httptest.NewServer(http.HandlerFunc(fake.serve))
	t.Cleanup(srv.Close)
	return fake, New("123:abc", WithBaseURL(srv.URL))
}

func (f *fakeBotAPI) serve(w http.ResponseWriter, r *http.Request) {
	const prefix = "/bot123:abc/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	method := strings.TrimPrefix(r.URL.Path, prefix)
	params := map[string]any{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &params); err != nil {
			f.t.Errorf("decode %s params: %v", method, err)
		}
	} else if err := r.ParseMultipartForm(1 << 20); err == nil {
		for key, values := range r.MultipartForm.Value {
			params[key] = values[0]
		}
		for key, files := range r.MultipartForm.File {
			file, _ := files[0].Open()
			content, _ := io.ReadAll(file)
			_ = file.Close()
			params[key] = files[0].Filename + ":" + string(content)
		}
	}
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{method: method, params: params})
	f.mu.Unlock()

	reply, ok := f.replies[method]
	if !ok {
		reply = `{"ok":true,"result":true}`
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, reply)
}

func (f *fakeBotAPI) last(t *testing.T) recordedCall {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatalf("no calls recorded")
	}
	return f.calls[len(f.calls)-1]
}

func TestGetChatMemberEncodesChatReference(t *testing.T) {
	fake, client := newFakeBotAPI(t, map[string]string{
		"getChatMember": `{"ok":true,"result":{"status":"restricted","is_member":true,"user":{"id":5,"first_name":"A"}}}`,
	})
	ctx := context.Background()

	member, err := client.GetChatMember(ctx, "-1001234567890", 5)
	if err != nil {
		t.Fatalf("get chat member: %v", err)
	}
	if member.Status != "restricted" || !member.IsMember {
		t.Fatalf("unexpected member: %+v", member)
	}
	call := fake.last(t)
	if id, ok := call.params["chat_id"].(float64); !ok || int64(id) != -1001234567890 {
		t.Fatalf("expected numeric chat_id, got %#v", call.params["chat_id"])
	}

	if _, err := client.GetChatMember(ctx, "@giftchannel", 5); err != nil {
		t.Fatalf("get chat member by username: %v", err)
	}
	if chat := fake.last(t).params["chat_id"]; chat != "@giftchannel" {
		t.Fatalf("expected username chat_id, got %#v", chat)
	}
}

func TestAPIErrorCarriesCodeAndRetryAfter(t *testing.T) {
	_, client := newFakeBotAPI(t, map[string]string{
		"sendMessage": `{"ok":false,"error_code":429,"description":"Too Many Requests: retry after 7","parameters":{"retry_after":7}}`,
	})

	_, err := client.SendMessage(context.Background(), 1, "hi", SendOptions{})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Code != 429 || apiErr.RetryAfter != 7 || apiErr.Method != "sendMessage" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestSendMessageWithKeyboard(t *testing.T) {
	fake, client := newFakeBotAPI(t, map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":10,"chat":{"id":1,"type":"private"}}}`,
	})
	markup := &InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{{Text: "Gift", CallbackData: "claim:gift"}}}}

	msg, err := client.SendMessage(context.Background(), 1, "<b>hi</b>", SendOptions{ParseMode: "HTML", ReplyMarkup: markup})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if msg.MessageID != 10 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	call := fake.last(t)
	if call.params["parse_mode"] != "HTML" {
		t.Fatalf("expected parse_mode, got %#v", call.params)
	}
	keyboard, ok := call.params["reply_markup"].(map[string]any)
	if !ok || keyboard["inline_keyboard"] == nil {
		t.Fatalf("expected reply_markup, got %#v", call.params["reply_markup"])
	}
}

func TestSendDocumentUploadsMultipart(t *testing.T) {
	fake, client := newFakeBotAPI(t, nil)

	if err := client.SendDocument(context.Background(), 42, "promo_codes.txt", []byte("A1\nA2"), ""); err != nil {
		t.Fatalf("send document: %v", err)
	}
	call := fake.last(t)
	if call.method != "sendDocument" || call.params["chat_id"] != "42" {
		t.Fatalf("unexpected call: %+v", call)
	}
	if call.params["document"] != "promo_codes.txt:A1\nA2" {
		t.Fatalf("unexpected document part: %#v", call.params["document"])
	}
}

func TestGetUpdatesDecodesBatch(t *testing.T) {
	fake, client := newFakeBotAPI(t, map[string]string{
		"getUpdates": `{"ok":true,"result":[
			{"update_id":100,"message":{"message_id":1,"from":{"id":7,"first_name":"U","username":"u7"},"chat":{"id":7,"type":"private"},"text":"/start"}},
			{"update_id":101,"callback_query":{"id":"cb1","from":{"id":8,"first_name":"V"},"data":"claim:gift","message":{"message_id":2,"chat":{"id":8,"type":"private"}}}}
		]}`,
	})

	updates, err := client.GetUpdates(context.Background(), 100, 30*time.Second, []string{"message", "callback_query"})
	if err != nil {
		t.Fatalf("get updates: %v", err)
	}
	if len(updates) != 2 || updates[0].Message == nil || updates[1].CallbackQuery == nil {
		t.Fatalf("unexpected updates: %+v", updates)
	}
	call := fake.last(t)
	if call.params["offset"].(float64) != 100 || call.params["timeout"].(float64) != 30 {
		t.Fatalf("unexpected params: %#v", call.params)
	}
}

func TestSendGiftRejectsFalseResult(t *testing.T) {
	_, client := newFakeBotAPI(t, map[string]string{"sendGift": `{"ok":true,"result":false}`})
	if err := client.SendGift(context.Background(), 1, "gift-1", ""); err == nil {
		t.Fatalf("expected error for false result")
	}
}

func TestLookupMemberFeedsGate(t *testing.T) {
	_, client := newFakeBotAPI(t, map[string]string{
		"getChatMember": `{"ok":true,"result":{"status":"left","user":{"id":5,"first_name":"A"}}}`,
	})
	gate := membership.NewGate(client, "@giftchannel", time.Second)
	if status := gate.Verify(context.Background(), 5); status != membership.NotMember {
		t.Fatalf("expected not member, got %s", status)
	}
}

func TestDelivererUsesGiftAndHTMLMessage(t *testing.T) {
	fake, client := newFakeBotAPI(t, map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":3,"chat":{"id":9,"type":"private"}}}`,
	})
	deliverer := NewDeliverer(client)
	ctx := context.Background()

	if err := deliverer.SendPremium(ctx, 9, "gift-1", "thanks"); err != nil {
		t.Fatalf("send premium: %v", err)
	}
	call := fake.last(t)
	if call.method != "sendGift" || call.params["gift_id"] != "gift-1" || call.params["text"] != "thanks" {
		t.Fatalf("unexpected gift call: %+v", call)
	}

	if err := deliverer.SendDirectMessage(ctx, 9, "<code>A1</code>"); err != nil {
		t.Fatalf("send direct message: %v", err)
	}
	if mode := fake.last(t).params["parse_mode"]; mode != "HTML" {
		t.Fatalf("expected HTML parse mode, got %#v", mode)
	}
}
