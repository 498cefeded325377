package lark

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeOpenPlatform struct {
	messageCode int
	received    map[string]interface{}
	receiveType string
}

func (f *fakeOpenPlatform) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/open-apis/auth/v3/tenant_access_token/internal", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"code":0,"msg":"ok","tenant_access_token":"t-test","expire":7200}`))
	})
	mux.HandleFunc("/open-apis/im/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer t-test", r.Header.Get("Authorization"))
		f.receiveType = r.URL.Query().Get("receive_id_type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&f.received))

		w.Header().Set("Content-Type", "application/json")
		if f.messageCode != 0 {
			_, _ = w.Write([]byte(`{"code":230002,"msg":"bot not in chat"}`))
			return
		}
		_, _ = w.Write([]byte(`{"code":0,"msg":"success","data":{"message_id":"om_1"}}`))
	})
	return mux
}

func newTestNotifier(t *testing.T, platform *fakeOpenPlatform) *Notifier {
	t.Helper()
	server := httptest.NewServer(platform.handler(t))
	t.Cleanup(server.Close)

	cfg := Config{AppID: "cli_test", AppSecret: "secret", NotifyChatID: "oc_chat", BaseURL: server.URL}
	return NewNotifier(NewSDKClient(cfg, zap.NewNop()), cfg.NotifyChatID, zap.NewNop())
}

func TestNotifier_Notify(t *testing.T) {
	platform := &fakeOpenPlatform{}
	notifier := newTestNotifier(t, platform)

	require.NoError(t, notifier.Notify(context.Background(), `Reconciled "acme": 3 proposals`))

	assert.Equal(t, "chat_id", platform.receiveType)
	assert.Equal(t, "oc_chat", platform.received["receive_id"])
	assert.Equal(t, "text", platform.received["msg_type"])

	var content map[string]string
	require.NoError(t, json.Unmarshal([]byte(platform.received["content"].(string)), &content))
	assert.Equal(t, `Reconciled "acme": 3 proposals`, content["text"])
}

func TestNotifier_APIFailure(t *testing.T) {
	notifier := newTestNotifier(t, &fakeOpenPlatform{messageCode: 230002})

	err := notifier.Notify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "230002")
}

func TestNotifier_RejectsEmptyText(t *testing.T) {
	notifier := NewNotifier(NewSDKClient(Config{AppID: "a", AppSecret: "b"}, zap.NewNop()), "oc_chat", zap.NewNop())
	assert.Error(t, notifier.Notify(context.Background(), ""))
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.False(t, Config{AppID: "a", AppSecret: "b"}.Enabled())
	assert.True(t, Config{AppID: "a", AppSecret: "b", NotifyChatID: "c"}.Enabled())
}
