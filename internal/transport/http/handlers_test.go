package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/dkeye/Chat/internal/app"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/core/coretest"
)

func setup(key string) (*gin.Engine, *app.Registry) {
	gin.SetMode(gin.TestMode)
	reg := app.NewRegistry()
	h := &Handlers{Router: app.NewRouter(reg, app.SimplePolicy{}, nil), Registry: reg}
	r := gin.New()
	h.RegisterInternal(r.Group("/internal", RequireInternalKey(key)))
	r.GET("/online", h.HandleOnline)
	return r, reg
}

func post(r http.Handler, path, key string, body any) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("X-Internal-Key", key)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func delivered(t *testing.T, rec *httptest.ResponseRecorder) bool {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp DeliveryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.Delivered
}

func TestMessageNotice(t *testing.T) {
	r, reg := setup("")
	u2 := coretest.NewConn("u2")
	reg.Register("u2", u2)

	notice := map[string]any{"receiverId": "u2", "message": map[string]any{"_id": "m1", "text": "hello"}}
	if !delivered(t, post(r, "/internal/messages", "", notice)) {
		t.Fatalf("online receiver not delivered")
	}
	if _, ok := u2.Last(core.EventNewMessage); !ok {
		t.Fatalf("receiver got no newMessage")
	}

	notice["receiverId"] = "offline"
	if delivered(t, post(r, "/internal/messages", "", notice)) {
		t.Fatalf("offline receiver reported delivered")
	}

	if rec := post(r, "/internal/messages", "", map[string]any{"message": "x"}); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing receiver: status = %d", rec.Code)
	}
}

func TestReactionNotice(t *testing.T) {
	r, reg := setup("")
	u1 := coretest.NewConn("u1")
	reg.Register("u1", u1)

	notice := map[string]any{
		"receiverId": "u1",
		"messageId":  "m1",
		"reactions":  []map[string]any{{"emoji": "❤️", "users": []string{"u2"}, "count": 1}},
	}
	if !delivered(t, post(r, "/internal/reactions", "", notice)) {
		t.Fatalf("reaction not delivered")
	}
	got, ok := u1.Last(core.EventReactionUpdate)
	if !ok || got.String("messageId") != "m1" {
		t.Fatalf("reactionUpdate = %v", got)
	}
	if n := len(got["reactions"].([]any)); n != 1 {
		t.Fatalf("reactions = %v", got["reactions"])
	}
}

func TestInternalKey(t *testing.T) {
	r, _ := setup("k3y")
	notice := map[string]any{"receiverId": "u2", "message": map[string]any{"text": "x"}}
	if rec := post(r, "/internal/messages", "", notice); rec.Code != http.StatusUnauthorized {
		t.Fatalf("missing key: status = %d", rec.Code)
	}
	if rec := post(r, "/internal/messages", "wrong", notice); rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong key: status = %d", rec.Code)
	}
	if rec := post(r, "/internal/messages", "k3y", notice); rec.Code != http.StatusOK {
		t.Fatalf("right key: status = %d", rec.Code)
	}
}

func TestOnline(t *testing.T) {
	r, reg := setup("")
	reg.Register("b", coretest.NewConn("b"))
	reg.Register("a", coretest.NewConn("a"))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/online", nil))
	var resp OnlineResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Users) != 2 || resp.Users[0] != "a" || resp.Users[1] != "b" {
		t.Fatalf("online = %v", resp.Users)
	}
}
