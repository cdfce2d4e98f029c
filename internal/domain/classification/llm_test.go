package classification

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func chatReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"role": "assistant", "content": content}},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestLLMClassify(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Contains(t, req.Messages[0].Content, "餐饮")
		assert.Equal(t, "瑞幸咖啡 - 拿铁", req.Messages[1].Content)

		chatReply(t, w, `{"category_l1": "餐饮", "category_l2": "咖啡饮品"}`)
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, "test-key", "test-model", testLogger())
	sug, err := c.Classify(context.Background(), "瑞幸咖啡 - 拿铁", DefaultTaxonomy())
	require.NoError(t, err)

	assert.Equal(t, "餐饮", sug.L1)
	assert.Equal(t, "咖啡饮品", sug.L2)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "/v1/chat/completions", gotPath)
}

func TestLLMClassifyFencedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, "好的，分类如下：\n```json\n{\"category_l1\": \"交通\", \"category_l2\": \"打车\"}\n```")
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, "k", "m", testLogger())
	sug, err := c.Classify(context.Background(), "滴滴出行 - 快车", DefaultTaxonomy())
	require.NoError(t, err)
	assert.Equal(t, "交通", sug.L1)
	assert.Equal(t, "打车", sug.L2)
}

func TestLLMClassifyRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		chatReply(t, w, `{"category_l1": "购物", "category_l2": ""}`)
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, "k", "m", testLogger())
	sug, err := c.Classify(context.Background(), "京东 - 订单", DefaultTaxonomy())
	require.NoError(t, err)
	assert.Equal(t, "购物", sug.L1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLLMClassifyAuthErrorDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, "bad-key", "m", testLogger())
	_, err := c.Classify(context.Background(), "京东 - 订单", DefaultTaxonomy())
	assert.ErrorIs(t, err, ErrLLMUnavailable)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLLMClassifyRejectsUnknownCategory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatReply(t, w, `{"category_l1": "加密货币", "category_l2": ""}`)
	}))
	defer srv.Close()

	c := NewLLMClient(srv.URL, "k", "m", testLogger())
	_, err := c.Classify(context.Background(), "某交易所", DefaultTaxonomy())
	assert.ErrorIs(t, err, ErrBadAnswer)
}

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		wantL1  string
		wantL2  string
		wantErr bool
	}{
		{"plain", `{"category_l1": "餐饮", "category_l2": "外卖"}`, "餐饮", "外卖", false},
		{"fenced", "```json\n{\"category_l1\": \"餐饮\", \"category_l2\": \"\"}\n```", "餐饮", "", false},
		{"fence without language", "```\n{\"category_l1\": \"交通\", \"category_l2\": \"打车\"}\n```", "交通", "打车", false},
		{"surrounding prose", `分类结果：{"category_l1": "购物", "category_l2": "数码"}，希望有帮助`, "购物", "数码", false},
		{"padded values", `{"category_l1": " 餐饮 ", "category_l2": " 外卖 "}`, "餐饮", "外卖", false},
		{"empty l1", `{"category_l1": "", "category_l2": "外卖"}`, "", "", true},
		{"not json", "抱歉，我无法分类。", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ans, err := parseAnswer(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrBadAnswer)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantL1, ans.CategoryL1)
			assert.Equal(t, tt.wantL2, ans.CategoryL2)
		})
	}
}
