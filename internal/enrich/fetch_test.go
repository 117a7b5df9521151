package enrich

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestFetchPublishTimeFromHTMLPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head>
			<meta property="article:published_time" content="2025-08-24T08:30:00Z">
		</head></html>`))
	}))
	defer srv.Close()

	got, err := fetchPublishTime(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("fetchPublishTime error: %v", err)
	}
	if !got.Equal(time.Date(2025, 8, 24, 8, 30, 0, 0, time.UTC)) {
		t.Fatalf("fetchPublishTime = %v", got)
	}
}

func TestFetchPublishTimeFromJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"article":{"publishedAt":"2025-08-23T20:00:00Z"}}}`))
	}))
	defer srv.Close()

	got, err := fetchPublishTime(context.Background(), srv.Client(), srv.URL)
	if err != nil {
		t.Fatalf("fetchPublishTime error: %v", err)
	}
	if !got.Equal(time.Date(2025, 8, 23, 20, 0, 0, 0, time.UTC)) {
		t.Fatalf("fetchPublishTime = %v", got)
	}
}

func TestFetchPublishTimeNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := fetchPublishTime(context.Background(), srv.Client(), srv.URL); err == nil {
		t.Fatalf("expected error for non-200 response")
	}
}

func TestFetchHackerNewsTimeOnlyHandlesHNItemURLs(t *testing.T) {
	// 非 HN 链接不接管，留给通用抓取
	cases := []string{
		"http://a.com/x",
		"https://news.ycombinator.com/item?id=abc",
		"https://news.ycombinator.com/newest",
	}
	for _, raw := range cases {
		if _, handled, _ := fetchHackerNewsTime(context.Background(), http.DefaultClient, raw); handled {
			t.Fatalf("%q should not be handled by the HN shortcut", raw)
		}
	}
}
