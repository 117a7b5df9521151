package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	fetchMaxResponseBytes = 800 * 1000 // 与页面提取逻辑匹配，超长正文截断
	fetchUserAgent        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	hnAPIBaseURL = "https://hacker-news.firebaseio.com/v0"
)

// fetchPublishTime 抓取文章页并提取发布时间。
// Hacker News 的条目页是纯讨论页，改走官方 API 拿权威时间；
// 其余 URL 抓正文，JSON 响应走键值收集，HTML 响应走页面提取。
// 找不到可解析的时间返回零值（调用方记为 miss）。
func fetchPublishTime(ctx context.Context, client *http.Client, rawURL string) (time.Time, error) {
	if t, ok, err := fetchHackerNewsTime(ctx, client, rawURL); ok {
		return t, err
	}

	body, contentType, err := fetchBody(ctx, client, rawURL)
	if err != nil {
		return time.Time{}, err
	}

	if strings.Contains(strings.ToLower(contentType), "application/json") {
		var payload any
		if err := json.Unmarshal(body, &payload); err != nil {
			return time.Time{}, nil
		}
		for _, candidate := range collectJSONDates(payload) {
			if t, ok := parseDateTime(candidate); ok {
				return t, nil
			}
		}
		return time.Time{}, nil
	}

	return ExtractPublishTime(body), nil
}

// fetchHackerNewsTime 通过 HN 官方 API 获取条目发布时间。
// 第二个返回值表示该 URL 是否由本函数接管（不再走通用抓取）。
func fetchHackerNewsTime(ctx context.Context, client *http.Client, rawURL string) (time.Time, bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || !strings.Contains(strings.ToLower(u.Host), "news.ycombinator.com") {
		return time.Time{}, false, nil
	}

	itemID := u.Query().Get("id")
	if !isDigits(itemID) {
		return time.Time{}, false, nil
	}

	apiURL := fmt.Sprintf("%s/item/%s.json", hnAPIBaseURL, itemID)
	body, _, err := fetchBody(ctx, client, apiURL)
	if err != nil {
		return time.Time{}, true, err
	}

	var item struct {
		Time int64 `json:"time"`
	}
	if err := json.Unmarshal(body, &item); err != nil || item.Time <= 0 {
		return time.Time{}, true, nil
	}
	return time.Unix(item.Time, 0), true, nil
}

func fetchBody(ctx context.Context, client *http.Client, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, fetchMaxResponseBytes))
	if err != nil {
		return nil, "", err
	}
	return body, resp.Header.Get("Content-Type"), nil
}
