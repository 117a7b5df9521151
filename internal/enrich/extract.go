package enrich

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// 常见的 meta 发布时间字段（property 或 name 属性）
var preferredMetaKeys = map[string]struct{}{
	"article:published_time":   {},
	"og:published_time":        {},
	"publishdate":              {},
	"pubdate":                  {},
	"parsely-pub-date":         {},
	"datepublished":            {},
	"dc.date":                  {},
	"article:published":        {},
	"weibo: article:create_at": {},
}

// JSON-LD / 接口返回里常见的发布时间键
var preferredJSONKeys = []string{
	"datePublished",
	"dateCreated",
	"publishTime",
	"publishedAt",
	"published_at",
	"pubDate",
	"uploadDate",
	"dateModified",
}

// 页面脚本里散落的日期字段，正则兜底
var genericDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)"datePublished"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)"dateCreated"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)"publish(?:Time|_time|At|_at)"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)"pubDate"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)"(?:created_at|createdAt)"\s*:\s*"([^"]+)"`),
	regexp.MustCompile(`(?i)"ctime"\s*:\s*"?(\d{10,13})"?`),
}

// ExtractPublishTime 从文章页面 HTML 中提取发布时间。
// 依次尝试：meta 标签 → JSON-LD → <time datetime> → 正则兜底，
// 第一个能解析成功的候选值胜出。找不到返回零值。
func ExtractPublishTime(html []byte) time.Time {
	if len(html) == 0 {
		return time.Time{}
	}

	candidates := make([]string, 0, 8)

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err == nil {
		doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
			key, ok := s.Attr("property")
			if !ok || key == "" {
				key, _ = s.Attr("name")
			}
			content, _ := s.Attr("content")
			if content == "" {
				return
			}
			if _, ok := preferredMetaKeys[strings.ToLower(key)]; ok {
				candidates = append(candidates, content)
			}
		})

		doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
			payload := strings.TrimSpace(s.Text())
			payload = strings.TrimPrefix(payload, "<!--")
			payload = strings.TrimSuffix(payload, "-->")
			var data any
			if err := json.Unmarshal([]byte(payload), &data); err != nil {
				return
			}
			candidates = append(candidates, collectJSONDates(data)...)
		})

		doc.Find("time[datetime]").Each(func(_ int, s *goquery.Selection) {
			if v, ok := s.Attr("datetime"); ok && v != "" {
				candidates = append(candidates, v)
			}
		})
	}

	for _, pattern := range genericDatePatterns {
		for _, m := range pattern.FindAllSubmatch(html, -1) {
			candidates = append(candidates, string(m[1]))
		}
	}

	for _, candidate := range candidates {
		if t, ok := parseDateTime(candidate); ok {
			return t
		}
	}
	return time.Time{}
}

// collectJSONDates 递归收集 JSON 结构中的发布时间候选值
func collectJSONDates(obj any) []string {
	var out []string
	switch v := obj.(type) {
	case map[string]any:
		for _, key := range preferredJSONKeys {
			switch val := v[key].(type) {
			case string:
				if val != "" {
					out = append(out, val)
				}
			case float64:
				out = append(out, strconv.FormatFloat(val, 'f', -1, 64))
			}
		}
		for _, val := range v {
			out = append(out, collectJSONDates(val)...)
		}
	case []any:
		for _, item := range v {
			out = append(out, collectJSONDates(item)...)
		}
	}
	return out
}

// 各来源常见的时间字符串格式
var knownTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006-01-02",
	"2006/01/02",
}

// parseDateTime 尽力解析一个时间候选值：
// 纯数字按 unix 时间戳处理（秒 / 毫秒自动识别），其余按已知格式逐一尝试
func parseDateTime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if isDigits(raw) {
		ts, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		if ts > 10_000_000_000 {
			ts /= 1000
		}
		if ts <= 0 {
			return time.Time{}, false
		}
		return time.Unix(ts, 0), true
	}

	for _, layout := range knownTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	// "Z" 写成 "+00:00" 之类的变体交给 RFC3339 处理过了；
	// 带空格时区后缀等少见写法直接放弃
	return time.Time{}, false
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
