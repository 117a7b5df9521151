package processor

import (
	"net/url"
	"strings"
	"unicode"

	"github.com/LJTian/HotDigest/internal/collector"
)

// 去重键的生成策略按顺序尝试：URL 优先，标题兜底。
// 两条记录只要规范化后的 URL 相同就一定碰撞；没有 URL 时退化到规范化标题。
var signatureStrategies = []func(collector.Record) (string, bool){
	urlSignature,
	titleSignature,
}

// SignatureOf 计算记录的去重键。纯函数，无副作用。
// URL 和标题都缺失的畸形记录会得到 "t:"（空标题规范化结果），
// 依然能和其它同样畸形的记录互相去重。
func SignatureOf(r collector.Record) string {
	for _, strategy := range signatureStrategies {
		if sig, ok := strategy(r); ok {
			return sig
		}
	}
	return "t:"
}

func urlSignature(r collector.Record) (string, bool) {
	raw := strings.TrimSpace(r.URL)
	if raw == "" {
		return "", false
	}
	return "u:" + NormalizeURL(raw), true
}

func titleSignature(r collector.Record) (string, bool) {
	return "t:" + NormalizeTitle(r.Title), true
}

// trackingParams 各来源常见的跟踪参数，规范化时整体剔除；
// 以 utm 开头的（utm_source 等）统一按前缀匹配
var trackingParams = map[string]struct{}{
	"fbclid": {},
	"gclid":  {},
	"igshid": {},
	"spm":    {},
}

func isTrackingParam(key string) bool {
	key = strings.ToLower(key)
	if strings.HasPrefix(key, "utm") {
		return true
	}
	_, ok := trackingParams[key]
	return ok
}

// NormalizeURL 规范化 URL：scheme/host 小写、去掉跟踪参数、
// 去掉末尾斜杠与 fragment。解析失败时原样返回（去掉首尾空白）。
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = stripTrackingParams(u.RawQuery)
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = strings.TrimSuffix(u.RawPath, "/")

	return u.String()
}

// stripTrackingParams 手工切分 query，保留非跟踪参数的原始顺序
func stripTrackingParams(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	kept := make([]string, 0, 4)
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		key := pair
		if idx := strings.IndexByte(pair, '='); idx >= 0 {
			key = pair[:idx]
		}
		if isTrackingParam(key) {
			continue
		}
		kept = append(kept, pair)
	}
	return strings.Join(kept, "&")
}

// NormalizeTitle 规范化标题：去首尾空白、压缩连续空白、
// 去掉标点符号并统一小写。对中英文混排同样适用。
func NormalizeTitle(title string) string {
	var b strings.Builder
	b.Grow(len(title))
	for _, r := range title {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
