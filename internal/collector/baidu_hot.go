package collector

import (
	"log"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

// BaiduHotFetcher 抓取百度实时热搜榜
type BaiduHotFetcher struct{}

func (b *BaiduHotFetcher) Name() string {
	return "baidu"
}

func (b *BaiduHotFetcher) Fetch() ([]Record, error) {
	log.Println("fetch Baidu Hot Search...")

	c := colly.NewCollector(
		colly.AllowedDomains("top.baidu.com"),
		colly.UserAgent("HotDigestBot/1.0"),
	)
	c.SetRequestTimeout(5 * time.Second)

	results := make([]Record, 0, 50)
	now := time.Now()

	// 页面结构可能调整，此处基于当前的 DOM 结构做“尽力而为”的解析
	c.OnHTML("div.category-wrap_iQLoo", func(e *colly.HTMLElement) {
		title := strings.TrimSpace(e.ChildText("div.c-single-text-ellipsis"))
		if title == "" {
			return
		}

		link := ""
		if href := e.ChildAttr("a", "href"); href != "" {
			if strings.HasPrefix(href, "http") {
				link = href
			} else {
				link = "https://top.baidu.com" + href
			}
		}

		rec := NewObservation(b.Name(), title, link, len(results)+1, now)
		// 榜单带“新”角标的条目视为本轮新增热点
		if tag := strings.TrimSpace(e.ChildText("div[class*='hot-tag']")); tag == "新" {
			rec.IsNew = true
		}
		results = append(results, rec)
	})

	if err := c.Visit("https://top.baidu.com/board?tab=realtime"); err != nil {
		log.Printf("fetch Baidu Hot Search failed: %v", err)
		return nil, err
	}

	if len(results) == 0 {
		log.Printf("fetch Baidu Hot Search got 0 items")
	}

	return results, nil
}
