package enrich

import (
	"context"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/LJTian/HotDigest/internal/collector"
	"github.com/LJTian/HotDigest/internal/processor"
)

// Config 发布时间补全的运行参数
type Config struct {
	Enabled bool
	// MaxFetchPerRun 单轮允许的网络抓取上限，0 表示本轮不抓取
	MaxFetchPerRun int
	RequestTimeout time.Duration
	MaxWorkers     int
	MissTTLHours   int
}

// Summary 单轮补全的处理统计，供调用方打日志
type Summary struct {
	Total           int
	AlreadyHad      int
	CacheHits       int
	CacheRecentMiss int
	NoURL           int
	Scheduled       int
	FetchedOK       int
	FetchedMiss     int
	SkippedByBudget int
	Abandoned       int
}

// Service 发布时间补全服务：对缺少发布时间的条目，先查缓存，
// 未命中再按并发与预算上限抓取文章页补齐。
type Service struct {
	cache  *Cache
	cfg    Config
	client *http.Client

	// fetchFn 可替换，测试时注入假抓取函数
	fetchFn func(ctx context.Context, url string) (time.Time, error)
}

func NewService(cache *Cache, cfg Config) *Service {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 8 * time.Second
	}
	if cfg.MaxFetchPerRun < 0 {
		cfg.MaxFetchPerRun = 0
	}

	client := &http.Client{}
	s := &Service{cache: cache, cfg: cfg, client: client}
	s.fetchFn = func(ctx context.Context, url string) (time.Time, error) {
		return fetchPublishTime(ctx, s.client, url)
	}
	return s
}

const (
	resultHit = iota
	resultMiss
	resultSkipped   // 预算耗尽，本轮不再抓取
	resultAbandoned // 整体超时 / 取消，不写缓存
)

type fetchResult struct {
	key         string
	state       int
	publishedAt time.Time
}

// Enrich 为缺少发布时间的记录补齐字段。
// 输入顺序原样保留：抓取结果按索引写回，与完成先后无关。
// 任何单次抓取失败只会记一条 miss，不会中断整轮。
func (s *Service) Enrich(ctx context.Context, records []collector.Record) ([]collector.Record, Summary) {
	var summary Summary
	if !s.cfg.Enabled || len(records) == 0 {
		return records, summary
	}

	out := make([]collector.Record, len(records))
	copy(out, records)

	// 同一去重键只抓一次，结果回填到组内全部条目
	pendingIdx := make(map[string][]int)
	urlByKey := make(map[string]string)
	pendingKeys := make([]string, 0)

	for i, rec := range out {
		summary.Total++

		if !rec.PublishedAt.IsZero() {
			summary.AlreadyHad++
			continue
		}

		fetchURL := rec.URL
		if fetchURL == "" {
			fetchURL = rec.MobileURL
		}
		if fetchURL == "" {
			summary.NoURL++
			continue
		}

		sig := rec.Signature
		if sig == "" {
			sig = processor.SignatureOf(rec)
		}

		if entry, ok := s.cache.Get(sig); ok && !s.cache.IsExpired(entry) {
			if entry.IsMiss {
				summary.CacheRecentMiss++
			} else {
				out[i].PublishedAt = entry.PublishedAt
				summary.CacheHits++
			}
			continue
		}

		if _, ok := pendingIdx[sig]; !ok {
			pendingKeys = append(pendingKeys, sig)
			urlByKey[sig] = fetchURL
		}
		pendingIdx[sig] = append(pendingIdx[sig], i)
	}

	if len(pendingKeys) == 0 {
		return out, summary
	}
	summary.Scheduled = len(pendingKeys)

	// 全局抓取预算：所有 worker 共享一个原子递减计数器，
	// 减到负数即耗尽，剩余候选本轮放弃
	var budget atomic.Int64
	budget.Store(int64(s.cfg.MaxFetchPerRun))

	jobs := make(chan string, len(pendingKeys))
	for _, key := range pendingKeys {
		jobs <- key
	}
	close(jobs)

	results := make(chan fetchResult, len(pendingKeys))
	workers := s.cfg.MaxWorkers
	if workers > len(pendingKeys) {
		workers = len(pendingKeys)
	}

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				results <- s.fetchOne(ctx, &budget, key, urlByKey[key])
			}
		}()
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	// 单一写入方：缓存的所有写入都经过这里，worker 只产出结果
	now := s.cache.now()
	for res := range results {
		switch res.state {
		case resultSkipped:
			summary.SkippedByBudget += len(pendingIdx[res.key])
		case resultAbandoned:
			summary.Abandoned += len(pendingIdx[res.key])
		case resultHit:
			entry := Entry{PublishedAt: res.publishedAt, FetchedAt: now}
			if err := s.cache.Put(res.key, entry); err != nil {
				log.Printf("warn: %v", err)
			}
			for _, i := range pendingIdx[res.key] {
				out[i].PublishedAt = res.publishedAt
			}
			summary.FetchedOK += len(pendingIdx[res.key])
		case resultMiss:
			if err := s.cache.Put(res.key, Entry{FetchedAt: now, IsMiss: true}); err != nil {
				log.Printf("warn: %v", err)
			}
			summary.FetchedMiss += len(pendingIdx[res.key])
		}
	}

	return out, summary
}

// fetchOne 执行单个抓取任务：先过预算闸门，再带超时抓取。
// 整体 context 已取消时直接放弃，结果不进缓存。
func (s *Service) fetchOne(ctx context.Context, budget *atomic.Int64, key, url string) fetchResult {
	if ctx.Err() != nil {
		return fetchResult{key: key, state: resultAbandoned}
	}
	if budget.Add(-1) < 0 {
		return fetchResult{key: key, state: resultSkipped}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	publishedAt, err := s.fetchFn(fetchCtx, url)
	if ctx.Err() != nil {
		// 放弃而非 miss：半途中断的结果不污染缓存
		return fetchResult{key: key, state: resultAbandoned}
	}
	if err != nil || publishedAt.IsZero() {
		return fetchResult{key: key, state: resultMiss}
	}
	return fetchResult{key: key, state: resultHit, publishedAt: publishedAt}
}
