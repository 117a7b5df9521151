package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/LJTian/HotDigest/internal/collector"
	"github.com/LJTian/HotDigest/internal/enrich"
	"github.com/LJTian/HotDigest/internal/processor"
	"github.com/LJTian/HotDigest/internal/storage"
	"github.com/robfig/cron/v3"
)

// 补全阶段整体限时，超时后未完成的抓取直接放弃
const enrichRunTimeout = 2 * time.Minute

// Scheduler 按 cron 周期执行一轮完整的聚合流水线：
// 采集 → 去重合并 → 发布时间补全 → 入库
type Scheduler struct {
	cron     *cron.Cron
	fetchers []collector.Fetcher
	merger   *processor.Merger
	enricher *enrich.Service
	store    *storage.Store
}

// New 创建调度器。enricher 可以为 nil（缓存打不开等情况），
// 此时跳过补全阶段，去重结果照常入库。
func New(spec string, fetchers []collector.Fetcher, merger *processor.Merger, enricher *enrich.Service, store *storage.Store) (*Scheduler, error) {
	c := cron.New()

	s := &Scheduler{
		cron:     c,
		fetchers: fetchers,
		merger:   merger,
		enricher: enricher,
		store:    store,
	}

	if _, err := c.AddFunc(spec, s.runOnce); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	// 延迟执行首轮采集，避免与启动期的其它请求争抢资源
	const startupDelay = 15 * time.Second
	time.AfterFunc(startupDelay, func() {
		go s.runOnce()
	})
}

// RunOnce 对外暴露的单次执行入口，方便手动触发
func (s *Scheduler) RunOnce() {
	s.runOnce()
}

func (s *Scheduler) runOnce() {
	log.Println("start digest job...")

	// 各来源并发采集；结果按注册顺序落位，保证合并输入顺序稳定
	collected := make([][]collector.Record, len(s.fetchers))
	var wg sync.WaitGroup
	for i, f := range s.fetchers {
		idx, fetcher := i, f
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fetcher.Name()
			items, err := fetcher.Fetch()
			if err != nil {
				log.Printf("fetch %s error: %v", name, err)
				return
			}
			if len(items) == 0 {
				log.Printf("fetch %s got 0 items", name)
				return
			}
			collected[idx] = items
		}()
	}
	wg.Wait()

	var records []collector.Record
	for _, items := range collected {
		records = append(records, items...)
	}
	if len(records) == 0 {
		log.Println("digest job done: no records collected")
		return
	}

	merged, mergeCount := s.merger.Merge(records)
	log.Printf("merged %d duplicate news items across sources", mergeCount)

	if s.enricher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), enrichRunTimeout)
		enriched, summary := s.enricher.Enrich(ctx, merged)
		cancel()
		merged = enriched
		log.Printf("publish time enrich: hits=%d fetched=%d miss=%d skipped=%d no_url=%d",
			summary.CacheHits, summary.FetchedOK, summary.FetchedMiss,
			summary.SkippedByBudget, summary.NoURL)
	}

	if err := s.store.SaveBatch(merged); err != nil {
		log.Printf("save digest batch error: %v", err)
		return
	}

	log.Printf("digest job done: collected=%d merged=%d", len(records), len(merged))
}
