package main

import (
	"log"

	"github.com/LJTian/HotDigest/internal/collector"
	"github.com/LJTian/HotDigest/internal/config"
	"github.com/LJTian/HotDigest/internal/enrich"
	"github.com/LJTian/HotDigest/internal/processor"
	"github.com/LJTian/HotDigest/internal/scheduler"
	"github.com/LJTian/HotDigest/internal/storage"
)

// 一个仅执行一轮聚合流水线的命令行入口：适合手动触发或定时任务
func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	fetchers := []collector.Fetcher{
		&collector.BaiduHotFetcher{},
		&collector.HackerNewsFetcher{},
	}

	var enricher *enrich.Service
	if cache, err := enrich.OpenCache(cfg.EnrichCachePath, cfg.EnrichMissTTLHours); err != nil {
		log.Printf("warn: publish time enrich disabled: %v", err)
	} else {
		defer cache.Close()
		enricher = enrich.NewService(cache, enrich.Config{
			Enabled:        cfg.EnrichEnabled,
			MaxFetchPerRun: cfg.EnrichMaxFetchPerRun,
			RequestTimeout: cfg.EnrichRequestTimeout,
			MaxWorkers:     cfg.EnrichMaxWorkers,
			MissTTLHours:   cfg.EnrichMissTTLHours,
		})
	}

	s, err := scheduler.New(cfg.CronSpec, fetchers, processor.NewMerger(), enricher, store)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}

	// 只执行一轮后退出
	s.RunOnce()
}
