package main

import (
	"log"

	"github.com/LJTian/HotDigest/internal/api"
	"github.com/LJTian/HotDigest/internal/collector"
	"github.com/LJTian/HotDigest/internal/config"
	"github.com/LJTian/HotDigest/internal/enrich"
	"github.com/LJTian/HotDigest/internal/processor"
	"github.com/LJTian/HotDigest/internal/scheduler"
	"github.com/LJTian/HotDigest/internal/storage"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()

	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("init store failed: %v", err)
	}

	// 注册采集器
	fetchers := []collector.Fetcher{
		&collector.BaiduHotFetcher{},
		&collector.HackerNewsFetcher{},
	}

	enricher := newEnricher(cfg)

	s, err := scheduler.New(cfg.CronSpec, fetchers, processor.NewMerger(), enricher, store)
	if err != nil {
		log.Fatalf("init scheduler failed: %v", err)
	}
	s.Start()

	// API
	r := gin.Default()
	apiServer := api.NewServer(store)
	apiServer.RegisterRoutes(r)

	addr := ":" + cfg.AppPort
	log.Printf("starting api server at %s ...", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server exit: %v", err)
	}
}

// newEnricher 初始化发布时间补全服务。
// 缓存打不开（磁盘不可写等）只告警并跳过补全，不影响主流程。
func newEnricher(cfg *config.Config) *enrich.Service {
	cache, err := enrich.OpenCache(cfg.EnrichCachePath, cfg.EnrichMissTTLHours)
	if err != nil {
		log.Printf("warn: publish time enrich disabled: %v", err)
		return nil
	}
	return enrich.NewService(cache, enrich.Config{
		Enabled:        cfg.EnrichEnabled,
		MaxFetchPerRun: cfg.EnrichMaxFetchPerRun,
		RequestTimeout: cfg.EnrichRequestTimeout,
		MaxWorkers:     cfg.EnrichMaxWorkers,
		MissTTLHours:   cfg.EnrichMissTTLHours,
	})
}
