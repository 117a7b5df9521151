package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/HotDigest/internal/collector"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// News 合并去重后的热点条目，按去重键幂等入库
type News struct {
	Signature string `gorm:"primaryKey;size:768" json:"signature"`
	Title     string `gorm:"size:512" json:"title"`
	URL       string `gorm:"size:1024;index" json:"url"`
	MobileURL string `gorm:"size:1024" json:"mobileUrl"`

	Sources      datatypes.JSONSlice[string]                    `gorm:"type:jsonb" json:"sources"`
	RankTimeline datatypes.JSONSlice[collector.RankObservation] `gorm:"type:jsonb" json:"rankTimeline"`

	BestRank      int       `gorm:"index" json:"bestRank"`
	ObservedCount int       `json:"observedCount"`
	IsNew         bool      `json:"isNew"`
	PublishedAt   time.Time `gorm:"index" json:"publishedAt"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&News{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误（部分源可能含 GBK/混编）
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度。
// 对外部来源返回的异常长标题做入库前的双保险。
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}

// SaveBatch 保存一批合并后的条目，以去重键作为幂等键：
// 已存在的条目更新为本轮合并结果（来源、时间线、名次等）
func (s *Store) SaveBatch(items []collector.Record) error {
	for _, it := range items {
		title := truncateRunesDB(toValidUTF8(it.Title), 512)
		n := &News{
			Signature:     it.Signature,
			Title:         title,
			URL:           it.URL,
			MobileURL:     it.MobileURL,
			Sources:       datatypes.NewJSONSlice(it.SourceNames),
			RankTimeline:  datatypes.NewJSONSlice(it.RankTimeline),
			BestRank:      it.BestRank,
			ObservedCount: it.ObservedCount,
			IsNew:         it.IsNew,
			PublishedAt:   it.PublishedAt,
		}

		if err := s.DB.Where("signature = ?", it.Signature).FirstOrCreate(n).Error; err != nil {
			return err
		}
		_ = s.DB.Model(n).Updates(map[string]any{
			"title":          title,
			"url":            it.URL,
			"mobile_url":     it.MobileURL,
			"sources":        datatypes.NewJSONSlice(it.SourceNames),
			"rank_timeline":  datatypes.NewJSONSlice(it.RankTimeline),
			"best_rank":      it.BestRank,
			"observed_count": it.ObservedCount,
			"is_new":         it.IsNew,
			"published_at":   it.PublishedAt,
		}).Error
	}

	// 列表缓存依赖短 TTL 自然过期，不做通配删除
	return nil
}

// ListDigest 返回去重后的热点摘要列表，并使用 Redis 做简单缓存。
// source: 来源名，可为空（包含该来源即命中）
// sort: rank(默认，按最优名次升序) / latest(按发布时间倒序)
func (s *Store) ListDigest(source, sort string, limit int) ([]News, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if sort != "latest" {
		sort = "rank"
	}

	ctx := context.Background()
	cacheKey := fmt.Sprintf("digest:list:%s:%s:%d", source, sort, limit)

	// L2: Redis 缓存
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []News
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	// DB 兜底
	var list []News
	db := s.DB.Model(&News{})
	if source != "" {
		// JSONB 包含查询：来源列表含指定来源即命中
		filter, _ := json.Marshal([]string{source})
		db = db.Where("sources @> ?", string(filter))
	}
	switch sort {
	case "latest":
		db = db.Order("published_at DESC").Order("best_rank ASC")
	default:
		db = db.Order("best_rank ASC").Order("observed_count DESC")
	}
	if err := db.Limit(limit).Find(&list).Error; err != nil {
		return nil, err
	}

	// 回写缓存（5 分钟，减轻刷新压力）
	const listCacheTTL = 5 * time.Minute
	if s.Redis != nil && len(list) > 0 {
		if bs, err := json.Marshal(list); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}

	return list, nil
}
