package enrich

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Entry 发布时间缓存条目。IsMiss 表示一次失败的抓取尝试：
// 命中（IsMiss=false）永久有效，miss 超过 TTL 后允许重新抓取。
type Entry struct {
	PublishedAt time.Time
	FetchedAt   time.Time
	IsMiss      bool
}

// Cache 发布时间缓存（SQLite 落盘）。
// 每次 Put 同步提交，进程正常退出前所有写入都已持久化。
// *sql.DB 本身支持并发访问，多个 worker 同时 Get/Put 是安全的。
type Cache struct {
	db      *sql.DB
	missTTL time.Duration

	// now 可替换，便于测试 TTL 过期逻辑
	now func() time.Time
}

// OpenCache 打开（或新建）缓存文件。
// 文件损坏时告警并重建为空库继续运行：所有条目按需重新抓取即可，
// 只有磁盘本身不可写才返回错误。
func OpenCache(path string, missTTLHours int) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	db, err := openAndInit(path)
	if err != nil {
		log.Printf("warn: publish time cache unreadable, rebuilding: %v", err)
		if db != nil {
			_ = db.Close()
		}
		_ = os.Remove(path)
		db, err = openAndInit(path)
		if err != nil {
			return nil, fmt.Errorf("open publish time cache: %w", err)
		}
	}

	missTTL := time.Duration(missTTLHours) * time.Hour
	if missTTL < 0 {
		missTTL = 0
	}

	return &Cache{db: db, missTTL: missTTL, now: time.Now}, nil
}

func openAndInit(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return db, err
	}
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS publish_time_cache (
			signature    TEXT PRIMARY KEY,
			published_at TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL CHECK(status IN ('ok', 'miss')),
			fetched_at   TEXT NOT NULL
		)
	`)
	return db, err
}

// Get 按去重键查询缓存条目，第二个返回值表示是否存在。
// 单条读取失败按不存在处理（最坏情况：多发一次抓取）。
func (c *Cache) Get(signature string) (Entry, bool) {
	var publishedAt, status, fetchedAt string
	err := c.db.QueryRow(
		`SELECT published_at, status, fetched_at FROM publish_time_cache WHERE signature = ?`,
		signature,
	).Scan(&publishedAt, &status, &fetchedAt)
	if err == sql.ErrNoRows {
		return Entry{}, false
	}
	if err != nil {
		log.Printf("publish time cache: read %q: %v", signature, err)
		return Entry{}, false
	}

	entry := Entry{IsMiss: status == "miss"}
	if t, err := time.Parse(time.RFC3339, fetchedAt); err == nil {
		entry.FetchedAt = t
	}
	if publishedAt != "" {
		if t, err := time.Parse(time.RFC3339, publishedAt); err == nil {
			entry.PublishedAt = t
		}
	}
	return entry, true
}

// Put 写入（覆盖）缓存条目，同步落盘
func (c *Cache) Put(signature string, entry Entry) error {
	publishedAt := ""
	if !entry.PublishedAt.IsZero() {
		publishedAt = entry.PublishedAt.Format(time.RFC3339)
	}
	status := "ok"
	if entry.IsMiss {
		status = "miss"
	}

	_, err := c.db.Exec(`
		INSERT INTO publish_time_cache (signature, published_at, status, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			published_at = excluded.published_at,
			status       = excluded.status,
			fetched_at   = excluded.fetched_at
	`, signature, publishedAt, status, entry.FetchedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("publish time cache: write %q: %w", signature, err)
	}
	return nil
}

// IsExpired 仅对 miss 条目生效：距上次抓取超过 TTL 即允许重抓。
// 命中条目永不过期。
func (c *Cache) IsExpired(entry Entry) bool {
	if !entry.IsMiss {
		return false
	}
	return c.now().Sub(entry.FetchedAt) > c.missTTL
}

func (c *Cache) Close() error {
	return c.db.Close()
}
