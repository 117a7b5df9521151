package processor

import (
	"reflect"
	"testing"
	"time"

	"github.com/LJTian/HotDigest/internal/collector"
)

func obs(source, title, url string, rank int, at time.Time) collector.Record {
	return collector.NewObservation(source, title, url, rank, at)
}

func TestMergeCrossSourceScenario(t *testing.T) {
	now := time.Date(2025, 8, 25, 10, 0, 0, 0, time.UTC)

	// 同一条新闻：S1 带跟踪参数，S2 是干净链接
	a := obs("S1", "Story", "http://a.com/x?utm=1", 5, now)
	b := obs("S2", "Story", "http://a.com/x", 2, now.Add(time.Minute))

	merged, count := NewMerger().Merge([]collector.Record{a, b})
	if count != 1 {
		t.Fatalf("merge count = %d, want 1", count)
	}
	if len(merged) != 1 {
		t.Fatalf("merged length = %d, want 1", len(merged))
	}

	got := merged[0]
	if got.Signature != "u:http://a.com/x" {
		t.Fatalf("signature = %q, want %q", got.Signature, "u:http://a.com/x")
	}
	if got.BestRank != 2 {
		t.Fatalf("best rank = %d, want 2", got.BestRank)
	}
	if got.ObservedCount != 2 {
		t.Fatalf("observed count = %d, want 2", got.ObservedCount)
	}
	// 来源顺序按首见顺序，与谁胜出无关
	if !reflect.DeepEqual(got.SourceNames, []string{"S1", "S2"}) {
		t.Fatalf("source names = %v, want [S1 S2]", got.SourceNames)
	}
	if len(got.RankTimeline) != 2 || got.RankTimeline[0].Source != "S1" {
		t.Fatalf("rank timeline not in chronological order: %v", got.RankTimeline)
	}
}

func TestMergeReplacementPriority(t *testing.T) {
	now := time.Now()

	// A: 名次 3、观测 5 次；B: 名次 1、观测 1 次。名次优先，B 胜出。
	a := obs("S1", "short", "http://a.com/x", 3, now)
	a.ObservedCount = 5
	b := obs("S2", "longer title", "http://a.com/x", 1, now.Add(time.Second))

	merged, _ := NewMerger().Merge([]collector.Record{a, b})
	got := merged[0]
	if got.BestRank != 1 {
		t.Fatalf("best rank = %d, want 1", got.BestRank)
	}
	if got.ObservedCount != 6 {
		t.Fatalf("observed count = %d, want 6", got.ObservedCount)
	}
	if got.Title != "longer title" {
		t.Fatalf("title = %q, want winner's title", got.Title)
	}
}

func TestMergeTieBreakOrder(t *testing.T) {
	now := time.Now()

	// 名次相同 → 观测次数多的胜出
	a := obs("S1", "title a", "http://a.com/x", 2, now)
	b := obs("S2", "title b", "http://a.com/x", 2, now)
	b.ObservedCount = 3
	merged, _ := NewMerger().Merge([]collector.Record{a, b})
	if merged[0].Title != "title b" {
		t.Fatalf("higher observed count should win, got title %q", merged[0].Title)
	}

	// 名次与次数都相同 → 标题更长的胜出
	c := obs("S1", "short", "http://a.com/y", 2, now)
	d := obs("S2", "much longer title", "http://a.com/y", 2, now)
	merged, _ = NewMerger().Merge([]collector.Record{c, d})
	if merged[0].Title != "much longer title" {
		t.Fatalf("longer title should win, got %q", merged[0].Title)
	}

	// 完全打平 → 先出现的一方保持不变
	e := obs("S1", "same!", "http://a.com/z", 2, now)
	f := obs("S2", "same?", "http://a.com/z", 2, now)
	merged, _ = NewMerger().Merge([]collector.Record{e, f})
	if merged[0].Title != "same!" {
		t.Fatalf("earlier record should win on full tie, got %q", merged[0].Title)
	}
}

func TestMergeFillNeverOverwrite(t *testing.T) {
	now := time.Now()
	published := time.Date(2025, 8, 24, 8, 30, 0, 0, time.UTC)

	// 胜者已有 PublishedAt，败者的值不得覆盖
	a := obs("S1", "Story", "http://a.com/x", 1, now)
	a.PublishedAt = published
	b := obs("S2", "Story", "http://a.com/x", 5, now)
	b.PublishedAt = published.Add(-time.Hour)

	merged, _ := NewMerger().Merge([]collector.Record{a, b})
	if !merged[0].PublishedAt.Equal(published) {
		t.Fatalf("winner's published_at overwritten: %v", merged[0].PublishedAt)
	}

	// 胜者缺 MobileURL，由败者补齐
	c := obs("S1", "Another", "http://a.com/y", 1, now)
	d := obs("S2", "Another", "http://a.com/y", 5, now)
	d.MobileURL = "http://m.a.com/y"
	merged, _ = NewMerger().Merge([]collector.Record{c, d})
	if merged[0].MobileURL != "http://m.a.com/y" {
		t.Fatalf("mobile url not filled from loser: %q", merged[0].MobileURL)
	}
}

func TestMergeDeterministicAndIdempotent(t *testing.T) {
	now := time.Date(2025, 8, 25, 9, 0, 0, 0, time.UTC)
	input := []collector.Record{
		obs("S1", "Story One", "http://a.com/1?utm_source=x", 3, now),
		obs("S2", "Story Two", "", 1, now),
		obs("S3", "Story One", "http://a.com/1", 2, now.Add(time.Minute)),
		obs("S4", "Story  Two!", "", 7, now),
		obs("S5", "Story Three", "http://a.com/3", 4, now),
	}

	m := NewMerger()
	first, count1 := m.Merge(input)
	second, count2 := m.Merge(input)
	if count1 != count2 || !reflect.DeepEqual(first, second) {
		t.Fatalf("merge not deterministic: %d vs %d", count1, count2)
	}
	if count1 != 2 {
		t.Fatalf("merge count = %d, want 2", count1)
	}

	// 输出顺序 = 各组首次出现顺序
	if first[0].Signature != "u:http://a.com/1" || first[1].Signature != "t:story two" {
		t.Fatalf("output order broken: %q, %q", first[0].Signature, first[1].Signature)
	}

	// 幂等：对合并结果再跑一遍不再折叠
	again, count3 := m.Merge(first)
	if count3 != 0 {
		t.Fatalf("second pass folded %d records, want 0", count3)
	}
	if !reflect.DeepEqual(again, first) {
		t.Fatalf("second pass changed records")
	}

	// 输出中不允许出现重复去重键
	seen := make(map[string]struct{})
	for _, r := range first {
		if _, dup := seen[r.Signature]; dup {
			t.Fatalf("duplicate signature in output: %q", r.Signature)
		}
		seen[r.Signature] = struct{}{}
	}
}

func TestMergeDegenerateRecords(t *testing.T) {
	// URL 与标题都缺失的记录之间也要互相去重，不报错
	merged, count := NewMerger().Merge([]collector.Record{
		{ObservedCount: 1}, {ObservedCount: 1},
	})
	if len(merged) != 1 || count != 1 {
		t.Fatalf("degenerate records not merged: len=%d count=%d", len(merged), count)
	}
	if merged[0].ObservedCount != 2 {
		t.Fatalf("observed count = %d, want 2", merged[0].ObservedCount)
	}
}
