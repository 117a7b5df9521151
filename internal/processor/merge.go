package processor

import (
	"sort"

	"github.com/LJTian/HotDigest/internal/collector"
)

// Merger 跨来源去重合并引擎：按去重键分组，把同一条新闻的
// 多次观测折叠成一条记录。
type Merger struct{}

func NewMerger() *Merger {
	return &Merger{}
}

// Merge 对输入记录做去重合并。
// 输出顺序 = 每组首次出现的顺序；返回值第二项是被折叠掉的记录数
// （输入条数 - 输出条数），调用方用它打汇总日志。
// 同一输入重复执行结果完全一致；对已合并的结果再执行一次不会再折叠。
func (m *Merger) Merge(records []collector.Record) ([]collector.Record, int) {
	out := make([]collector.Record, 0, len(records))
	index := make(map[string]int, len(records))

	for _, rec := range records {
		rec.Signature = SignatureOf(rec)

		pos, seen := index[rec.Signature]
		if !seen {
			index[rec.Signature] = len(out)
			out = append(out, rec)
			continue
		}
		out[pos] = mergePair(out[pos], rec)
	}

	return out, len(records) - len(out)
}

// mergePair 把同组的两条记录折叠成一条。earlier 是先出现的一方。
// 替换优先级只决定标量字段（标题 / URL / 发布时间）跟随哪一方；
// 来源列表与名次时间线始终按时间先后保留双方全部信息。
func mergePair(earlier, incoming collector.Record) collector.Record {
	winner, loser := earlier, incoming
	if incomingWins(earlier, incoming) {
		winner, loser = incoming, earlier
	}

	merged := winner
	merged.Signature = earlier.Signature

	// 只补缺口，绝不覆盖已有值
	if merged.URL == "" {
		merged.URL = loser.URL
	}
	if merged.MobileURL == "" {
		merged.MobileURL = loser.MobileURL
	}
	if merged.PublishedAt.IsZero() {
		merged.PublishedAt = loser.PublishedAt
	}

	merged.SourceNames = appendUnique(earlier.SourceNames, incoming.SourceNames)
	merged.RankTimeline = mergeTimelines(earlier.RankTimeline, incoming.RankTimeline)
	if loser.BestRank < merged.BestRank {
		merged.BestRank = loser.BestRank
	}
	merged.ObservedCount = earlier.ObservedCount + incoming.ObservedCount
	merged.IsNew = earlier.IsNew || incoming.IsNew

	return merged
}

// incomingWins 替换优先级，按严格顺序比较：
// 名次更靠前 > 观测次数更多 > 标题更长；全部打平时先出现的一方胜出
func incomingWins(earlier, incoming collector.Record) bool {
	if incoming.BestRank != earlier.BestRank {
		return incoming.BestRank < earlier.BestRank
	}
	if incoming.ObservedCount != earlier.ObservedCount {
		return incoming.ObservedCount > earlier.ObservedCount
	}
	return len([]rune(incoming.Title)) > len([]rune(earlier.Title))
}

// appendUnique 在 base 之后追加 extra 中未出现过的来源，保持首见顺序
func appendUnique(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	seen := make(map[string]struct{}, len(base)+len(extra))
	for _, name := range base {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	for _, name := range extra {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// mergeTimelines 合并两条时间线，按观测时间升序；
// 稳定排序保证同一时刻的条目维持拼接顺序，结果可复现
func mergeTimelines(a, b []collector.RankObservation) []collector.RankObservation {
	out := make([]collector.RankObservation, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ObservedAt.Before(out[j].ObservedAt)
	})
	return out
}
