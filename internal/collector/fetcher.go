package collector

import "time"

// RankObservation 一次榜单观测：哪个来源在什么时刻给出了第几名
type RankObservation struct {
	Source     string    `json:"source"`
	Rank       int       `json:"rank"`
	ObservedAt time.Time `json:"observedAt"`
}

// Record 热点条目的统一结构。
// 采集器产出单次观测（一个来源、一条时间线记录），
// 去重合并后同一条新闻可能携带多个来源与多条时间线记录。
type Record struct {
	Title     string
	URL       string
	MobileURL string

	// SourceNames 按首次出现顺序记录所有报道过该条目的来源
	SourceNames  []string
	RankTimeline []RankObservation

	// BestRank 所有观测中的最小名次（越小越靠前）
	BestRank      int
	ObservedCount int
	IsNew         bool

	// PublishedAt 零值表示缺失，由补全服务按需填充
	PublishedAt time.Time

	// Signature 去重键，由 processor 计算，采集器无需填写
	Signature string
}

// NewObservation 构造一条单次观测记录，采集器统一走这里，
// 保证 SourceNames / RankTimeline / ObservedCount 初始状态一致。
func NewObservation(source, title, url string, rank int, observedAt time.Time) Record {
	return Record{
		Title:       title,
		URL:         url,
		SourceNames: []string{source},
		RankTimeline: []RankObservation{
			{Source: source, Rank: rank, ObservedAt: observedAt},
		},
		BestRank:      rank,
		ObservedCount: 1,
	}
}

// Fetcher 抽象每一个榜单数据源
type Fetcher interface {
	Name() string
	Fetch() ([]Record, error)
}
