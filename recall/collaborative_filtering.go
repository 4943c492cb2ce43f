package recall

import (
	"cmp"
	"context"
	"maps"
	"slices"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/pipeline"
	"github.com/rushteam/reclite/pkg/utils"
	"github.com/rushteam/reclite/similarity"
)

const (
	// ReasonUserCF 是 u2i 召回结果的推荐理由
	ReasonUserCF = "based on similar users' preferences"

	// ReasonItemCF 是 i2i 召回结果的推荐理由
	ReasonItemCF = "similar to items you interacted with"
)

// UserBasedCF 是基于用户的协同过滤召回源（User-based Collaborative Filtering, User-CF）。
//
// 核心思想："兴趣相似的用户，喜欢相似的物品"
//
// 算法流程：
//  1. 用户 → 加权行为向量（用户-物品矩阵的一行）
//  2. 计算目标用户与其他所有用户的相似度，保留 ≥ SimilarityThreshold 的
//  3. 按相似度降序（同分按用户 ID 升序）取前 MaxNeighbors 个邻居
//  4. score[item] = Σ(similarity × 邻居对该物品的权重)，跳过目标用户交互过的和被剔除的物品
//
// 目标用户没有行为时返回空，由上层回退到热门。
type UserBasedCF struct {
	Store CFStore

	// SimilarityThreshold 邻居的最低相似度（含），默认 0.1
	SimilarityThreshold float64

	// MaxNeighbors 最多使用的邻居数，默认 11
	MaxNeighbors int

	// Metric 相似度度量方式：cosine / pearson / jaccard，默认 cosine
	Metric similarity.Metric

	// MinCommonItems 两个用户至少需要有多少个共同交互物品才计算相似度，0 表示不限制
	MinCommonItems int
}

func (r *UserBasedCF) Name() string        { return "recall.u2i" }
func (r *UserBasedCF) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *UserBasedCF) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

type scoredID struct {
	id    string
	score float64
}

// byScoreDesc 分数降序，同分按 ID 升序，保证结果确定。
func byScoreDesc(a, b scoredID) int {
	if c := cmp.Compare(b.score, a.score); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

func (r *UserBasedCF) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Store == nil || rctx == nil || rctx.UserID == "" {
		return nil, nil
	}

	targetItems, err := r.Store.UserItems(ctx, rctx.UserID)
	if err != nil {
		return nil, err
	}
	if len(targetItems) == 0 {
		return nil, nil
	}

	allUsers, err := r.Store.AllUsers(ctx)
	if err != nil {
		return nil, err
	}

	threshold := r.SimilarityThreshold
	if threshold <= 0 {
		threshold = 0.1
	}
	maxNeighbors := r.MaxNeighbors
	if maxNeighbors <= 0 {
		maxNeighbors = 11
	}
	simFunc := r.Metric.Func()

	neighbors := make([]scoredID, 0)
	neighborItems := make(map[string]map[string]float64)
	for _, userID := range allUsers {
		if userID == rctx.UserID {
			continue
		}
		userItems, err := r.Store.UserItems(ctx, userID)
		if err != nil || len(userItems) == 0 {
			continue
		}
		if r.MinCommonItems > 0 && commonKeys(targetItems, userItems) < r.MinCommonItems {
			continue
		}

		sim := simFunc(targetItems, userItems)
		if sim >= threshold {
			neighbors = append(neighbors, scoredID{id: userID, score: sim})
			neighborItems[userID] = userItems
		}
	}

	slices.SortFunc(neighbors, byScoreDesc)
	if len(neighbors) > maxNeighbors {
		neighbors = neighbors[:maxNeighbors]
	}

	// score[itemID] = Σ(similarity × weight)
	itemScores := make(map[string]float64)
	for _, n := range neighbors {
		for itemID, weight := range neighborItems[n.id] {
			if _, ok := targetItems[itemID]; ok {
				continue
			}
			if rctx.IsExcluded(itemID) {
				continue
			}
			itemScores[itemID] += n.score * weight
		}
	}

	return buildCFItems(itemScores, "u2i", ReasonUserCF, r.Metric), nil
}

// ItemBasedCF 是基于物品的协同过滤召回源（Item-based Collaborative Filtering, Item-CF）。
//
// 核心思想："被同一批用户喜欢的物品，相互相似"
//
// 算法流程：
//  1. 物品 → 用户交互次数向量
//  2. 对目标用户交互过的每个物品，计算与所有未交互、未剔除物品的相似度
//  3. score[candidate] += similarity × 用户对历史物品的权重（仅 similarity > 0）
type ItemBasedCF struct {
	Store CFStore

	// Metric 相似度度量方式，默认 cosine
	Metric similarity.Metric
}

func (r *ItemBasedCF) Name() string        { return "recall.i2i" }
func (r *ItemBasedCF) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *ItemBasedCF) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *ItemBasedCF) Recall(
	ctx context.Context,
	rctx *core.RecommendContext,
) ([]*core.Item, error) {
	if r.Store == nil || rctx == nil || rctx.UserID == "" {
		return nil, nil
	}

	history, err := r.Store.UserItems(ctx, rctx.UserID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, nil
	}

	allItems, err := r.Store.AllItems(ctx)
	if err != nil {
		return nil, err
	}

	vectors := make(map[string]map[string]float64, len(allItems))
	vector := func(itemID string) map[string]float64 {
		if v, ok := vectors[itemID]; ok {
			return v
		}
		v, err := r.Store.ItemUsers(ctx, itemID)
		if err != nil {
			v = nil
		}
		vectors[itemID] = v
		return v
	}

	candidates := make([]string, 0, len(allItems))
	for _, itemID := range allItems {
		if _, seen := history[itemID]; seen || rctx.IsExcluded(itemID) {
			continue
		}
		candidates = append(candidates, itemID)
	}

	simFunc := r.Metric.Func()
	itemScores := make(map[string]float64)
	for _, historyItem := range slices.Sorted(maps.Keys(history)) {
		weight := history[historyItem]
		hv := vector(historyItem)
		for _, candidate := range candidates {
			sim := simFunc(hv, vector(candidate))
			if sim > 0 {
				itemScores[candidate] += sim * weight
			}
		}
	}

	return buildCFItems(itemScores, "i2i", ReasonItemCF, r.Metric), nil
}

func buildCFItems(itemScores map[string]float64, source, reason string, metric similarity.Metric) []*core.Item {
	scored := make([]scoredID, 0, len(itemScores))
	for itemID, score := range itemScores {
		scored = append(scored, scoredID{id: itemID, score: score})
	}
	slices.SortFunc(scored, byScoreDesc)

	if metric == "" {
		metric = similarity.MetricCosine
	}
	out := make([]*core.Item, 0, len(scored))
	for _, s := range scored {
		it := core.NewItem(s.id)
		it.Score = s.score
		it.PutLabel(core.LabelRecallSource, utils.Label{Value: source, Source: utils.SourceRecall})
		it.PutLabel(core.LabelCFMetric, utils.Label{Value: metric.String(), Source: utils.SourceRecall})
		it.SetLabel(core.LabelReason, utils.Label{Value: reason, Source: utils.SourceRecall})
		out = append(out, it)
	}
	return out
}

func commonKeys(a, b map[string]float64) int {
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
