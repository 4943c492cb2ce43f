// Package similarity 提供稀疏向量/集合之间的相似度计算。
//
// 所有函数都是纯函数，没有共享状态，可并发调用。
// 退化输入（空向量、零范数、零方差）一律返回 0，不会产生 NaN。
package similarity

import (
	"math"

	mapset "github.com/deckarep/golang-set/v2"
)

// Cosine 计算两个稀疏向量在 key 并集上的余弦相似度，结果在 [0, 1]（非负输入）。
// 并集为空或任一向量范数为 0 时返回 0。
//
// 公共 key 上的 normB 与 normA 按同一顺序累加，相同向量得到的结果恰好为 1。
func Cosine(a, b map[string]float64) float64 {
	var dot, normA, normB float64
	for k, va := range a {
		normA += va * va
		if vb, ok := b[k]; ok {
			dot += va * vb
			normB += vb * vb
		}
	}
	for k, vb := range b {
		if _, ok := a[k]; !ok {
			normB += vb * vb
		}
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp(dot/math.Sqrt(normA*normB), 0, 1)
}

// Jaccard 计算两个集合的 Jaccard 系数 |A∩B| / |A∪B|；两个空集返回 0。
func Jaccard(a, b mapset.Set[string]) float64 {
	if a == nil {
		a = mapset.NewThreadUnsafeSet[string]()
	}
	if b == nil {
		b = mapset.NewThreadUnsafeSet[string]()
	}
	union := a.Union(b).Cardinality()
	if union == 0 {
		return 0
	}
	return float64(a.Intersect(b).Cardinality()) / float64(union)
}

// JaccardKeys 把两个稀疏向量的 key 视为集合计算 Jaccard 系数，忽略权重。
func JaccardKeys(a, b map[string]float64) float64 {
	return Jaccard(keySet(a), keySet(b))
}

// Pearson 只在两个向量 key 的交集上计算皮尔逊相关系数。
// 交集为空或任一侧方差为 0 时返回 0。
func Pearson(a, b map[string]float64) float64 {
	x := make([]float64, 0, len(a))
	y := make([]float64, 0, len(a))
	for k, va := range a {
		if vb, ok := b[k]; ok {
			x = append(x, va)
			y = append(y, vb)
		}
	}
	return pearsonCorrelation(x, y)
}

func pearsonCorrelation(x, y []float64) float64 {
	if len(x) != len(y) || len(x) == 0 {
		return 0
	}

	var meanX, meanY float64
	for i := range x {
		meanX += x[i]
		meanY += y[i]
	}
	meanX /= float64(len(x))
	meanY /= float64(len(y))

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varX == 0 || varY == 0 {
		return 0
	}
	return clamp(cov/math.Sqrt(varX*varY), -1, 1)
}

// clamp 消除浮点舍入造成的越界（例如 1.0000000000000002）。
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func keySet(m map[string]float64) mapset.Set[string] {
	s := mapset.NewThreadUnsafeSetWithSize[string](len(m))
	for k := range m {
		s.Add(k)
	}
	return s
}
