package similarity

import (
	"fmt"
	"strings"

	"github.com/rushteam/reclite/core"
)

// Func 是稀疏向量相似度函数。
type Func func(a, b map[string]float64) float64

// Metric 是相似度度量名称，用于配置协同过滤节点。
type Metric string

const (
	MetricCosine  Metric = "cosine"
	MetricPearson Metric = "pearson"
	MetricJaccard Metric = "jaccard"
)

var metrics = map[Metric]Func{
	MetricCosine:  Cosine,
	MetricPearson: Pearson,
	MetricJaccard: JaccardKeys,
}

// ParseMetric 解析度量名称（大小写不敏感），空字符串取 cosine。
func ParseMetric(s string) (Metric, error) {
	m := Metric(strings.ToLower(strings.TrimSpace(s)))
	if m == "" {
		return MetricCosine, nil
	}
	if _, ok := metrics[m]; !ok {
		return "", core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput,
			fmt.Sprintf("similarity: unknown metric %q", s))
	}
	return m, nil
}

// Func 返回度量对应的相似度函数；未知度量回退到 Cosine。
func (m Metric) Func() Func {
	if f, ok := metrics[m]; ok {
		return f
	}
	return Cosine
}

func (m Metric) String() string { return string(m) }
