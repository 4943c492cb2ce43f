package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rushteam/reclite/pipeline"
)

// NodeBuilder 与 pipeline.BuilderFunc 一致：根据 config 构建 Node。
type NodeBuilder = pipeline.BuilderFunc

// 业务方自定义的 Node 构建器。内置 Node 依赖运行时的存储，由 DefaultFactory 注册，不在此表中。
var (
	customBuilders   = make(map[string]NodeBuilder)
	customBuildersMu sync.RWMutex
)

// Register 注册一种自定义 Node 的构建逻辑，DefaultFactory 会一并注册。
// 与内置类型同名时自定义构建器优先。
func Register(typeName string, builder NodeBuilder) {
	if typeName == "" || builder == nil {
		return
	}
	customBuildersMu.Lock()
	defer customBuildersMu.Unlock()
	customBuilders[typeName] = builder
}

// Unregister 移除自定义构建器（测试用）。
func Unregister(typeName string) {
	customBuildersMu.Lock()
	defer customBuildersMu.Unlock()
	delete(customBuilders, typeName)
}

func registerCustom(f *pipeline.NodeFactory) {
	customBuildersMu.RLock()
	defer customBuildersMu.RUnlock()
	for typeName, builder := range customBuilders {
		f.Register(typeName, builder)
	}
}

// ValidatePipelineConfig 校验 pipeline 配置中所有 node 类型都能被 factory 构建；
// 有未支持类型时返回包含已支持列表的错误。
func ValidatePipelineConfig(cfg *pipeline.Config, factory *pipeline.NodeFactory) error {
	if cfg == nil || factory == nil {
		return nil
	}
	supported := factory.Types()
	for _, nc := range cfg.Pipeline.Nodes {
		if nc.Type == "" {
			return fmt.Errorf("node type is empty (supported: %v)", supported)
		}
		if i := sort.SearchStrings(supported, nc.Type); i == len(supported) || supported[i] != nc.Type {
			return fmt.Errorf("unsupported node type %q (supported: %v)", nc.Type, supported)
		}
	}
	return nil
}
