package pipeline

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rushteam/reclite/core"
)

// Config 是 Pipeline 的 YAML 配置结构。
//
//	pipeline:
//	  name: popular
//	  nodes:
//	    - type: recall.popular
//	    - type: filter
//	      config:
//	        filters:
//	          - type: exclude
//	    - type: rerank.sort
//	    - type: rerank.topn
type Config struct {
	Pipeline struct {
		Name  string       `yaml:"name"`
		Nodes []NodeConfig `yaml:"nodes"`
	} `yaml:"pipeline"`
}

// NodeConfig 是单个 Node 的配置。
type NodeConfig struct {
	Type   string         `yaml:"type"`   // recall.popular / filter / rerank.topn 等
	Config map[string]any `yaml:"config"` // Node 特定配置
}

// LoadFromYAML 从 YAML 文件加载 Pipeline 配置。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseYAML(data)
}

// ParseYAML 解析 YAML 格式的 Pipeline 配置。
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput, "pipeline: parse yaml: "+err.Error())
	}
	if len(cfg.Pipeline.Nodes) == 0 {
		return nil, core.NewDomainError(core.ModulePipeline, core.ErrorCodeInvalidInput, "pipeline: no nodes configured")
	}
	return &cfg, nil
}

// BuildPipeline 根据配置构建 Pipeline（需要 NodeFactory 注册 Node 构建器）。
func (c *Config) BuildPipeline(factory *NodeFactory) (*Pipeline, error) {
	nodes := make([]Node, 0, len(c.Pipeline.Nodes))
	for _, nc := range c.Pipeline.Nodes {
		node, err := factory.Build(nc.Type, nc.Config)
		if err != nil {
			return nil, fmt.Errorf("build node %s: %w", nc.Type, err)
		}
		nodes = append(nodes, node)
	}
	return New(c.Pipeline.Name, nodes...), nil
}

// BuilderFunc 根据配置构建一个 Node。
type BuilderFunc func(config map[string]any) (Node, error)

// NodeFactory 用于根据配置构建 Node 实例。
type NodeFactory struct {
	builders map[string]BuilderFunc
}

func NewNodeFactory() *NodeFactory {
	return &NodeFactory{
		builders: make(map[string]BuilderFunc),
	}
}

// Register 注册 Node 构建器，同名覆盖。
func (f *NodeFactory) Register(nodeType string, builder BuilderFunc) {
	f.builders[nodeType] = builder
}

// Build 根据类型和配置构建 Node。
func (f *NodeFactory) Build(nodeType string, config map[string]any) (Node, error) {
	builder, ok := f.builders[nodeType]
	if !ok {
		return nil, core.NewDomainError(core.ModulePipeline, core.ErrorCodeNotFound,
			fmt.Sprintf("pipeline: unknown node type: %s", nodeType))
	}
	if config == nil {
		config = map[string]any{}
	}
	return builder(config)
}

// Types 返回已注册的 Node 类型（字典序）。
func (f *NodeFactory) Types() []string {
	out := make([]string, 0, len(f.builders))
	for t := range f.builders {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
