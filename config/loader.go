package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rushteam/reclite/pipeline"
)

// LoadPipelines 加载 dir 下所有 *.yaml / *.yml 文件定义的 Pipeline，按名称返回。
// 配置里没有写 name 时取文件名（去掉扩展名）。dir 为空时返回空表。
func LoadPipelines(dir string, factory *pipeline.NodeFactory) (map[string]*pipeline.Pipeline, error) {
	out := make(map[string]*pipeline.Pipeline)
	if dir == "" {
		return out, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read pipelines dir: %w", err)
	}

	for _, entry := range entries {
		ext := filepath.Ext(entry.Name())
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		cfg, err := pipeline.LoadFromYAML(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := ValidatePipelineConfig(cfg, factory); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		p, err := cfg.BuildPipeline(factory)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if p.Name == "" {
			p.Name = strings.TrimSuffix(entry.Name(), ext)
		}
		if _, dup := out[p.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate pipeline name %q", path, p.Name)
		}
		out[p.Name] = p
	}
	return out, nil
}
