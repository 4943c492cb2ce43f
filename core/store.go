package core

import "context"

// SetStore 是集合存储的领域接口，定义在 core，由 store 包实现。
//
// 行为日志只保存在进程内存中（store.BehaviorStore）；SetStore 只承载
// 黑名单这类运营侧维护的物品集合。
type SetStore interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// SAdd 向集合添加成员
	SAdd(ctx context.Context, key string, members ...string) error

	// SRem 从集合删除成员
	SRem(ctx context.Context, key string, members ...string) error

	// SMembers 返回集合全部成员；集合不存在时返回空切片
	SMembers(ctx context.Context, key string) ([]string, error)

	// Close 关闭连接/释放资源
	Close() error
}
