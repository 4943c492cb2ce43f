// Package store 提供推荐链路的存储实现。
//
// 接口定义在 core 包（core.SetStore）；此包只包含实现：
//   - BehaviorStore：进程内行为日志与用户/物品索引
//   - MemoryStore：内存集合，测试/单机部署使用
//   - RedisStore：Redis 集合，用于多实例共享黑名单
package store
