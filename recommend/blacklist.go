package recommend

import (
	"context"
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/rushteam/reclite/core"
	"github.com/rushteam/reclite/logging"
)

// BlockItems 把物品加入 SetStore 中的黑名单集合，之后所有策略都不再返回这些物品。
// 未配置黑名单存储时返回 NOT_SUPPORTED。
func (e *Engine) BlockItems(ctx context.Context, itemIDs ...string) error {
	ids, err := e.blacklistIDs(itemIDs)
	if err != nil {
		return err
	}
	if err := e.blacklistStore.SAdd(ctx, e.cfg.Filter.BlacklistKey, ids...); err != nil {
		return blacklistUnavailable(err)
	}
	l := logging.Ctx(ctx, e.logger)
	l.Info().Strs("items", ids).Msg("items blacklisted")
	return nil
}

// UnblockItems 把物品移出黑名单集合。配置文件中的静态黑名单不受影响。
func (e *Engine) UnblockItems(ctx context.Context, itemIDs ...string) error {
	ids, err := e.blacklistIDs(itemIDs)
	if err != nil {
		return err
	}
	if err := e.blacklistStore.SRem(ctx, e.cfg.Filter.BlacklistKey, ids...); err != nil {
		return blacklistUnavailable(err)
	}
	l := logging.Ctx(ctx, e.logger)
	l.Info().Strs("items", ids).Msg("items removed from blacklist")
	return nil
}

// BlockedItems 返回当前生效的黑名单（静态列表与集合的并集，按字典序）。
func (e *Engine) BlockedItems(ctx context.Context) ([]string, error) {
	set := mapset.NewThreadUnsafeSet(e.cfg.Filter.Blacklist...)
	if e.blacklistEnabled() {
		members, err := e.blacklistStore.SMembers(ctx, e.cfg.Filter.BlacklistKey)
		if err != nil {
			return nil, blacklistUnavailable(err)
		}
		set.Append(members...)
	}
	out := set.ToSlice()
	slices.Sort(out)
	return out, nil
}

func (e *Engine) blacklistEnabled() bool {
	return e.blacklistStore != nil && e.cfg.Filter.BlacklistKey != ""
}

func (e *Engine) blacklistIDs(itemIDs []string) ([]string, error) {
	if !e.blacklistEnabled() {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeNotSupported,
			"recommend: blacklist store is not configured")
	}
	ids := make([]string, 0, len(itemIDs))
	for _, id := range itemIDs {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, core.NewDomainError(core.ModuleRecommend, core.ErrorCodeInvalidInput,
			"recommend: itemId is required")
	}
	return ids, nil
}

func blacklistUnavailable(err error) error {
	return core.NewDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "store: blacklist: "+err.Error())
}
