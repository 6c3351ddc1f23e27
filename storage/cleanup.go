package storage

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// removeConcurrency 并行删除的上限
const removeConcurrency = 8

// RemoveAll 并行删除一组 key，不存在的 key 视为已删除
// 返回删除失败的 key，失败只记录日志，不中断其他删除
func RemoveAll(ctx context.Context, p Provider, identifiers []string) []string {
	if len(identifiers) == 0 {
		return nil
	}

	failed := make([]bool, len(identifiers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(removeConcurrency)

	for i, id := range identifiers {
		g.Go(func() error {
			err := p.DeleteWithContext(gctx, id)
			if err != nil && !errors.Is(err, ErrNotFound) {
				log.Warnf("Failed to remove stored file %s: %v", id, err)
				failed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	var out []string
	for i, f := range failed {
		if f {
			out = append(out, identifiers[i])
		}
	}
	return out
}
