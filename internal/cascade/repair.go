package cascade

import (
	"context"
	"log"

	"github.com/localnerve/jam-build-cmdb/internal/store"
)

// CountFix is one corrected numberOfItems
type CountFix struct {
	CollectionID string `json:"collectionId"`
	Was          int64  `json:"was"`
	Now          int64  `json:"now"`
}

// RepairReport summarizes a reconciliation pass
type RepairReport struct {
	CollectionsChecked int              `json:"collectionsChecked"`
	CountsFixed        []CountFix       `json:"countsFixed"`
	UserSideRemoved    []store.LikeEdge `json:"userSideRemoved"`
	ItemSideRemoved    []store.LikeEdge `json:"itemSideRemoved"`
}

// Repair recomputes every numberOfItems from the authoritative item set and
// removes like edges present on one side only.
func (e *Engine) Repair(ctx context.Context) (*RepairReport, error) {
	s := e.store
	report := &RepairReport{
		CountsFixed:     []CountFix{},
		UserSideRemoved: []store.LikeEdge{},
		ItemSideRemoved: []store.LikeEdge{},
	}

	ids, err := s.CollectionIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		c, err := s.GetCollection(ctx, id)
		if err != nil {
			return report, err
		}
		items, err := s.ItemIDs(ctx, id)
		if err != nil {
			return report, err
		}
		report.CollectionsChecked++
		if n := int64(len(items)); n != c.NumberOfItems {
			if err := s.SetItemCount(ctx, id, n); err != nil {
				return report, err
			}
			log.Printf("repair: collection %s numberOfItems %d -> %d", id, c.NumberOfItems, n)
			report.CountsFixed = append(report.CountsFixed, CountFix{CollectionID: id, Was: c.NumberOfItems, Now: n})
		}
	}

	userOnly, err := s.UserSideOnlyLikes(ctx)
	if err != nil {
		return report, err
	}
	for _, edge := range userOnly {
		if _, err := s.RemoveUserLike(ctx, edge.UserID, edge.ItemID); err != nil {
			return report, err
		}
		report.UserSideRemoved = append(report.UserSideRemoved, edge)
	}

	itemOnly, err := s.ItemSideOnlyLikes(ctx)
	if err != nil {
		return report, err
	}
	for _, edge := range itemOnly {
		if _, err := s.RemoveItemLike(ctx, edge.ItemID, edge.UserID); err != nil {
			return report, err
		}
		report.ItemSideRemoved = append(report.ItemSideRemoved, edge)
	}

	if n := len(report.UserSideRemoved) + len(report.ItemSideRemoved); n > 0 {
		log.Printf("repair: removed %d one-sided like edge(s)", n)
	}
	return report, nil
}
