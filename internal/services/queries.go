package services

import (
	"context"

	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/search"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/hints"
)

// Query limits
const (
	LargestCollectionsLimit = 5
	LatestItemsLimit        = 10
	SearchResultsLimit      = 20
)

// RankedCollection is a largestCollections entry
type RankedCollection struct {
	ID             string `json:"id"`
	Author         string `json:"author"`
	CollectionName string `json:"collectionName"`
	FirstHeading   int64  `json:"firstHeading"`
}

// ItemSummary is a latestItems entry
type ItemSummary struct {
	FirstHeading   string `json:"firstHeading"`
	ID             string `json:"id"`
	CollectionName string `json:"collectionName"`
	Author         string `json:"author"`
}

// CollectionSummary is a collection without schema or items
type CollectionSummary struct {
	ID                    string `json:"id"`
	Author                string `json:"author"`
	CollectionName        string `json:"collectionName"`
	CollectionDescription string `json:"collectionDescription"`
	CollectionTopic       string `json:"collectionTopic"`
	CollectionImage       string `json:"collectionImage"`
	NumberOfItems         int64  `json:"numberOfItems"`
}

// UserCollections is the collectionsForUser projection
type UserCollections struct {
	Collections []CollectionSummary `json:"collections"`
	Username    string              `json:"username"`
}

// DetailItem is an item as rendered inside its collection
type DetailItem struct {
	ID       string                      `json:"id"`
	Name     string                      `json:"name"`
	Tags     datatypes.JSONSlice[string] `json:"tags"`
	ItemData models.JSON                 `json:"itemData"`
}

// CollectionDetail is a collection's schema with all of its items
type CollectionDetail struct {
	ID                   string             `json:"id"`
	Author               string             `json:"author"`
	CollectionCustomItem models.FieldSchema `json:"collectionCustomItem"`
	Items                []DetailItem       `json:"items"`
}

// ItemDetail is a full item
type ItemDetail struct {
	ID                  string                      `json:"id"`
	BelongsToCollection string                      `json:"belongsToCollection"`
	Name                string                      `json:"name"`
	Tags                datatypes.JSONSlice[string] `json:"tags"`
	ItemData            models.JSON                 `json:"itemData"`
	Comments            []models.Comment            `json:"comments"`
	Likes               []string                    `json:"likes"`
}

// query starts a read on the reader pool, tagged with its operation name
func (s *Service) query(ctx context.Context, op string) *gorm.DB {
	return s.reader.WithContext(ctx).Clauses(hints.Comment("select", "cmdb:"+op))
}

// LargestCollections returns the collections with the most items. Ties keep
// insertion order.
func (s *Service) LargestCollections(ctx context.Context) ([]RankedCollection, error) {
	const op = "largestCollections"
	var rows []models.Collection
	q := s.query(ctx, op).
		Select("id", "author_id", "name", "number_of_items").
		Order("number_of_items DESC, seq ASC").
		Limit(LargestCollectionsLimit)
	if s.reader.Dialector.Name() == "mysql" {
		q = q.Clauses(hints.UseIndex("idx_collections_number_of_items"))
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, types.Upstream(op, err)
	}

	authorIDs := make([]string, 0, len(rows))
	for _, c := range rows {
		authorIDs = append(authorIDs, c.AuthorID)
	}
	names, err := s.usernames(ctx, op, authorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]RankedCollection, 0, len(rows))
	for _, c := range rows {
		out = append(out, RankedCollection{
			ID:             c.ID,
			Author:         names[c.AuthorID],
			CollectionName: c.Name,
			FirstHeading:   c.NumberOfItems,
		})
	}
	return out, nil
}

// LatestItems returns the most recently created items
func (s *Service) LatestItems(ctx context.Context) ([]ItemSummary, error) {
	const op = "latestItems"
	var rows []models.Item
	q := s.query(ctx, op).
		Select("id", "collection_id", "name").
		Order("created_at DESC, id DESC").
		Limit(LatestItemsLimit)
	if s.reader.Dialector.Name() == "mysql" {
		q = q.Clauses(hints.UseIndex("idx_items_created_at"))
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, types.Upstream(op, err)
	}

	collectionIDs := make([]string, 0, len(rows))
	for _, item := range rows {
		collectionIDs = append(collectionIDs, item.CollectionID)
	}
	var collections []models.Collection
	if len(collectionIDs) > 0 {
		if err := s.query(ctx, op).
			Select("id", "author_id", "name").
			Where("id IN ?", collectionIDs).
			Find(&collections).Error; err != nil {
			return nil, types.Upstream(op, err)
		}
	}
	byID := make(map[string]models.Collection, len(collections))
	authorIDs := make([]string, 0, len(collections))
	for _, c := range collections {
		byID[c.ID] = c
		authorIDs = append(authorIDs, c.AuthorID)
	}
	names, err := s.usernames(ctx, op, authorIDs)
	if err != nil {
		return nil, err
	}

	out := make([]ItemSummary, 0, len(rows))
	for _, item := range rows {
		c := byID[item.CollectionID]
		out = append(out, ItemSummary{
			FirstHeading:   item.Name,
			ID:             item.ID,
			CollectionName: c.Name,
			Author:         names[c.AuthorID],
		})
	}
	return out, nil
}

// usernames maps user ids to usernames; unknown ids are absent
func (s *Service) usernames(ctx context.Context, op string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	var users []models.User
	if err := s.query(ctx, op).Select("id", "username").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, types.Upstream(op, err)
	}
	for _, u := range users {
		names[u.ID] = u.Username
	}
	return names, nil
}

// CollectionsForUser returns the user's collections without schema or items
func (s *Service) CollectionsForUser(ctx context.Context, userID string) (*UserCollections, error) {
	const op = "collectionsForUser"
	u, err := s.readers.GetUser(ctx, userID)
	if err != nil {
		if types.Is(err, types.KindNotFound) {
			return nil, types.NotFound(op, "could not find collections for user %s", userID)
		}
		return nil, err
	}

	var rows []models.Collection
	if err := s.query(ctx, op).
		Omit("field_schema").
		Where("author_id = ?", userID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, types.Upstream(op, err)
	}

	out := &UserCollections{Collections: make([]CollectionSummary, 0, len(rows)), Username: u.Username}
	for _, c := range rows {
		out.Collections = append(out.Collections, CollectionSummary{
			ID:                    c.ID,
			Author:                c.AuthorID,
			CollectionName:        c.Name,
			CollectionDescription: c.Description,
			CollectionTopic:       c.Topic,
			CollectionImage:       c.Image,
			NumberOfItems:         c.NumberOfItems,
		})
	}
	return out, nil
}

// CollectionDetail returns a collection's schema and the reduced projection
// of every item in its set
func (s *Service) CollectionDetail(ctx context.Context, collectionID string) (*CollectionDetail, error) {
	const op = "collectionDetail"
	c, err := s.readers.GetCollection(ctx, collectionID)
	if err != nil {
		return nil, err
	}

	items := []DetailItem{}
	if err := s.query(ctx, op).
		Table("items").
		Select("items.id, items.name, items.tags, items.item_data").
		Joins("JOIN collection_items ON collection_items.item_id = items.id").
		Where("collection_items.collection_id = ?", collectionID).
		Order("items.created_at ASC, items.id ASC").
		Scan(&items).Error; err != nil {
		return nil, types.Upstream(op, err)
	}

	return &CollectionDetail{
		ID:                   c.ID,
		Author:               c.AuthorID,
		CollectionCustomItem: c.Schema.Data(),
		Items:                items,
	}, nil
}

// GetItem returns an item with its comments and likes
func (s *Service) GetItem(ctx context.Context, itemID string) (*ItemDetail, error) {
	item, err := s.readers.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	comments, err := s.readers.Comments(ctx, itemID)
	if err != nil {
		return nil, err
	}
	likes, err := s.readers.LikingUsers(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return &ItemDetail{
		ID:                  item.ID,
		BelongsToCollection: item.CollectionID,
		Name:                item.Name,
		Tags:                item.Tags,
		ItemData:            item.ItemData,
		Comments:            comments,
		Likes:               likes,
	}, nil
}

// SearchItems runs a full-text query. Matches whose item no longer exists
// are dropped.
func (s *Service) SearchItems(ctx context.Context, text string) ([]search.Match, error) {
	const op = "searchItems"
	if s.search == nil {
		return nil, types.Upstream(op, errNoSearch)
	}
	matches, err := s.search.Query(ctx, text, SearchResultsLimit)
	if err != nil {
		return nil, types.Upstream(op, err)
	}
	if len(matches) == 0 {
		return []search.Match{}, nil
	}

	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	var live []string
	if err := s.query(ctx, op).Model(&models.Item{}).Where("id IN ?", ids).Pluck("id", &live).Error; err != nil {
		return nil, types.Upstream(op, err)
	}
	exists := make(map[string]struct{}, len(live))
	for _, id := range live {
		exists[id] = struct{}{}
	}

	out := make([]search.Match, 0, len(live))
	for _, m := range matches {
		if _, ok := exists[m.ID]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// Topics lists every topic
func (s *Service) Topics(ctx context.Context) ([]models.Topic, error) {
	return s.readers.ListTopics(ctx)
}

// Tags lists tags containing query
func (s *Service) Tags(ctx context.Context, query string) ([]models.Tag, error) {
	return s.readers.SearchTags(ctx, query)
}
