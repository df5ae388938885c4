package cascade

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/search"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"gorm.io/datatypes"
)

// ItemSpec is the content of a new item
type ItemSpec struct {
	Name     string
	Tags     []string
	ItemData map[string]interface{}
}

// ValidateItemData checks that every data key is declared in the schema
func ValidateItemData(op string, schema models.FieldSchema, data map[string]interface{}) error {
	var unknown []string
	for key := range data {
		if !schema.Has(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return types.InvalidState(op, "item data fields not in collection schema: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Document builds the search document of an item from its field values and
// comment bodies. Numbers and booleans are indexed in their text form.
func Document(item *models.Item, comments []models.Comment) search.Document {
	var text []string
	if data, err := item.ItemData.Map(); err == nil {
		keys := make([]string, 0, len(data))
		for k := range data {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if s := fieldText(data[k]); s != "" {
				text = append(text, s)
			}
		}
	}
	for _, c := range comments {
		if body := strings.TrimSpace(c.Body); body != "" {
			text = append(text, body)
		}
	}
	return search.Document{
		ID:           item.ID,
		CollectionID: item.CollectionID,
		Name:         item.Name,
		Tags:         append([]string(nil), item.Tags...),
		Text:         strings.Join(text, "\n"),
	}
}

func fieldText(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprint(v)
	}
}

// CreateItem creates an item and attaches it to its collection. The attach
// step appends to the item set and increments numberOfItems as one unit.
func (e *Engine) CreateItem(ctx context.Context, collectionID string, spec ItemSpec) (*models.Item, error) {
	const op = "createItem"
	if spec.ItemData == nil {
		spec.ItemData = map[string]interface{}{}
	}
	data, err := models.NewJSON(spec.ItemData)
	if err != nil {
		return nil, types.InvalidState(op, "item data: %v", err)
	}
	item := &models.Item{
		CollectionID: collectionID,
		Name:         spec.Name,
		Tags:         datatypes.JSONSlice[string](spec.Tags),
		ItemData:     data,
	}

	err = e.execute(ctx, op, func(ctx context.Context, s store.Store) ([]Step, error) {
		c, err := s.GetCollection(ctx, collectionID)
		if err != nil {
			return nil, err
		}
		if err := ValidateItemData(op, c.Schema.Data(), spec.ItemData); err != nil {
			return nil, err
		}
		item.ID = ""
		return []Step{{
			Name: "create item",
			Do: func(ctx context.Context, s store.Store) error {
				return s.CreateItem(ctx, item)
			},
			Undo: func(ctx context.Context, s store.Store) error {
				return s.DeleteItem(ctx, item.ID)
			},
			Refs: func() []string { return []string{item.ID} },
		}, {
			Name: "attach item",
			Do: func(ctx context.Context, s store.Store) error {
				return s.AttachItem(ctx, collectionID, item.ID)
			},
			Undo: func(ctx context.Context, s store.Store) error {
				_, err := s.DetachItem(ctx, collectionID, item.ID)
				return err
			},
			Refs: func() []string { return []string{collectionID, item.ID} },
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	e.indexItem(ctx, Document(item, nil))
	return item, nil
}

// EditItem updates item fields. New item data is checked against the
// collection's current schema.
func (e *Engine) EditItem(ctx context.Context, itemID string, fields store.ItemFields) error {
	const op = "editItem"
	var (
		updated  *models.Item
		comments []models.Comment
	)
	err := e.execute(ctx, op, func(ctx context.Context, s store.Store) ([]Step, error) {
		item, err := s.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		if fields.ItemData != nil {
			c, err := s.GetCollection(ctx, item.CollectionID)
			if err != nil {
				return nil, err
			}
			if err := ValidateItemData(op, c.Schema.Data(), fields.ItemData); err != nil {
				return nil, err
			}
		}
		return []Step{{
			Name: "update item",
			Do: func(ctx context.Context, s store.Store) (err error) {
				if err = s.UpdateItem(ctx, itemID, fields); err != nil {
					return err
				}
				if updated, err = s.GetItem(ctx, itemID); err != nil {
					return err
				}
				comments, err = s.Comments(ctx, itemID)
				return err
			},
		}}, nil
	})
	if err != nil {
		return err
	}
	e.indexItem(ctx, Document(updated, comments))
	return nil
}

// DeleteItem strips the item's like edges from every liking user, detaches
// it from its collection (decrementing numberOfItems) and deletes it. If any
// edge cannot be stripped the item is not deleted and the error is retryable.
func (e *Engine) DeleteItem(ctx context.Context, itemID string) error {
	const op = "deleteItem"
	err := e.execute(ctx, op, func(ctx context.Context, s store.Store) ([]Step, error) {
		item, err := s.GetItem(ctx, itemID)
		if err != nil {
			return nil, err
		}
		likers, err := itemLikers(ctx, s, itemID)
		if err != nil {
			return nil, err
		}
		steps := make([]Step, 0, 2*len(likers)+2)
		for _, userID := range likers {
			steps = append(steps, stripLikeSteps(userID, itemID)...)
		}

		collectionID := item.CollectionID
		var detached bool
		steps = append(steps, Step{
			Name: "detach item",
			Do: func(ctx context.Context, s store.Store) error {
				res, err := s.DetachItem(ctx, collectionID, itemID)
				detached = res.Removed
				return err
			},
			Undo: func(ctx context.Context, s store.Store) error {
				if !detached {
					return nil
				}
				return s.AttachItem(ctx, collectionID, itemID)
			},
			Refs: func() []string { return []string{collectionID, itemID} },
		})
		return append(steps, deleteItemRecordStep(itemID)), nil
	})
	if err != nil {
		return err
	}
	e.unindexItems(ctx, []string{itemID})
	return nil
}

// AddComment appends a comment to the item and reindexes it with the new body
func (e *Engine) AddComment(ctx context.Context, itemID, author, body string) (*models.Comment, error) {
	const op = "addComment"
	comment := &models.Comment{ItemID: itemID, Author: author, Body: body}
	err := e.execute(ctx, op, func(ctx context.Context, s store.Store) ([]Step, error) {
		if _, err := s.GetItem(ctx, itemID); err != nil {
			return nil, err
		}
		comment.CommentID = 0
		return []Step{{
			Name: "add comment",
			Do: func(ctx context.Context, s store.Store) error {
				return s.AddComment(ctx, comment)
			},
		}}, nil
	})
	if err != nil {
		return nil, err
	}
	e.reindexItem(ctx, itemID)
	return comment, nil
}
