package testenv_test

import (
	"context"
	"testing"

	"github.com/localnerve/jam-build-cmdb/internal/cascade"
	"github.com/localnerve/jam-build-cmdb/internal/database"
	"github.com/localnerve/jam-build-cmdb/internal/models"
	"github.com/localnerve/jam-build-cmdb/internal/services"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/store/storetest"
	"github.com/localnerve/jam-build-cmdb/internal/testenv"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

// TestCatalogOnServerDatabase runs the catalog against a containerized
// MariaDB (or DB_TYPE) in both cascade modes
func TestCatalogOnServerDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	opts := testenv.OptionsFromEnv()
	opts.WithAuthorizer = false
	opts.WithServer = false

	env, err := testenv.Start(ctx, opts, t.Logf)
	require.NoError(t, err)
	t.Cleanup(func() { _ = env.Terminate(context.Background()) })

	cfg := env.Config()
	db, err := database.Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	reader, err := database.ConnectReader(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(reader) })
	require.NoError(t, database.AutoMigrate(db))

	for _, mode := range []cascade.Mode{cascade.ModeTransaction, cascade.ModeSaga} {
		t.Run(mode.String(), func(t *testing.T) {
			s := store.NewGormStore(db)
			engine := cascade.New(s, mode, cascade.Collaborators{})
			svc := services.New(engine, reader, nil)

			alice := storetest.SeedUser(t, s, "alice-"+mode.String(), models.RoleUser)
			bob := storetest.SeedUser(t, s, "bob-"+mode.String(), models.RoleUser)
			admin := storetest.SeedUser(t, s, "root-"+mode.String(), models.RoleAdmin)

			c, err := svc.CreateCollection(ctx, alice.ID, alice.ID, cascade.CollectionSpec{
				Name: "Books", Description: "d", Topic: "Reading",
				Schema: models.FieldSchema{TextFields: []string{"author"}},
			})
			require.NoError(t, err)

			var itemIDs []string
			for _, name := range []string{"Earthsea", "Dune", "Solaris"} {
				item, err := svc.CreateItem(ctx, alice.ID, c.ID, cascade.ItemSpec{
					Name: name, Tags: []string{"sf"}, ItemData: map[string]interface{}{"author": "x"},
				})
				require.NoError(t, err)
				itemIDs = append(itemIDs, item.ID)
			}
			require.NoError(t, svc.Like(ctx, bob.ID, itemIDs[0]))
			assert.True(t, types.Is(svc.Like(ctx, bob.ID, itemIDs[0]), types.KindAlreadyLiked))

			largest, err := svc.LargestCollections(ctx)
			require.NoError(t, err)
			require.NotEmpty(t, largest)

			require.NoError(t, svc.DeleteItem(ctx, alice.ID, itemIDs[0]))
			liked, err := s.LikedItems(ctx, bob.ID)
			require.NoError(t, err)
			assert.Empty(t, liked)

			got, err := s.GetCollection(ctx, c.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(2), got.NumberOfItems)

			require.NoError(t, svc.DeleteUsers(ctx, admin.ID, []string{alice.ID}))
			_, err = s.GetItem(ctx, itemIDs[1])
			assert.True(t, types.Is(err, types.KindNotFound))

			report, err := engine.Repair(ctx)
			require.NoError(t, err)
			assert.Empty(t, report.CountsFixed)
		})
	}
}
