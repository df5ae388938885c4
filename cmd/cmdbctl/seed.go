package main

import (
	"context"
	"fmt"
	"os"

	"github.com/localnerve/jam-build-cmdb/internal/database"
	"github.com/localnerve/jam-build-cmdb/internal/store"
	"github.com/localnerve/jam-build-cmdb/internal/types"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// SeedFile lists the shared topics and tags to create
type SeedFile struct {
	Topics []string `yaml:"topics"`
	Tags   []string `yaml:"tags"`
}

// SeedResult counts what a seed created and skipped
type SeedResult struct {
	TopicsCreated int
	TagsCreated   int
	Skipped       int
}

// SeedOptions holds flags for the seed command
type SeedOptions struct {
	*RootOptions
	File string
}

// NewSeedCommand creates the seed command
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed -f <seed.yaml>",
		Short: "Create topics and tags from a YAML file",
		Long: `Create the topics and tags listed in a YAML file. Entries that already
exist are skipped.

Example seed.yaml:
  topics: [Books, Music]
  tags: [fiction, jazz]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := loadSeedFile(opts.File)
			if err != nil {
				return err
			}

			_, db, err := connect()
			if err != nil {
				return err
			}
			defer database.Close(db)

			result, err := applySeed(cmd.Context(), store.NewGormStore(db), seed)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %d topics and %d tags, skipped %d existing\n",
				result.TopicsCreated, result.TagsCreated, result.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "path to the seed YAML file (required)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func loadSeedFile(path string) (*SeedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	seed := &SeedFile{}
	if err := yaml.Unmarshal(data, seed); err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return seed, nil
}

// applySeed creates every topic and tag, skipping those that exist
func applySeed(ctx context.Context, s store.Catalog, seed *SeedFile) (SeedResult, error) {
	var result SeedResult
	for _, title := range seed.Topics {
		if _, err := s.CreateTopic(ctx, title); err != nil {
			if !types.Is(err, types.KindInvalidState) {
				return result, err
			}
			result.Skipped++
			continue
		}
		result.TopicsCreated++
	}
	for _, title := range seed.Tags {
		if _, err := s.CreateTag(ctx, title); err != nil {
			if !types.Is(err, types.KindInvalidState) {
				return result, err
			}
			result.Skipped++
			continue
		}
		result.TagsCreated++
	}
	return result, nil
}
