package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/database/models"
	imagesrepo "github.com/anoixa/yolo-annotator/database/repo/images"
	"github.com/anoixa/yolo-annotator/internal/app"
	"github.com/anoixa/yolo-annotator/storage"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	cleanBatchSize = 200
	imagesPrefix   = "images/"
)

// cleanCmd 清理数据库孤儿记录和存储孤儿文件
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean orphan image records and storage files",
	Long: `Clean orphan image records and storage files.
This includes:
  - Delete image records (and their annotations) whose file is missing from storage
  - Delete storage files under images/ that no image record points to`,
	Run: func(cmd *cobra.Command, args []string) {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		dbOnly, _ := cmd.Flags().GetBool("db-only")
		storageOnly, _ := cmd.Flags().GetBool("storage-only")

		if err := runClean(cleanOptions{DryRun: dryRun, DBOnly: dbOnly, StorageOnly: storageOnly}); err != nil {
			log.Fatalf("Clean failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().Bool("dry-run", false, "Only show what would be cleaned, don't actually delete")
	cleanCmd.Flags().Bool("db-only", false, "Only clean orphan database records")
	cleanCmd.Flags().Bool("storage-only", false, "Only clean orphan storage files")
}

type cleanOptions struct {
	DryRun      bool
	DBOnly      bool
	StorageOnly bool
}

// cleanStats 清理统计信息
type cleanStats struct {
	orphanDBRecords     int // 数据库孤儿记录数
	orphanStorageFiles  int // 存储孤儿文件数
	deletedDBRecords    int // 删除的数据库记录数
	deletedStorageFiles int // 删除的存储文件数
	errors              []string
}

// runClean 执行清理
func runClean(opts cleanOptions) error {
	container, err := app.NewContainer(config.Get())
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer func() { _ = container.Close() }()

	stats := cleanOrphans(context.Background(), container.ImagesRepo, container.GetStorage(), opts)
	printCleanStats(stats, opts.DryRun)

	if len(stats.errors) > 0 {
		return fmt.Errorf("encountered %d errors during cleanup", len(stats.errors))
	}
	return nil
}

func cleanOrphans(ctx context.Context, repo *imagesrepo.Repository, store storage.Provider, opts cleanOptions) *cleanStats {
	stats := &cleanStats{}
	repo = repo.WithContext(ctx)

	if !opts.StorageOnly {
		if err := cleanOrphanDBRecords(ctx, repo, store, stats, opts.DryRun); err != nil {
			stats.errors = append(stats.errors, fmt.Sprintf("clean orphan DB records failed: %v", err))
		}
	}

	if !opts.DBOnly {
		if err := cleanOrphanStorageFiles(ctx, repo, store, stats, opts.DryRun); err != nil {
			stats.errors = append(stats.errors, fmt.Sprintf("clean orphan storage files failed: %v", err))
		}
	}
	return stats
}

// cleanOrphanDBRecords 清理存储中已不存在对应文件的图片记录
func cleanOrphanDBRecords(ctx context.Context, repo *imagesrepo.Repository, store storage.Provider, stats *cleanStats, dryRun bool) error {
	log.Info("Checking for orphan database records...")

	var orphanIDs []string
	err := repo.ForEachBatch(cleanBatchSize, func(batch []*models.Image) error {
		for _, img := range batch {
			exists, err := store.Exists(ctx, img.FilePath)
			if err != nil {
				log.Warnf("Failed to check existence of %s: %v", img.FilePath, err)
				continue
			}
			if exists {
				continue
			}

			stats.orphanDBRecords++
			orphanIDs = append(orphanIDs, img.ID)
			if dryRun {
				log.Infof("[DRY-RUN] Would delete orphan DB record: ID=%s, Path=%s", img.ID, img.FilePath)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan images: %w", err)
	}

	if dryRun || len(orphanIDs) == 0 {
		return nil
	}

	deleted, err := repo.DeleteImages(orphanIDs...)
	if err != nil {
		return err
	}
	stats.deletedDBRecords = int(deleted)
	log.Infof("Deleted %d orphan database records", deleted)
	return nil
}

// cleanOrphanStorageFiles 清理没有图片记录引用的存储文件
func cleanOrphanStorageFiles(ctx context.Context, repo *imagesrepo.Repository, store storage.Provider, stats *cleanStats, dryRun bool) error {
	log.Info("Checking for orphan storage files...")

	lister, ok := store.(storage.Lister)
	if !ok {
		log.Warnf("Storage type '%s' does not support orphan file detection", store.Name())
		return nil
	}

	known := make(map[string]bool)
	err := repo.ForEachBatch(cleanBatchSize, func(batch []*models.Image) error {
		for _, img := range batch {
			known[img.FilePath] = true
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to fetch image paths: %w", err)
	}

	projectIDs, err := repo.ProjectIDs()
	if err != nil {
		return fmt.Errorf("failed to fetch projects: %w", err)
	}
	projects := make(map[string]bool, len(projectIDs))
	for _, id := range projectIDs {
		projects[id] = true
	}

	var orphans []string
	err = lister.List(ctx, imagesPrefix, func(identifier string) error {
		if known[identifier] {
			return nil
		}
		stats.orphanStorageFiles++
		orphans = append(orphans, identifier)

		reason := "no image record"
		if projectID := projectOf(identifier); projectID != "" && !projects[projectID] {
			reason = "project " + projectID + " no longer exists"
		}
		if dryRun {
			log.Infof("[DRY-RUN] Would delete orphan file: %s (%s)", identifier, reason)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to list storage: %w", err)
	}

	if dryRun || len(orphans) == 0 {
		return nil
	}

	failed := storage.RemoveAll(ctx, store, orphans)
	stats.deletedStorageFiles = len(orphans) - len(failed)
	for _, id := range failed {
		stats.errors = append(stats.errors, fmt.Sprintf("failed to delete orphan file %s", id))
	}
	log.Infof("Deleted %d orphan storage files", stats.deletedStorageFiles)
	return nil
}

// projectOf 从 images/<project_id>/<file> 中取出项目 ID
func projectOf(identifier string) string {
	rest := strings.TrimPrefix(identifier, imagesPrefix)
	projectID, _, ok := strings.Cut(rest, "/")
	if !ok {
		return ""
	}
	return projectID
}

// printCleanStats 打印清理统计
func printCleanStats(stats *cleanStats, dryRun bool) {
	fmt.Println()
	fmt.Println("========================================")
	if dryRun {
		fmt.Println("           [DRY RUN MODE]")
	}
	fmt.Println("         Clean Statistics")
	fmt.Println("========================================")
	fmt.Printf("Orphan DB records found:    %d\n", stats.orphanDBRecords)
	fmt.Printf("Orphan storage files found: %d\n", stats.orphanStorageFiles)
	fmt.Printf("DB records deleted:         %d\n", stats.deletedDBRecords)
	fmt.Printf("Storage files deleted:      %d\n", stats.deletedStorageFiles)
	fmt.Println("========================================")

	if len(stats.errors) > 0 {
		fmt.Println("\nErrors encountered:")
		for _, err := range stats.errors {
			fmt.Printf("  - %s\n", err)
		}
	}
}
