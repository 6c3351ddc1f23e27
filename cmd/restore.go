package cmd

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/database"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// 单个归档条目的读取上限
const maxArchiveEntrySize = 1 << 30

// restoreCmd 数据库还原命令
var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Restore database from backup archive",
	Long: `Restore database from tar.gz backup archive created by backup command.

Example:
  # Restore from backup file
  yolo-annotator restore --input ./backups/backup_20260214_222320.tar.gz

  # Restore with dry-run (preview only)
  yolo-annotator restore --input ./backup.tar.gz --dry-run

  # Restore specific tables only
  yolo-annotator restore --input ./backup.tar.gz --tables users,projects

  # Clear existing data before restore
  yolo-annotator restore --input ./backup.tar.gz --truncate`,
	Run: func(cmd *cobra.Command, args []string) {
		inputFile, _ := cmd.Flags().GetString("input")
		tables, _ := cmd.Flags().GetStringSlice("tables")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		truncate, _ := cmd.Flags().GetBool("truncate")
		skipConfirm, _ := cmd.Flags().GetBool("yes")
		onConflict, _ := cmd.Flags().GetString("on-conflict")

		opts := restoreOptions{
			Tables:     tables,
			DryRun:     dryRun,
			Truncate:   truncate,
			OnConflict: onConflict,
		}
		if err := runRestore(inputFile, opts, skipConfirm); err != nil {
			log.Fatalf("Restore failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().StringP("input", "i", "", "Input tar.gz backup file path (required)")
	restoreCmd.Flags().StringSliceP("tables", "t", []string{}, "Specific tables to restore (default: all in archive)")
	restoreCmd.Flags().Bool("dry-run", false, "Preview restore without actually writing to database")
	restoreCmd.Flags().Bool("truncate", false, "Clear existing data before restore")
	restoreCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	restoreCmd.Flags().String("on-conflict", conflictSkip, "Conflict resolution strategy: skip (default), overwrite, error")

	_ = restoreCmd.MarkFlagRequired("input")
}

type restoreOptions struct {
	Tables     []string
	DryRun     bool
	Truncate   bool
	OnConflict string
}

// restoreStats 还原统计
type restoreStats struct {
	Restored map[string]int64
	Skipped  map[string]int64
}

func newRestoreStats() *restoreStats {
	return &restoreStats{
		Restored: make(map[string]int64),
		Skipped:  make(map[string]int64),
	}
}

// backupArchive 解压到内存的备份内容
type backupArchive struct {
	Metadata *backupMetadata
	Files    map[string][]byte
}

// runRestore 执行还原
func runRestore(inputFile string, opts restoreOptions, skipConfirm bool) error {
	file, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("backup file not found: %w", err)
	}
	defer func() { _ = file.Close() }()

	log.Infof("Extracting backup: %s", inputFile)
	archive, err := readBackup(file)
	if err != nil {
		return fmt.Errorf("failed to extract backup: %w", err)
	}

	log.Infof("Backup version: %s, Database: %s, Timestamp: %s",
		archive.Metadata.Version, archive.Metadata.Database, archive.Metadata.Timestamp.Format("2006-01-02 15:04:05"))

	// 确认还原
	if !opts.DryRun && !skipConfirm {
		fmt.Println("\nWarning: This will restore data from backup to the current database.")
		if opts.Truncate {
			fmt.Println("Existing data will be TRUNCATED.")
		}
		if !confirm() {
			fmt.Println("Restore cancelled.")
			return nil
		}
	}

	provider, err := database.NewGormProvider(config.Get())
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() { _ = provider.Close() }()

	if err := provider.AutoMigrate(); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	stats, err := restoreArchive(provider.DB(), archive, opts)
	if err != nil {
		return err
	}

	printRestoreSummary(stats, opts.DryRun)
	return nil
}

// readBackup 读取 tar.gz 备份，要求包含 metadata.json
func readBackup(r io.Reader) (*backupArchive, error) {
	gzReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer func() { _ = gzReader.Close() }()

	archive := &backupArchive{Files: make(map[string][]byte)}
	tarReader := tar.NewReader(gzReader)
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		data, err := io.ReadAll(io.LimitReader(tarReader, maxArchiveEntrySize+1))
		if err != nil {
			return nil, err
		}
		if len(data) > maxArchiveEntrySize {
			return nil, fmt.Errorf("archive entry %s is too large", header.Name)
		}
		archive.Files[header.Name] = data
	}

	meta, ok := archive.Files["metadata.json"]
	if !ok {
		return nil, errors.New("metadata.json not found in archive")
	}
	var metadata backupMetadata
	if err := json.Unmarshal(meta, &metadata); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	archive.Metadata = &metadata
	return archive, nil
}

// restoreArchive 在同一事务中按依赖顺序写入各表
func restoreArchive(db *gorm.DB, archive *backupArchive, opts restoreOptions) (*restoreStats, error) {
	if opts.OnConflict == "" {
		opts.OnConflict = conflictSkip
	}
	if !validConflictStrategy(opts.OnConflict) {
		return nil, fmt.Errorf("invalid on-conflict strategy: %s (must be skip, overwrite, or error)", opts.OnConflict)
	}

	names := opts.Tables
	if len(names) == 0 {
		names = archive.Metadata.Tables
	}
	tables, err := selectTables(names)
	if err != nil {
		return nil, err
	}

	stats := newRestoreStats()
	if opts.DryRun {
		for _, t := range tables {
			data, ok := archive.Files[t.name+".jsonl"]
			if !ok {
				continue
			}
			err := eachLine(data, func([]byte) error {
				stats.Restored[t.name]++
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
		return stats, nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if opts.Truncate {
			log.Info("Truncating existing data...")
			for _, t := range slices.Backward(tables) {
				if err := t.truncate(tx); err != nil {
					return fmt.Errorf("failed to truncate %s: %w", t.name, err)
				}
			}
		}

		for _, t := range tables {
			data, ok := archive.Files[t.name+".jsonl"]
			if !ok {
				log.Infof("Skipping %s: file not found in backup", t.name)
				continue
			}

			log.Infof("Restoring table: %s", t.name)
			err := eachLine(data, func(line []byte) error {
				written, err := t.load(tx, line, opts.OnConflict)
				if err != nil {
					return fmt.Errorf("failed to restore %s: %w", t.name, err)
				}
				if written {
					stats.Restored[t.name]++
				} else {
					stats.Skipped[t.name]++
				}
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// eachLine 遍历 JSONL 的非空行
func eachLine(data []byte, fn func(line []byte) error) error {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16<<20)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func confirm() bool {
	fmt.Print("Do you want to continue? [y/N]: ")
	var response string
	_, _ = fmt.Scanln(&response)
	return response == "y" || response == "Y"
}

// printRestoreSummary 打印还原摘要
func printRestoreSummary(stats *restoreStats, dryRun bool) {
	fmt.Println()
	if dryRun {
		fmt.Println("[DRY RUN] Records that would be restored:")
	} else {
		fmt.Println("Restore Summary:")
	}
	fmt.Println("================")
	for _, name := range tableNames() {
		restored, skipped := stats.Restored[name], stats.Skipped[name]
		if restored == 0 && skipped == 0 {
			continue
		}
		fmt.Printf("  - %s: %d restored, %d skipped\n", name, restored, skipped)
	}
}
