package cmd

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/database"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const backupFormatVersion = "1.0"

// backupCmd 数据库备份命令
var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Backup database to a tar.gz archive",
	Long: `Backup users, projects, assignments, images and annotations to a tar.gz archive.
Each table is written as a JSONL file next to a metadata.json. Image files are not included.

Example:
  # Backup all tables
  yolo-annotator backup --output ./backups/backup.tar.gz

  # Backup specific tables only
  yolo-annotator backup --tables users,projects`,
	Run: func(cmd *cobra.Command, args []string) {
		outputFile, _ := cmd.Flags().GetString("output")
		tables, _ := cmd.Flags().GetStringSlice("tables")

		if err := runBackup(outputFile, tables); err != nil {
			log.Fatalf("Backup failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.Flags().StringP("output", "o", "", "Output tar.gz file path (default: ./backups/backup_<timestamp>.tar.gz)")
	backupCmd.Flags().StringSliceP("tables", "t", []string{}, "Specific tables to backup (default: all)")
}

// runBackup 执行备份
func runBackup(outputFile string, tables []string) error {
	cfg := config.Get()

	provider, err := database.NewGormProvider(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() { _ = provider.Close() }()

	if outputFile == "" {
		timestamp := time.Now().Format("20060102_150405")
		outputFile = filepath.Join("./backups", fmt.Sprintf("backup_%s.tar.gz", timestamp))
	}
	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	log.Infof("Starting backup to: %s", outputFile)
	metadata, err := writeBackup(provider.DB(), provider.Name(), file, tables)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(outputFile)
		return err
	}

	log.Infof("Backup completed successfully: %s", outputFile)
	printBackupSummary(metadata, outputFile)
	return nil
}

// writeBackup 把选中的表写成 tar.gz 流
func writeBackup(db *gorm.DB, dbName string, w io.Writer, tables []string) (*backupMetadata, error) {
	selected, err := selectTables(tables)
	if err != nil {
		return nil, err
	}

	metadata := &backupMetadata{
		Version:     backupFormatVersion,
		AppVersion:  config.Version,
		Timestamp:   time.Now(),
		Database:    dbName,
		RecordCount: make(map[string]int64),
	}

	gzWriter := gzip.NewWriter(w)
	tarWriter := tar.NewWriter(gzWriter)

	for _, t := range selected {
		var buf bytes.Buffer
		encoder := json.NewEncoder(&buf)
		count, err := t.dump(db, func(record any) error { return encoder.Encode(record) })
		if err != nil {
			return nil, fmt.Errorf("failed to backup table %s: %w", t.name, err)
		}
		if err := writeTarEntry(tarWriter, t.name+".jsonl", buf.Bytes(), metadata.Timestamp); err != nil {
			return nil, err
		}
		metadata.Tables = append(metadata.Tables, t.name)
		metadata.RecordCount[t.name] = count
		log.Infof("Backed up %d records from table: %s", count, t.name)
	}

	meta, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeTarEntry(tarWriter, "metadata.json", meta, metadata.Timestamp); err != nil {
		return nil, err
	}

	if err := tarWriter.Close(); err != nil {
		return nil, err
	}
	if err := gzWriter.Close(); err != nil {
		return nil, err
	}
	return metadata, nil
}

func writeTarEntry(tw *tar.Writer, name string, data []byte, modTime time.Time) error {
	header := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Mode:     0644,
		Size:     int64(len(data)),
		ModTime:  modTime,
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// printBackupSummary 打印备份摘要
func printBackupSummary(metadata *backupMetadata, outputFile string) {
	fmt.Println("\nBackup Summary:")
	fmt.Println("===============")
	fmt.Printf("Version:    %s\n", metadata.Version)
	fmt.Printf("Timestamp:  %s\n", metadata.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("Database:   %s\n", metadata.Database)
	fmt.Printf("Output:     %s\n", outputFile)
	fmt.Println("\nTables backed up:")
	var total int64
	for _, table := range metadata.Tables {
		count := metadata.RecordCount[table]
		total += count
		fmt.Printf("  - %s: %d records\n", table, count)
	}
	fmt.Printf("\nTotal records: %d\n", total)
}
