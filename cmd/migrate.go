package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/database"
	"github.com/anoixa/yolo-annotator/database/models"
	"github.com/anoixa/yolo-annotator/internal/app"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// migrateCmd 数据库迁移命令
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate database schema and seed the default admin",
	Run: func(cmd *cobra.Command, args []string) {
		container, err := app.NewContainer(config.Get())
		if err != nil {
			log.Fatalf("Failed to initialize container: %v", err)
		}
		defer func() { _ = container.Close() }()

		if err := container.Migrate(); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Info("Database migrated successfully")
	},
}

// migrateCopyCmd 跨数据库复制数据
var migrateCopyCmd = &cobra.Command{
	Use:   "copy",
	Short: "Copy data from one database to another",
	Long: `Copy all records from a source database to a target database (e.g., SQLite to PostgreSQL).

Examples:
  # Copy from SQLite to PostgreSQL
  yolo-annotator migrate copy --from-sqlite ./data/annotator.db --to-postgres "host=localhost user=postgres password=secret dbname=yolo_annotator port=5432"

  # Replace rows that already exist in the target
  yolo-annotator migrate copy --from-sqlite ./data/annotator.db --to-postgres "..." --on-conflict=overwrite`,
	Run: func(cmd *cobra.Command, args []string) {
		fromType, _ := cmd.Flags().GetString("from-type")
		toType, _ := cmd.Flags().GetString("to-type")
		fromDSN, _ := cmd.Flags().GetString("from-dsn")
		toDSN, _ := cmd.Flags().GetString("to-dsn")
		fromSQLite, _ := cmd.Flags().GetString("from-sqlite")
		toPostgres, _ := cmd.Flags().GetString("to-postgres")
		skipConfirm, _ := cmd.Flags().GetBool("yes")
		onConflict, _ := cmd.Flags().GetString("on-conflict")

		if fromSQLite != "" {
			fromType, fromDSN = "sqlite", fromSQLite
		}
		if toPostgres != "" {
			toType, toDSN = "postgres", toPostgres
		}

		if err := runCopy(fromType, fromDSN, toType, toDSN, onConflict, skipConfirm); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateCopyCmd)

	migrateCopyCmd.Flags().String("from-type", "", "Source database type (sqlite, postgres)")
	migrateCopyCmd.Flags().String("to-type", "", "Target database type (sqlite, postgres)")
	migrateCopyCmd.Flags().String("from-dsn", "", "Source database DSN/connection string")
	migrateCopyCmd.Flags().String("to-dsn", "", "Target database DSN/connection string")
	migrateCopyCmd.Flags().String("from-sqlite", "", "Source SQLite file path (shortcut)")
	migrateCopyCmd.Flags().String("to-postgres", "", "Target PostgreSQL connection string (shortcut)")
	migrateCopyCmd.Flags().Bool("yes", false, "Skip confirmation prompt")
	migrateCopyCmd.Flags().String("on-conflict", conflictSkip, "Conflict resolution strategy: skip (default), overwrite, error")
}

// copyStats 复制统计
type copyStats struct {
	copied  map[string]int64
	skipped map[string]int64
}

func runCopy(fromType, fromDSN, toType, toDSN, onConflict string, skipConfirm bool) error {
	if !validConflictStrategy(onConflict) {
		return fmt.Errorf("invalid on-conflict strategy: %s (must be skip, overwrite, or error)", onConflict)
	}
	if fromType == "" || toType == "" {
		return fmt.Errorf("both --from-type and --to-type are required")
	}
	if fromDSN == "" || toDSN == "" {
		return fmt.Errorf("both --from-dsn and --to-dsn (or shortcuts) are required")
	}
	if fromType == toType && fromDSN == toDSN {
		return fmt.Errorf("source and target databases are the same")
	}

	log.Infof("Migrating from %s to %s", fromType, toType)
	log.Infof("Source: %s", maskDSN(fromDSN))
	log.Infof("Target: %s", maskDSN(toDSN))
	log.Infof("Conflict strategy: %s", onConflict)

	sourceDB, err := openDatabase(fromType, fromDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	defer closeDB(sourceDB)

	targetDB, err := openDatabase(toType, toDSN)
	if err != nil {
		return fmt.Errorf("failed to connect to target database: %w", err)
	}
	defer closeDB(targetDB)

	if !skipConfirm {
		fmt.Println("\nWarning: This will copy all data from source to target database.")
		fmt.Printf("Conflict resolution strategy: %s\n", onConflict)
		if !confirm() {
			fmt.Println("Migration cancelled.")
			return nil
		}
	}

	log.Info("Migrating database schema...")
	if err := targetDB.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	stats, err := copyTables(sourceDB, targetDB, onConflict)
	if err != nil {
		return err
	}
	printCopyStats(stats)
	log.Info("Migration completed successfully!")
	return nil
}

// copyTables 逐表复制，目标库的写入在一个事务内完成
func copyTables(sourceDB, targetDB *gorm.DB, onConflict string) (*copyStats, error) {
	stats := &copyStats{copied: make(map[string]int64), skipped: make(map[string]int64)}

	err := targetDB.Transaction(func(tx *gorm.DB) error {
		for _, t := range dataTables {
			log.Infof("Migrating %s...", t.name)
			_, err := t.dump(sourceDB, func(record any) error {
				line, err := json.Marshal(record)
				if err != nil {
					return err
				}
				written, err := t.load(tx, line, onConflict)
				if err != nil {
					return fmt.Errorf("failed to migrate %s record: %w", t.name, err)
				}
				if written {
					stats.copied[t.name]++
				} else {
					stats.skipped[t.name]++
				}
				return nil
			})
			if err != nil {
				return err
			}
			log.Infof("Migrated %d %s (skipped: %d)", stats.copied[t.name], t.name, stats.skipped[t.name])
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// openDatabase 打开数据库连接
func openDatabase(dbType, dsn string) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	switch dbType {
	case "sqlite", "sqlite3":
		db, err = database.OpenSQLite(dsn)
	case "postgres", "postgresql":
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
	default:
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// maskDSN 隐藏敏感信息
func maskDSN(dsn string) string {
	if len(dsn) > 50 {
		return dsn[:50] + "..."
	}
	return dsn
}

// printCopyStats 打印迁移统计
func printCopyStats(stats *copyStats) {
	fmt.Println()
	fmt.Println("========================================")
	fmt.Println("       Migration Statistics")
	fmt.Println("========================================")
	for _, name := range tableNames() {
		fmt.Printf("%-20s %d copied, %d skipped\n", name+":", stats.copied[name], stats.skipped[name])
	}
	fmt.Println("========================================")
}
