package cmd

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/anoixa/yolo-annotator/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	conflictSkip      = "skip"
	conflictOverwrite = "overwrite"
	conflictError     = "error"
)

// dataTable 一张可导出/导入的表，记录以单行 JSON 表示
type dataTable struct {
	name string
	// dump 按主键顺序逐条输出记录
	dump func(db *gorm.DB, emit func(record any) error) (int64, error)
	// load 写入一条 JSON 记录，返回是否实际写入
	load func(db *gorm.DB, line []byte, onConflict string) (bool, error)
	// truncate 清空整张表
	truncate func(db *gorm.DB) error
}

// userRecord 备份需要保留密码哈希，User 的 JSON 输出会隐藏它
type userRecord struct {
	models.User
	PasswordHash string `json:"password_hash"`
}

type assignmentRecord struct {
	ProjectID string `json:"project_id"`
	UserID    string `json:"user_id"`
}

// dataTables 按外键依赖顺序排列，还原时顺序执行，清空时逆序执行
var dataTables = []dataTable{
	newDataTable("users", "id",
		func(u *models.User) userRecord { return userRecord{User: *u, PasswordHash: u.PasswordHash} },
		func(r *userRecord) *models.User {
			u := r.User
			u.PasswordHash = r.PasswordHash
			return &u
		}),
	plainDataTable[models.Project]("projects", "id"),
	newDataTable("project_assignments", "project_id, user_id",
		func(a *models.ProjectAssignment) assignmentRecord {
			return assignmentRecord{ProjectID: a.ProjectID, UserID: a.UserID}
		},
		func(r *assignmentRecord) *models.ProjectAssignment {
			return &models.ProjectAssignment{ProjectID: r.ProjectID, UserID: r.UserID}
		}),
	plainDataTable[models.Image]("images", "id"),
	plainDataTable[models.Annotation]("annotations", "id"),
}

// tableNames 返回全部表名
func tableNames() []string {
	names := make([]string, 0, len(dataTables))
	for _, t := range dataTables {
		names = append(names, t.name)
	}
	return names
}

// selectTables 按依赖顺序返回选中的表，names 为空表示全部
func selectTables(names []string) ([]dataTable, error) {
	if len(names) == 0 {
		return dataTables, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	for n := range wanted {
		if !slices.Contains(tableNames(), n) {
			return nil, fmt.Errorf("unknown table: %s", n)
		}
	}

	var out []dataTable
	for _, t := range dataTables {
		if wanted[t.name] {
			out = append(out, t)
		}
	}
	return out, nil
}

func validConflictStrategy(s string) bool {
	return s == conflictSkip || s == conflictOverwrite || s == conflictError
}

// conflictClause skip 对应 DO NOTHING，overwrite 对应整行更新，error 不加子句
func conflictClause(onConflict string) []clause.Expression {
	switch onConflict {
	case conflictSkip:
		return []clause.Expression{clause.OnConflict{DoNothing: true}}
	case conflictOverwrite:
		return []clause.Expression{clause.OnConflict{UpdateAll: true}}
	}
	return nil
}

func plainDataTable[M any](name, order string) dataTable {
	return newDataTable(name, order,
		func(m *M) M { return *m },
		func(r *M) *M { return r })
}

func newDataTable[M any, R any](name, order string, toRecord func(*M) R, fromRecord func(*R) *M) dataTable {
	return dataTable{
		name: name,
		dump: func(db *gorm.DB, emit func(record any) error) (int64, error) {
			var rows []*M
			if err := db.Order(order).Find(&rows).Error; err != nil {
				return 0, err
			}
			for _, m := range rows {
				if err := emit(toRecord(m)); err != nil {
					return 0, err
				}
			}
			return int64(len(rows)), nil
		},
		load: func(db *gorm.DB, line []byte, onConflict string) (bool, error) {
			var r R
			if err := json.Unmarshal(line, &r); err != nil {
				return false, fmt.Errorf("invalid %s record: %w", name, err)
			}
			result := db.Omit(clause.Associations).Clauses(conflictClause(onConflict)...).Create(fromRecord(&r))
			if result.Error != nil {
				return false, result.Error
			}
			return result.RowsAffected > 0, nil
		},
		truncate: func(db *gorm.DB) error {
			return db.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(new(M)).Error
		},
	}
}

// backupMetadata 备份归档中的 metadata.json
type backupMetadata struct {
	Version     string           `json:"version"`
	AppVersion  string           `json:"app_version"`
	Timestamp   time.Time        `json:"timestamp"`
	Database    string           `json:"database"`
	Tables      []string         `json:"tables"`
	RecordCount map[string]int64 `json:"record_count"`
}
