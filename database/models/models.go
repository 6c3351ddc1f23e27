package models

// All 返回需要自动迁移的模型，关联表由 many2many 自动创建
func All() []interface{} {
	return []interface{}{
		&User{},
		&Project{},
		&Image{},
		&Annotation{},
	}
}
