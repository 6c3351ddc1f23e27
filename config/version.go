package config

var (
	Version    string = "1.0.0"
	CommitHash string = "n/a"
)

// IsDevelopment 判断是否为开发构建
// 发布构建会通过 -ldflags 注入 CommitHash
func IsDevelopment() bool {
	return CommitHash == "n/a"
}
