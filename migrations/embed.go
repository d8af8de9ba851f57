// Package migrations схема базы в формате goose, встроенная в бинарник
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
