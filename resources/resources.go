package resources

import "embed"

//go:embed i18n/*.yml migrations/*.sql
var FS embed.FS
