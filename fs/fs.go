package appfs

import "embed"

// FS holds the files shipped inside the binaries: SQL migrations, email templates and the common passwords list.
//
//go:embed migrations all:assets
var FS embed.FS

const (
	MigrationsDir       = "migrations"
	EmailTemplatesDir   = "assets/templates/email"
	CommonPasswordsFile = "assets/common-passwords.txt.gz"
)
