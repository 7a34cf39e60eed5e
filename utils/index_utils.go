package utils

import (
	"crypto/sha256"
	"fmt"
	"strings"
)

// maxIdentifierLength is the lowest identifier length limit across the
// supported dialects (PostgreSQL truncates at 63 bytes)
const maxIdentifierLength = 63

// GenerateIndexName generates a deterministic index name for the given table
// and columns. If an existing name is provided, it is returned unchanged.
// The same logical operation always produces the same name, so repeated
// application of a migration is idempotent.
func GenerateIndexName(tableName string, columns []string, unique bool, existingName string) string {
	if existingName != "" {
		return existingName
	}

	prefix := "idx"
	if unique {
		prefix = "uniq"
	}

	return truncateIdentifier(fmt.Sprintf("%s_%s_%s", prefix, tableName, strings.Join(columns, "_")))
}

// GenerateUniqueConstraintName generates a deterministic name for a plain
// (non index-backed) unique constraint
func GenerateUniqueConstraintName(tableName string, columns []string) string {
	return truncateIdentifier(fmt.Sprintf("uc_%s_%s", tableName, strings.Join(columns, "_")))
}

// GenerateForeignKeyName generates a deterministic name for a foreign key constraint
func GenerateForeignKeyName(tableName, column, refTable string) string {
	return truncateIdentifier(fmt.Sprintf("fk_%s_%s_%s", tableName, column, refTable))
}

// truncateIdentifier keeps names within the dialect identifier limit while
// staying deterministic: over-long names are cut and suffixed with a short
// hash of the full name
func truncateIdentifier(name string) string {
	if len(name) <= maxIdentifierLength {
		return name
	}
	sum := sha256.Sum256([]byte(name))
	suffix := fmt.Sprintf("_%x", sum[:4])
	return name[:maxIdentifierLength-len(suffix)] + suffix
}
