package migration

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rediwo/redi-migrate/logger"
)

// MigrationMetadata is the sidecar record written next to a migration's SQL
type MigrationMetadata struct {
	Version   string    `json:"version"`
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	Driver    string    `json:"driver,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MigrationFile is one on-disk migration: forward SQL, reverse SQL, metadata
type MigrationFile struct {
	Version  string
	Name     string
	UpSQL    string
	DownSQL  string
	Metadata MigrationMetadata
}

// FileManager handles migration files on disk. Each migration lives in its
// own directory named <version>_<name> containing up.sql, down.sql and
// metadata.json.
type FileManager struct {
	baseDir string
}

// NewFileManager creates a new file manager
func NewFileManager(baseDir string) *FileManager {
	return &FileManager{baseDir: baseDir}
}

// EnsureDirectory ensures the migrations directory exists
func (f *FileManager) EnsureDirectory() error {
	return os.MkdirAll(f.baseDir, 0755)
}

// WriteMigration writes a migration to disk
func (f *FileManager) WriteMigration(migration *MigrationFile) error {
	if err := f.EnsureDirectory(); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}

	dirName := fmt.Sprintf("%s_%s", migration.Version, sanitizeName(migration.Name))
	migrationDir := filepath.Join(f.baseDir, dirName)
	if err := os.MkdirAll(migrationDir, 0755); err != nil {
		return fmt.Errorf("failed to create migration directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(migrationDir, "up.sql"), []byte(migration.UpSQL), 0644); err != nil {
		return fmt.Errorf("failed to write up.sql: %w", err)
	}
	if err := os.WriteFile(filepath.Join(migrationDir, "down.sql"), []byte(migration.DownSQL), 0644); err != nil {
		return fmt.Errorf("failed to write down.sql: %w", err)
	}

	metadataJSON, err := json.MarshalIndent(migration.Metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(migrationDir, "metadata.json"), metadataJSON, 0644); err != nil {
		return fmt.Errorf("failed to write metadata.json: %w", err)
	}

	return nil
}

// ReadMigration reads a migration from disk by version
func (f *FileManager) ReadMigration(version string) (*MigrationFile, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrationDir string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasPrefix(entry.Name(), version+"_") {
			migrationDir = filepath.Join(f.baseDir, entry.Name())
			break
		}
	}
	if migrationDir == "" {
		return nil, fmt.Errorf("migration %s not found", version)
	}

	upSQL, err := os.ReadFile(filepath.Join(migrationDir, "up.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to read up.sql: %w", err)
	}
	downSQL, err := os.ReadFile(filepath.Join(migrationDir, "down.sql"))
	if err != nil {
		return nil, fmt.Errorf("failed to read down.sql: %w", err)
	}
	metadataJSON, err := os.ReadFile(filepath.Join(migrationDir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata.json: %w", err)
	}

	var metadata MigrationMetadata
	if err := json.Unmarshal(metadataJSON, &metadata); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	parts := strings.SplitN(filepath.Base(migrationDir), "_", 2)
	name := ""
	if len(parts) > 1 {
		name = parts[1]
	}

	return &MigrationFile{
		Version:  version,
		Name:     name,
		UpSQL:    string(upSQL),
		DownSQL:  string(downSQL),
		Metadata: metadata,
	}, nil
}

// ListMigrations returns all migrations sorted by version
func (f *FileManager) ListMigrations() ([]*MigrationFile, error) {
	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []*MigrationFile{}, nil
		}
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []*MigrationFile
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		parts := strings.SplitN(entry.Name(), "_", 2)
		if len(parts) == 0 || parts[0] == "" {
			continue
		}

		migration, err := f.ReadMigration(parts[0])
		if err != nil {
			logger.Warn("failed to read migration %s: %v", parts[0], err)
			continue
		}
		migrations = append(migrations, migration)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

// GetPendingMigrations returns migrations that haven't been applied yet
func (f *FileManager) GetPendingMigrations(appliedVersions map[string]bool) ([]*MigrationFile, error) {
	allMigrations, err := f.ListMigrations()
	if err != nil {
		return nil, err
	}

	var pending []*MigrationFile
	for _, migration := range allMigrations {
		if !appliedVersions[migration.Version] {
			pending = append(pending, migration)
		}
	}
	return pending, nil
}

// ComputeChecksum fingerprints migration content
func ComputeChecksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// sanitizeName removes special characters from migration name
func sanitizeName(name string) string {
	replacer := strings.NewReplacer(
		" ", "_",
		"-", "_",
		".", "_",
		"/", "_",
		"\\", "_",
	)
	sanitized := replacer.Replace(name)

	var result strings.Builder
	for _, r := range sanitized {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			result.WriteRune(r)
		}
	}
	return result.String()
}
