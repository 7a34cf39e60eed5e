package types

// DriverType represents a database driver type
// It's defined as a string to allow extensibility for new database drivers
type DriverType string

// Well-known driver types
const (
	DriverSQLite     DriverType = "sqlite"
	DriverMySQL      DriverType = "mysql"
	DriverPostgreSQL DriverType = "postgresql"
)

// String returns the string representation of the driver type
func (d DriverType) String() string {
	return string(d)
}
