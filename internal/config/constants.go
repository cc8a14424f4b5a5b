package config

const (
	// DefaultDatabasePath is the default path for the local mirror database
	DefaultDatabasePath = "./readmirror.db"
)
