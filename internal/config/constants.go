package config

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./sheetsync.db"

	// DefaultSheetsBaseURL is the Google Sheets REST API root
	DefaultSheetsBaseURL = "https://sheets.googleapis.com"
)
