package backend

import (
	"fmt"
	"time"

	"kakeibo/internal/config"
	gsheets "kakeibo/internal/sheets/google"
	"kakeibo/internal/storage"
)

// Config is the part of the application config the factory needs.
type Config struct {
	Data         string
	SQLiteDBPath string
	PostgresDSN  string

	Events       string
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaGroupID string

	// Sheets is used when SpreadsheetID is set
	Sheets gsheets.Options

	ConnectTimeout time.Duration
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	return Config{
		Data:         appConfig.DataBackend,
		SQLiteDBPath: appConfig.SQLiteDBPath,
		PostgresDSN:  appConfig.PostgresDSN,

		Events:       appConfig.EventsBackend,
		AMQPURL:      appConfig.AMQPURL,
		AMQPExchange: appConfig.AMQPExchange,
		AMQPQueue:    appConfig.AMQPQueue,
		KafkaBrokers: appConfig.KafkaBrokers,
		KafkaTopic:   appConfig.KafkaTopic,
		KafkaGroupID: appConfig.KafkaGroupID,

		Sheets: gsheets.Options{
			SpreadsheetID:   appConfig.GoogleSpreadsheetID,
			SheetName:       appConfig.GoogleSnapshotSheetName,
			CredentialsJSON: appConfig.GoogleServiceAccountJSON,
			CredentialsFile: appConfig.GoogleServiceAccountFile,
		},

		ConnectTimeout: 10 * time.Second,
	}, nil
}

// SQLTarget returns the dialect and DSN of a SQL data backend, for tools
// that talk to the schema directly such as the migrate command.
func (c Config) SQLTarget() (storage.Dialect, string, error) {
	switch c.Data {
	case config.BackendSQLite:
		return storage.SQLite, storage.SQLiteDSN(c.SQLiteDBPath), nil
	case config.BackendPostgres:
		return storage.Postgres, c.PostgresDSN, nil
	default:
		return storage.Dialect{}, "", fmt.Errorf("data backend %q has no SQL schema", c.Data)
	}
}

// ExportEnabled reports whether snapshots go to a spreadsheet.
func (c Config) ExportEnabled() bool {
	return c.Sheets.SpreadsheetID != ""
}
