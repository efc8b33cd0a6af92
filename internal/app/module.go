// Package app provides the main application module for the parking
// pipeline. It sets up dependency injection for database connections,
// storage, migration file systems, and the resolvers the pipeline
// components depend on.
package app

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"sync"

	"github.com/tigerroll/surfin/pkg/batch/adapter/database"
	dbconfig "github.com/tigerroll/surfin/pkg/batch/adapter/database/config"
	"github.com/tigerroll/surfin/pkg/batch/adapter/database/dummy"
	storageConfig "github.com/tigerroll/surfin/pkg/batch/adapter/storage/config"
	coreAdapter "github.com/tigerroll/surfin/pkg/batch/core/adapter"
	config "github.com/tigerroll/surfin/pkg/batch/core/config"
	"github.com/tigerroll/surfin/pkg/batch/core/secret"
	tx "github.com/tigerroll/surfin/pkg/batch/core/tx"
	"github.com/tigerroll/surfin/pkg/batch/support/util/logger"

	"github.com/mitchellh/mapstructure"
	gormadapter "github.com/tigerroll/surfin/pkg/batch/adapter/database/gorm"
	"github.com/tigerroll/surfin/pkg/batch/adapter/database/gorm/mysql"
	"github.com/tigerroll/surfin/pkg/batch/adapter/database/gorm/postgres"
	"github.com/tigerroll/surfin/pkg/batch/adapter/database/gorm/sqlite"
	"github.com/tigerroll/surfin/pkg/batch/adapter/storage"
	"github.com/tigerroll/surfin/pkg/batch/adapter/storage/local"
	migrationfs "github.com/tigerroll/surfin/pkg/batch/component/tasklet/migration/filesystem"

	"go.uber.org/fx"
)

// init ensures that the coreAdapter package is explicitly used,
// preventing "imported and not used" compiler errors when its types are only
// referenced in comments or interfaces.
func init() {
	var _ coreAdapter.ResourceConnection
}

// MigrationFSMapParams defines the dependencies for NewMigrationFSMap.
type MigrationFSMapParams struct {
	fx.In
	// ParkingAppFS is provided by the anonymous provider below.
	ParkingAppFS fs.FS `name:"parkingAppFS"`
	// FrameworkFS is provided by migrationfs.Module.
	FrameworkFS fs.FS `name:"frameworkMigrationsFS"`
}

// NewMigrationFSMap aggregates all necessary migration file systems into a single map.
func NewMigrationFSMap(p MigrationFSMapParams) map[string]fs.FS {
	fsMap := make(map[string]fs.FS)

	if p.FrameworkFS != nil {
		fsMap["frameworkMigrationsFS"] = p.FrameworkFS
	}
	if p.ParkingAppFS != nil {
		fsMap["parkingAppFS"] = p.ParkingAppFS
	}

	logger.Debugf("Aggregated %d total migration FSs into a map.", len(fsMap))
	return fsMap
}

// DBConnectionsAndTxManagersParams defines the dependencies for NewDBConnectionsAndTxManagers.
type DBConnectionsAndTxManagersParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	// DBProviders is a slice of all DBProvider implementations, automatically collected by Fx
	// due to the `group:"db_providers"` tag.
	DBProviders []database.DBProvider `group:"db_providers"`
	// TxFactory is the TransactionManagerFactory used to create transaction managers.
	TxFactory tx.TransactionManagerFactory
}

// NewDBConnectionsAndTxManagers establishes connections for all data sources
// defined under the "database" adapter configuration, using the appropriate
// DBProvider, and provides them as maps.
func NewDBConnectionsAndTxManagers(p DBConnectionsAndTxManagersParams) (
	map[string]database.DBConnection,
	map[string]database.DBProvider,
	error,
) {
	allConnections := make(map[string]database.DBConnection)
	allProviders := make(map[string]database.DBProvider)

	providerMap := make(map[string]database.DBProvider)
	for _, provider := range p.DBProviders {
		providerMap[provider.Type()] = provider
		allProviders[provider.Type()] = provider
	}

	dbAdapterConfig, ok := p.Cfg.Surfin.AdapterConfigs["database"]
	if !ok {
		logger.Warnf("No 'database' adapter configuration found. Skipping database connection setup.")
		return allConnections, allProviders, nil
	}

	dbConfigsMap, ok := dbAdapterConfig.(map[string]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("invalid 'database' adapter configuration format: expected map[string]interface{}")
	}

	for name, rawConfig := range dbConfigsMap {
		var dbConfig dbconfig.DatabaseConfig
		if err := mapstructure.Decode(rawConfig, &dbConfig); err != nil {
			return nil, nil, fmt.Errorf("failed to decode database config for '%s': %w", name, err)
		}

		var conn database.DBConnection
		if dbConfig.Type == "dummy" {
			logger.Infof("DB connection '%s' is configured as 'dummy'. Providing dummy implementations.", name)
			conn = dummy.NewDummyDBConnection(name)
		} else {
			provider, ok := providerMap[dbConfig.Type]
			if !ok {
				// PostgresProvider also handles Redshift, so strict checking is avoided here.
				if dbConfig.Type == "redshift" {
					provider, ok = providerMap["postgres"]
				}
				if !ok {
					logger.Warnf("No DBProvider found for database type '%s' (Datasource: %s). Skipping connection.", dbConfig.Type, name)
					continue
				}
			}

			connAsResource, err := provider.GetConnection(name)
			if err != nil {
				return nil, nil, fmt.Errorf("failed to get connection for '%s' using provider '%s': %w", name, provider.Type(), err)
			}
			dbConn, isDBConn := connAsResource.(database.DBConnection)
			if !isDBConn {
				return nil, nil, fmt.Errorf("connection '%s' from provider '%s' is not a database connection", name, provider.Type())
			}
			conn = dbConn
		}

		allConnections[name] = conn
		logger.Debugf("Initialized DB Connection for: %s (%s)", name, dbConfig.Type)
	}

	// Close all connections during shutdown.
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("Closing all database connections...")
			var wg sync.WaitGroup
			var lastErr error

			for _, provider := range p.DBProviders {
				wg.Add(1)
				go func(p database.DBProvider) {
					defer wg.Done()
					if err := p.CloseAll(); err != nil {
						logger.Errorf("Failed to close connections for provider %s: %v", p.Type(), err)
						lastErr = err
					}
				}(provider)
			}
			wg.Wait()
			return lastErr
		},
	})

	return allConnections, allProviders, nil
}

// NewStorageConnectionsParams defines the dependencies for NewStorageConnections.
type NewStorageConnectionsParams struct {
	fx.In
	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	// StorageProviders is a slice of all StorageProvider implementations,
	// automatically collected by Fx due to the `group:"storage_providers"` tag.
	StorageProviders []storage.StorageProvider `group:"storage_providers"`
}

// NewStorageConnections establishes connections for all data sources defined
// under the "storage" adapter configuration and provides them as maps.
func NewStorageConnections(p NewStorageConnectionsParams) (
	map[string]storage.StorageAdapter,
	map[string]storage.StorageProvider,
	error,
) {
	allConnections := make(map[string]storage.StorageAdapter)
	allProviders := make(map[string]storage.StorageProvider)

	providerMap := make(map[string]storage.StorageProvider)
	for _, provider := range p.StorageProviders {
		providerMap[provider.Type()] = provider
		allProviders[provider.Type()] = provider
	}

	storageAdapterConfig, ok := p.Cfg.Surfin.AdapterConfigs["storage"]
	if !ok {
		logger.Warnf("No 'storage' adapter configuration found. Skipping storage connection setup.")
		return allConnections, allProviders, nil
	}

	storageConfigsMap, ok := storageAdapterConfig.(map[string]interface{})
	if !ok {
		return nil, nil, fmt.Errorf("invalid 'storage' adapter configuration format: expected map[string]interface{}")
	}

	for name, rawConfig := range storageConfigsMap {
		var storageCfg storageConfig.StorageConfig
		// Use a mapstructure decoder that recognizes yaml tags.
		decoderConfig := &mapstructure.DecoderConfig{
			Result:  &storageCfg,
			TagName: "yaml",
		}
		decoder, err := mapstructure.NewDecoder(decoderConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create decoder for storage config '%s': %w", name, err)
		}
		if err := decoder.Decode(rawConfig); err != nil {
			return nil, nil, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
		}

		provider, ok := providerMap[storageCfg.Type]
		if !ok {
			logger.Warnf("No StorageProvider found for storage type '%s' (Datasource: %s). Skipping connection.", storageCfg.Type, name)
			continue
		}

		conn, err := provider.GetConnection(name)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to get connection for '%s' using provider '%s': %w", name, provider.Type(), err)
		}
		allConnections[name] = conn
		logger.Debugf("Initialized Storage Connection for: %s (%s)", name, storageCfg.Type)
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Infof("Closing all storage connections...")
			var wg sync.WaitGroup
			var lastErr error

			for _, provider := range p.StorageProviders {
				wg.Add(1)
				go func(p storage.StorageProvider) {
					defer wg.Done()
					if err := p.CloseAll(); err != nil {
						logger.Errorf("Failed to close connections for storage provider %s: %v", p.Type(), err)
						lastErr = err
					}
				}(provider)
			}
			wg.Wait()
			return lastErr
		},
	})

	return allConnections, allProviders, nil
}

// NewMetadataTxManager extracts the "metadata" TransactionManager from the map.
func NewMetadataTxManager(p struct {
	fx.In
	AllDBConnections map[string]database.DBConnection
	TxFactory        tx.TransactionManagerFactory
}) (tx.TransactionManager, error) {
	conn, ok := p.AllDBConnections["metadata"]
	if !ok {
		return nil, fmt.Errorf("metadata DBConnection not found in aggregated map")
	}
	return p.TxFactory.NewTransactionManager(conn), nil
}

// AppSecretResolver implements secret.SecretResolver for env:// and file:// URIs.
type AppSecretResolver struct{}

func (r *AppSecretResolver) Resolve(uri string) (any, error) {
	env := &secret.EnvSecretProvider{}
	file := &secret.FileSecretProvider{}
	if env.Supports(uri) {
		return env.Resolve(uri)
	}
	if file.Supports(uri) {
		return file.Resolve(uri)
	}
	return nil, fmt.Errorf("unsupported secret URI: %s", uri)
}

func NewSecretResolver() secret.SecretResolver {
	return &AppSecretResolver{}
}

// Module defines the application's Fx module.
// It configures and provides database connections, transaction managers,
// storage connections, migration file systems, and the connection resolvers
// used by the pipeline's readers, writers, and tasklets.
var Module = fx.Options(
	// DB Provider Modules.
	// gormadapter.Module provides the TransactionManagerFactory and the
	// GormDBConnectionResolver consumed by the schema-init, COPY-load, and
	// Parquet archive tasklets.
	gormadapter.Module,
	mysql.Module,
	postgres.Module,
	sqlite.Module,

	// Storage adapter related modules.
	local.Module,

	// Provide the aggregated map[string]database.DBConnection; also provides
	// map[string]database.DBProvider.
	fx.Provide(NewDBConnectionsAndTxManagers),
	// Provide the specific metadata TxManager required by JobFactory.
	fx.Provide(fx.Annotate(
		NewMetadataTxManager,
		fx.ResultTags(`name:"metadata"`),
	)),

	// Provide the aggregated map[string]storage.StorageAdapter and
	// map[string]storage.StorageProvider.
	fx.Provide(NewStorageConnections),

	// Provide the StorageConnectionResolver using NewLocalConnectionResolver.
	// This ensures that the []storage.StorageProvider group is fully assembled
	// before NewLocalConnectionResolver is called.
	fx.Provide(fx.Annotate(
		local.NewLocalConnectionResolver,
		fx.As(new(storage.StorageConnectionResolver)),
	)),

	// Provide application migration FS by name.
	fx.Provide(
		fx.Annotate(
			func(params struct {
				fx.In
				RawAppMigrationsFS embed.FS `name:"rawApplicationMigrationsFS"`
			}) fs.FS {
				// Due to 'go:embed all:resources/migrations', the 'resources' directory is created at the root of the FS.
				// Remove this prefix so the framework can directly reference 'postgres' or 'mysql'.
				subFS, err := fs.Sub(params.RawAppMigrationsFS, "resources/migrations")
				if err != nil {
					logger.Fatalf("Failed to create subdirectory for application migration FS: %v", err)
				}
				return subFS
			},
			fx.ResultTags(`name:"parkingAppFS"`),
		),
	),

	// Provide the aggregated map[string]fs.FS.
	fx.Provide(fx.Annotate(
		NewMigrationFSMap,
		fx.ResultTags(`name:"allMigrationFS"`),
	)),
	// migrationfs.Module explicitly provides the framework migration FS on the application side.
	migrationfs.Module,

	// Provide the default DBConnectionResolver for step-scoped resolution.
	fx.Provide(fx.Annotate(
		dummy.NewDefaultDBConnectionResolver,
	)),

	// Provide SecretResolver.
	fx.Provide(NewSecretResolver),
)
