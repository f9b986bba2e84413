package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"registry-core/internal/adapters"
	"registry-core/internal/app"
)

var newAppService = app.NewService

type backendOptions struct {
	Backend       string
	Snapshot      string
	DistDir       string
	MySQLAddr     string
	MySQLPort     int
	MySQLUser     string
	MySQLPassword string
	MySQLDB       string
}

func addBackendFlags(cmd *cobra.Command, opts *backendOptions) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.Backend, "backend", app.BackendFile, "Registry backend (file|mysql)")
	flags.StringVar(&opts.Snapshot, "snapshot", "", "Registry snapshot file (file backend)")
	flags.StringVar(&opts.DistDir, "dist-dir", "", "Directory holding cached dist files")
	flags.StringVar(&opts.MySQLAddr, "mysql-addr", "localhost", "MySQL host")
	flags.IntVar(&opts.MySQLPort, "mysql-port", 3306, "MySQL port")
	flags.StringVar(&opts.MySQLUser, "mysql-user", "root", "MySQL user")
	flags.StringVar(&opts.MySQLPassword, "mysql-password", "", "MySQL password")
	flags.StringVar(&opts.MySQLDB, "mysql-db", "registry", "MySQL database")

	_ = viper.BindPFlag("backend", flags.Lookup("backend"))
	_ = viper.BindPFlag("snapshot", flags.Lookup("snapshot"))
	_ = viper.BindPFlag("dist_dir", flags.Lookup("dist-dir"))
	_ = viper.BindPFlag("mysql_addr", flags.Lookup("mysql-addr"))
	_ = viper.BindPFlag("mysql_port", flags.Lookup("mysql-port"))
	_ = viper.BindPFlag("mysql_user", flags.Lookup("mysql-user"))
	_ = viper.BindPFlag("mysql_password", flags.Lookup("mysql-password"))
	_ = viper.BindPFlag("mysql_db", flags.Lookup("mysql-db"))
}

func backendConfig(cmd *cobra.Command, opts *backendOptions) app.BackendConfig {
	return app.BackendConfig{
		Backend:      resolveString(cmd, opts.Backend, "backend", "backend"),
		SnapshotPath: resolveString(cmd, opts.Snapshot, "snapshot", "snapshot"),
		DistDir:      resolveString(cmd, opts.DistDir, "dist_dir", "dist-dir"),
		MySQL:        mysqlConfig(cmd, opts),
	}
}

func mysqlConfig(cmd *cobra.Command, opts *backendOptions) adapters.MySQLConfig {
	port := resolveInt(cmd, opts.MySQLPort, "mysql_port", "mysql-port")
	if port < 0 {
		port = 0
	}
	return adapters.MySQLConfig{
		Addr:     resolveString(cmd, opts.MySQLAddr, "mysql_addr", "mysql-addr"),
		Port:     uint(port),
		User:     resolveString(cmd, opts.MySQLUser, "mysql_user", "mysql-user"),
		Password: resolveString(cmd, opts.MySQLPassword, "mysql_password", "mysql-password"),
		Database: resolveString(cmd, opts.MySQLDB, "mysql_db", "mysql-db"),
	}
}

func resolveString(cmd *cobra.Command, value string, key string, flagName string) string {
	if cmd == nil {
		if value != "" {
			return value
		}
		return viper.GetString(key)
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetString(key)
}

func resolveBool(cmd *cobra.Command, value bool, key string, flagName string) bool {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetBool(key)
}

func resolveInt(cmd *cobra.Command, value int, key string, flagName string) int {
	if cmd == nil {
		return value
	}
	if flagChanged(cmd, flagName) {
		return value
	}
	return viper.GetInt(key)
}

func flagChanged(cmd *cobra.Command, name string) bool {
	if cmd == nil || strings.TrimSpace(name) == "" {
		return false
	}
	if flag := cmd.Flags().Lookup(name); flag != nil {
		return flag.Changed
	}
	if flag := cmd.PersistentFlags().Lookup(name); flag != nil {
		return flag.Changed
	}
	return false
}
