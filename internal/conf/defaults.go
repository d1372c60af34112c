// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "canvass")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/canvass.log")
	viper.SetDefault("main.log.rotation", RotationDaily)
	viper.SetDefault("main.log.maxsize", 1048576)

	viper.SetDefault("webserver.port", "8080")
	viper.SetDefault("webserver.debug", false)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "canvass.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "canvass")
	viper.SetDefault("output.mysql.password", "")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
	viper.SetDefault("output.mysql.database", "canvass")

	viper.SetDefault("security.primarydomains", "")
	viper.SetDefault("security.dataentrytoken", "")

	viper.SetDefault("geo.baseurl", "")
	viper.SetDefault("geo.timeout", 10)
	viper.SetDefault("geo.cachettl", 60)
}
