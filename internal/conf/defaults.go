// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "trackguard")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/trackguard.log")

	viper.SetDefault("spotify.clientid", "")
	viper.SetDefault("spotify.clientsecret", "")
	viper.SetDefault("spotify.redirecturi", "http://127.0.0.1:8888/callback")
	viper.SetDefault("spotify.tokenpath", ".spotify_token.json")

	viper.SetDefault("monitor.pollinterval", 3)
	viper.SetDefault("monitor.backoffmultiplier", 2.0)
	viper.SetDefault("monitor.maxbackoff", 60)
	viper.SetDefault("monitor.autoskip", true)
	viper.SetDefault("monitor.removefromuserplaylists", false)
	viper.SetDefault("monitor.blockedplaylist", "")
	viper.SetDefault("monitor.actionthreshold", 0.6)
	viper.SetDefault("monitor.actionretries", 3)

	viper.SetDefault("classification.minsourceagreement", 2)
	viper.SetDefault("classification.cacheduration", 604800) // one week
	viper.SetDefault("classification.timeout", 30)
	viper.SetDefault("classification.fallbackthreshold", 0.5)
	viper.SetDefault("classification.bandpolicy.virtualorfictionalisartificial", true)

	viper.SetDefault("sources.wikidata.enabled", true)
	viper.SetDefault("sources.wikidata.endpoint", "https://query.wikidata.org/sparql")
	viper.SetDefault("sources.wikidata.useragent", "trackguard/1.0 (https://github.com/tlahtinen/trackguard)")
	viper.SetDefault("sources.wikidata.timeout", 10)

	viper.SetDefault("sources.musicbrainz.enabled", true)
	viper.SetDefault("sources.musicbrainz.endpoint", "https://musicbrainz.org/ws/2")
	viper.SetDefault("sources.musicbrainz.useragent", "trackguard/1.0 (https://github.com/tlahtinen/trackguard)")
	viper.SetDefault("sources.musicbrainz.timeout", 10)
	viper.SetDefault("sources.musicbrainz.ratelimitpersecond", 1.0)
	viper.SetDefault("sources.musicbrainz.mintagcount", 1)

	viper.SetDefault("sources.lastfm.enabled", false)
	viper.SetDefault("sources.lastfm.apikey", "")
	viper.SetDefault("sources.lastfm.sharedsecret", "")
	viper.SetDefault("sources.lastfm.timeout", 10)
	viper.SetDefault("sources.lastfm.maxtoptags", 15)

	viper.SetDefault("ollama.enabled", false)
	viper.SetDefault("ollama.host", "http://127.0.0.1:11434")
	viper.SetDefault("ollama.model", "granite4:tiny-h")
	viper.SetDefault("ollama.keepalive", "5m")
	viper.SetDefault("ollama.seed", 42)
	viper.SetDefault("ollama.temperature", 0.0)
	viper.SetDefault("ollama.numpredict", 128)
	viper.SetDefault("ollama.timeout", 8)
	viper.SetDefault("ollama.promptpath", "")

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.host", "127.0.0.1")
	viper.SetDefault("webserver.port", "8889")
	viper.SetDefault("webserver.log.enabled", false)
	viper.SetDefault("webserver.log.path", "logs/webserver.log")

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "trackguard.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "trackguard")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "trackguard")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", 3306)
}
