package util

import (
	"strconv"
	"strings"

	"github.com/docbench/docbench/lib/adapter"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps flag help text at Wrap characters so long descriptions
// stay readable in cobra's usage output.
func WrapString(text string) string {
	var b strings.Builder
	lineWidth := 0

	for i, word := range strings.Fields(text) {
		switch {
		case i == 0:
			// First word starts the first line.
		case lineWidth+1+len(word) > Wrap:
			b.WriteByte('\n')
			lineWidth = 0
		default:
			b.WriteByte(' ')
			lineWidth++
		}

		b.WriteString(word)
		lineWidth += len(word)
	}

	return b.String()
}

// SetupAdapterFlags adds the common storage connection flags to a command
func SetupAdapterFlags(cmd *cobra.Command) {
	key := adapter.PropURL
	cmd.PersistentFlags().String(key, "", WrapString("The database url. Use plocal:<path> for an embedded database or remote:<host:port>/<name> for a remote one. Defaults to an embedded database under the platform temp directory"))

	key = adapter.PropUser
	cmd.PersistentFlags().String(key, "", WrapString("The database user"))

	key = adapter.PropPassword
	cmd.PersistentFlags().String(key, "", WrapString("The database password"))

	key = adapter.PropFreshDatabase
	cmd.PersistentFlags().Bool(key, false, WrapString("Drop and recreate the database before the workload starts"))

	key = adapter.PropPoolCapacity
	cmd.PersistentFlags().Int(key, 64, WrapString("Maximum number of pooled database sessions"))

	key = adapter.PropBootstrapMaxRetries
	cmd.PersistentFlags().Int(key, 50, WrapString("How often to retry the schema bootstrap before giving up (0 = no ceiling)"))

	key = adapter.PropBootstrapBackoffMS
	cmd.PersistentFlags().Int(key, 100, WrapString("Wait between schema bootstrap retries (in milliseconds)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("docbench")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// GetAdapterProps reads the storage connection configuration from viper
// and renders it as the string property map the adapter consumes. Keys
// left at their zero value are omitted so the adapter applies its own
// defaults.
func GetAdapterProps() map[string]string {
	props := make(map[string]string)

	if v := viper.GetString(adapter.PropURL); v != "" {
		props[adapter.PropURL] = v
	}
	if v := viper.GetString(adapter.PropUser); v != "" {
		props[adapter.PropUser] = v
	}
	if v := viper.GetString(adapter.PropPassword); v != "" {
		props[adapter.PropPassword] = v
	}
	if viper.GetBool(adapter.PropFreshDatabase) {
		props[adapter.PropFreshDatabase] = "true"
	}

	props[adapter.PropPoolCapacity] = strconv.Itoa(viper.GetInt(adapter.PropPoolCapacity))
	props[adapter.PropBootstrapMaxRetries] = strconv.Itoa(viper.GetInt(adapter.PropBootstrapMaxRetries))
	props[adapter.PropBootstrapBackoffMS] = strconv.Itoa(viper.GetInt(adapter.PropBootstrapBackoffMS))

	return props
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}
