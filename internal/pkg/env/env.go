package env

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Env holds the key/value pairs read from the .env file.
var Env map[string]string

// GetEnv returns the value for key, preferring the loaded .env file over the
// OS environment. Returns def when the key is set in neither.
func GetEnv(key, def string) string {
	if val, ok := Env[key]; ok {
		return val
	}
	// OS environment covers Docker and test runs without a .env file.
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt is GetEnv for positive integer settings. Unparseable or
// non-positive values fall back to def.
func GetEnvInt(key string, def int) int {
	v, err := strconv.Atoi(GetEnv(key, strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// SetupEnvFile loads the first .env file found, walking up from the working
// directory so the binaries under cmd/ find the project root copy.
func SetupEnvFile() {
	envFiles := []string{
		".env",
		"../../.env",
		"../../../.env",
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return
		}
	}

	panic("No .env file found in any of the expected locations")
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
