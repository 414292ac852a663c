package configloader

import (
	"os"
	"strconv"
	"time"
)

// OverrideString overrides a string field if the environment variable is set.
func OverrideString(field *string, env string) {
	if val := os.Getenv(env); val != "" {
		*field = val
	}
}

// OverrideInt overrides an int field if the environment variable is set.
func OverrideInt(field *int, env string) {
	if val := os.Getenv(env); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*field = i
		}
	}
}

// OverrideBool overrides a bool field if the environment variable is set.
func OverrideBool(field *bool, env string) {
	if val := os.Getenv(env); val != "" {
		switch val {
		case "1", "true", "TRUE", "True":
			*field = true
		case "0", "false", "FALSE", "False":
			*field = false
		}
	}
}

// OverrideDuration overrides a time.Duration field if the environment variable is set.
func OverrideDuration(field *time.Duration, env string) {
	if val := os.Getenv(env); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*field = d
		}
	}
}
