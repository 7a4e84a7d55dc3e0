package utils

import (
	"fmt"
	"os"
	"strings"

	"github.com/mrhoseah/shepherd-chMS-sub005/src/config"
	"github.com/mrhoseah/shepherd-chMS-sub005/src/types"
)

// WithSuffix appends the deployment suffix to a queue or topic name, e.g. SessionEvents-dev.
func WithSuffix(name string) string {
	suffix := os.Getenv("QUEUE_SUFFIX")
	if suffix == "" {
		suffix = config.APIEnv()
	}
	if suffix == "" || suffix == string(types.Production) {
		return name
	}
	return fmt.Sprintf("%s-%s", name, suffix)
}

func IsProd() bool {
	return config.APIEnv() == string(types.Production)
}

func IsLocal() bool {
	env := config.APIEnv()
	return env == "" || env == string(types.Local)
}

// AppURL joins a path to APP_HOST.
func AppURL(path string) string {
	host := strings.TrimRight(os.Getenv("APP_HOST"), "/")
	if host == "" {
		host = "http://localhost:3000"
	}
	return host + "/" + strings.TrimLeft(path, "/")
}
