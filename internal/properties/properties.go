package properties

import (
	"os"
	"path/filepath"
)

func RootPath() string {
	return os.Getenv("ROOT_PATH")
}

// DataPath joins elements under ROOT_PATH/data.
func DataPath(elem ...string) string {
	return filepath.Join(append([]string{RootPath(), "data"}, elem...)...)
}

func ClassifierAddr() string {
	if addr := os.Getenv("CLASSIFIER_ADDR"); addr != "" {
		return addr
	}
	return "localhost:50051"
}

func ClassifierTokenURL() string {
	return os.Getenv("CLASSIFIER_TOKEN_URL")
}

func ClassifierClientID() string {
	return os.Getenv("CLASSIFIER_CLIENT_ID")
}

func ClassifierClientSecret() string {
	return os.Getenv("CLASSIFIER_CLIENT_SECRET")
}

func MetricsAddr() string {
	return os.Getenv("METRICS_ADDR")
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}

func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}
