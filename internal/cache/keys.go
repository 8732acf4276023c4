package cache

import (
	"fmt"

	"github.com/google/uuid"
)

func SessionKey(token uuid.UUID) string {
	return fmt.Sprintf("session:%s", token)
}

func RateLimitKey(clientIP string) string {
	return fmt.Sprintf("ratelimit:intake:%s", clientIP)
}

func FeedKey(generation, filterHash string) string {
	return fmt.Sprintf("feed:rss:%s:%s", generation, filterHash)
}

func FeedGenerationKey() string {
	return "feed:rss:generation"
}
