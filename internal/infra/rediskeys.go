package infra

const (
	// RedisNamespace Базовый префикс для изоляции данных проекта в Redis
	RedisNamespace = "pam"
)

// Ключи для Sets (состояние)
const (
	RedisKeyRevokedSessions = RedisNamespace + ":sessions:revoked_set"
)

// Каналы Pub/Sub (события)
const (
	// RedisChanRevocation — сигнал "sessionID:true" для коллаборатора портала
	RedisChanRevocation     = RedisNamespace + ":sessions:revoke-signal"
	RedisChanSettingsUpdate = RedisNamespace + ":settings:update"
	RedisChanScoredEvents   = RedisNamespace + ":events:scored"
)
