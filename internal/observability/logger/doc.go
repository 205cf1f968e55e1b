// Package logger provee un logger estructurado (zap) como singleton,
// con helpers para propagarlo por contexto y campos estándar del dominio
// (user_id, slot, purpose, request_id).
//
// Uso típico:
//
//	logger.Init(logger.Config{Env: "prod", Level: "info", ServiceName: "tokensmith"})
//	defer logger.Sync()
//
//	log := logger.From(ctx).With(logger.Component("apikey"))
//	log.Info("key rotated", logger.UserID(uid), logger.Slot("primary"))
package logger
