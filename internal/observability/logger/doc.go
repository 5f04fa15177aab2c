// Package logger es el logging estructurado del servicio, sobre zap.
//
// Hay un singleton (Init una vez en main, L() en el resto) y un logger por
// request que viaja en el contexto: WithLogging lo crea con request_id, método
// y path, y RequireToken le agrega principal_id, token_id y device_id.
//
//	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
//	defer func() { _ = logger.Sync() }()
//
//	logger.From(ctx).Info("batch processed", logger.Count(n))
//
// En "dev" escribe consola con colores; en "prod", JSON.
package logger
