package logger

import "go.uber.org/zap"

// S retorna el SugaredLogger del singleton, para los comandos de caixactl.
//
//	logger.S().Infow("api token issued", "token_id", id)
func S() *zap.SugaredLogger {
	return L().Sugar()
}
